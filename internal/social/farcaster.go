package social

import (
	"context"
	"errors"
	"strings"

	"onchain-trade-agent/internal/config"
	"onchain-trade-agent/internal/models"
	"onchain-trade-agent/internal/ratelimit"
	"onchain-trade-agent/internal/retry"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// FarcasterMaxLength is the cast length limit.
const FarcasterMaxLength = 320

// Farcaster casts through the Neynar API.
type Farcaster struct {
	client     *resty.Client
	limiter    *ratelimit.Limiter
	retry      retryPolicy
	signerUUID string
	fid        string
	logger     *zap.Logger
}

var _ Channel = (*Farcaster)(nil)

type castResponse struct {
	Cast struct {
		Hash string `json:"hash"`
	} `json:"cast"`
}

type notificationsResponse struct {
	Notifications []struct {
		Type string `json:"type"`
		Cast struct {
			Hash   string `json:"hash"`
			Text   string `json:"text"`
			Author struct {
				Username string `json:"username"`
			} `json:"author"`
		} `json:"cast"`
	} `json:"notifications"`
}

// NewFarcaster creates a Farcaster channel.
func NewFarcaster(cfg *config.Farcaster, logger *zap.Logger) *Farcaster {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("api_key", cfg.ApiKey)

	l := logger.Named("farcaster")
	return &Farcaster{
		client:     client,
		limiter:    ratelimit.New(cfg.MinInterval),
		retry:      newRetryPolicy(l),
		signerUUID: cfg.SignerUUID,
		fid:        cfg.FID,
		logger:     l,
	}
}

// Platform implements Channel.
func (f *Farcaster) Platform() string {
	return models.PlatformFarcaster
}

// Post publishes a cast.
func (f *Farcaster) Post(ctx context.Context, text string) (string, error) {
	return f.cast(ctx, map[string]string{
		"signer_uuid": f.signerUUID,
		"text":        Truncate(text, FarcasterMaxLength),
	})
}

// Reply answers the cast with the given hash.
func (f *Farcaster) Reply(ctx context.Context, text, parentHash string) (string, error) {
	return f.cast(ctx, map[string]string{
		"signer_uuid": f.signerUUID,
		"text":        Truncate(text, FarcasterMaxLength),
		"parent":      parentHash,
	})
}

func (f *Farcaster) cast(ctx context.Context, body map[string]string) (string, error) {
	return retry.Do(ctx, f.retry.write, func(ctx context.Context) (string, error) {
		var out castResponse
		if err := f.do(ctx, f.client.R().SetBody(body).SetResult(&out), "POST", "/cast"); err != nil {
			return "", err
		}
		if out.Cast.Hash == "" {
			return "", errors.New("farcaster: cast response without hash")
		}
		return out.Cast.Hash, nil
	})
}

// Mentions returns the latest mention notifications. Without a configured fid there is
// nothing to poll.
func (f *Farcaster) Mentions(ctx context.Context) ([]Mention, error) {
	if f.fid == "" {
		return nil, nil
	}

	res, err := retry.Do(ctx, f.retry.read, func(ctx context.Context) (*notificationsResponse, error) {
		var out notificationsResponse
		req := f.client.R().
			SetQueryParam("fid", f.fid).
			SetQueryParam("limit", "20").
			SetResult(&out)
		if err := f.do(ctx, req, "GET", "/notifications"); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	var mentions []Mention
	for _, n := range res.Notifications {
		if n.Type != "mention" || n.Cast.Hash == "" {
			continue
		}
		author := n.Cast.Author.Username
		if author == "" {
			author = "unknown"
		}
		mentions = append(mentions, Mention{ExternalID: n.Cast.Hash, Author: author, Text: n.Cast.Text})
	}
	return mentions, nil
}

func (f *Farcaster) do(ctx context.Context, req *resty.Request, method, path string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Platform: "farcaster", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
