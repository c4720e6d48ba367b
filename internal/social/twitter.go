package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"onchain-trade-agent/internal/config"
	"onchain-trade-agent/internal/models"
	"onchain-trade-agent/internal/ratelimit"
	"onchain-trade-agent/internal/retry"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// TwitterMaxLength is the tweet length limit.
const TwitterMaxLength = 280

const twitterTokenURL = "https://api.twitter.com/2/oauth2/token"

// Twitter posts through the X API v2 with an OAuth2 user-context token.
type Twitter struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
	retry   retryPolicy
	logger  *zap.Logger

	mu      sync.Mutex
	userID  string
	sinceID string
	pending string
}

var (
	_ Channel       = (*Twitter)(nil)
	_ MentionCursor = (*Twitter)(nil)
)

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type mentionsResponse struct {
	Data []struct {
		ID       string `json:"id"`
		AuthorID string `json:"author_id"`
		Text     string `json:"text"`
	} `json:"data"`
	Meta struct {
		NewestID string `json:"newest_id"`
	} `json:"meta"`
}

// NewTwitter creates a Twitter channel. The access token is refreshed with the refresh token
// when it expires.
func NewTwitter(cfg *config.Twitter, logger *zap.Logger) *Twitter {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: twitterTokenURL},
	}
	token := &oauth2.Token{AccessToken: cfg.AccessToken, RefreshToken: cfg.RefreshToken, TokenType: "Bearer"}
	httpClient := oauthCfg.Client(context.Background(), token)

	l := logger.Named("twitter")
	return &Twitter{
		client:  resty.NewWithClient(httpClient).SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		limiter: ratelimit.New(cfg.MinInterval),
		retry:   newRetryPolicy(l),
		logger:  l,
	}
}

// Platform implements Channel.
func (t *Twitter) Platform() string {
	return models.PlatformTwitter
}

// Post publishes a tweet.
func (t *Twitter) Post(ctx context.Context, text string) (string, error) {
	body := map[string]interface{}{"text": Truncate(text, TwitterMaxLength)}
	return t.tweet(ctx, body)
}

// Reply answers a tweet.
func (t *Twitter) Reply(ctx context.Context, text, parentID string) (string, error) {
	body := map[string]interface{}{
		"text":  Truncate(text, TwitterMaxLength),
		"reply": map[string]string{"in_reply_to_tweet_id": parentID},
	}
	return t.tweet(ctx, body)
}

func (t *Twitter) tweet(ctx context.Context, body map[string]interface{}) (string, error) {
	return retry.Do(ctx, t.retry.write, func(ctx context.Context) (string, error) {
		var out tweetResponse
		if err := t.do(ctx, t.client.R().SetBody(body).SetResult(&out), "POST", "/tweets"); err != nil {
			return "", err
		}
		if out.Data.ID == "" {
			return "", errors.New("twitter: tweet response without id")
		}
		return out.Data.ID, nil
	})
}

// Mentions returns mentions newer than the last committed batch.
func (t *Twitter) Mentions(ctx context.Context) ([]Mention, error) {
	userID, err := t.me(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	sinceID := t.sinceID
	t.mu.Unlock()

	res, err := retry.Do(ctx, t.retry.read, func(ctx context.Context) (*mentionsResponse, error) {
		var out mentionsResponse
		req := t.client.R().
			SetQueryParam("max_results", "20").
			SetQueryParam("tweet.fields", "author_id,created_at,text").
			SetResult(&out)
		if sinceID != "" {
			req.SetQueryParam("since_id", sinceID)
		}
		if err := t.do(ctx, req, "GET", "/users/"+userID+"/mentions"); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	if res.Meta.NewestID != "" {
		t.mu.Lock()
		t.pending = res.Meta.NewestID
		t.mu.Unlock()
	}

	mentions := make([]Mention, 0, len(res.Data))
	for _, d := range res.Data {
		mentions = append(mentions, Mention{ExternalID: d.ID, Author: d.AuthorID, Text: d.Text})
	}
	return mentions, nil
}

// me resolves and caches the authenticated user's id.
func (t *Twitter) me(ctx context.Context) (string, error) {
	t.mu.Lock()
	id := t.userID
	t.mu.Unlock()
	if id != "" {
		return id, nil
	}

	out, err := retry.Do(ctx, t.retry.read, func(ctx context.Context) (*tweetResponse, error) {
		var out tweetResponse
		if err := t.do(ctx, t.client.R().SetResult(&out), "GET", "/users/me"); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return "", fmt.Errorf("twitter: resolve user: %w", err)
	}
	if out.Data.ID == "" {
		return "", errors.New("twitter: unable to resolve user id")
	}

	t.mu.Lock()
	t.userID = out.Data.ID
	t.mu.Unlock()
	return out.Data.ID, nil
}

// CommitMentions moves since_id past the last batch returned by Mentions.
func (t *Twitter) CommitMentions() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != "" {
		t.sinceID = t.pending
		t.pending = ""
	}
}

func (t *Twitter) do(ctx context.Context, req *resty.Request, method, path string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Platform: "twitter", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
