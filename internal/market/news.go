package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"onchain-trade-agent/internal/config"
	"onchain-trade-agent/internal/retry"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NewsClient reads headlines from a CryptoCompare-style news endpoint.
type NewsClient struct {
	client *resty.Client
	url    string
	limit  int
	retry  retry.Options
	now    func() time.Time
}

type newsResponse struct {
	Data []struct {
		Source      string `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedOn int64  `json:"published_on"`
	} `json:"Data"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("news api error: status %d: %s", e.code, e.body)
}

// NewNewsClient creates a headline client.
func NewNewsClient(cfg *config.News, logger *zap.Logger) *NewsClient {
	client := resty.New().SetTimeout(15 * time.Second)
	if cfg.ApiKey != "" {
		client.SetHeader("Authorization", "Apikey "+cfg.ApiKey)
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 5
	}
	return &NewsClient{
		client: client,
		url:    cfg.URL,
		limit:  limit,
		retry: retry.Options{
			Retries:   2,
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  3 * time.Second,
			ShouldRetry: func(err error) bool {
				var se *statusError
				if errors.As(err, &se) {
					return se.code == http.StatusTooManyRequests || se.code >= 500
				}
				return !errors.Is(err, context.Canceled)
			},
			Logger: logger.Named("news"),
		},
		now: time.Now,
	}
}

// Headlines returns the newest headlines, at most the configured limit.
func (c *NewsClient) Headlines(ctx context.Context) ([]Headline, error) {
	return retry.Do(ctx, c.retry, func(ctx context.Context) ([]Headline, error) {
		var body newsResponse
		resp, err := c.client.R().SetContext(ctx).SetResult(&body).Get(c.url)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &statusError{code: resp.StatusCode(), body: resp.String()}
		}

		items := body.Data
		if len(items) > c.limit {
			items = items[:c.limit]
		}
		out := make([]Headline, 0, len(items))
		for _, it := range items {
			h := Headline{Source: it.Source, Title: it.Title, URL: it.URL}
			if h.Source == "" {
				h.Source = "unknown"
			}
			if h.Title == "" {
				h.Title = "Untitled"
			}
			if it.PublishedOn > 0 {
				h.PublishedAt = time.Unix(it.PublishedOn, 0).UTC()
			} else {
				h.PublishedAt = c.now().UTC()
			}
			out = append(out, h)
		}
		return out, nil
	})
}
