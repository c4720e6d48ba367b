package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"onchain-trade-agent/internal/retry"

	"go.uber.org/zap"
)

// Channel is an outbound social platform.
type Channel interface {
	// Platform is the stored platform name, e.g. models.PlatformTwitter.
	Platform() string
	Post(ctx context.Context, text string) (string, error)
	Reply(ctx context.Context, text, parentID string) (string, error)
	Mentions(ctx context.Context) ([]Mention, error)
}

// MentionCursor is implemented by channels that poll mentions from a cursor. The cursor
// advances past the last Mentions batch only on CommitMentions, once the batch is stored.
type MentionCursor interface {
	CommitMentions()
}

// Mention is an inbound mention of the agent.
type Mention struct {
	ExternalID string
	Author     string
	Text       string
}

// APIError is a non-2xx response from a social platform.
type APIError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Platform, e.StatusCode, e.Body)
}

func isRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// isTransient also treats server errors and transport failures as retryable. Only reads use
// it; a 5xx on a post may still have published.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

type retryPolicy struct {
	read  retry.Options
	write retry.Options
}

func newRetryPolicy(logger *zap.Logger) retryPolicy {
	base := retry.Options{Retries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second, Logger: logger}
	p := retryPolicy{read: base, write: base}
	p.read.ShouldRetry = isTransient
	p.write.ShouldRetry = isRateLimited
	return p
}

// Truncate shortens text to at most limit runes, ending with an ellipsis when cut.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}
