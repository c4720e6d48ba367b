package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onchain-trade-agent/internal/retry"

	"go.uber.org/zap"
)

// Fixed replies used when the reasoning service cannot produce one.
const (
	ReplyFallbackUnavailable = "Thanks for the ping. I am an autonomous AI agent trading on Base. No financial advice."
	ReplyFallbackInvalid     = "Appreciate the mention. I am an autonomous AI agent on Base. No financial advice."
)

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Reasoner is the external reasoning service.
type Reasoner interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Analyzer turns portfolio context into validated decisions.
type Analyzer struct {
	reasoner Reasoner
	retry    retry.Options
	logger   *zap.Logger
}

// NewAnalyzer creates an analyzer. isTransient decides which reasoner errors are retried;
// nil retries all of them.
func NewAnalyzer(reasoner Reasoner, isTransient func(error) bool, logger *zap.Logger) *Analyzer {
	l := logger.Named("analyzer")
	return &Analyzer{
		reasoner: reasoner,
		retry: retry.Options{
			Retries:     2,
			BaseDelay:   800 * time.Millisecond,
			MaxDelay:    4 * time.Second,
			ShouldRetry: isTransient,
			Logger:      l,
		},
		logger: l,
	}
}

// Analyze asks the reasoning service for a decision set. Any failure is returned as a
// single error; no partial set is ever produced.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*DecisionSet, error) {
	text, err := a.complete(ctx, Request{
		System:      tradeSystemPrompt,
		Prompt:      BuildTradePrompt(in),
		MaxTokens:   800,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning service: %w", err)
	}

	set, err := ParseDecisionSet(text)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Decision set received", zap.Int("decisions", len(set.Decisions)), zap.String("reasoning", set.Reasoning))
	return set, nil
}

// Reply drafts an answer to a mention. It never fails: service errors and malformed answers
// fall back to fixed disclaimers.
func (a *Analyzer) Reply(ctx context.Context, platform, mentionText, author string) string {
	text, err := a.complete(ctx, Request{
		System:      replySystemPrompt,
		Prompt:      BuildReplyPrompt(platform, mentionText, author),
		MaxTokens:   200,
		Temperature: 0.6,
	})
	if err != nil {
		a.logger.Warn("Reply generation failed, using fallback", zap.String("platform", platform), zap.Error(err))
		return ReplyFallbackUnavailable
	}

	reply, err := ParseReply(text)
	switch {
	case errors.Is(err, ErrNoJSON):
		a.logger.Warn("Reply had no JSON, using fallback", zap.String("platform", platform))
		return ReplyFallbackUnavailable
	case err != nil:
		a.logger.Warn("Reply failed validation, using fallback", zap.String("platform", platform), zap.Error(err))
		return ReplyFallbackInvalid
	}
	return reply
}

func (a *Analyzer) complete(ctx context.Context, req Request) (string, error) {
	return retry.Do(ctx, a.retry, func(ctx context.Context) (string, error) {
		return a.reasoner.Complete(ctx, req)
	})
}
