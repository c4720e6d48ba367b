package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"onchain-trade-agent/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedReasoner returns the queued answers in order.
type scriptedReasoner struct {
	answers  []string
	errs     []error
	requests []Request
}

func (s *scriptedReasoner) Complete(ctx context.Context, req Request) (string, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.answers) {
		return s.answers[i], nil
	}
	return "", errors.New("no more answers")
}

var errTransient = errors.New("overloaded")

func isTestTransient(err error) bool { return errors.Is(err, errTransient) }

func newTestAnalyzer(r Reasoner) *Analyzer {
	a := NewAnalyzer(r, isTestTransient, zap.NewNop())
	a.retry.BaseDelay = time.Millisecond
	a.retry.MaxDelay = 2 * time.Millisecond
	return a
}

func testInput() Input {
	usdc := market.Token{Symbol: "USDC", Decimals: 6}
	return Input{
		PortfolioValueUSD: decimal.NewFromInt(1000),
		AvailableUSD:      decimal.NewFromInt(600),
		EthBalance:        decimal.RequireFromString("0.05"),
		OpenPositions: []Position{
			{MarketID: "WETH-USDC", Side: "YES", EntryPrice: decimal.NewFromInt(2000), OpenedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		Markets: []market.Market{
			{ID: "WETH-USDC", BaseToken: usdc, QuoteToken: market.Token{Symbol: "WETH"}, Price: decimal.NewFromInt(2100)},
		},
		Headlines: []market.Headline{{Title: "Base TVL hits record"}},
	}
}

func TestAnalyze(t *testing.T) {
	t.Run("RetriesTransientThenParses", func(t *testing.T) {
		// Arrange
		r := &scriptedReasoner{
			errs:    []error{errTransient},
			answers: []string{"", `{"reasoning":"r","decisions":[{"marketId":"WETH-USDC","action":"HOLD","sizePct":0,"confidence":0.4,"reason":"wait"}],"marketCommentary":"c"}`},
		}
		a := newTestAnalyzer(r)

		// Act
		set, err := a.Analyze(context.Background(), testInput())

		// Assert
		require.NoError(t, err)
		require.Len(t, set.Decisions, 1)
		assert.Equal(t, ActionHold, set.Decisions[0].Action)
		require.Len(t, r.requests, 2)
		req := r.requests[1]
		assert.Equal(t, tradeSystemPrompt, req.System)
		assert.EqualValues(t, 800, req.MaxTokens)
		assert.Equal(t, 0.2, req.Temperature)
		assert.Contains(t, req.Prompt, "Total value (USD): 1000.00")
		assert.Contains(t, req.Prompt, "WETH-USDC (YES) entry: 2000.000000 opened: 2026-01-01T00:00:00Z")
		assert.Contains(t, req.Prompt, "WETH-USDC | price: 2100.000000 USDC per WETH")
		assert.Contains(t, req.Prompt, "- Base TVL hits record")
		assert.Contains(t, req.Prompt, "Cut losses at -15%")
	})

	t.Run("ValidationFailureIsNotRetried", func(t *testing.T) {
		r := &scriptedReasoner{answers: []string{`{"reasoning":"r","decisions":[{"marketId":"A","action":"BUY","sizePct":0.5,"confidence":1,"reason":""}],"marketCommentary":""}`}}
		a := newTestAnalyzer(r)

		set, err := a.Analyze(context.Background(), testInput())

		assert.Nil(t, set)
		assert.ErrorIs(t, err, ErrInvalidResponse)
		assert.Len(t, r.requests, 1)
	})

	t.Run("ExhaustedRetriesSurfaceError", func(t *testing.T) {
		r := &scriptedReasoner{errs: []error{errTransient, errTransient, errTransient}}
		a := newTestAnalyzer(r)

		_, err := a.Analyze(context.Background(), testInput())

		assert.ErrorIs(t, err, errTransient)
		assert.Len(t, r.requests, 3)
	})
}

func TestBuildTradePrompt_Empty(t *testing.T) {
	p := BuildTradePrompt(Input{})
	assert.Contains(t, p, "Open positions:\nNone\n")
	assert.Contains(t, p, "No major headlines.")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(p), "}"))
}

func TestReply(t *testing.T) {
	tests := []struct {
		name string
		r    *scriptedReasoner
		want string
	}{
		{"valid", &scriptedReasoner{answers: []string{`Here: {"reply":"Snip snap, thanks!"}`}}, "Snip snap, thanks!"},
		{"no json", &scriptedReasoner{answers: []string{"Thanks!"}}, ReplyFallbackUnavailable},
		{"invalid", &scriptedReasoner{answers: []string{`{"message":"hi"}`}}, ReplyFallbackInvalid},
		{"service down", &scriptedReasoner{errs: []error{errors.New("401 unauthorized")}}, ReplyFallbackUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(tt.r)
			got := a.Reply(context.Background(), "twitter", "@crab what do you think?", "alice")
			assert.Equal(t, tt.want, got)
			require.NotEmpty(t, tt.r.requests)
			assert.Equal(t, replySystemPrompt, tt.r.requests[0].System)
			assert.EqualValues(t, 200, tt.r.requests[0].MaxTokens)
			assert.Contains(t, tt.r.requests[0].Prompt, "Author: alice")
		})
	}
}

func TestHoldAll(t *testing.T) {
	set := HoldAll([]market.Market{{ID: "A"}, {ID: "B"}}, "AI unavailable")
	require.Len(t, set.Decisions, 2)
	for _, d := range set.Decisions {
		assert.Equal(t, ActionHold, d.Action)
		assert.Equal(t, "AI unavailable", d.Reason)
		assert.Zero(t, d.SizePct)
	}
}
