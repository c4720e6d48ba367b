package ai

import (
	"time"

	"onchain-trade-agent/internal/market"

	"github.com/shopspring/decimal"
)

// Action is what the agent should do with a market.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// MaxSizePct is the largest position fraction the reasoning service may propose.
const MaxSizePct = 0.10

// Decision is one market's recommendation for the current cycle.
type Decision struct {
	MarketID   string  `json:"marketId"`
	Action     Action  `json:"action"`
	SizePct    float64 `json:"sizePct"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// DecisionSet is the validated answer of the reasoning service.
type DecisionSet struct {
	Reasoning        string     `json:"reasoning"`
	Decisions        []Decision `json:"decisions"`
	MarketCommentary string     `json:"marketCommentary"`
}

// HoldAll builds the fallback used when no usable decision set is available.
func HoldAll(markets []market.Market, reason string) *DecisionSet {
	set := &DecisionSet{
		Reasoning:        "Fallback HOLD",
		Decisions:        make([]Decision, 0, len(markets)),
		MarketCommentary: "Holding positions. AI unavailable.",
	}
	for _, m := range markets {
		set.Decisions = append(set.Decisions, Decision{MarketID: m.ID, Action: ActionHold, Reason: reason})
	}
	return set
}

// Position is an open trade as shown to the reasoning service.
type Position struct {
	MarketID   string
	Side       string
	EntryPrice decimal.Decimal
	OpenedAt   time.Time
}

// Input is the context for one analysis.
type Input struct {
	PortfolioValueUSD decimal.Decimal
	AvailableUSD      decimal.Decimal
	EthBalance        decimal.Decimal
	OpenPositions     []Position
	Markets           []market.Market
	Headlines         []market.Headline
}
