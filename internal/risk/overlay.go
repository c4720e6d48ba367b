package risk

import (
	"onchain-trade-agent/internal/ai"
	"onchain-trade-agent/internal/market"
	"onchain-trade-agent/internal/models"

	"github.com/shopspring/decimal"
)

// Thresholds that force an exit regardless of what the reasoning service said.
const (
	StopLossBps   = -1500
	TakeProfitBps = 3000
)

// TriggerReason marks decisions synthesized by the overlay.
const TriggerReason = "Risk rule trigger"

// Plan is the ordered, per-market set of decisions to execute this cycle.
type Plan struct {
	order     []string
	decisions map[string]ai.Decision
	triggered map[string]bool
}

// Decisions returns the decisions in execution order.
func (p *Plan) Decisions() []ai.Decision {
	out := make([]ai.Decision, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.decisions[id])
	}
	return out
}

// Get returns the decision for a market.
func (p *Plan) Get(marketID string) (ai.Decision, bool) {
	d, ok := p.decisions[marketID]
	return d, ok
}

// Triggered reports whether the market's decision was forced by a risk rule.
func (p *Plan) Triggered(marketID string) bool {
	return p.triggered[marketID]
}

// Len is the number of markets in the plan.
func (p *Plan) Len() int {
	return len(p.order)
}

func (p *Plan) set(d ai.Decision) {
	if _, ok := p.decisions[d.MarketID]; !ok {
		p.order = append(p.order, d.MarketID)
	}
	p.decisions[d.MarketID] = d
}

// Apply clamps every decision's size into [0, maxPositionSize] and replaces the decision of
// any open trade past the stop-loss or take-profit threshold with a full-size SELL.
// Duplicate market ids keep their first position in the order; the later decision wins.
func Apply(set *ai.DecisionSet, openTrades []models.Trade, markets []market.Market, maxPositionSize float64) *Plan {
	plan := &Plan{
		decisions: make(map[string]ai.Decision),
		triggered: make(map[string]bool),
	}

	if set != nil {
		for _, d := range set.Decisions {
			d.SizePct = Clamp(d.SizePct, 0, maxPositionSize)
			plan.set(d)
		}
	}

	prices := market.Index(markets)
	for _, t := range openTrades {
		m, ok := prices[t.MarketID]
		if !ok {
			continue
		}
		pnl, ok := PnlBps(t.EntryPrice, m.Price)
		if !ok {
			continue
		}
		if Breached(pnl) {
			plan.set(ai.Decision{
				MarketID:   t.MarketID,
				Action:     ai.ActionSell,
				SizePct:    maxPositionSize,
				Confidence: 1,
				Reason:     TriggerReason,
			})
			plan.triggered[t.MarketID] = true
		}
	}
	return plan
}

// Breached reports whether pnlBps is at or beyond either threshold.
func Breached(pnlBps decimal.Decimal) bool {
	return pnlBps.LessThanOrEqual(decimal.NewFromInt(StopLossBps)) ||
		pnlBps.GreaterThanOrEqual(decimal.NewFromInt(TakeProfitBps))
}

// PnlBps is (current - entry) / entry * 10000. ok is false when entry is unusable.
func PnlBps(entryPrice string, current decimal.Decimal) (pnl decimal.Decimal, ok bool) {
	entry, err := decimal.NewFromString(entryPrice)
	if err != nil || !entry.IsPositive() {
		return decimal.Zero, false
	}
	return current.Sub(entry).Mul(decimal.NewFromInt(10000)).DivRound(entry, 8), true
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
