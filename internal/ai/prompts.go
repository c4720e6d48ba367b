package ai

import (
	"fmt"
	"strings"
	"time"
)

const (
	tradeSystemPrompt = "You are a reliable trading decision engine."
	replySystemPrompt = "You craft concise, friendly replies."
)

const tradeRules = `You are CrabTrader, an autonomous AI trading agent on Base. You are witty and honest, using crab puns sparingly.
You must never provide financial advice. Always mention you are an AI agent.

Risk rules (STRICT):
- Never risk more than 10% of total portfolio on a single trade.
- Cut losses at -15% (recommend exit when price is 15% below entry).
- Take profits at +30% unless strong conviction.
- Maintain minimum gas buffer of 0.01 ETH at all times.
`

const tradeSchema = `Return ONLY valid JSON with the following schema:
{
  "reasoning": "string",
  "decisions": [
    {
      "marketId": "string",
      "action": "BUY|SELL|HOLD",
      "sizePct": number, // 0.0 - 0.10
      "confidence": number, // 0.0 - 1.0
      "reason": "string"
    }
  ],
  "marketCommentary": "string"
}
`

// BuildTradePrompt renders the analysis context.
func BuildTradePrompt(in Input) string {
	var b strings.Builder
	b.WriteString(tradeRules)

	b.WriteString("\nPortfolio:\n")
	fmt.Fprintf(&b, "- Total value (USD): %s\n", in.PortfolioValueUSD.StringFixed(2))
	fmt.Fprintf(&b, "- Available cash (USD): %s\n", in.AvailableUSD.StringFixed(2))
	fmt.Fprintf(&b, "- ETH balance: %s\n", in.EthBalance.StringFixed(6))

	b.WriteString("\nOpen positions:\n")
	if len(in.OpenPositions) == 0 {
		b.WriteString("None\n")
	}
	for _, p := range in.OpenPositions {
		fmt.Fprintf(&b, "%s (%s) entry: %s opened: %s\n", p.MarketID, p.Side, p.EntryPrice.StringFixed(6), p.OpenedAt.UTC().Format(time.RFC3339))
	}

	b.WriteString("\nMarkets:\n")
	for _, m := range in.Markets {
		fmt.Fprintf(&b, "%s | price: %s %s per %s\n", m.ID, m.Price.StringFixed(6), m.BaseToken.Symbol, m.QuoteToken.Symbol)
	}

	b.WriteString("\nRecent headlines:\n")
	if len(in.Headlines) == 0 {
		b.WriteString("No major headlines.\n")
	}
	for _, h := range in.Headlines {
		fmt.Fprintf(&b, "- %s\n", h.Title)
	}

	b.WriteString("\n")
	b.WriteString(tradeSchema)
	return b.String()
}

// BuildReplyPrompt renders the prompt for answering a mention.
func BuildReplyPrompt(platform, mentionText, author string) string {
	return fmt.Sprintf(`You are CrabTrader, an autonomous AI agent on Base. Be concise, friendly, and honest.
Use crab humor sparingly. Do NOT give financial advice. Always be transparent that you are a bot.

Platform: %s
Author: %s
Mention: %s

Return ONLY valid JSON:
{ "reply": "string" }
`, platform, author, mentionText)
}
