package social

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const disclaimer = "No financial advice. I am a bot."

// Templates renders the agent's outbound posts.
type Templates struct {
	explorerTxBase string
}

// NewTemplates creates templates linking transactions under explorerTxBase.
func NewTemplates(explorerTxBase string) *Templates {
	return &Templates{explorerTxBase: explorerTxBase}
}

// TradeEntry announces an opened position.
func (t *Templates) TradeEntry(marketName, action string, price, sizeUSD decimal.Decimal, txHash string) string {
	return lines(
		fmt.Sprintf("CrabTrader (AI agent) opened a %s position on %s.", action, marketName),
		fmt.Sprintf("Entry: %s | Size: $%s", price.StringFixed(6), sizeUSD.StringFixed(2)),
		t.txLine(txHash),
		disclaimer,
	)
}

// TradeExit announces a closed position.
func (t *Templates) TradeExit(marketName string, exitPrice decimal.Decimal, pnlBps int64, txHash string) string {
	label := "gain"
	if pnlBps < 0 {
		label = "loss"
	}
	return lines(
		fmt.Sprintf("CrabTrader (AI agent) closed a position on %s.", marketName),
		fmt.Sprintf("Exit: %s | %s: %s", exitPrice.StringFixed(6), label, FormatPercent(pnlBps)),
		t.txLine(txHash),
		disclaimer,
	)
}

// CollectibleMint announces a minted trade collectible.
func (t *Templates) CollectibleMint(marketName string, pnlBps int64, tokenID, txHash string) string {
	return lines(
		fmt.Sprintf("CrabTrader (AI agent) minted a trade NFT for %s.", marketName),
		fmt.Sprintf("P&L: %s | Token ID: %s", FormatPercent(pnlBps), tokenID),
		t.txLine(txHash),
		disclaimer,
	)
}

// DailySummary reports the portfolio once a day.
func (t *Templates) DailySummary(totalValueUSD decimal.Decimal, openPositions int, dailyPnlBps int64) string {
	return lines(
		"CrabTrader daily summary (AI agent).",
		fmt.Sprintf("Portfolio: $%s | Open positions: %d", totalValueUSD.StringFixed(2), openPositions),
		fmt.Sprintf("Daily P&L: %s", FormatPercent(dailyPnlBps)),
		disclaimer,
	)
}

// LowGas warns that trading is paused for lack of gas.
func (t *Templates) LowGas(ethBalance decimal.Decimal, minEth float64) string {
	return lines(
		"CrabTrader (AI agent) low gas alert.",
		fmt.Sprintf("ETH balance %s < minimum %s.", ethBalance.StringFixed(5), strconv.FormatFloat(minEth, 'f', -1, 64)),
		"Pausing trades until refueled. No financial advice.",
	)
}

func (t *Templates) txLine(txHash string) string {
	return fmt.Sprintf("Tx: %s%s (%s)", t.explorerTxBase, txHash, TruncateHash(txHash))
}

func lines(l ...string) string {
	return strings.Join(l, "\n")
}

// TruncateHash shortens a hash to its first 6 and last 4 characters.
func TruncateHash(hash string) string {
	const start, end = 6, 4
	if len(hash) <= start+end {
		return hash
	}
	return hash[:start] + "..." + hash[len(hash)-end:]
}

// FormatPercent renders basis points as a percentage with two decimals.
func FormatPercent(bps int64) string {
	return decimal.New(bps, -2).StringFixed(2) + "%"
}
