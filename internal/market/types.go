package market

import (
	"time"

	"onchain-trade-agent/internal/config"

	"github.com/shopspring/decimal"
)

// Token describes an ERC-20 token.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// TokenFromConfig converts a configured token.
func TokenFromConfig(t config.Token) Token {
	return Token{Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals}
}

// ToUnits converts a human amount to the token's smallest units, rounding down.
func (t Token) ToUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(t.Decimals).Floor()
}

// FromUnits converts smallest units to a human amount.
func (t Token) FromUnits(units decimal.Decimal) decimal.Decimal {
	return units.Shift(-t.Decimals)
}

// Market is one cycle's view of a tradable token. Price is quoted in base-token units per
// one quote token.
type Market struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	BaseToken  Token           `json:"baseToken"`
	QuoteToken Token           `json:"quoteToken"`
	Price      decimal.Decimal `json:"price"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Headline is a news item passed to the reasoning service.
type Headline struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Index maps markets by id.
func Index(markets []Market) map[string]Market {
	m := make(map[string]Market, len(markets))
	for _, mk := range markets {
		m[mk.ID] = mk
	}
	return m
}

// FindBySymbol returns the first market whose quote token has the given symbol.
func FindBySymbol(markets []Market, symbol string) (Market, bool) {
	for _, mk := range markets {
		if mk.QuoteToken.Symbol == symbol {
			return mk, true
		}
	}
	return Market{}, false
}
