package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade status values.
const (
	TradeStatusOpen      = "OPEN"
	TradeStatusClosed    = "CLOSED"
	TradeStatusCancelled = "CANCELLED"
)

// Trade sides. The agent only ever opens long (YES) positions.
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// Trade represents one open-or-closed position.
// Exit fields and PnlBps are either all nil (OPEN) or all set (CLOSED).
type Trade struct {
	gorm.Model
	MarketID      string     `gorm:"index;not null" json:"market_id"`
	MarketName    string     `json:"market_name"`
	Side          string     `gorm:"not null" json:"side"`
	EntryPrice    string     `gorm:"not null" json:"entry_price"`
	EntryTxHash   string     `json:"entry_tx_hash"`
	EntryAt       time.Time  `json:"entry_at"`
	ExitPrice     *string    `json:"exit_price,omitempty"`
	ExitTxHash    *string    `json:"exit_tx_hash,omitempty"`
	ExitAt        *time.Time `gorm:"index" json:"exit_at,omitempty"`
	PnlBps        *int64     `json:"pnl_bps,omitempty"`
	Status        string     `gorm:"index;not null" json:"status"`
	CollectibleID *string    `json:"collectible_id,omitempty"`
}

// IsOpen reports whether the trade still holds a position.
func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}
