package models

import "gorm.io/gorm"

// PortfolioSnapshot is written once per cycle for auditing.
type PortfolioSnapshot struct {
	gorm.Model
	TotalValueUSD string `json:"total_value_usd"`
	TotalValueEth string `json:"total_value_eth"`
	OpenPositions int    `json:"open_positions"`
	DailyPnlBps   int64  `json:"daily_pnl_bps"`
}
