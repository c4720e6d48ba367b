package models

import (
	"time"

	"gorm.io/gorm"
)

// Platforms.
const (
	PlatformTwitter   = "TWITTER"
	PlatformFarcaster = "FARCASTER"
)

// Post types.
const (
	PostTradeEntry   = "TRADE_ENTRY"
	PostTradeExit    = "TRADE_EXIT"
	PostNFTMint      = "NFT_MINT"
	PostDailySummary = "DAILY_SUMMARY"
	PostReply        = "REPLY"
	PostAlert        = "ALERT"
)

// SocialPost records every outbound post or reply.
type SocialPost struct {
	gorm.Model
	Platform   string `gorm:"uniqueIndex:idx_post_platform_external;not null" json:"platform"`
	ExternalID string `gorm:"uniqueIndex:idx_post_platform_external;not null" json:"external_id"`
	Type       string `gorm:"index;not null" json:"type"`
	Content    string `json:"content"`
	TradeID    *uint  `json:"trade_id,omitempty"`
}

// Mention is an inbound mention of the agent. Replied flips to true exactly once.
type Mention struct {
	gorm.Model
	Platform   string     `gorm:"uniqueIndex:idx_mention_platform_external;not null" json:"platform"`
	ExternalID string     `gorm:"uniqueIndex:idx_mention_platform_external;not null" json:"external_id"`
	Author     string     `json:"author"`
	Content    string     `json:"content"`
	Replied    bool       `gorm:"index;not null;default:false" json:"replied"`
	ReplyID    *string    `json:"reply_id,omitempty"`
	RepliedAt  *time.Time `json:"replied_at,omitempty"`
}
