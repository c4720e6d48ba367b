package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onchain-trade-agent/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoRowsUpdated is returned when a conditional update matched nothing.
var ErrNoRowsUpdated = errors.New("no rows updated")

// Store is the persistent record of trades, snapshots and social activity.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open, migrated database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-only reporting queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InsertTrade stores a new trade and fills in its ID.
func (s *Store) InsertTrade(ctx context.Context, trade *models.Trade) error {
	if err := s.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// CloseTrade moves an OPEN trade to CLOSED and returns the updated row.
// ErrNoRowsUpdated means the trade does not exist or is not OPEN.
func (s *Store) CloseTrade(ctx context.Context, id uint, exitPrice, txHash string, exitAt time.Time, pnlBps int64) (*models.Trade, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, models.TradeStatusOpen).
		Updates(map[string]interface{}{
			"exit_price":   exitPrice,
			"exit_tx_hash": txHash,
			"exit_at":      exitAt.UTC(),
			"pnl_bps":      pnlBps,
			"status":       models.TradeStatusClosed,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("close trade %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoRowsUpdated
	}
	return s.TradeByID(ctx, id)
}

// SetTradeCollectible records the collectible minted for a trade.
func (s *Store) SetTradeCollectible(ctx context.Context, id uint, collectibleID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("id = ?", id).
		Update("collectible_id", collectibleID)
	if res.Error != nil {
		return fmt.Errorf("set collectible on trade %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}

// TradeByID loads one trade.
func (s *Store) TradeByID(ctx context.Context, id uint) (*models.Trade, error) {
	var trade models.Trade
	if err := s.db.WithContext(ctx).First(&trade, id).Error; err != nil {
		return nil, err
	}
	return &trade, nil
}

// OpenTrades lists every OPEN trade, oldest first.
func (s *Store) OpenTrades(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("status = ?", models.TradeStatusOpen).
		Order("entry_at asc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("list open trades: %w", err)
	}
	return trades, nil
}

// RecentTrades lists the newest trades first.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Order("entry_at desc").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("list recent trades: %w", err)
	}
	return trades, nil
}

// ClosedTradesSince lists up to limit trades closed at or after since, newest first.
func (s *Store) ClosedTradesSince(ctx context.Context, since time.Time, limit int) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("status = ? AND exit_at >= ?", models.TradeStatusClosed, since.UTC()).
		Order("exit_at desc").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("list closed trades: %w", err)
	}
	return trades, nil
}

// ClosedTrades lists every closed trade.
func (s *Store) ClosedTrades(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("status = ?", models.TradeStatusClosed).
		Order("exit_at desc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("list closed trades: %w", err)
	}
	return trades, nil
}

// InsertSnapshot stores a portfolio snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error {
	if err := s.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots lists the newest snapshots first.
func (s *Store) RecentSnapshots(ctx context.Context, limit int) ([]models.PortfolioSnapshot, error) {
	var snaps []models.PortfolioSnapshot
	err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// InsertSocialPost stores an outbound post.
func (s *Store) InsertSocialPost(ctx context.Context, post *models.SocialPost) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("insert social post: %w", err)
	}
	return nil
}

// LastPostAt returns when the newest post of the given type was created.
// ok is false when no such post exists.
func (s *Store) LastPostAt(ctx context.Context, postType string) (at time.Time, ok bool, err error) {
	var post models.SocialPost
	err = s.db.WithContext(ctx).
		Where("type = ?", postType).
		Order("created_at desc").
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last %s post: %w", postType, err)
	}
	return post.CreatedAt, true, nil
}

// InsertMention stores a mention unless (platform, external id) is already known.
// inserted reports whether a new row was written.
func (s *Store) InsertMention(ctx context.Context, m *models.Mention) (inserted bool, err error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, fmt.Errorf("insert mention: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UnrepliedMentions lists a platform's mentions still waiting for a reply, oldest first.
func (s *Store) UnrepliedMentions(ctx context.Context, platform string, limit int) ([]models.Mention, error) {
	var mentions []models.Mention
	err := s.db.WithContext(ctx).
		Where("platform = ? AND replied = ?", platform, false).
		Order("created_at asc").
		Limit(limit).
		Find(&mentions).Error
	if err != nil {
		return nil, fmt.Errorf("list unreplied mentions: %w", err)
	}
	return mentions, nil
}

// MarkMentionReplied flags a mention as answered. A mention already replied to is left alone.
func (s *Store) MarkMentionReplied(ctx context.Context, id uint, replyID string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Mention{}).
		Where("id = ? AND replied = ?", id, false).
		Updates(map[string]interface{}{
			"replied":    true,
			"reply_id":   replyID,
			"replied_at": at.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("mark mention %d replied: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}
