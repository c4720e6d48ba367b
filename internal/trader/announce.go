package trader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"onchain-trade-agent/internal/models"
	"onchain-trade-agent/internal/social"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// postToAll publishes content on every enabled channel and records each post. A failing
// channel does not stop the others.
func (e *Engine) postToAll(ctx context.Context, content, postType string, tradeID *uint) error {
	var errs []error
	for _, ch := range e.deps.Channels {
		externalID, err := ch.Post(ctx, content)
		e.recordPost(ch.Platform(), postType, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Platform(), err))
			continue
		}
		if err := e.recordSocialPost(ctx, ch.Platform(), externalID, postType, content, tradeID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) recordSocialPost(ctx context.Context, platform, externalID, postType, content string, tradeID *uint) error {
	post := &models.SocialPost{
		Platform:   platform,
		ExternalID: externalID,
		Type:       postType,
		Content:    content,
		TradeID:    tradeID,
	}
	post.CreatedAt = e.now().UTC()
	if err := e.deps.Store.InsertSocialPost(ctx, post); err != nil {
		return fmt.Errorf("%s: record post %s: %w", platform, externalID, err)
	}
	return nil
}

func (e *Engine) recordPost(platform, postType string, err error) {
	if m := e.deps.Metrics; m != nil {
		m.RecordPost(platform, postType, err)
	}
}

// maybePostLowBalance alerts at most once per lowBalanceAlertInterval. The alert time is
// taken before posting so a failing channel is not retried every cycle.
func (e *Engine) maybePostLowBalance(ctx context.Context, ethBalance decimal.Decimal) {
	now := e.now()
	if !e.lastLowBalanceAlert.IsZero() && now.Sub(e.lastLowBalanceAlert) < lowBalanceAlertInterval {
		return
	}
	e.lastLowBalanceAlert = now

	content := e.deps.Templates.LowGas(ethBalance, e.cfg.Trading.MinEthBalance)
	if err := e.postToAll(ctx, content, models.PostAlert, nil); err != nil {
		e.logger.Error("Failed to post low balance alert", zap.Error(err))
	}
}

// maybePostDailySummary posts at most once per rolling 24 hours, gated on the newest
// persisted summary.
func (e *Engine) maybePostDailySummary(ctx context.Context, totalUSD decimal.Decimal, openPositions int) error {
	last, ok, err := e.deps.Store.LastPostAt(ctx, models.PostDailySummary)
	if err != nil {
		return err
	}
	if ok && e.now().Sub(last) < summaryInterval {
		return nil
	}

	pnl, err := e.dailyPnlBps(ctx)
	if err != nil {
		return err
	}
	content := e.deps.Templates.DailySummary(totalUSD, openPositions, pnl)
	return e.postToAll(ctx, content, models.PostDailySummary, nil)
}

// handleMentions stores new mentions and answers unreplied ones on every channel. Each
// channel and each mention fails independently.
func (e *Engine) handleMentions(ctx context.Context) {
	for _, ch := range e.deps.Channels {
		e.handleChannelMentions(ctx, ch)
	}
}

func (e *Engine) handleChannelMentions(ctx context.Context, ch social.Channel) {
	platform := ch.Platform()
	log := e.logger.With(zap.String("platform", platform))

	mentions, err := ch.Mentions(ctx)
	stored := err == nil
	if err != nil {
		log.Error("Failed to fetch mentions", zap.Error(err))
	}
	for _, m := range mentions {
		inserted, err := e.deps.Store.InsertMention(ctx, &models.Mention{
			Platform:   platform,
			ExternalID: m.ExternalID,
			Author:     m.Author,
			Content:    m.Text,
		})
		if err != nil {
			log.Error("Failed to store mention", zap.String("mention_id", m.ExternalID), zap.Error(err))
			stored = false
			continue
		}
		if inserted {
			log.Debug("New mention", zap.String("mention_id", m.ExternalID), zap.String("author", m.Author))
		}
	}
	// Unstored mentions must be fetched again next cycle.
	if c, ok := ch.(social.MentionCursor); ok && stored {
		c.CommitMentions()
	}

	unreplied, err := e.deps.Store.UnrepliedMentions(ctx, platform, unrepliedLimit)
	if err != nil {
		log.Error("Failed to list unreplied mentions", zap.Error(err))
		return
	}
	for _, m := range unreplied {
		if err := e.replyTo(ctx, ch, m); err != nil {
			log.Error("Failed to reply to mention", zap.String("mention_id", m.ExternalID), zap.Error(err))
		}
	}
}

func (e *Engine) replyTo(ctx context.Context, ch social.Channel, m models.Mention) error {
	reply := e.deps.Decider.Reply(ctx, strings.ToLower(m.Platform), m.Content, m.Author)

	replyID, err := ch.Reply(ctx, reply, m.ExternalID)
	e.recordPost(m.Platform, models.PostReply, err)
	if err != nil {
		return err
	}
	if err := e.deps.Store.MarkMentionReplied(ctx, m.ID, replyID, e.now()); err != nil {
		return fmt.Errorf("mark replied: %w", err)
	}
	return e.recordSocialPost(ctx, m.Platform, replyID, models.PostReply, reply, nil)
}
