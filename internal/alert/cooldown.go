package alert

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"hyperliquid-alert-bot/internal/database"
	"hyperliquid-alert-bot/internal/metrics"
	"hyperliquid-alert-bot/internal/types"
	"hyperliquid-alert-bot/lib/helpers"
)

// DefaultCooldownWindow converts continuous in-band matching into at most
// one notification per window.
const DefaultCooldownWindow = 60 * time.Second

// DefaultNotifyTimeout bounds a single delivery attempt.
const DefaultNotifyTimeout = 10 * time.Second

// Notifier delivers alert text to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Cooldowns applies and expires alert suppression windows.
type Cooldowns struct {
	store         *database.Store
	notifier      Notifier
	window        time.Duration
	notifyTimeout time.Duration
}

func NewCooldowns(store *database.Store, notifier Notifier, window, notifyTimeout time.Duration) *Cooldowns {
	if window <= 0 {
		window = DefaultCooldownWindow
	}
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	return &Cooldowns{store: store, notifier: notifier, window: window, notifyTimeout: notifyTimeout}
}

// Fire notifies the alert's chat and suppresses the alert until the
// cooldown window passes. Delivery failure is logged but does not prevent
// the cooldown from being applied; an undeliverable notification must not
// cause the alert to re-fire on every tick.
func (c *Cooldowns) Fire(ctx context.Context, alert types.PriceAlert, now time.Time) error {
	text := fmt.Sprintf(
		"🔔 *Price Alert:* %s is at *$%s*",
		helpers.EscapeMarkdownV2(alert.Symbol),
		helpers.FormatPriceUS(alert.TargetPrice, true),
	)

	// the send gets its own deadline; a stalled transport must not leave
	// the cooldown write running on an already-expired context
	sendCtx, cancel := context.WithTimeout(ctx, c.notifyTimeout)
	defer cancel()
	if err := c.notifier.Send(sendCtx, alert.ChatID, text); err != nil {
		metrics.DeliveryFailures.Inc()
		log.Errorf("failed to send price alert %d to chat %d: %v", alert.ID, alert.ChatID, err)
	}

	err := c.store.ApplyCooldown(ctx, alert.ID, now, c.window)
	if err == database.ErrNotFound {
		log.Warnf("price alert %d vanished before cooldown could be applied", alert.ID)
		return nil
	}
	return err
}

// Sweep clears suppression on every alert whose cooldown has expired.
// It runs on a fixed period whether or not anything is due; a second call
// with the same clock affects no rows.
func (c *Cooldowns) Sweep(ctx context.Context, now time.Time) (int64, error) {
	count, err := c.store.ExpireCooldowns(ctx, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Debugf("cooldown reset for %d alerts", count)
	}
	return count, nil
}
