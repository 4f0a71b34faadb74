// Package engine runs the three long-running alert loops: the price update
// consumer, the cooldown sweeper, and the cron poller.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"hyperliquid-alert-bot/internal/alert"
	"hyperliquid-alert-bot/internal/cron"
	"hyperliquid-alert-bot/internal/database"
	"hyperliquid-alert-bot/internal/metrics"
	"hyperliquid-alert-bot/internal/types"
	"hyperliquid-alert-bot/lib/helpers"
)

const (
	DefaultSweepInterval    = 5 * time.Second
	DefaultCronPollInterval = 60 * time.Second
	DefaultNotifyTimeout    = 10 * time.Second

	restartDelay = 10 * time.Second
)

// PriceFeed streams live mark price updates. Closing the feed closes the
// updates channel.
type PriceFeed interface {
	Subscribe(token string) error
	Updates() <-chan types.PriceUpdate
	Close() error
}

// PriceLookup fetches the current price of a token on demand.
type PriceLookup interface {
	LookupCurrentPrice(ctx context.Context, token string) (float64, error)
}

// Config wires the engine's collaborators together.
type Config struct {
	Store     *database.Store
	Evaluator *alert.Evaluator
	Cooldowns *alert.Cooldowns
	Scheduler *cron.Scheduler
	Feed      PriceFeed
	Prices    PriceLookup
	Notifier  alert.Notifier

	SweepInterval    time.Duration
	CronPollInterval time.Duration
	NotifyTimeout    time.Duration
}

// Engine owns the alert loops. All loops share one store; no loop caches
// alert state across iterations, so concurrent sweeps and evaluations stay
// consistent through the store's atomic updates.
type Engine struct {
	store     *database.Store
	evaluator *alert.Evaluator
	cooldowns *alert.Cooldowns
	scheduler *cron.Scheduler
	feed      PriceFeed
	prices    PriceLookup
	notifier  alert.Notifier

	sweepInterval    time.Duration
	cronPollInterval time.Duration
	notifyTimeout    time.Duration

	ctx context.Context
	wg  sync.WaitGroup

	tokenMutex sync.Mutex
	tokens     map[string]bool
}

func New(cfg Config) *Engine {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.CronPollInterval <= 0 {
		cfg.CronPollInterval = DefaultCronPollInterval
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}

	return &Engine{
		store:            cfg.Store,
		evaluator:        cfg.Evaluator,
		cooldowns:        cfg.Cooldowns,
		scheduler:        cfg.Scheduler,
		feed:             cfg.Feed,
		prices:           cfg.Prices,
		notifier:         cfg.Notifier,
		sweepInterval:    cfg.SweepInterval,
		cronPollInterval: cfg.CronPollInterval,
		notifyTimeout:    cfg.NotifyTimeout,
		tokens:           make(map[string]bool),
	}
}

// Run subscribes to the feed for every token referenced by existing price
// alerts, starts the three loops, and blocks until ctx is cancelled. On
// shutdown in-flight iterations finish before the feed is released.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx

	tokens, err := e.store.ListDistinctTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tokens for feed subscription: %w", err)
	}
	for _, token := range tokens {
		if err := e.SubscribeToken(token); err != nil {
			return fmt.Errorf("failed to establish feed subscription for %s: %w", token, err)
		}
	}

	e.wg.Add(3)
	go e.runLoop("price loop", e.priceLoop)
	go e.runLoop("sweep loop", e.sweepLoop)
	go e.runLoop("cron loop", e.cronLoop)

	log.Info("alert engine started")

	<-ctx.Done()
	// closing the feed closes the updates channel, which ends the price loop
	if err := e.feed.Close(); err != nil {
		log.Errorf("failed to close price feed: %v", err)
	}
	e.wg.Wait()
	log.Info("alert engine stopped")
	return nil
}

// SubscribeToken starts a live feed subscription for a token. Alerts
// created at runtime for a previously unseen token call this so they do
// not wait for a restart.
func (e *Engine) SubscribeToken(token string) error {
	e.tokenMutex.Lock()
	defer e.tokenMutex.Unlock()

	if e.tokens[token] {
		return nil
	}
	if err := e.feed.Subscribe(token); err != nil {
		return err
	}
	e.tokens[token] = true
	metrics.SubscribedTokens.Set(float64(len(e.tokens)))
	return nil
}

// runLoop keeps a loop alive across panics, in line with the rest of the
// process never dying for a single bad iteration.
func (e *Engine) runLoop(name string, loop func()) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("🔥 panic recovered in %s: %v, restarting in %s", name, r, restartDelay)
			select {
			case <-e.ctx.Done():
				return
			case <-time.After(restartDelay):
			}
			e.wg.Add(1)
			go e.runLoop(name, loop)
		}
	}()

	loop()
}

func (e *Engine) priceLoop() {
	for update := range e.feed.Updates() {
		metrics.PriceUpdates.Inc()

		matches, err := e.evaluator.Evaluate(e.ctx, update.MarkPrice)
		if err != nil {
			log.Errorf("failed to evaluate price update for %s: %v", update.Token, err)
			continue
		}

		// matches are processed sequentially; one failure never blocks
		// the siblings in the same tick. Fire bounds its own delivery
		// attempt, so the cooldown write runs on the loop context.
		for _, match := range matches {
			if err := e.cooldowns.Fire(e.ctx, match, update.Time); err != nil {
				log.Errorf("failed to fire alert %d: %v", match.ID, err)
				continue
			}
			metrics.AlertsFired.Inc()
		}
	}
}

func (e *Engine) sweepLoop() {
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			count, err := e.cooldowns.Sweep(e.ctx, time.Now().UTC())
			if err != nil {
				log.Errorf("cooldown sweep failed: %v", err)
				continue
			}
			metrics.CooldownsExpired.Add(float64(count))
		}
	}
}

func (e *Engine) cronLoop() {
	ticker := time.NewTicker(e.cronPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.pollCronAlerts(time.Now().UTC())
		}
	}
}

func (e *Engine) pollCronAlerts(now time.Time) {
	due, err := e.scheduler.PollDue(e.ctx, now)
	if err != nil {
		log.Errorf("failed to poll due cron alerts: %v", err)
		return
	}

	for _, cronAlert := range due {
		e.fireCronAlert(cronAlert, now)
	}
}

// fireCronAlert notifies the chat with the current price and reschedules.
// The alert is rescheduled even when the price lookup or delivery fails so
// a dead symbol cannot fire on every poll.
func (e *Engine) fireCronAlert(cronAlert types.CronAlert, now time.Time) {
	ctx, cancel := context.WithTimeout(e.ctx, e.notifyTimeout)
	defer cancel()

	price, err := e.prices.LookupCurrentPrice(ctx, cronAlert.Token)
	if err != nil {
		log.Errorf("no current price for cron alert %d (%s): %v", cronAlert.ID, cronAlert.Symbol, err)
	} else {
		text := fmt.Sprintf(
			"⏰ *Scheduled Price:* %s is at *$%s*",
			helpers.EscapeMarkdownV2(cronAlert.Symbol),
			helpers.FormatPriceUS(price, true),
		)
		if err := e.notifier.Send(ctx, cronAlert.ChatID, text); err != nil {
			metrics.DeliveryFailures.Inc()
			log.Errorf("failed to send cron alert %d to chat %d: %v", cronAlert.ID, cronAlert.ChatID, err)
		}
	}

	if err := e.scheduler.Reschedule(e.ctx, cronAlert, now); err != nil {
		if fault, ok := err.(*cron.SchedulingFault); ok {
			log.Errorf("scheduling fault: %v", fault)
			e.reportFault(cronAlert)
			return
		}
		log.Errorf("failed to reschedule cron alert %d: %v", cronAlert.ID, err)
		return
	}
	metrics.CronAlertsFired.Inc()
}

// reportFault tells the owning chat its alert was deactivated; silently
// dropping it from polling would hide a configuration bug.
func (e *Engine) reportFault(cronAlert types.CronAlert) {
	ctx, cancel := context.WithTimeout(e.ctx, e.notifyTimeout)
	defer cancel()

	text := fmt.Sprintf(
		"⚠️ Cron alert %d for %s was deactivated: its schedule could no longer be evaluated\\.",
		cronAlert.ID,
		helpers.EscapeMarkdownV2(cronAlert.Symbol),
	)
	if err := e.notifier.Send(ctx, cronAlert.ChatID, text); err != nil {
		log.Errorf("failed to report scheduling fault for cron alert %d: %v", cronAlert.ID, err)
	}
}
