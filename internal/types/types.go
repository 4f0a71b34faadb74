package types

import "time"

// PriceAlert fires when the mark price of its token enters a band around
// the target price, then sleeps until the cooldown expires.
type PriceAlert struct {
	ID            int64      `json:"id"`
	OwnerKey      string     `json:"owner_key"`
	ChatID        int64      `json:"chat_id"`
	Symbol        string     `json:"symbol"`
	Token         string     `json:"token"`
	TargetPrice   float64    `json:"target_price"`
	Suppressed    bool       `json:"suppressed"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CronAlert sends a recurring price notification on a 5-field cron schedule.
type CronAlert struct {
	ID              int64      `json:"id"`
	ChatID          int64      `json:"chat_id"`
	Symbol          string     `json:"symbol"`
	Token           string     `json:"token"`
	CronExpr        string     `json:"cron_expr"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	NextTriggerAt   time.Time  `json:"next_trigger_at"`
}

// PriceUpdate is a single mark price tick pushed by the market data feed.
type PriceUpdate struct {
	Token     string    `json:"token"`
	MarkPrice float64   `json:"mark_price"`
	Time      time.Time `json:"time"`
}
