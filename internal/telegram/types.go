package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hyperliquid-alert-bot/internal/alert"
	"hyperliquid-alert-bot/internal/cron"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// TokenSubscriber starts a live feed subscription for a newly referenced
// token.
type TokenSubscriber interface {
	SubscribeToken(token string) error
}

// Bot telegram interaction client. It handles alert commands and doubles
// as the notifier the alert engine delivers through.
type Bot struct {
	Bot        *tgbotapi.BotAPI
	Config     BotConfig
	Alerts     *alert.Service
	CronAlerts *cron.Service
	Subscriber TokenSubscriber
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
