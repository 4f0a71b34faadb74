package telegram

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"hyperliquid-alert-bot/internal/alert"
	"hyperliquid-alert-bot/internal/cron"
	"hyperliquid-alert-bot/internal/hyperliquid"
	"hyperliquid-alert-bot/lib/helpers"
	"hyperliquid-alert-bot/lib/translation"
)

// NewBot creates new telegram bot
func NewBot(c BotConfig, alerts *alert.Service, cronAlerts *cron.Service, subscriber TokenSubscriber) (*Bot, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(c.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:        bot,
		Config:     c,
		Alerts:     alerts,
		CronAlerts: cronAlerts,
		Subscriber: subscriber,
	}, nil
}

// GetUpdatesChannel gets new updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message: %v", m)
}

// Send delivers alert text to a chat on behalf of the engine. The HTTP
// client carries its own timeout; the context only gates whether the send
// is still wanted.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.SendMessage(Message{ChatID: chatID, Text: text})
}

// ParseArguments splits command arguments into the leading ticker and the
// remainder.
func ParseArguments(args string) (string, string) {
	re := regexp.MustCompile(`^(\S+)\s*(.+)?$`)
	matches := re.FindStringSubmatch(args)

	if len(matches) >= 2 {
		ticker := matches[1]
		rest := ""
		if len(matches) == 3 {
			rest = strings.TrimSpace(matches[2])
		}
		return ticker, rest
	}
	return "", ""
}

// HandleUpdate processes Telegram updates
func (b *Bot) HandleUpdate(u tgbotapi.Update) string {
	text := helpers.EscapeMarkdownV2(translation.Translate("Commands:\n/alert <coin> <price> - set a price alert\n/alert list - show active price alerts\n/cronalert <coin> <schedule> - set a recurring price report\n/cronalert list - show active cron alerts\n/cronalert delete <id> - remove a cron alert"))
	log.Debugf("received command: %s", u.Message.Command())

	switch u.Message.Command() {
	case "alert":
		args := strings.TrimSpace(u.Message.CommandArguments())
		if args == "list" {
			text = b.HandleAlertListCommand(u.Message.Chat.ID)
		} else {
			text = b.HandleAlertCommand(u.Message.Chat.ID, u.Message.From, args)
		}
	case "cronalert":
		args := strings.TrimSpace(u.Message.CommandArguments())
		switch {
		case args == "list":
			text = b.HandleCronListCommand(u.Message.Chat.ID)
		case strings.HasPrefix(args, "delete"):
			text = b.HandleCronDeleteCommand(u.Message.Chat.ID, strings.TrimSpace(strings.TrimPrefix(args, "delete")))
		default:
			text = b.HandleCronAlertCommand(u.Message.Chat.ID, args)
		}
	}

	return text
}

// HandleAlertCommand creates a price alert from "/alert <coin> <price>".
func (b *Bot) HandleAlertCommand(chatID int64, from *tgbotapi.User, args string) string {
	ticker, target := ParseArguments(args)
	if ticker == "" || target == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /alert <coin> <price>"))
	}

	targetPrice, err := strconv.ParseFloat(strings.TrimPrefix(target, "$"), 64)
	if err != nil || targetPrice <= 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("Invalid target price: %s", target))
	}

	ownerKey := ""
	if from != nil {
		ownerKey = strconv.FormatInt(from.ID, 10)
	}

	created, err := b.Alerts.CreateAlert(context.Background(), ownerKey, chatID, ticker, targetPrice)
	if err != nil {
		if errors.Is(err, hyperliquid.ErrUnknownAsset) {
			return helpers.EscapeMarkdownV2(translation.Translate("Coin not found: %s", ticker))
		}
		log.Errorf("failed to create alert for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to save alert. Please try again later."))
	}

	if b.Subscriber != nil {
		if err := b.Subscriber.SubscribeToken(created.Token); err != nil {
			log.Errorf("failed to subscribe feed for %s: %v", created.Token, err)
		}
	}

	return helpers.EscapeMarkdownV2(translation.Translate(
		"Alert set for %s at %s.",
		created.Symbol,
		"$"+helpers.FormatPriceUS(created.TargetPrice, false),
	))
}

// HandleAlertListCommand lists the chat's price alerts.
func (b *Bot) HandleAlertListCommand(chatID int64) string {
	alerts, err := b.Alerts.ListForChat(context.Background(), chatID)
	if err != nil {
		log.Errorf("failed to fetch alerts for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to fetch alerts. Please try again later."))
	}

	if len(alerts) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("No active alerts."))
	}

	var list strings.Builder
	list.WriteString(helpers.EscapeMarkdownV2(translation.Translate("Active alerts:")))
	for _, a := range alerts {
		list.WriteString(fmt.Sprintf(
			"\n🔔 %s at *$%s* \\(created %s\\)",
			helpers.EscapeMarkdownV2(a.Symbol),
			helpers.FormatPriceUS(a.TargetPrice, true),
			helpers.EscapeMarkdownV2(a.CreatedAt.Format("2006-01-02 15:04:05")),
		))
	}
	return list.String()
}

// HandleCronAlertCommand creates a cron alert from
// "/cronalert <coin> <5-field cron expression>".
func (b *Bot) HandleCronAlertCommand(chatID int64, args string) string {
	ticker, expr := ParseArguments(args)
	if ticker == "" || expr == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /cronalert <coin> <minute hour day month weekday>"))
	}

	created, err := b.CronAlerts.CreateCronAlert(context.Background(), chatID, ticker, expr)
	if err != nil {
		if errors.Is(err, cron.ErrInvalidSchedule) {
			return helpers.EscapeMarkdownV2(translation.Translate("Invalid schedule: %s", expr))
		}
		if errors.Is(err, hyperliquid.ErrUnknownAsset) {
			return helpers.EscapeMarkdownV2(translation.Translate("Coin not found: %s", ticker))
		}
		log.Errorf("failed to create cron alert for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to save alert. Please try again later."))
	}

	return helpers.EscapeMarkdownV2(translation.Translate(
		"Cron alert set for %s with schedule %s. Next trigger: %s.",
		created.Symbol,
		created.CronExpr,
		created.NextTriggerAt.Format("2006-01-02 15:04:05"),
	))
}

// HandleCronListCommand lists the chat's active cron alerts.
func (b *Bot) HandleCronListCommand(chatID int64) string {
	alerts, err := b.CronAlerts.ListForChat(context.Background(), chatID)
	if err != nil {
		log.Errorf("failed to fetch cron alerts for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to fetch alerts. Please try again later."))
	}

	if len(alerts) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("No active cron alerts."))
	}

	var list strings.Builder
	list.WriteString(helpers.EscapeMarkdownV2(translation.Translate("Active cron alerts:")))
	for _, a := range alerts {
		list.WriteString(fmt.Sprintf(
			"\n⏰ \\#%d %s \\(schedule: `%s`\\) \\(next trigger: %s\\)",
			a.ID,
			helpers.EscapeMarkdownV2(a.Symbol),
			a.CronExpr,
			helpers.EscapeMarkdownV2(a.NextTriggerAt.Format("2006-01-02 15:04:05")),
		))
	}
	return list.String()
}

// HandleCronDeleteCommand deletes a cron alert by id, but only when it
// belongs to the requesting chat.
func (b *Bot) HandleCronDeleteCommand(chatID int64, arg string) string {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /cronalert delete <id>"))
	}

	owned, err := b.CronAlerts.ListForChat(context.Background(), chatID)
	if err != nil {
		log.Errorf("failed to fetch cron alerts for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to fetch alerts. Please try again later."))
	}
	found := false
	for _, a := range owned {
		if a.ID == id {
			found = true
			break
		}
	}
	if !found {
		return helpers.EscapeMarkdownV2(translation.Translate("Cron alert %d not found.", id))
	}

	if err := b.CronAlerts.Delete(context.Background(), id); err != nil {
		log.Errorf("failed to delete cron alert %d: %v", id, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Failed to delete alert. Please try again later."))
	}
	return helpers.EscapeMarkdownV2(translation.Translate("Cron alert %d deleted.", id))
}
