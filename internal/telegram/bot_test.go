package telegram

import (
	"context"
	"strings"
	"testing"

	"hyperliquid-alert-bot/internal/alert"
	"hyperliquid-alert-bot/internal/cron"
	"hyperliquid-alert-bot/internal/database"
	"hyperliquid-alert-bot/internal/hyperliquid"
)

type staticResolver struct {
	tokens map[string]string
}

func (r staticResolver) ResolveToken(ctx context.Context, symbol string) (string, error) {
	token, ok := r.tokens[symbol]
	if !ok {
		return "", hyperliquid.ErrUnknownAsset
	}
	return token, nil
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	store, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	resolver := staticResolver{tokens: map[string]string{"HYPE": "@107"}}
	return &Bot{
		Alerts:     alert.NewService(store, resolver),
		CronAlerts: cron.NewService(store, resolver),
	}
}

func TestParseArguments(t *testing.T) {
	cases := []struct {
		args   string
		ticker string
		rest   string
	}{
		{"HYPE 46.6", "HYPE", "46.6"},
		{"HYPE * * * * *", "HYPE", "* * * * *"},
		{"HYPE   0 9 * * 1", "HYPE", "0 9 * * 1"},
		{"HYPE", "HYPE", ""},
		{"", "", ""},
	}

	for _, c := range cases {
		ticker, rest := ParseArguments(c.args)
		if ticker != c.ticker || rest != c.rest {
			t.Errorf("ParseArguments(%q) = (%q, %q), want (%q, %q)", c.args, ticker, rest, c.ticker, c.rest)
		}
	}
}

// The user-facing replies carry their arguments interpolated, with no raw
// format verbs leaking through.
func TestHandleAlertCommandReplies(t *testing.T) {
	bot := newTestBot(t)

	cases := []struct {
		name string
		args string
		want string
	}{
		{"invalid price", "HYPE abc", "Invalid target price: abc"},
		{"unknown coin", "DOGE 1.5", "Coin not found: DOGE"},
		{"created", "HYPE 46.6", "Alert set for HYPE at $46"},
	}

	for _, c := range cases {
		got := bot.HandleAlertCommand(1, nil, c.args)
		if !strings.Contains(got, c.want) {
			t.Errorf("%s: reply %q does not contain %q", c.name, got, c.want)
		}
		if strings.Contains(got, "%s") || strings.Contains(got, "%d") || strings.Contains(got, "%!") {
			t.Errorf("%s: reply %q leaks a format verb", c.name, got)
		}
	}
}

func TestHandleCronCommandReplies(t *testing.T) {
	bot := newTestBot(t)

	got := bot.HandleCronAlertCommand(1, "HYPE every minute")
	if !strings.Contains(got, "Invalid schedule: every minute") {
		t.Errorf("reply %q does not name the rejected schedule", got)
	}

	got = bot.HandleCronAlertCommand(1, "HYPE * * * * *")
	if !strings.Contains(got, "Cron alert set for HYPE") {
		t.Errorf("reply %q does not confirm creation", got)
	}

	got = bot.HandleCronDeleteCommand(1, "999")
	if !strings.Contains(got, "Cron alert 999 not found") {
		t.Errorf("reply %q does not name the missing id", got)
	}
	if strings.Contains(got, "%d") || strings.Contains(got, "%!") {
		t.Errorf("reply %q leaks a format verb", got)
	}
}
