package database

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreatePriceAlert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created, err := store.CreatePriceAlert(ctx, "owner-1", 42, "HYPE", "@107", 46.6)
	if err != nil {
		t.Fatalf("CreatePriceAlert failed: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected a store-assigned id")
	}
	if created.Suppressed {
		t.Error("new alert should not be suppressed")
	}

	alerts, err := store.ListAlertsForChat(ctx, 42)
	if err != nil {
		t.Fatalf("ListAlertsForChat failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Token != "@107" || alerts[0].TargetPrice != 46.6 {
		t.Errorf("unexpected alert row: %+v", alerts[0])
	}
}

func TestFindMatchingExcludesSuppressed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	inBand, _ := store.CreatePriceAlert(ctx, "o", 1, "HYPE", "@107", 46.6)
	if _, err := store.CreatePriceAlert(ctx, "o", 1, "BTC", "@142", 99999); err != nil {
		t.Fatalf("CreatePriceAlert failed: %v", err)
	}
	suppressed, _ := store.CreatePriceAlert(ctx, "o", 1, "HYPE", "@107", 46.0)
	if err := store.ApplyCooldown(ctx, suppressed.ID, time.Now(), time.Minute); err != nil {
		t.Fatalf("ApplyCooldown failed: %v", err)
	}

	matches, err := store.FindMatching(ctx, 44.25, 48.91)
	if err != nil {
		t.Fatalf("FindMatching failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].ID != inBand.ID {
		t.Errorf("expected alert %d, got %d", inBand.ID, matches[0].ID)
	}
}

func TestApplyCooldown(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	created, _ := store.CreatePriceAlert(ctx, "o", 1, "HYPE", "@107", 46.6)
	if err := store.ApplyCooldown(ctx, created.ID, now, time.Minute); err != nil {
		t.Fatalf("ApplyCooldown failed: %v", err)
	}

	alerts, _ := store.ListAlertsForChat(ctx, 1)
	if !alerts[0].Suppressed {
		t.Error("alert should be suppressed after cooldown")
	}
	if alerts[0].CooldownUntil == nil || !alerts[0].CooldownUntil.Equal(now.Add(time.Minute)) {
		t.Errorf("cooldown_until = %v, want %v", alerts[0].CooldownUntil, now.Add(time.Minute))
	}
}

func TestApplyCooldownNotFound(t *testing.T) {
	store := openTestStore(t)

	err := store.ApplyCooldown(context.Background(), 12345, time.Now(), time.Minute)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExpireCooldownsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	created, _ := store.CreatePriceAlert(ctx, "o", 1, "HYPE", "@107", 46.6)
	if err := store.ApplyCooldown(ctx, created.ID, now, time.Minute); err != nil {
		t.Fatalf("ApplyCooldown failed: %v", err)
	}

	// cooldown has not passed yet
	count, err := store.ExpireCooldowns(ctx, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("ExpireCooldowns failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 expired before the window passes, got %d", count)
	}

	after := now.Add(61 * time.Second)
	count, err = store.ExpireCooldowns(ctx, after)
	if err != nil {
		t.Fatalf("ExpireCooldowns failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 expired, got %d", count)
	}

	alerts, _ := store.ListAlertsForChat(ctx, 1)
	if alerts[0].Suppressed {
		t.Error("alert should be unsuppressed after expiry")
	}
	if alerts[0].CooldownUntil != nil {
		t.Errorf("cooldown_until should be cleared, got %v", alerts[0].CooldownUntil)
	}

	// second sweep with the same clock mutates nothing
	count, err = store.ExpireCooldowns(ctx, after)
	if err != nil {
		t.Fatalf("ExpireCooldowns failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 on repeat sweep, got %d", count)
	}
}

func TestListDistinctTokens(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.CreatePriceAlert(ctx, "o", 1, "HYPE", "@107", 46.6)
	store.CreatePriceAlert(ctx, "o", 2, "HYPE", "@107", 50.0)
	store.CreatePriceAlert(ctx, "o", 1, "PURR", "@1", 0.2)

	tokens, err := store.ListDistinctTokens(ctx)
	if err != nil {
		t.Fatalf("ListDistinctTokens failed: %v", err)
	}
	if len(tokens) != 2 {
		t.Errorf("expected 2 distinct tokens, got %v", tokens)
	}
}
