package database

import (
	"context"
	"testing"
	"time"
)

func TestCronAlertLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	firstTrigger := now.Add(time.Minute)

	created, err := store.CreateCronAlert(ctx, 42, "HYPE", "@107", "* * * * *", firstTrigger)
	if err != nil {
		t.Fatalf("CreateCronAlert failed: %v", err)
	}
	if !created.Active {
		t.Error("new cron alert should be active")
	}
	if !created.NextTriggerAt.Equal(firstTrigger) {
		t.Errorf("next_trigger_at = %v, want %v", created.NextTriggerAt, firstTrigger)
	}

	// not due before its trigger time
	due, err := store.DueCronAlerts(ctx, now)
	if err != nil {
		t.Fatalf("DueCronAlerts failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected no due alerts, got %d", len(due))
	}

	// due once the trigger time has passed
	due, err = store.DueCronAlerts(ctx, firstTrigger.Add(30*time.Second))
	if err != nil {
		t.Fatalf("DueCronAlerts failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due alert, got %d", len(due))
	}

	fireTime := firstTrigger.Add(30 * time.Second)
	nextTrigger := firstTrigger.Add(time.Minute)
	if err := store.MarkCronFired(ctx, created.ID, nextTrigger, fireTime); err != nil {
		t.Fatalf("MarkCronFired failed: %v", err)
	}

	alerts, _ := store.ListCronAlertsForChat(ctx, 42)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].LastTriggeredAt == nil || !alerts[0].LastTriggeredAt.Equal(fireTime) {
		t.Errorf("last_triggered_at = %v, want %v", alerts[0].LastTriggeredAt, fireTime)
	}
	if !alerts[0].NextTriggerAt.Equal(nextTrigger) {
		t.Errorf("next_trigger_at = %v, want %v", alerts[0].NextTriggerAt, nextTrigger)
	}
}

func TestDeactivateCronAlertExcludesFromQueries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	created, _ := store.CreateCronAlert(ctx, 1, "HYPE", "@107", "* * * * *", past)
	if err := store.DeactivateCronAlert(ctx, created.ID); err != nil {
		t.Fatalf("DeactivateCronAlert failed: %v", err)
	}

	due, _ := store.DueCronAlerts(ctx, time.Now().UTC())
	if len(due) != 0 {
		t.Errorf("deactivated alert should not be due, got %d", len(due))
	}

	active, _ := store.ListCronAlertsForChat(ctx, 1)
	if len(active) != 0 {
		t.Errorf("deactivated alert should not be listed, got %d", len(active))
	}
}

func TestDeleteCronAlert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created, _ := store.CreateCronAlert(ctx, 1, "HYPE", "@107", "0 9 * * *", time.Now().UTC().Add(time.Hour))
	if err := store.DeleteCronAlert(ctx, created.ID); err != nil {
		t.Fatalf("DeleteCronAlert failed: %v", err)
	}
	if err := store.DeleteCronAlert(ctx, created.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestMarkCronFiredNotFound(t *testing.T) {
	store := openTestStore(t)

	err := store.MarkCronFired(context.Background(), 999, time.Now(), time.Now())
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
