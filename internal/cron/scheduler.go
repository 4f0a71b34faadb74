// Package cron computes next-fire times for recurring alerts from standard
// 5-field cron expressions and keeps them advancing after each firing.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"hyperliquid-alert-bot/internal/database"
	"hyperliquid-alert-bot/internal/types"
)

// ErrInvalidSchedule is returned for malformed cron expressions. It is a
// user input error reported at creation time and never persisted.
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// SchedulingFault flags an active cron alert whose persisted expression can
// no longer be evaluated. The alert is deactivated rather than retried
// forever with a stale trigger time.
type SchedulingFault struct {
	AlertID int64
	Expr    string
	Cause   error
}

func (f *SchedulingFault) Error() string {
	return fmt.Sprintf("cron alert %d deactivated: expression %q is no longer schedulable: %v", f.AlertID, f.Expr, f.Cause)
}

func (f *SchedulingFault) Unwrap() error { return f.Cause }

// standard minute, hour, day-of-month, month, day-of-week fields
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextTrigger parses a 5-field cron expression and returns the next time
// strictly after anchor that satisfies it.
func NextTrigger(expr string, anchor time.Time) (time.Time, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidSchedule, "%v", err)
	}

	next := schedule.Next(anchor)
	if next.IsZero() {
		return time.Time{}, errors.Wrapf(ErrInvalidSchedule, "expression %q never fires", expr)
	}
	return next, nil
}

// Scheduler finds due cron alerts and reschedules them after firing.
type Scheduler struct {
	store *database.Store
}

func NewScheduler(store *database.Store) *Scheduler {
	return &Scheduler{store: store}
}

// PollDue returns the active alerts whose next trigger time has passed.
func (s *Scheduler) PollDue(ctx context.Context, now time.Time) ([]types.CronAlert, error) {
	return s.store.DueCronAlerts(ctx, now)
}

// Reschedule advances a fired alert to its next trigger time, anchored at
// now. Expressions are validated at creation, so a parse failure here means
// the persisted row is damaged; the alert is deactivated and the fault
// surfaced instead of retrying indefinitely.
func (s *Scheduler) Reschedule(ctx context.Context, alert types.CronAlert, now time.Time) error {
	next, err := NextTrigger(alert.CronExpr, now)
	if err != nil {
		if deactivateErr := s.store.DeactivateCronAlert(ctx, alert.ID); deactivateErr != nil && deactivateErr != database.ErrNotFound {
			log.Errorf("failed to deactivate unschedulable cron alert %d: %v", alert.ID, deactivateErr)
		}
		return &SchedulingFault{AlertID: alert.ID, Expr: alert.CronExpr, Cause: err}
	}

	err = s.store.MarkCronFired(ctx, alert.ID, next, now)
	if err == database.ErrNotFound {
		log.Warnf("cron alert %d vanished before it could be rescheduled", alert.ID)
		return nil
	}
	return err
}
