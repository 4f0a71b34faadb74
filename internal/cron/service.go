package cron

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"hyperliquid-alert-bot/internal/database"
	"hyperliquid-alert-bot/internal/types"
)

// TokenResolver maps a user-entered coin symbol to the tradable token
// identifier used by the market data feed.
type TokenResolver interface {
	ResolveToken(ctx context.Context, symbol string) (string, error)
}

// Service handles cron alert creation and management for the command
// surface.
type Service struct {
	store    *database.Store
	resolver TokenResolver
}

func NewService(store *database.Store, resolver TokenResolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// CreateCronAlert validates the expression and resolves the token before
// any write, so an unschedulable alert is never persisted. The first
// trigger time is anchored at creation.
func (s *Service) CreateCronAlert(ctx context.Context, chatID int64, symbol, expr string) (types.CronAlert, error) {
	next, err := NextTrigger(expr, time.Now().UTC())
	if err != nil {
		return types.CronAlert{}, err
	}

	token, err := s.resolver.ResolveToken(ctx, symbol)
	if err != nil {
		return types.CronAlert{}, errors.Wrapf(err, "could not resolve token for %s", symbol)
	}

	return s.store.CreateCronAlert(ctx, chatID, symbol, token, expr, next)
}

// ListForChat returns the active cron alerts belonging to a chat.
func (s *Service) ListForChat(ctx context.Context, chatID int64) ([]types.CronAlert, error) {
	return s.store.ListCronAlertsForChat(ctx, chatID)
}

// Deactivate soft-deletes a cron alert.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.store.DeactivateCronAlert(ctx, id)
}

// Delete removes a cron alert permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteCronAlert(ctx, id)
}
