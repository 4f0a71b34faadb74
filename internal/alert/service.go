package alert

import (
	"context"

	"github.com/pkg/errors"

	"hyperliquid-alert-bot/internal/database"
	"hyperliquid-alert-bot/internal/types"
)

// TokenResolver maps a user-entered coin symbol to the tradable token
// identifier used by the market data feed.
type TokenResolver interface {
	ResolveToken(ctx context.Context, symbol string) (string, error)
}

// Service handles price alert creation and listing on behalf of the
// command surface.
type Service struct {
	store    *database.Store
	resolver TokenResolver
}

func NewService(store *database.Store, resolver TokenResolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// CreateAlert resolves the symbol to a token and persists the alert.
// Resolution failure fails the whole creation; no row is written for an
// unknown asset.
func (s *Service) CreateAlert(ctx context.Context, ownerKey string, chatID int64, symbol string, targetPrice float64) (types.PriceAlert, error) {
	token, err := s.resolver.ResolveToken(ctx, symbol)
	if err != nil {
		return types.PriceAlert{}, errors.Wrapf(err, "could not resolve token for %s", symbol)
	}

	return s.store.CreatePriceAlert(ctx, ownerKey, chatID, symbol, token, targetPrice)
}

// ListForChat returns the price alerts belonging to a chat.
func (s *Service) ListForChat(ctx context.Context, chatID int64) ([]types.PriceAlert, error) {
	return s.store.ListAlertsForChat(ctx, chatID)
}
