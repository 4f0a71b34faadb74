package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hyperliquid-alert-bot/internal/types"
)

const priceAlertColumns = `id, owner_key, chat_id, symbol, token, target_price, suppressed, cooldown_until, created_at, updated_at`

func scanPriceAlert(row interface{ Scan(...any) error }) (types.PriceAlert, error) {
	var alert types.PriceAlert
	var cooldownUntil sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&alert.ID, &alert.OwnerKey, &alert.ChatID, &alert.Symbol, &alert.Token,
		&alert.TargetPrice, &alert.Suppressed, &cooldownUntil, &createdAt, &updatedAt,
	)
	if err != nil {
		return alert, err
	}

	if cooldownUntil.Valid {
		t := time.Unix(cooldownUntil.Int64, 0).UTC()
		alert.CooldownUntil = &t
	}
	alert.CreatedAt = time.Unix(createdAt, 0).UTC()
	alert.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return alert, nil
}

// CreatePriceAlert saves a price alert. The token must already be resolved;
// the cooldown starts expired so the alert is immediately eligible to fire.
func (s *Store) CreatePriceAlert(ctx context.Context, ownerKey string, chatID int64, symbol, token string, targetPrice float64) (types.PriceAlert, error) {
	now := time.Now().UTC()
	query := `
	INSERT INTO price_alerts (owner_key, chat_id, symbol, token, target_price, suppressed, cooldown_until, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, FALSE, ?, ?, ?);`

	result, err := s.db.ExecContext(ctx, query, ownerKey, chatID, symbol, token, targetPrice, now.Unix(), now.Unix(), now.Unix())
	if err != nil {
		return types.PriceAlert{}, fmt.Errorf("failed to insert price alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return types.PriceAlert{}, fmt.Errorf("failed to read inserted alert id: %w", err)
	}

	cooldownUntil := now
	return types.PriceAlert{
		ID:            id,
		OwnerKey:      ownerKey,
		ChatID:        chatID,
		Symbol:        symbol,
		Token:         token,
		TargetPrice:   targetPrice,
		Suppressed:    false,
		CooldownUntil: &cooldownUntil,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ListAlerts fetches every price alert.
func (s *Store) ListAlerts(ctx context.Context) ([]types.PriceAlert, error) {
	return s.queryPriceAlerts(ctx, `SELECT `+priceAlertColumns+` FROM price_alerts;`)
}

// ListAlertsForChat fetches all price alerts belonging to a chat.
func (s *Store) ListAlertsForChat(ctx context.Context, chatID int64) ([]types.PriceAlert, error) {
	return s.queryPriceAlerts(ctx, `SELECT `+priceAlertColumns+` FROM price_alerts WHERE chat_id = ?;`, chatID)
}

// FindMatching returns the unsuppressed alerts whose target price lies
// within [lower, upper].
func (s *Store) FindMatching(ctx context.Context, lower, upper float64) ([]types.PriceAlert, error) {
	query := `
	SELECT ` + priceAlertColumns + `
	FROM price_alerts
	WHERE suppressed = FALSE AND target_price BETWEEN ? AND ?;`
	return s.queryPriceAlerts(ctx, query, lower, upper)
}

func (s *Store) queryPriceAlerts(ctx context.Context, query string, args ...any) ([]types.PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.PriceAlert
	for rows.Next() {
		alert, err := scanPriceAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// ApplyCooldown suppresses an alert until now+window.
func (s *Store) ApplyCooldown(ctx context.Context, id int64, now time.Time, window time.Duration) error {
	query := `
	UPDATE price_alerts
	SET suppressed = TRUE, cooldown_until = ?, updated_at = ?
	WHERE id = ?;`

	result, err := s.db.ExecContext(ctx, query, now.Add(window).Unix(), now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to apply cooldown to alert %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireCooldowns clears suppression on every alert whose cooldown has
// passed and returns the number of alerts affected.
func (s *Store) ExpireCooldowns(ctx context.Context, now time.Time) (int64, error) {
	query := `
	UPDATE price_alerts
	SET suppressed = FALSE, cooldown_until = NULL, updated_at = ?
	WHERE cooldown_until IS NOT NULL AND cooldown_until < ?;`

	result, err := s.db.ExecContext(ctx, query, now.Unix(), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to expire cooldowns: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired cooldowns: %w", err)
	}
	return affected, nil
}

// ListDistinctTokens returns the set of tokens referenced by price alerts,
// used at startup to know which feed subscriptions are needed.
func (s *Store) ListDistinctTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT token FROM price_alerts;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}
