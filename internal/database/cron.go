package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hyperliquid-alert-bot/internal/types"
)

const cronAlertColumns = `id, chat_id, symbol, token, cron_expr, active, created_at, updated_at, last_triggered_at, next_trigger_at`

func scanCronAlert(row interface{ Scan(...any) error }) (types.CronAlert, error) {
	var alert types.CronAlert
	var lastTriggered sql.NullInt64
	var createdAt, updatedAt, nextTrigger int64

	err := row.Scan(
		&alert.ID, &alert.ChatID, &alert.Symbol, &alert.Token, &alert.CronExpr,
		&alert.Active, &createdAt, &updatedAt, &lastTriggered, &nextTrigger,
	)
	if err != nil {
		return alert, err
	}

	if lastTriggered.Valid {
		t := time.Unix(lastTriggered.Int64, 0).UTC()
		alert.LastTriggeredAt = &t
	}
	alert.CreatedAt = time.Unix(createdAt, 0).UTC()
	alert.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	alert.NextTriggerAt = time.Unix(nextTrigger, 0).UTC()
	return alert, nil
}

// CreateCronAlert saves a cron alert with its first trigger time already
// computed. The expression must be validated before calling this.
func (s *Store) CreateCronAlert(ctx context.Context, chatID int64, symbol, token, cronExpr string, nextTrigger time.Time) (types.CronAlert, error) {
	now := time.Now().UTC()
	query := `
	INSERT INTO cron_alerts (chat_id, symbol, token, cron_expr, active, created_at, updated_at, next_trigger_at)
	VALUES (?, ?, ?, ?, TRUE, ?, ?, ?);`

	result, err := s.db.ExecContext(ctx, query, chatID, symbol, token, cronExpr, now.Unix(), now.Unix(), nextTrigger.Unix())
	if err != nil {
		return types.CronAlert{}, fmt.Errorf("failed to insert cron alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return types.CronAlert{}, fmt.Errorf("failed to read inserted cron alert id: %w", err)
	}

	return types.CronAlert{
		ID:            id,
		ChatID:        chatID,
		Symbol:        symbol,
		Token:         token,
		CronExpr:      cronExpr,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
		NextTriggerAt: nextTrigger.UTC().Truncate(time.Second),
	}, nil
}

// ListCronAlerts fetches every active cron alert.
func (s *Store) ListCronAlerts(ctx context.Context) ([]types.CronAlert, error) {
	return s.queryCronAlerts(ctx, `SELECT `+cronAlertColumns+` FROM cron_alerts WHERE active = TRUE;`)
}

// ListCronAlertsForChat fetches the active cron alerts belonging to a chat.
func (s *Store) ListCronAlertsForChat(ctx context.Context, chatID int64) ([]types.CronAlert, error) {
	return s.queryCronAlerts(ctx, `SELECT `+cronAlertColumns+` FROM cron_alerts WHERE chat_id = ? AND active = TRUE;`, chatID)
}

// DueCronAlerts returns the active alerts whose next trigger time has passed.
func (s *Store) DueCronAlerts(ctx context.Context, now time.Time) ([]types.CronAlert, error) {
	query := `SELECT ` + cronAlertColumns + ` FROM cron_alerts WHERE active = TRUE AND next_trigger_at <= ?;`
	return s.queryCronAlerts(ctx, query, now.Unix())
}

func (s *Store) queryCronAlerts(ctx context.Context, query string, args ...any) ([]types.CronAlert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cron alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.CronAlert
	for rows.Next() {
		alert, err := scanCronAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cron alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// MarkCronFired records a firing and advances the next trigger time.
func (s *Store) MarkCronFired(ctx context.Context, id int64, nextTrigger, now time.Time) error {
	query := `
	UPDATE cron_alerts
	SET last_triggered_at = ?, next_trigger_at = ?, updated_at = ?
	WHERE id = ?;`

	result, err := s.db.ExecContext(ctx, query, now.Unix(), nextTrigger.Unix(), now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark cron alert %d fired: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateCronAlert soft-deletes an alert. It drops out of due-alert
// queries but stays queryable for history.
func (s *Store) DeactivateCronAlert(ctx context.Context, id int64) error {
	query := `UPDATE cron_alerts SET active = FALSE, updated_at = ? WHERE id = ?;`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate cron alert %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCronAlert removes an alert permanently.
func (s *Store) DeleteCronAlert(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cron_alerts WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cron alert %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}
