package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"miles/internal/core"
	"miles/internal/tracker"
)

var _ tracker.Tracker = (*SQLiteRepository)(nil)

func (r *SQLiteRepository) Used(ctx context.Context, instrumentID int64, period core.PeriodKey) (int64, error) {
	var used int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(bonus_points_used, 0) FROM spend_periods
		WHERE instrument_id = ? AND period_key = ?`, instrumentID, string(period)).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read spend period: %w", err)
	}
	return used, nil
}

func (r *SQLiteRepository) Record(ctx context.Context, instrumentID int64, period core.PeriodKey, bonusPoints int64) error {
	if bonusPoints <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spend_periods (instrument_id, period_key, bonus_points_used, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(instrument_id, period_key)
		DO UPDATE SET bonus_points_used = bonus_points_used + excluded.bonus_points_used,
		              updated_at = excluded.updated_at`,
		instrumentID, string(period), bonusPoints, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record spend period: %w", err)
	}
	return nil
}

// Recalculate rebuilds a period counter from raw history, replacing
// whatever the incremental path accumulated.
func (r *SQLiteRepository) Recalculate(ctx context.Context, instrumentID int64, period core.PeriodKey, history []tracker.BonusEntry) error {
	total := tracker.SumHistory(history)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spend_periods (instrument_id, period_key, bonus_points_used, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(instrument_id, period_key)
		DO UPDATE SET bonus_points_used = excluded.bonus_points_used,
		              updated_at = excluded.updated_at`,
		instrumentID, string(period), total, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recalculate spend period: %w", err)
	}
	slog.InfoContext(ctx, "Spend period recalculated",
		"instrument_id", instrumentID,
		"period", period,
		"bonus_points_used", total)
	return nil
}

// Rate implements engine.RateSource over the conversion_rates table.
// Lookup is case-insensitive on currency codes.
func (r *SQLiteRepository) Rate(ctx context.Context, from, to string) (float64, bool, error) {
	var rate float64
	err := r.db.QueryRowContext(ctx, `
		SELECT rate FROM conversion_rates
		WHERE from_currency = ? AND to_currency = ?`,
		strings.ToUpper(from), strings.ToUpper(to)).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read conversion rate: %w", err)
	}
	return rate, true, nil
}

func (r *SQLiteRepository) UpsertRate(ctx context.Context, from, to string, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("conversion rate must be positive, got %f", rate)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversion_rates (from_currency, to_currency, rate, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_currency, to_currency)
		DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`,
		strings.ToUpper(from), strings.ToUpper(to), rate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert conversion rate: %w", err)
	}
	return nil
}
