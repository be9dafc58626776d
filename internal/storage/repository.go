// Package storage is the SQLite persistence layer: instruments, reward
// rules, transactions, spend periods, and conversion rates. The
// repository satisfies the engine's collaborator interfaces (rule
// source via rules.CachedStore, spend tracker, instrument source, rate
// source) so it can be injected directly.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"miles/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateInstrument persists an instrument and returns it with its id.
func (r *SQLiteRepository) CreateInstrument(ctx context.Context, in core.Instrument) (core.Instrument, error) {
	if err := in.Validate(); err != nil {
		return core.Instrument{}, fmt.Errorf("validate instrument: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO instruments (name, kind, type_id, active, points_currency, statement_cycle_day)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, string(in.Kind), in.TypeID, in.Active, in.PointsCurrency, in.StatementCycleDay)
	if err != nil {
		return core.Instrument{}, fmt.Errorf("insert instrument: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Instrument{}, fmt.Errorf("read instrument id: %w", err)
	}
	in.ID = id

	slog.InfoContext(ctx, "Instrument created",
		"id", in.ID,
		"name", in.Name,
		"kind", in.Kind,
		"type_id", in.TypeID)

	return in, nil
}

// Instrument implements engine.InstrumentSource.
func (r *SQLiteRepository) Instrument(ctx context.Context, id int64) (core.Instrument, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, kind, type_id, active, points_currency, statement_cycle_day
		FROM instruments WHERE id = ?`, id)

	var in core.Instrument
	var kind string
	err := row.Scan(&in.ID, &in.Name, &kind, &in.TypeID, &in.Active, &in.PointsCurrency, &in.StatementCycleDay)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Instrument{}, core.ErrInstrumentNotFound
	}
	if err != nil {
		return core.Instrument{}, fmt.Errorf("get instrument %d: %w", id, err)
	}
	in.Kind = core.InstrumentKind(kind)
	return in, nil
}

// ListInstruments returns every instrument, active or not.
func (r *SQLiteRepository) ListInstruments(ctx context.Context) ([]core.Instrument, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, kind, type_id, active, points_currency, statement_cycle_day
		FROM instruments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var out []core.Instrument
	for rows.Next() {
		var in core.Instrument
		var kind string
		if err := rows.Scan(&in.ID, &in.Name, &kind, &in.TypeID, &in.Active, &in.PointsCurrency, &in.StatementCycleDay); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		in.Kind = core.InstrumentKind(kind)
		out = append(out, in)
	}
	return out, rows.Err()
}

// Transaction is a persisted transaction row plus its calculated points.
type Transaction struct {
	ID        int64
	Candidate core.TransactionCandidate
	// Points as calculated at recording time.
	BasePoints     int64
	BonusPoints    int64
	PointsCurrency string
	Reported       bool
	CreatedAt      time.Time
}

// RecordTransaction persists a candidate together with its calculated
// points and returns the new row id.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, c core.TransactionCandidate, result core.CalculationResult) (int64, error) {
	var convertedCents *int64
	if c.ConvertedAmount != nil {
		convertedCents = &c.ConvertedAmount.Cents
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(instrument_id, amount_cents, currency, converted_cents, converted_currency,
			 mcc, merchant_name, is_online, is_contactless, txn_date,
			 base_points, bonus_points, points_currency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.InstrumentID, c.Amount.Cents, c.Currency, convertedCents, nullableString(c.ConvertedCurrency),
		c.MCC, c.MerchantName, c.Online, c.Contactless, c.Date.Format("2006-01-02"),
		result.BasePoints, result.BonusPoints, result.PointsCurrency)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", id,
		"instrument_id", c.InstrumentID,
		"amount_cents", c.Amount.Cents,
		"currency", c.Currency,
		"total_points", result.TotalPoints)

	return id, nil
}

// Transaction loads a single transaction by id.
func (r *SQLiteRepository) Transaction(ctx context.Context, id int64) (Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, instrument_id, amount_cents, currency, converted_cents, converted_currency,
		       mcc, merchant_name, is_online, is_contactless, txn_date,
		       base_points, bonus_points, points_currency, reported, created_at
		FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, fmt.Errorf("transaction %d: %w", id, sql.ErrNoRows)
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// ListUnreported returns transactions not yet mirrored to the report
// sheet, oldest first.
func (r *SQLiteRepository) ListUnreported(ctx context.Context, limit int) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, instrument_id, amount_cents, currency, converted_cents, converted_currency,
		       mcc, merchant_name, is_online, is_contactless, txn_date,
		       base_points, bonus_points, points_currency, reported, created_at
		FROM transactions WHERE reported = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unreported transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkReported flags a transaction as mirrored to the report sheet.
func (r *SQLiteRepository) MarkReported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET reported = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction reported: %w", err)
	}
	return nil
}

// MonthOverview aggregates points per instrument for a year+month.
func (r *SQLiteRepository) MonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	overview := core.MonthOverview{Year: year, Month: month}

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.name, COUNT(t.id), COALESCE(SUM(t.base_points), 0), COALESCE(SUM(t.bonus_points), 0)
		FROM transactions t
		JOIN instruments i ON i.id = t.instrument_id
		WHERE strftime('%Y', t.txn_date) = printf('%04d', ?)
		  AND strftime('%m', t.txn_date) = printf('%02d', ?)
		GROUP BY i.id, i.name
		ORDER BY SUM(t.base_points) + SUM(t.bonus_points) DESC`, year, month)
	if err != nil {
		return overview, fmt.Errorf("month overview: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p core.InstrumentPoints
		if err := rows.Scan(&p.InstrumentID, &p.InstrumentName, &p.Transactions, &p.BasePoints, &p.BonusPoints); err != nil {
			return overview, fmt.Errorf("scan overview row: %w", err)
		}
		p.TotalPoints = p.BasePoints + p.BonusPoints
		overview.TotalPoints += p.TotalPoints
		overview.ByInstrument = append(overview.ByInstrument, p)
	}
	return overview, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var (
		t              Transaction
		convertedCents sql.NullInt64
		convertedCur   sql.NullString
		txnDate        string
		createdAt      sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Candidate.InstrumentID, &t.Candidate.Amount.Cents, &t.Candidate.Currency,
		&convertedCents, &convertedCur,
		&t.Candidate.MCC, &t.Candidate.MerchantName, &t.Candidate.Online, &t.Candidate.Contactless, &txnDate,
		&t.BasePoints, &t.BonusPoints, &t.PointsCurrency, &t.Reported, &createdAt)
	if err != nil {
		return Transaction{}, err
	}
	t.CreatedAt = createdAt.Time
	if convertedCents.Valid {
		t.Candidate.ConvertedAmount = &core.Money{Cents: convertedCents.Int64}
	}
	if convertedCur.Valid {
		t.Candidate.ConvertedCurrency = convertedCur.String
	}
	if d, err := time.Parse("2006-01-02", txnDate); err == nil {
		t.Candidate.Date = core.Date{Time: d}
	}
	return t, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
