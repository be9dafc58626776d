package worker

import (
	"context"
	"fmt"
	"log/slog"

	"miles/internal/amqp"
	"miles/internal/sheets"
	"miles/internal/storage"
)

// ReportWorker mirrors scored transactions from SQLite to the reward report.
type ReportWorker struct {
	storage   *storage.SQLiteRepository
	report    sheets.ReportWriter
	batchSize int
}

func NewReportWorker(repo *storage.SQLiteRepository, report sheets.ReportWriter, batchSize int) *ReportWorker {
	return &ReportWorker{
		storage:   repo,
		report:    report,
		batchSize: batchSize,
	}
}

// HandleTransactionMessage processes a single transaction recorded message.
func (w *ReportWorker) HandleTransactionMessage(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction message",
		"transaction_id", msg.TransactionID)

	txn, err := w.storage.Transaction(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	if txn.Reported {
		slog.DebugContext(ctx, "Transaction already reported, skipping",
			"transaction_id", txn.ID)
		return nil
	}

	return w.reportTransaction(ctx, txn)
}

// ProcessUnreported mirrors transactions the AMQP path missed. It is the
// catch-up mechanism for lost messages and worker downtime.
func (w *ReportWorker) ProcessUnreported(ctx context.Context) error {
	pending, err := w.storage.ListUnreported(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unreported transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing unreported transactions", "count", len(pending))

	for _, txn := range pending {
		if err := w.reportTransaction(ctx, txn); err != nil {
			slog.ErrorContext(ctx, "Failed to report transaction",
				"transaction_id", txn.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck drains the unreported backlog with a larger batch before the
// consumer loop starts.
func (w *ReportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.ListUnreported(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unreported transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No unreported transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found unreported transactions on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, txn := range pending {
		if err := w.reportTransaction(ctx, txn); err != nil {
			slog.ErrorContext(ctx, "Failed to report transaction during startup",
				"transaction_id", txn.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup report check completed",
		"total", len(pending),
		"reported", successCount,
		"errors", errorCount)

	return nil
}

func (w *ReportWorker) reportTransaction(ctx context.Context, txn storage.Transaction) error {
	row := sheets.ReportRow{
		TransactionID:  txn.ID,
		Date:           txn.Candidate.Date,
		InstrumentID:   txn.Candidate.InstrumentID,
		MerchantName:   txn.Candidate.MerchantName,
		Amount:         txn.Candidate.Amount,
		Currency:       txn.Candidate.Currency,
		BasePoints:     txn.BasePoints,
		BonusPoints:    txn.BonusPoints,
		TotalPoints:    txn.BasePoints + txn.BonusPoints,
		PointsCurrency: txn.PointsCurrency,
	}

	ref, err := w.report.Append(ctx, row)
	if err != nil {
		return fmt.Errorf("append to report: %w", err)
	}

	if err := w.storage.MarkReported(ctx, txn.ID); err != nil {
		// The row is already on the report, so log and move on. The
		// worker will skip it next time via the reported flag check.
		slog.ErrorContext(ctx, "Failed to mark transaction as reported",
			"transaction_id", txn.ID, "error", err)
	}

	slog.InfoContext(ctx, "Transaction reported",
		"transaction_id", txn.ID,
		"sheets_ref", ref,
		"merchant", txn.Candidate.MerchantName,
		"total_points", txn.BasePoints+txn.BonusPoints)

	return nil
}
