package sheets

import (
	"context"

	"miles/internal/core"
)

// ReportRow is one scored transaction in the reward report.
type ReportRow struct {
	TransactionID  int64
	Date           core.Date
	InstrumentID   int64
	MerchantName   string
	Amount         core.Money
	Currency       string
	BasePoints     int64
	BonusPoints    int64
	TotalPoints    int64
	PointsCurrency string
}

// ReportWriter is the outbound port for the reward report mirror.
type ReportWriter interface {
	Append(ctx context.Context, row ReportRow) (rowRef string, err error)
}
