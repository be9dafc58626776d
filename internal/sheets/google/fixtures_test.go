package google

import (
	"miles/internal/core"
	ports "miles/internal/sheets"
)

func ReportRowFixture() ports.ReportRow {
	return ports.ReportRow{
		TransactionID:  1,
		Date:           core.NewDate(2026, 3, 15),
		InstrumentID:   2,
		MerchantName:   "Grocer",
		Amount:         core.Money{Cents: 10000},
		Currency:       "SGD",
		BasePoints:     65,
		BonusPoints:    0,
		TotalPoints:    65,
		PointsCurrency: "miles",
	}
}
