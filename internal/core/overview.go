package core

// InstrumentPoints aggregates points earned on one instrument.
type InstrumentPoints struct {
	InstrumentID   int64  `json:"instrument_id"`
	InstrumentName string `json:"instrument_name"`
	Transactions   int64  `json:"transactions"`
	BasePoints     int64  `json:"base_points"`
	BonusPoints    int64  `json:"bonus_points"`
	TotalPoints    int64  `json:"total_points"`
}

// MonthOverview is a compact dashboard summary for a year+month.
type MonthOverview struct {
	Year         int                `json:"year"`
	Month        int                `json:"month"` // 1-12
	TotalPoints  int64              `json:"total_points"`
	ByInstrument []InstrumentPoints `json:"by_instrument"`
}
