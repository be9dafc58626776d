package memory

import (
	"context"
	"testing"

	"miles/internal/core"
	"miles/internal/sheets"
)

func TestStore_Append(t *testing.T) {
	s := New()
	ctx := context.Background()

	row := sheets.ReportRow{
		TransactionID: 42,
		Date:          core.NewDate(2026, 3, 15),
		MerchantName:  "Grocer",
		Amount:        core.Money{Cents: 4750},
		Currency:      "SGD",
		TotalPoints:   30,
	}

	ref1, err := s.Append(ctx, row)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref1 != "mem:1" {
		t.Errorf("first ref = %q, want mem:1", ref1)
	}

	ref2, err := s.Append(ctx, row)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref2 != "mem:2" {
		t.Errorf("second ref = %q, want mem:2", ref2)
	}

	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("Rows() returned %d rows, want 2", len(rows))
	}
	if rows[0].TransactionID != 42 {
		t.Errorf("stored TransactionID = %d, want 42", rows[0].TransactionID)
	}
}

func TestStore_RowsIsACopy(t *testing.T) {
	s := New()
	if _, err := s.Append(context.Background(), sheets.ReportRow{TransactionID: 1}); err != nil {
		t.Fatal(err)
	}

	rows := s.Rows()
	rows[0].TransactionID = 99

	if got := s.Rows()[0].TransactionID; got != 1 {
		t.Errorf("internal row mutated through copy, TransactionID = %d, want 1", got)
	}
}
