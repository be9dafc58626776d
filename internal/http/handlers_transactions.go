package http

import (
	"net/http"
	"strings"
	"time"

	"miles/internal/core"
	applog "miles/internal/log"
)

// transactionRequest is the JSON body for recording or simulating a
// transaction. Amount is a decimal string ("47.50") to avoid float drift.
type transactionRequest struct {
	InstrumentID int64  `json:"instrument_id,omitempty"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	MCC          string `json:"mcc,omitempty"`
	MerchantName string `json:"merchant_name,omitempty"`
	Online       bool   `json:"online,omitempty"`
	Contactless  bool   `json:"contactless,omitempty"`
	Date         string `json:"date,omitempty"`
}

func (req transactionRequest) toCandidate() (core.TransactionCandidate, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		return core.TransactionCandidate{}, err
	}

	date := core.Date{Time: time.Now()}
	if strings.TrimSpace(req.Date) != "" {
		date, err = parseDate(strings.TrimSpace(req.Date))
		if err != nil {
			return core.TransactionCandidate{}, err
		}
	}

	return core.TransactionCandidate{
		Amount:       core.Money{Cents: cents},
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		MCC:          strings.TrimSpace(req.MCC),
		MerchantName: sanitizeInput(req.MerchantName),
		Online:       req.Online,
		Contactless:  req.Contactless,
		Date:         date,
		InstrumentID: req.InstrumentID,
	}, nil
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidate, err := req.toCandidate()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := candidate.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	recorded, err := s.service.RecordTransaction(r.Context(), candidate)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Record transaction failed",
			applog.FieldInstrumentID, candidate.InstrumentID, applog.FieldError, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	// The stored totals changed, so cached overviews are stale.
	s.overviewCache.Purge()

	writeJSON(w, http.StatusCreated, recorded)
}

type simulateRequest struct {
	transactionRequest
	TargetCurrency string `json:"target_currency,omitempty"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidate, err := req.toCandidate()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	results, err := s.service.Simulate(r.Context(), candidate, strings.ToUpper(strings.TrimSpace(req.TargetCurrency)))
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Simulation failed", applog.FieldError, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
