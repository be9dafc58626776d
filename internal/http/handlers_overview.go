package http

import (
	"fmt"
	"net/http"
	"strings"

	"miles/internal/core"
	applog "miles/internal/log"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	cacheKey := fmt.Sprintf("%04d-%02d", year, month)
	if cached, ok := s.overviewCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	overview, err := s.service.Overview(r.Context(), year, month)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Overview failed", applog.FieldYear, year, applog.FieldMonth, month, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.overviewCache.Set(cacheKey, overview)
	writeJSON(w, http.StatusOK, overview)
}

type instrumentRequest struct {
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	TypeID            int64  `json:"type_id"`
	Active            *bool  `json:"active,omitempty"`
	PointsCurrency    string `json:"points_currency,omitempty"`
	StatementCycleDay int    `json:"statement_cycle_day,omitempty"`
}

type instrumentResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	TypeID            int64  `json:"type_id"`
	Active            bool   `json:"active"`
	PointsCurrency    string `json:"points_currency,omitempty"`
	StatementCycleDay int    `json:"statement_cycle_day,omitempty"`
}

func toInstrumentResponse(in core.Instrument) instrumentResponse {
	return instrumentResponse{
		ID:                in.ID,
		Name:              in.Name,
		Kind:              string(in.Kind),
		TypeID:            in.TypeID,
		Active:            in.Active,
		PointsCurrency:    in.PointsCurrency,
		StatementCycleDay: in.StatementCycleDay,
	}
}

func (s *Server) handleCreateInstrument(w http.ResponseWriter, r *http.Request) {
	var req instrumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	in := core.Instrument{
		Name:              sanitizeInput(req.Name),
		Kind:              core.InstrumentKind(req.Kind),
		TypeID:            req.TypeID,
		Active:            active,
		PointsCurrency:    strings.TrimSpace(req.PointsCurrency),
		StatementCycleDay: req.StatementCycleDay,
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.service.CreateInstrument(r.Context(), in)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create instrument failed", "name", in.Name, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toInstrumentResponse(created))
}

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.service.ListInstruments(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List instruments failed", applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]instrumentResponse, 0, len(instruments))
	for _, in := range instruments {
		out = append(out, toInstrumentResponse(in))
	}

	writeJSON(w, http.StatusOK, map[string]any{"instruments": out})
}

type rateRequest struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

func (s *Server) handleUpsertRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	from := strings.ToUpper(strings.TrimSpace(req.From))
	to := strings.ToUpper(strings.TrimSpace(req.To))
	if from == "" || to == "" {
		writeError(w, http.StatusUnprocessableEntity, "from and to currencies are required")
		return
	}
	if req.Rate <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "rate must be positive")
		return
	}

	if err := s.service.UpsertRate(r.Context(), from, to, req.Rate); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Upsert rate failed", "from", from, "to", to, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
