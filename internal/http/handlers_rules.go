package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"miles/internal/core"
	applog "miles/internal/log"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	typeStr := strings.TrimSpace(r.URL.Query().Get("instrument_type_id"))
	if typeStr == "" {
		writeError(w, http.StatusBadRequest, "missing instrument_type_id query parameter")
		return
	}
	typeID, err := strconv.ParseInt(typeStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid instrument_type_id")
		return
	}

	rules, err := s.service.ListRules(r.Context(), typeID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List rules failed", "instrument_type_id", typeID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rules == nil {
		rules = []core.RewardRule{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule core.RewardRule
	if err := decodeJSON(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.service.CreateRule(r.Context(), rule)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create rule failed", applog.FieldRuleName, rule.Name, applog.FieldError, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	var rule core.RewardRule
	if err := decodeJSON(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule.ID = id

	if err := s.service.UpdateRule(r.Context(), rule); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Update rule failed", applog.FieldRuleID, id, applog.FieldError, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := s.service.DeleteRule(r.Context(), id); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete rule failed", applog.FieldRuleID, id, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrRuleNotFound), errors.Is(err, core.ErrInstrumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrEmptyRuleName),
		errors.Is(err, core.ErrInvalidCondition),
		errors.Is(err, core.ErrInvalidRewardSpec),
		errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
