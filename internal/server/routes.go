package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quantfold/hindsight/internal/engine"
	"github.com/quantfold/hindsight/internal/store"
)

func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var in engine.TradeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.Ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker required")
		return
	}
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	entry, err := s.engine.RecordTrade(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":               entry.ID,
		"ticker":           entry.Ticker,
		"one_line_summary": entry.OneLineSummary,
		"confidence_score": entry.ConfidenceScore,
	})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	entry, err := s.db.GetEntry(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker required")
		return
	}
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	digest, err := s.engine.GetContext(ticker, r.URL.Query().Get("sector"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ticker":  ticker,
		"context": digest,
	})
}

func (s *Server) handleGetAdjustment(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker required")
		return
	}
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	delta, reasons, err := s.engine.GetAdjustment(ticker, r.URL.Query().Get("sector"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reasons == nil {
		reasons = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticker":     ticker,
		"adjustment": delta,
		"reasons":    reasons,
	})
}

func (s *Server) handleListIntuitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IntuitionFilter{Category: q.Get("category")}
	if v := q.Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_confidence")
			return
		}
		filter.MinConfidence = f
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	intuitions, err := s.db.GetIntuitions(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if intuitions == nil {
		intuitions = []store.Intuition{}
	}
	writeJSON(w, http.StatusOK, intuitions)
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}
	if s.engine.LLM == nil {
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}

	var result *engine.CompactResult
	var err error
	if r.URL.Query().Get("force") == "true" {
		result, err = s.engine.Compact(r.Context())
	} else {
		result, err = s.engine.CompactIfDue(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	stats, err := s.engine.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
