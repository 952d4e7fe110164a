package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"salesdash/internal/core"
	"salesdash/internal/log"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sel := parseSelection(r)

	v, err := s.dashboard.View(ctx, sel)
	if err != nil {
		s.logLoadError(r, err)
		s.renderError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "dashboard.html", newPageData(v, s.currency, s.dashboard.FreshUntil()))
}

func (s *Server) handleDashboardAPI(w http.ResponseWriter, r *http.Request) {
	v, err := s.dashboard.View(r.Context(), parseSelection(r))
	if err != nil {
		s.logLoadError(r, err)
		writeJSONError(w, statusForLoadError(err), loadErrorMessage(s.dashboard.SourceName(), err))
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(v, s.currency, s.dashboard.FreshUntil()))
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	v, err := s.dashboard.View(r.Context(), nil)
	if err != nil {
		s.logLoadError(r, err)
		writeJSONError(w, statusForLoadError(err), loadErrorMessage(s.dashboard.SourceName(), err))
		return
	}
	products := v.Products
	if products == nil {
		products = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	v, err := s.dashboard.View(r.Context(), parseSelection(r))
	if err != nil {
		s.logLoadError(r, err)
		writeJSONError(w, statusForLoadError(err), loadErrorMessage(s.dashboard.SourceName(), err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"selected": nonNil(v.Selected),
		"count":    v.Filtered.Len(),
		"records":  newRecordsJSON(v.Filtered),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.dashboard.Refresh(ctx)

	redirect := safeRedirect(r.FormValue("redirect"))
	if err != nil {
		s.logLoadError(r, err)
		if redirect != "" {
			s.renderError(w, r, err)
			return
		}
		writeJSONError(w, statusForLoadError(err), loadErrorMessage(s.dashboard.SourceName(), err))
		return
	}

	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Source:      d.Source,
		Rows:        d.Len(),
		DroppedRows: d.Stats.DroppedRows(),
		FetchedAt:   d.FetchedAt,
	})
}

func (s *Server) handleRefreshes(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := s.dashboard.History(r.Context(), limit)
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentStorage).ErrorContext(r.Context(),
			"Failed to read refresh history", log.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "refresh history is unavailable")
		return
	}
	out := make([]refreshEventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, newRefreshEventJSON(ev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshes": out})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports not ready only while the latest load attempt failed.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	st := s.dashboard.Status()
	if !st.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":       "unavailable",
			"source":       s.dashboard.SourceName(),
			"last_error":   st.LastError,
			"last_attempt": st.LastAttempt,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"source": s.dashboard.SourceName(),
	})
}

func (s *Server) logLoadError(r *http.Request, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentDashboard).ErrorContext(r.Context(),
		"Failed to load dashboard data",
		log.FieldSource, s.dashboard.SourceName(),
		log.FieldError, err)
}

// statusForLoadError maps an unreachable source to 502; anything else is
// our own fault.
func statusForLoadError(err error) int {
	if errors.Is(err, core.ErrSourceUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func loadErrorMessage(source string, err error) string {
	if errors.Is(err, core.ErrSourceUnavailable) {
		return "Sales data could not be loaded from " + source + ": " + err.Error()
	}
	return "Sales data could not be loaded: " + err.Error()
}

// parseSelection reads repeated product parameters; blanks are ignored.
func parseSelection(r *http.Request) core.Selection {
	return core.NewSelection(r.URL.Query()["product"]...)
}

// safeRedirect accepts only local absolute paths.
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return ""
	}
	return target
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
