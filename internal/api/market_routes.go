package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kjannette/watchtower-backend/internal/dashboard"
	"github.com/kjannette/watchtower-backend/internal/export"
	"github.com/kjannette/watchtower-backend/internal/report"
)

// filterParam returns the ?filter= value, answering 400 when it names no
// category.
func filterParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	f := r.URL.Query().Get("filter")
	if !dashboard.ValidFilter(f) {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid filter %q", f))
		return "", false
	}
	return f, true
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, dashboard.Markets(s.Store.Load(), filter))
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	rank, err := strconv.Atoi(chi.URLParam(r, "rank"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "rank must be an integer")
		return
	}
	m, ok := dashboard.FindByRank(s.Store.Load(), rank)
	if !ok {
		writeError(w, r, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, dashboard.Stats(s.Store.Load()))
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, dashboard.Charts(s.Store.Load()))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterParam(w, r)
	if !ok {
		return
	}
	records := report.Filter(s.Store.Load().Records, filter)

	name := fmt.Sprintf("markets-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.WriteWorkbook(w, records); err != nil {
		s.log.Error("export workbook", zap.Error(err))
	}
}
