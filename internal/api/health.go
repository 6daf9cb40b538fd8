package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Database string `json:"database"`
	Markets  int    `json:"markets"`
	Source   string `json:"source"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "not configured"
	if s.DB != nil {
		dbStatus = "connected"
		if err := s.DB.Ping(r.Context()); err != nil {
			dbStatus = "disconnected"
		}
	}

	snap := s.Store.Load()
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: healthServices{
			Database: dbStatus,
			Markets:  len(snap.Records),
			Source:   snap.Source,
		},
	})
}
