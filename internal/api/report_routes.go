package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kjannette/watchtower-backend/internal/dashboard"
	"github.com/kjannette/watchtower-backend/internal/report"
)

const (
	maxUploadBytes       = 32 << 20
	maxUploadDiagnostics = 50
)

type uploadResponse struct {
	Source      string              `json:"source"`
	Count       int                 `json:"count"`
	DataLines   int                 `json:"dataLines"`
	Skipped     int                 `json:"skipped"`
	Unusable    int                 `json:"unusable"`
	Diagnostics []report.Diagnostic `json:"diagnostics"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	text, err := readUpload(w, r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res := report.ParseStrict(text)
	records := res.Usable()
	if len(records) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "no market rows with a usable edge found in upload")
		return
	}

	s.Store.Replace(records, dashboard.SourceUpload, "", "")
	s.log.Info("report uploaded",
		zap.Int("markets", len(records)),
		zap.Int("skipped", res.Skipped),
		zap.Int("unusable", res.Unusable),
	)

	diags := res.Diagnostics
	if len(diags) > maxUploadDiagnostics {
		diags = diags[:maxUploadDiagnostics]
	}
	if diags == nil {
		diags = []report.Diagnostic{}
	}
	writeJSON(w, r, http.StatusOK, uploadResponse{
		Source:      dashboard.SourceUpload,
		Count:       len(records),
		DataLines:   res.DataLines,
		Skipped:     res.Skipped,
		Unusable:    res.Unusable,
		Diagnostics: diags,
	})
}

// readUpload accepts either a raw CSV body or a multipart form with a
// "file" field.
func readUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		body, err := io.ReadAll(file)
		if err != nil {
			return "", err
		}
		return string(body), nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", errors.New("empty upload")
	}
	return string(body), nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Refresher == nil {
		writeError(w, r, http.StatusServiceUnavailable, "report polling not configured")
		return
	}
	s.Refresher.Unpin()
	if err := s.Refresher.FetchNow(r.Context()); err != nil {
		s.log.Error("manual refresh", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "refresh failed, previous data kept")
		return
	}
	writeJSON(w, r, http.StatusOK, s.Store.Load())
}

func (s *Server) handleIngestions(w http.ResponseWriter, r *http.Request) {
	if s.Ingestions == nil {
		writeError(w, r, http.StatusServiceUnavailable, "ingestion history not available")
		return
	}
	list, err := s.Ingestions.List(r.Context(), parseLimit(r, 50))
	if err != nil {
		s.log.Error("list ingestions", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to fetch ingestions")
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}
