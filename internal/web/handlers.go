package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rbergman/daybook/internal/ledger"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": s.service.ActiveRuns(),
	})
}

// handleRunBatch accepts one day's extract and reconciles it against the
// ledger synchronously. The extract arrives either as a multipart form
// with a "file" field or as the raw request body; the batch label comes
// from the "label" query or form value, falling back to the file name.
//
// A failed batch responds with the failing record's position and business
// key so the operator can correct the input and resubmit.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Batch.MaxExtractSize)

	src, fileName, err := extractSource(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer src.Close()

	label := strings.TrimSpace(r.URL.Query().Get("label"))
	if label == "" {
		label = fileName
	}
	if label == "" {
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   "a batch label is required",
			Message: "a batch label is required",
			Action:  "Pass ?label=Day1 or upload a named file.",
			Code:    "REQ001",
		})
		return
	}

	run, err := s.service.RunBatch(r.Context(), label, fileName, src)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, run)
}

// extractSource picks the extract reader out of the request: the "file"
// part of a multipart form, or the raw body otherwise.
func extractSource(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, "", nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("multipart upload missing \"file\" field")
	}
	return file, header.Filename, nil
}

// handleListRows returns ledger rows in ascending sequence order. Pass
// active=true for the active set only; limit/offset page the result.
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	rows, err := s.service.Rows(r.Context(), activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}

	total := len(rows)
	offset := parseIntParam(r, "offset", 0)
	limit := parseIntParam(r, "limit", total)
	if offset > total {
		offset = total
	}
	if offset+limit > total {
		limit = total - offset
	}
	rows = rows[offset : offset+limit]
	if rows == nil {
		rows = []ledger.Row{}
	}

	respondJSON(w, r, http.StatusOK, map[string]any{
		"total":  total,
		"offset": offset,
		"rows":   rows,
	})
}

// handleListRuns returns recent reconciliation runs, most recent first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)

	runs, err := s.service.RunHistory(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"runs": runs})
}

// handleReset drops and recreates the ledger, discarding all history.
// Requires explicit confirmation to guard against accidental calls.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   "reset requires confirmation",
			Message: "reset discards the entire ledger and run history",
			Action:  "Resubmit with ?confirm=true to proceed.",
			Code:    "REQ002",
		})
		return
	}

	if err := s.service.Reset(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ledger recreated"})
}

// parseIntParam parses a non-negative integer query parameter with a
// default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}
