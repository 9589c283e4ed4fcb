package web

// errors.go maps internal errors to coded, user-facing JSON responses.
//
// Technical details are logged server-side with the request ID; the client
// receives a stable code, a readable message, and a suggested action. The
// codes give operators a stable handle when reporting failed batches.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rbergman/daybook/internal/extract"
	"github.com/rbergman/daybook/internal/ledger"
	"github.com/rbergman/daybook/internal/logging"
	"github.com/rbergman/daybook/internal/recon"
)

// UserMessage is the client-facing rendering of an error.
type UserMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// MapError converts an internal error to a user message and HTTP status.
func MapError(err error) (UserMessage, int) {
	var (
		decodeErr *extract.DecodeError
		recordErr *recon.RecordError
		pgErr     *pgconn.PgError
	)

	switch {
	case errors.As(err, &decodeErr):
		return UserMessage{
			Code:    "EXT001",
			Message: "The extract file could not be decoded: " + decodeErr.Error(),
			Action:  "Check the file for corrupt or oversized lines and resubmit.",
		}, http.StatusUnprocessableEntity

	case errors.As(err, &recordErr):
		// The operator needs the failing record's position and key to
		// correct the input and re-run the batch.
		return UserMessage{
			Code:    "REC001",
			Message: "The batch failed at " + recordErr.Error(),
			Action:  "Correct the offending record and re-run the batch; writes for earlier records remain in effect.",
		}, http.StatusUnprocessableEntity

	case errors.Is(err, recon.ErrRunInProgress):
		return UserMessage{
			Code:    "REC002",
			Message: "Another batch run is in progress.",
			Action:  "Wait for the current run to finish, then resubmit.",
		}, http.StatusTooManyRequests

	case errors.Is(err, ledger.ErrNotFound):
		return UserMessage{
			Code:    "LDG001",
			Message: "A retirement targeted a ledger row that does not exist.",
			Action:  "The ledger may have been modified outside this service; inspect the rows and re-run the batch.",
		}, http.StatusConflict

	case errors.As(err, &pgErr):
		return UserMessage{
			Code:    "DB001",
			Message: "The ledger database rejected the operation.",
			Action:  "Check database connectivity and schema, then retry.",
		}, http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Code:    "REC003",
			Message: "The batch run timed out.",
			Action:  "Retry with a smaller extract or a higher BATCH_RUN_TIMEOUT.",
		}, http.StatusGatewayTimeout

	default:
		return UserMessage{
			Code:    "SYS001",
			Message: "An unexpected error occurred.",
			Action:  "Check the server logs with the request ID for details.",
		}, http.StatusInternalServerError
	}
}

// respondError logs the technical error and writes the mapped JSON response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg, status := MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
