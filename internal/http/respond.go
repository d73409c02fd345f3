package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kanakku/internal/core"
	applog "kanakku/internal/log"
)

type errorResponse struct {
	Error     string `json:"error"`
	ExpenseID string `json:"expense_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy to status codes: validation 400,
// not-found 404, conflict 409 (with the existing id so a retry can become a
// no-op), inconsistent state 500, upstream 502.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *core.ValidationError
		re *core.ReconciliationError
		ce *core.ConflictError
		nf *core.NotFoundError
		is *core.InconsistentStateError
		up *core.UpstreamError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &re):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), ExpenseID: ce.ExistingID})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &is):
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "inconsistent state after partial write", applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	case errors.As(err, &up):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "unhandled error", applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
