package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"kanakku/internal/core"
	"kanakku/internal/services"
)

type ingestRequest struct {
	UserEmail string           `json:"user_email"`
	Header    expenseHeaderDTO `json:"header"`
	Items     []expenseItemDTO `json:"items"`
}

func (s *Server) handleExpenseIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &core.ValidationError{Msg: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.UserEmail) == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user_email"})
		return
	}
	header, err := req.Header.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if header.Currency == "" {
		header.Currency = s.defaultCurrency
	}
	items := make([]core.ExpenseItem, 0, len(req.Items))
	for _, dto := range req.Items {
		items = append(items, dto.toDomain())
	}
	force := r.URL.Query().Get("force") == "true"

	result, err := s.svcs.Ingest.Ingest(r.Context(), req.UserEmail, header, items, force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"expense_id": result.ExpenseID,
		"item_ids":   result.ItemIDs,
	})
}

// handleReceiptParse extracts a receipt upload into untrusted header and
// item guesses plus a fingerprint; nothing is persisted here.
func (s *Server) handleReceiptParse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, &core.ValidationError{Msg: "invalid multipart form"})
		return
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, &core.ValidationError{Msg: "missing file field"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, 10<<20))
	if err != nil {
		writeError(w, r, &core.ValidationError{Msg: "unreadable upload"})
		return
	}

	contentType := fh.Header.Get("Content-Type")
	parsed, err := s.parser.Parse(r.Context(), data, contentType)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fingerprint := services.Fingerprint(parsed.Header, parsed.Items)
	writeJSON(w, http.StatusOK, parsedToDTO(parsed, fingerprint))
}
