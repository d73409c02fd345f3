package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"kanakku/internal/core"
)

type expenseCreateRequest struct {
	UserEmail string           `json:"user_email"`
	Header    expenseHeaderDTO `json:"header"`
}

func (s *Server) handleExpenseCreate(w http.ResponseWriter, r *http.Request) {
	var req expenseCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &core.ValidationError{Msg: "invalid JSON body"})
		return
	}
	header, err := req.Header.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	header.UserEmail = req.UserEmail
	// Manual entries never carry a dedup fingerprint.
	header.Fingerprint = ""
	if header.Currency == "" {
		header.Currency = s.defaultCurrency
	}

	id, err := s.svcs.Expenses.Create(r.Context(), header)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"expense_id": id})
}

func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user"})
		return
	}
	year := intQuery(r, "year")
	month := intQuery(r, "month")
	if month < 0 || month > 12 {
		writeError(w, r, &core.ValidationError{Msg: "invalid month"})
		return
	}

	headers, err := s.svcs.Expenses.List(r.Context(), user, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseHeaderDTO, 0, len(headers))
	for _, h := range headers {
		out = append(out, headerToDTO(h))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExpenseGet(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user"})
		return
	}

	header, items, err := s.svcs.Expenses.Get(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemDTOs := make([]expenseItemDTO, 0, len(items))
	for _, it := range items {
		itemDTOs = append(itemDTOs, itemToDTO(it))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"header": headerToDTO(header),
		"items":  itemDTOs,
	})
}

func (s *Server) handleExpenseUpdate(w http.ResponseWriter, r *http.Request) {
	var req expenseCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &core.ValidationError{Msg: "invalid JSON body"})
		return
	}
	header, err := req.Header.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	header.ID = r.PathValue("id")
	header.UserEmail = req.UserEmail

	if err := s.svcs.Expenses.Update(r.Context(), header); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user"})
		return
	}
	if err := s.svcs.Expenses.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func intQuery(r *http.Request, key string) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
