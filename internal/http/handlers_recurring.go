package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/services"
)

func (s *Server) handleRecurringDue(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user"})
		return
	}

	asOf := core.DateOf(time.Now())
	if v := strings.TrimSpace(r.URL.Query().Get("as_of")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, &core.ValidationError{Msg: "invalid as_of date"})
			return
		}
		asOf = d
	}

	due, err := s.svcs.Due.DueFor(r.Context(), user, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]dueOccurrenceDTO, 0, len(due))
	for _, occ := range due {
		out = append(out, dueToDTO(occ))
	}
	writeJSON(w, http.StatusOK, out)
}

type confirmRequest struct {
	User  string `json:"user"`
	AsOf  string `json:"as_of,omitempty"`
	Items []struct {
		TemplateID string  `json:"template_id"`
		DateISO    string  `json:"date_iso"`
		Cost       float64 `json:"cost,omitempty"`
	} `json:"items"`
}

func (s *Server) handleRecurringConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &core.ValidationError{Msg: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.User) == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user"})
		return
	}

	asOf := core.DateOf(time.Now())
	if req.AsOf != "" {
		d, err := core.ParseDate(req.AsOf)
		if err != nil {
			writeError(w, r, &core.ValidationError{Msg: "invalid as_of date"})
			return
		}
		asOf = d
	}

	selections := make([]services.Selection, 0, len(req.Items))
	for _, it := range req.Items {
		selections = append(selections, services.Selection{
			TemplateID: it.TemplateID,
			DateISO:    it.DateISO,
			Cost:       core.AmountFromFloat(it.Cost),
		})
	}

	processed, err := s.svcs.Confirm.Confirm(r.Context(), req.User, asOf, selections)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

func (s *Server) handleRecurringUpsert(w http.ResponseWriter, r *http.Request) {
	var dto templateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, r, &core.ValidationError{Msg: "invalid JSON body"})
		return
	}
	tpl, err := dto.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	saved, err := s.repos.Templates.Upsert(r.Context(), tpl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templateToDTO(saved))
}

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user"})
		return
	}
	templates, err := s.repos.Templates.ListByUser(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]templateDTO, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, templateToDTO(tpl))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user"})
		return
	}
	if err := s.repos.Templates.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
