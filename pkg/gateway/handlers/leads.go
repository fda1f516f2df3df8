package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridianfx/engage/pkg/gateway/apierror"
	"github.com/meridianfx/engage/pkg/gateway/store"
)

// Leads captures visitor contact details from the kiosk.
type Leads struct {
	Store  store.Leads
	Logger *slog.Logger
}

func (h Leads) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		writeError(w, r, apierror.Invalid("name is required", "name"))
		return
	}
	if req.Phone == "" && req.Email == "" {
		writeError(w, r, apierror.Invalid("either phone or email is required", "phone"))
		return
	}

	lead := &store.Lead{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Message: strings.TrimSpace(req.Message),
	}
	if err := h.Store.CreateLead(r.Context(), lead); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (h Leads) List(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Store.ListLeads(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if leads == nil {
		leads = []store.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}
