package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/gov-agenda/internal/application"
)

type divisionService interface {
	CreateDivision(ctx context.Context, principal application.Principal, name string) (application.Division, error)
	ListDivisions(ctx context.Context, principal application.Principal) ([]application.Division, error)
}

// DivisionHandler serves division management endpoints.
type DivisionHandler struct {
	service   divisionService
	responder responder
}

func NewDivisionHandler(service divisionService, logger *slog.Logger) *DivisionHandler {
	return &DivisionHandler{service: service, responder: newResponder(logger)}
}

func (h *DivisionHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	divisions, err := h.service.ListDivisions(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]divisionDTO, 0, len(divisions))
	for _, d := range divisions {
		out = append(out, toDivisionDTO(d))
	}
	h.responder.writeCacheableJSON(w, r, listDivisionsResponse{Divisions: out})
}

func (h *DivisionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req divisionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	division, err := h.service.CreateDivision(r.Context(), principal, req.Name)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toDivisionDTO(division))
}

type divisionRequest struct {
	Name string `json:"name"`
}

type divisionDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type listDivisionsResponse struct {
	Divisions []divisionDTO `json:"divisions"`
}

func toDivisionDTO(d application.Division) divisionDTO {
	return divisionDTO{ID: d.ID, Name: d.Name, CreatedAt: formatTime(d.CreatedAt)}
}
