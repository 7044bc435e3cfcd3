package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/authz"
)

// MeHandler describes what the calling principal may do.
type MeHandler struct {
	responder responder
}

func NewMeHandler(logger *slog.Logger) *MeHandler {
	return &MeHandler{responder: newResponder(logger)}
}

// Permissions lists the role's grants together with its landing page.
func (h *MeHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
		return
	}

	grants := authz.Permissions(principal.Role)
	out := permissionsResponse{
		UserID:        principal.UserID,
		Role:          principal.Role.String(),
		DivisionID:    principal.DivisionID,
		DashboardPath: authz.DashboardPath(principal.Role),
		Permissions:   make([]permissionDTO, 0, len(grants)),
	}
	for _, p := range grants {
		actions := make([]string, 0, len(p.Actions))
		for _, a := range p.Actions {
			actions = append(actions, string(a))
		}
		out.Permissions = append(out.Permissions, permissionDTO{Resource: string(p.Resource), Actions: actions})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

// Access answers whether the principal's role may navigate to ?path=.
func (h *MeHandler) Access(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
		return
	}

	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if !strings.HasPrefix(path, "/") {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPath)
		return
	}

	allowed := authz.CanAccessRoute(principal.Role, path)
	resp := accessResponse{Path: path, Allowed: allowed}
	if !allowed {
		resp.Redirect = authz.DashboardPath(principal.Role)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type permissionDTO struct {
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

type permissionsResponse struct {
	UserID        int64           `json:"user_id"`
	Role          string          `json:"role"`
	DivisionID    *int64          `json:"division_id,omitempty"`
	DashboardPath string          `json:"dashboard_path"`
	Permissions   []permissionDTO `json:"permissions"`
}

type accessResponse struct {
	Path     string `json:"path"`
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process and storage liveness.
type HealthHandler struct {
	store     Pinger
	responder responder
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, responder: newResponder(logger)}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}
