// Package handler exposes the impersonation overlay over HTTP. All routes
// are gated on the caller's real facilitator role; an active overlay never
// grants access here.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wellgate/internal/identity/service"
	"wellgate/internal/impersonation"
	dErrors "wellgate/pkg/domain-errors"
	"wellgate/pkg/platform/httputil"
	"wellgate/pkg/requestcontext"
)

type Handler struct {
	overlay  *impersonation.Overlay
	resolver *service.Resolver
	logger   *slog.Logger
}

func New(overlay *impersonation.Overlay, resolver *service.Resolver, logger *slog.Logger) *Handler {
	return &Handler{overlay: overlay, resolver: resolver, logger: logger}
}

// Routes mounts the impersonation surface. requireSession must have run
// before requireAdmin so the principal is present in the request context.
func (h *Handler) Routes(requireSession func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(requireSession)
	r.Use(h.requireAdmin)
	r.Put("/", h.start)
	r.Delete("/", h.stop)
	r.Get("/", h.status)
	return r
}

// requireAdmin checks the caller's resolved roles directly. It deliberately
// does not consult the overlay: impersonating a participant must not open
// the impersonation controls themselves.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := requestcontext.UserID(r.Context())
		roles := h.resolver.ResolveRoles(r.Context(), userID)
		if !roles.IsAdmin {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "facilitator role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var user impersonation.ImpersonatedUser
	if err := httputil.DecodeJSON(r, &user); err != nil {
		httputil.WriteError(w, err)
		return
	}

	adminID := requestcontext.UserID(r.Context())
	if err := h.overlay.Start(r.Context(), adminID, &user); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &user)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	h.overlay.Stop(r.Context(), requestcontext.UserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	Impersonating bool                            `json:"impersonating"`
	User          *impersonation.ImpersonatedUser `json:"user,omitempty"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	user := h.overlay.Current(r.Context(), requestcontext.UserID(r.Context()))
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		Impersonating: user != nil,
		User:          user,
	})
}
