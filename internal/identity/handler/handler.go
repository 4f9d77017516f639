// Package handler exposes the authentication and session HTTP surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wellgate/internal/audit"
	"wellgate/internal/guard"
	identitymetrics "wellgate/internal/identity/metrics"
	"wellgate/internal/identity/models"
	"wellgate/internal/identity/ports"
	"wellgate/internal/identity/service"
	dErrors "wellgate/pkg/domain-errors"
	"wellgate/pkg/platform/httputil"
	platformstrings "wellgate/pkg/platform/strings"
	"wellgate/pkg/requestcontext"
)

// resetRedeemer is implemented by auth clients that complete password
// resets locally (see authclient.Local). Hosted backends finish the flow
// through their own emailed link, so the confirm route is mounted only
// when the wired client supports it.
type resetRedeemer interface {
	RedeemResetToken(ctx context.Context, token, newPassword string) error
}

// Handler serves the /auth routes.
type Handler struct {
	auth     ports.AuthClient
	resolver *service.Resolver
	profiles ports.ProfileStore
	logger   *slog.Logger
	metrics  *identitymetrics.Metrics
	auditor  audit.Publisher

	resetRedirect string
}

// New builds the auth handler. metrics and auditor may be nil.
func New(auth ports.AuthClient, resolver *service.Resolver, profiles ports.ProfileStore,
	logger *slog.Logger, m *identitymetrics.Metrics, auditor audit.Publisher, resetRedirect string) *Handler {
	return &Handler{
		auth:          auth,
		resolver:      resolver,
		profiles:      profiles,
		logger:        logger,
		metrics:       m,
		auditor:       auditor,
		resetRedirect: resetRedirect,
	}
}

// Routes mounts the auth surface. requireSession gates the routes that need
// an authenticated principal.
func (h *Handler) Routes(requireSession func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.signUp)
	r.Post("/signin", h.signIn)
	r.Post("/signout", h.signOut)
	r.Post("/reset-password", h.resetPassword)
	if rr, ok := h.auth.(resetRedeemer); ok {
		r.Post("/reset-password/confirm", h.confirmReset(rr))
	}

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/session", h.session)
		r.Put("/password", h.updatePassword)
		r.Put("/profile", h.updateProfile)
	})
	return r
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at"`
}

func toSessionResponse(sess *models.Session) sessionResponse {
	return sessionResponse{
		Token:     sess.Token,
		UserID:    sess.UserID.String(),
		Email:     sess.Email,
		ExpiresAt: sess.ExpiresAt.Unix(),
	}
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	sess, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncSignUps()
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	sess, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.IncSignInFailures()
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncSignIns()
	h.emitAudit(r, audit.ActionSignIn, sess.UserID.String())
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	token := guard.TokenFromRequest(r)

	var actorID string
	if sess, err := h.auth.GetSession(r.Context(), token); err == nil && sess != nil {
		actorID = sess.UserID.String()
	}

	if err := h.auth.SignOut(r.Context(), token); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncSignOuts()
	if actorID != "" {
		h.emitAudit(r, audit.ActionSignOut, actorID)
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.auth.ResetPasswordForEmail(r.Context(), req.Email, h.resetRedirect); err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Always 202: the response must not reveal whether the email exists.
	w.WriteHeader(http.StatusAccepted)
}

type confirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) confirmReset(rr resetRedeemer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmResetRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		if err := rr.RedeemResetToken(r.Context(), req.Token, req.NewPassword); err != nil {
			httputil.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// session reports the caller's identity snapshot: the resolved role flags
// plus profile. Loading is always false here; by the time this handler
// runs, resolution has completed synchronously.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	var email string
	if sess, err := h.auth.GetSession(ctx, requestcontext.Token(ctx)); err == nil && sess != nil {
		email = sess.Email
	}

	snap := models.Snapshot{
		Identity: models.AuthenticatedIdentity{
			UserID:  userID,
			Email:   email,
			Profile: h.resolver.FetchProfile(ctx, userID),
		},
		Roles: h.resolver.ResolveRoles(ctx, userID),
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

type updatePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	userID := requestcontext.UserID(r.Context())
	if err := h.auth.UpdatePassword(r.Context(), userID, req.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateProfileRequest struct {
	DisplayName    string   `json:"display_name"`
	AvatarURL      string   `json:"avatar_url"`
	LogoURL        string   `json:"logo_url"`
	ThemeColor     string   `json:"theme_color"`
	Certifications []string `json:"certifications"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ctx := r.Context()
	profile := &models.Profile{
		UserID:         requestcontext.UserID(ctx),
		DisplayName:    req.DisplayName,
		AvatarURL:      req.AvatarURL,
		LogoURL:        req.LogoURL,
		ThemeColor:     req.ThemeColor,
		Certifications: platformstrings.DedupeAndTrim(req.Certifications),
		UpdatedAt:      requestcontext.Now(ctx),
	}
	if err := h.profiles.Upsert(ctx, profile); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) emitAudit(r *http.Request, action audit.Action, actorID string) {
	if h.auditor == nil {
		return
	}
	if err := h.auditor.Emit(r.Context(), audit.Event{Action: action, ActorID: actorID}); err != nil {
		h.logger.WarnContext(r.Context(), "audit emit failed", "action", action, "error", err)
	}
}
