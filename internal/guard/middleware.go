package guard

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"wellgate/internal/identity/models"
	"wellgate/internal/identity/ports"
	"wellgate/internal/identity/service"
	"wellgate/internal/impersonation"
	dErrors "wellgate/pkg/domain-errors"
	"wellgate/pkg/platform/httputil"
	"wellgate/pkg/requestcontext"
)

// SessionCookie is the cookie carrying the session token for browser
// navigation; API clients send a bearer header instead.
const SessionCookie = "wellgate_session"

// Middleware authenticates a request, derives its identity snapshot, and
// applies guard decisions to HTTP.
type Middleware struct {
	auth      ports.AuthClient
	resolver  *service.Resolver
	overlay   *impersonation.Overlay
	logger    *slog.Logger
	decisions *prometheus.CounterVec
}

// NewMiddleware builds the guard middleware. reg may be nil to skip metrics.
func NewMiddleware(auth ports.AuthClient, resolver *service.Resolver, overlay *impersonation.Overlay, logger *slog.Logger, reg prometheus.Registerer) *Middleware {
	m := &Middleware{
		auth:     auth,
		resolver: resolver,
		overlay:  overlay,
		logger:   logger,
	}
	if reg != nil {
		m.decisions = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "wellgate_guard_decisions_total",
			Help: "Guard decisions by required role and outcome.",
		}, []string{"role", "outcome"})
	}
	return m
}

// Require gates a subtree behind the requirement. Allowed requests proceed
// with the authenticated user id and token in the context.
func (m *Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := TokenFromRequest(r)
			sess, err := m.auth.GetSession(ctx, token)
			if err != nil {
				m.logger.ErrorContext(ctx, "session validation failed",
					"request_id", requestcontext.RequestID(ctx), "error", err)
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "session validation failed"))
				return
			}

			var (
				snap    models.Snapshot
				current *impersonation.ImpersonatedUser
			)
			if sess != nil {
				snap.Identity = models.AuthenticatedIdentity{
					UserID: sess.UserID,
					Email:  sess.Email,
					Token:  sess.Token,
				}
				snap.Roles = m.resolver.ResolveRoles(ctx, sess.UserID)
				// The persisted copy is consulted directly so a fresh load
				// that has not rehydrated in memory still sees the overlay.
				current = m.overlay.Current(ctx, sess.UserID)
			}

			decision := Decide(req, snap, current, r.URL.RequestURI())
			m.count(req, decision)

			switch decision.Outcome {
			case OutcomeAllow:
				if sess != nil {
					ctx = requestcontext.WithUserID(ctx, sess.UserID)
					ctx = requestcontext.WithToken(ctx, sess.Token)
				}
				next.ServeHTTP(w, r.WithContext(ctx))

			case OutcomeLoading:
				w.Header().Set("Retry-After", "1")
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "loading",
				})

			case OutcomeRedirect:
				http.Redirect(w, r, redirectURL(decision), http.StatusSeeOther)
			}
		})
	}
}

// Authenticate gates a subtree on having a valid session, with no role
// requirement. Unauthenticated API callers get a 401 rather than a
// redirect.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := m.auth.GetSession(ctx, TokenFromRequest(r))
		if err != nil {
			m.logger.ErrorContext(ctx, "session validation failed",
				"request_id", requestcontext.RequestID(ctx), "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "session validation failed"))
			return
		}
		if sess == nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
			return
		}

		ctx = requestcontext.WithUserID(ctx, sess.UserID)
		ctx = requestcontext.WithToken(ctx, sess.Token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest extracts the session token from the bearer header or the
// session cookie, preferring the header.
func TokenFromRequest(r *http.Request) string {
	const bearerPrefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(bearerPrefix) && auth[:len(bearerPrefix)] == bearerPrefix {
		return auth[len(bearerPrefix):]
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// redirectURL appends the originating location and optional reason so the
// login page can send the visitor back after sign-in.
func redirectURL(d Decision) string {
	values := url.Values{}
	if d.From != "" {
		values.Set("from", d.From)
	}
	if d.Reason != "" {
		values.Set("reason", d.Reason)
	}
	if len(values) == 0 {
		return d.Target
	}
	return d.Target + "?" + values.Encode()
}

func (m *Middleware) count(req Requirement, d Decision) {
	if m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(req.Role.String(), outcomeLabel(d.Outcome)).Inc()
}

func outcomeLabel(o Outcome) string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeLoading:
		return "loading"
	default:
		return "redirect"
	}
}
