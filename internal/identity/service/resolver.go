package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	identitymetrics "wellgate/internal/identity/metrics"
	"wellgate/internal/identity/models"
	"wellgate/internal/identity/ports"
	id "wellgate/pkg/domain"
	"wellgate/pkg/platform/circuit"
	"wellgate/pkg/platform/sentinel"
)

// Resolver derives RoleState and fetches profiles for a user id. It is
// shared by the per-principal Manager and the HTTP guard middleware.
//
// Resolution never returns an error: a failed role query degrades to
// all-false flags and a failed scoped-id lookup leaves that role unset, so a
// backend hiccup reduces privileges instead of breaking navigation.
type Resolver struct {
	roles    ports.RoleStore
	profiles ports.ProfileStore
	logger   *slog.Logger
	metrics  *identitymetrics.Metrics
	tracer   trace.Tracer

	// breaker stops hammering a role backend that keeps failing. While
	// open, resolution short-circuits to the degraded all-false state.
	breaker *circuit.Breaker
}

// NewResolver builds a Resolver. Logger must be non-nil; metrics may be nil.
func NewResolver(roles ports.RoleStore, profiles ports.ProfileStore, logger *slog.Logger, m *identitymetrics.Metrics) *Resolver {
	return &Resolver{
		roles:    roles,
		profiles: profiles,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("wellgate/internal/identity"),
		breaker:  circuit.New("role-store"),
	}
}

// ResolveRoles computes the role flags for userID.
//
// Unrecognized role strings in the grant set are skipped without error so
// new backend roles can ship before this service understands them.
func (r *Resolver) ResolveRoles(ctx context.Context, userID id.UserID) models.RoleState {
	ctx, span := r.tracer.Start(ctx, "identity.ResolveRoles",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	r.metrics.IncRoleResolutions()

	var state models.RoleState
	if !r.breaker.Allow() {
		r.logger.DebugContext(ctx, "role store breaker open, defaulting to no roles",
			"user_id", userID)
		return state
	}

	grants, err := r.roles.RolesByUserID(ctx, userID)
	if err != nil {
		r.metrics.IncRoleResolutionErrors()
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.ErrorContext(ctx, "role store breaker opened", "breaker", r.breaker.Name())
		}
		r.logger.WarnContext(ctx, "role lookup failed, defaulting to no roles",
			"user_id", userID, "error", err)
		return state
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "role store breaker closed", "breaker", r.breaker.Name())
	}

	for _, grant := range grants {
		switch id.Role(grant) {
		case id.RoleFacilitator:
			state.IsAdmin = true
		case id.RoleCompanyManager:
			companyID, err := r.roles.CompanyIDByManager(ctx, userID)
			if err != nil {
				r.metrics.IncRoleResolutionErrors()
				r.logger.WarnContext(ctx, "manager company lookup failed, leaving manager role unset",
					"user_id", userID, "error", err)
				continue
			}
			if companyID != nil {
				state.IsManager = true
				state.ManagerCompanyID = companyID
			}
		case id.RoleParticipant:
			participantID, err := r.roles.ParticipantIDByUser(ctx, userID)
			if err != nil {
				r.metrics.IncRoleResolutionErrors()
				r.logger.WarnContext(ctx, "participant lookup failed, leaving participant role unset",
					"user_id", userID, "error", err)
				continue
			}
			if participantID != nil {
				state.IsParticipant = true
				state.ParticipantID = participantID
			}
		default:
			r.logger.DebugContext(ctx, "ignoring unrecognized role grant",
				"user_id", userID, "role", grant)
		}
	}
	return state
}

// FetchProfile returns the profile for userID, or nil when it is missing or
// the fetch failed. A nil profile is a degraded state, not an error.
func (r *Resolver) FetchProfile(ctx context.Context, userID id.UserID) *models.Profile {
	profile, err := r.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		r.metrics.IncProfileFetchFailures()
		r.logger.WarnContext(ctx, "profile fetch failed, continuing without profile",
			"user_id", userID, "error", err)
		return nil
	}
	return profile
}
