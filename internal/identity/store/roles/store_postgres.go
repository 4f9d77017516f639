package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "wellgate/pkg/domain"
)

// Postgres answers role queries from the platform database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a Postgres-backed role store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// RolesByUserID returns every role-name grant held by the user.
func (s *Postgres) RolesByUserID(ctx context.Context, userID id.UserID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	var grants []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		grants = append(grants, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}
	return grants, nil
}

// CompanyIDByManager returns the single company the user manages, or nil.
func (s *Postgres) CompanyIDByManager(ctx context.Context, userID id.UserID) (*id.CompanyID, error) {
	var raw uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM companies WHERE manager_user_id = $1`, uuid.UUID(userID)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query managed company: %w", err)
	}
	companyID := id.CompanyID(raw)
	return &companyID, nil
}

// ParticipantIDByUser returns the participant record bound to the user, or nil.
func (s *Postgres) ParticipantIDByUser(ctx context.Context, userID id.UserID) (*id.ParticipantID, error) {
	var raw uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM participants WHERE user_id = $1`, uuid.UUID(userID)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query participant: %w", err)
	}
	participantID := id.ParticipantID(raw)
	return &participantID, nil
}
