package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"wellgate/internal/identity/models"
	id "wellgate/pkg/domain"
	"wellgate/pkg/platform/sentinel"
)

// Postgres stores profiles in the platform database. Certifications are held
// as a jsonb array so the row scans through database/sql without a
// driver-specific array type.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a Postgres-backed profile store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// FindByUserID returns the profile row or sentinel.ErrNotFound.
func (s *Postgres) FindByUserID(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	var (
		p        models.Profile
		rawID    uuid.UUID
		rawCerts []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, avatar_url, logo_url, theme_color, certifications, updated_at
		FROM profiles WHERE user_id = $1`, uuid.UUID(userID)).
		Scan(&rawID, &p.DisplayName, &p.AvatarURL, &p.LogoURL, &p.ThemeColor, &rawCerts, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	p.UserID = id.UserID(rawID)
	if len(rawCerts) > 0 {
		if err := json.Unmarshal(rawCerts, &p.Certifications); err != nil {
			return nil, fmt.Errorf("decode certifications: %w", err)
		}
	}
	return &p, nil
}

// Upsert creates or replaces the profile row.
func (s *Postgres) Upsert(ctx context.Context, profile *models.Profile) error {
	certs, err := json.Marshal(profile.Certifications)
	if err != nil {
		return fmt.Errorf("encode certifications: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, avatar_url, logo_url, theme_color, certifications, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			logo_url = EXCLUDED.logo_url,
			theme_color = EXCLUDED.theme_color,
			certifications = EXCLUDED.certifications,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(profile.UserID), profile.DisplayName, profile.AvatarURL,
		profile.LogoURL, profile.ThemeColor, certs, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
