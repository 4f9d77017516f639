package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"wellgate/internal/identity/models"
	id "wellgate/pkg/domain"
	"wellgate/pkg/platform/sentinel"
)

// Postgres stores credentials in the platform database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a Postgres-backed credential store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create inserts a credential row. A unique-violation on the email index is
// reported as sentinel.ErrConflict.
func (s *Postgres) Create(ctx context.Context, cred *models.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, email, full_name, password_hash, created_at)
		VALUES ($1, lower($2), $3, $4, $5)`,
		uuid.UUID(cred.UserID), strings.TrimSpace(cred.Email), cred.FullName,
		cred.PasswordHash, cred.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// FindByEmail returns the credential or sentinel.ErrNotFound.
func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT user_id, email, full_name, password_hash, created_at
		FROM credentials WHERE email = lower($1)`, strings.TrimSpace(email)))
}

// FindByUserID returns the credential or sentinel.ErrNotFound.
func (s *Postgres) FindByUserID(ctx context.Context, userID id.UserID) (*models.Credential, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT user_id, email, full_name, password_hash, created_at
		FROM credentials WHERE user_id = $1`, uuid.UUID(userID)))
}

// UpdatePassword replaces the stored hash or returns sentinel.ErrNotFound.
func (s *Postgres) UpdatePassword(ctx context.Context, userID id.UserID, hash []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET password_hash = $2 WHERE user_id = $1`,
		uuid.UUID(userID), hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Credential, error) {
	var (
		cred  models.Credential
		rawID uuid.UUID
	)
	err := row.Scan(&rawID, &cred.Email, &cred.FullName, &cred.PasswordHash, &cred.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	cred.UserID = id.UserID(rawID)
	return &cred, nil
}
