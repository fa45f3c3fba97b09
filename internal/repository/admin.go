package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"drone_chat/internal/domain"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error)
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	CreateSession(ctx context.Context, session *domain.AdminSession) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.AdminSession, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error
	// PurgeSessions deletes sessions that expired or were revoked before cutoff.
	PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

type adminRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAdminRepository(db *pgxpool.Pool, log logger.Logger) AdminRepository {
	return &adminRepository{db: db, log: log}
}

func (r *adminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	query := `
		INSERT INTO admins (id, email, password_hash, display_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		admin.ID, admin.Email, admin.PasswordHash, admin.DisplayName,
		admin.Role, admin.IsActive, admin.CreatedAt, admin.UpdatedAt,
	).Scan(&admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.log.Warn("Admin already exists", "email", admin.Email, "constraint", pgErr.ConstraintName)
			return apperrors.ErrAdminAlreadyExists
		}
		r.log.Error("Failed to create admin", "error", err, "email", admin.Email)
		return fmt.Errorf("failed to create admin: %w", err)
	}

	return nil
}

const adminColumns = `id, email, password_hash, display_name, role, is_active, last_login_at, created_at, updated_at`

func scanAdmin(row pgx.Row) (*domain.Admin, error) {
	admin := &domain.Admin{}
	err := row.Scan(
		&admin.ID, &admin.Email, &admin.PasswordHash, &admin.DisplayName,
		&admin.Role, &admin.IsActive, &admin.LastLoginAt, &admin.CreatedAt, &admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return admin, nil
}

func (r *adminRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	admin, err := scanAdmin(r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		r.log.Error("Failed to get admin by id", "error", err, "admin_id", id)
	}
	return admin, err
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	admin, err := scanAdmin(r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = $1`, email))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		r.log.Error("Failed to get admin by email", "error", err, "email", email)
	}
	return admin, err
}

func (r *adminRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE admins SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		r.log.Error("Failed to update last login", "error", err, "admin_id", id)
	}
	return err
}

func (r *adminRepository) CreateSession(ctx context.Context, session *domain.AdminSession) error {
	query := `
		INSERT INTO admin_sessions (id, admin_id, refresh_token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, session.ID, session.AdminID, session.RefreshTokenHash, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		r.log.Error("Failed to create admin session", "error", err, "admin_id", session.AdminID)
	}
	return err
}

func (r *adminRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.AdminSession, error) {
	query := `
		SELECT id, admin_id, refresh_token_hash, created_at, expires_at, revoked_at, revoked_reason
		FROM admin_sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
	`

	session := &domain.AdminSession{}
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.AdminID, &session.RefreshTokenHash,
		&session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.RevokedReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get admin session", "error", err)
		return nil, err
	}
	return session, nil
}

func (r *adminRepository) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE admin_sessions SET revoked_at = now(), revoked_reason = $2 WHERE id = $1 AND revoked_at IS NULL`,
		sessionID, reason,
	)
	if err != nil {
		r.log.Error("Failed to revoke admin session", "error", err, "session_id", sessionID)
	}
	return err
}

func (r *adminRepository) PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM admin_sessions WHERE expires_at < $1 OR revoked_at < $1`,
		cutoff,
	)
	if err != nil {
		r.log.Error("Failed to purge admin sessions", "error", err)
		return 0, err
	}
	return tag.RowsAffected(), nil
}
