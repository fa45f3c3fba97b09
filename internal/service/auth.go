package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"drone_chat/internal/config"
	"drone_chat/internal/domain"
	"drone_chat/internal/repository"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/jwt"
	"drone_chat/pkg/logger"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*domain.Admin, error)
	Logout(ctx context.Context, refreshToken string) error
	// EnsureBootstrapAdmin creates the configured operator account if it does not exist yet.
	EnsureBootstrapAdmin(ctx context.Context, cfg config.AdminConfig) error
	// PurgeSessions drops refresh sessions that expired or were revoked more than retention ago.
	PurgeSessions(ctx context.Context, retention time.Duration) (int64, error)
}

type LoginResponse struct {
	Admin        *domain.Admin `json:"admin"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type authService struct {
	adminRepo repository.AdminRepository
	audit     AuditService
	jwtCfg    config.JWTConfig
	log       logger.Logger
}

func NewAuthService(adminRepo repository.AdminRepository, audit AuditService, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		adminRepo: adminRepo,
		audit:     audit,
		jwtCfg:    jwtCfg,
		log:       log.With("component", "auth"),
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrValidation)
	}

	admin, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !admin.IsActive {
		return nil, apperrors.ErrAdminDisabled
	}

	tokens, err := s.issueTokens(ctx, admin)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.adminRepo.TouchLastLogin(ctx, admin.ID, now); err != nil {
		s.log.Warn("Failed to record last login", "error", err, "admin_id", admin.ID)
	}
	admin.LastLoginAt = &now

	s.audit.Record(ctx, &admin.ID, domain.ActorRoleAdmin, nil, domain.EventTypeAdminLogin, nil)
	s.log.Info("Admin logged in", "admin_id", admin.ID)

	return &LoginResponse{
		Admin:        admin,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.jwtCfg.RefreshSecret)
	if err != nil {
		return nil, err
	}
	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	session, err := s.adminRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}
	if session.AdminID != adminID {
		return nil, apperrors.ErrInvalidToken
	}

	admin, err := s.activeAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}

	if err := s.adminRepo.RevokeSession(ctx, session.ID, "refreshed"); err != nil {
		s.log.Warn("Failed to revoke rotated session", "error", err, "session_id", session.ID)
	}
	return s.issueTokens(ctx, admin)
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.Admin, error) {
	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.AccessSecret)
	if err != nil {
		return nil, err
	}
	return s.activeAdmin(ctx, claims.UserID)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.adminRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrInvalidToken
		}
		return err
	}
	if err := s.adminRepo.RevokeSession(ctx, session.ID, "logout"); err != nil {
		return err
	}
	s.audit.Record(ctx, &session.AdminID, domain.ActorRoleAdmin, nil, domain.EventTypeAdminLogout, nil)
	return nil
}

func (s *authService) PurgeSessions(ctx context.Context, retention time.Duration) (int64, error) {
	purged, err := s.adminRepo.PurgeSessions(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.log.Info("Purged admin sessions", "count", purged)
	}
	return purged, nil
}

func (s *authService) EnsureBootstrapAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Email == "" {
		return nil
	}

	if _, err := s.adminRepo.GetByEmail(ctx, cfg.Email); err == nil {
		return nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	admin := &domain.Admin{
		ID:           uuid.New(),
		Email:        cfg.Email,
		PasswordHash: string(hash),
		DisplayName:  cfg.DisplayName,
		Role:         domain.AdminRoleOwner,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		// another instance won the race
		if errors.Is(err, apperrors.ErrAdminAlreadyExists) {
			return nil
		}
		return err
	}

	s.audit.Record(ctx, nil, domain.ActorRoleSystem, nil, domain.EventTypeAdminBootstrapped, map[string]interface{}{
		"admin_id": admin.ID.String(),
		"email":    admin.Email,
	})
	s.log.Info("Bootstrap admin created", "email", admin.Email)
	return nil
}

func (s *authService) activeAdmin(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	admin, err := s.adminRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}
	if !admin.IsActive {
		return nil, apperrors.ErrAdminDisabled
	}
	return admin, nil
}

func (s *authService) issueTokens(ctx context.Context, admin *domain.Admin) (*TokenResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(admin.ID, admin.Email, admin.Role, s.jwtCfg.AccessSecret, s.jwtCfg.Issuer, s.jwtCfg.AccessTTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err)
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := jwt.GenerateRefreshToken(admin.ID, s.jwtCfg.RefreshSecret, s.jwtCfg.Issuer, s.jwtCfg.RefreshTTL)
	if err != nil {
		s.log.Error("Failed to generate refresh token", "error", err)
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	session := &domain.AdminSession{
		ID:               uuid.New(),
		AdminID:          admin.ID,
		RefreshTokenHash: hashToken(refreshToken),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.jwtCfg.RefreshTTL),
	}
	if err := s.adminRepo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
