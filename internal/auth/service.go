// Package auth はメールアドレスによるログイン、管理者認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/founderhub/internal/model"
	"github.com/hitoshi/founderhub/internal/repository"
)

// UserStore は認証で使用するユーザー操作のインターフェース。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge     int    // セッション有効期間（秒）
	AdminPasswordHash string // 管理者パスワードのbcryptハッシュ
}

// LoginInput はログイン・新規登録のリクエスト。
type LoginInput struct {
	Email   string
	Name    string
	Company string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users       UserStore
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(users UserStore, sessionRepo repository.SessionRepository, config ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:       users,
		sessionRepo: sessionRepo,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// HashPassword は管理者パスワードのbcryptハッシュを生成する。
// ADMIN_PASSWORDのみが設定されている場合に起動時に使用する。
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}
	return string(hash), nil
}

// Login はメールアドレスでログインし、セッションを発行する。
// 登録済みのメールアドレス（大文字小文字を区別しない）はそのままログインし、
// 未登録の場合は名前を必須としてユーザーを作成する。
func (s *Service) Login(ctx context.Context, in LoginInput) (*model.Session, *model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, nil, model.NewInvalidRequestError("メールアドレスが空です")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil {
		user, err = s.signUp(ctx, email, in)
		if err != nil {
			return nil, nil, err
		}
	} else {
		s.logger.InfoContext(ctx, "existing user logged in", slog.String("user_id", user.ID))
	}

	session, err := s.createSession(ctx, user.ID, model.SessionKindUser)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, user, nil
}

func (s *Service) signUp(ctx context.Context, email string, in LoginInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewInvalidRequestError("新規登録には名前が必要です")
	}

	now := s.now().UTC()
	user := &model.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Company:   strings.TrimSpace(in.Company),
		Role:      "founder",
		Skills:    []model.Skill{},
		Level:     1,
		Badges:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// 同じメールアドレスで同時に登録された場合は既存ユーザーとしてログインする
		existing, findErr := s.users.FindByEmail(ctx, email)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "new user created",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)
	return user, nil
}

// AdminLogin は管理者パスワードを検証し、管理者セッションを発行する。
func (s *Service) AdminLogin(ctx context.Context, password string) (*model.Session, error) {
	if s.config.AdminPasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}
	err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		s.logger.WarnContext(ctx, "admin login failed")
		return nil, model.NewInvalidCredentialsError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify admin password: %w", err)
	}

	session, err := s.createSession(ctx, "", model.SessionKindAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin session: %w", err)
	}
	s.logger.InfoContext(ctx, "admin logged in")
	return session, nil
}

// Logout はセッションを破棄する。ユーザー・管理者セッションの両方に使用する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.logger.InfoContext(ctx, "session closed", slog.String("session_id", sessionID))
	return nil
}

// CurrentUser はユーザーセッションからログイン中のユーザーを取得する。
// セッションが無効な場合はUNAUTHORIZEDを返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Kind != model.SessionKindUser {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string, kind model.SessionKind) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
