package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
	"github.com/hitoshi/portfolio-intel/internal/repository"
)

// UserDirectory は認証に必要なユーザー操作のインターフェース。
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, username, passwordHash string) (*model.User, error)
}

// WatchlistInitializer はサインアップ時に空のウォッチリストを作成するインターフェース。
type WatchlistInitializer interface {
	Initialize(ctx context.Context, userID string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users       UserDirectory
	sessionRepo repository.SessionRepository
	watchlists  WatchlistInitializer
	config      ServiceConfig
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。watchlistsはnilでもよい。
func NewService(
	users UserDirectory,
	sessionRepo repository.SessionRepository,
	watchlists WatchlistInitializer,
	config ServiceConfig,
) *Service {
	return &Service{
		users:       users,
		sessionRepo: sessionRepo,
		watchlists:  watchlists,
		config:      config,
		now:         time.Now,
	}
}

// Signup はユーザーを作成し、空のウォッチリストを用意してセッションを発行する。
// ウォッチリストの作成に失敗してもサインアップは成功させる。
func (s *Service) Signup(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
	if apiErr := ValidateCredentials(username, password); apiErr != nil {
		return nil, nil, apiErr
	}

	hash, err := HashPassword(password)
	if err != nil {
		slog.Error("password hashing failed", slog.String("error", err.Error()))
		return nil, nil, model.NewInternalError()
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		return nil, nil, err
	}

	if s.watchlists != nil {
		if err := s.watchlists.Initialize(ctx, user.ID); err != nil {
			slog.Warn("failed to initialize watchlist for new user",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("new user signed up", slog.String("user_id", user.ID))
	return user, session, nil
}

// Login は資格情報を検証しセッションを発行する。
// ユーザー不在とパスワード不一致は同一のエラーを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
	if apiErr := ValidateCredentials(username, password); apiErr != nil {
		return nil, nil, apiErr
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		// 応答時間からユーザーの存在を推測されないよう、ダミーのハッシュと比較する
		VerifyPassword(password, s.timingHash())
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return user, session, nil
}

// Logout はセッションを破棄する。存在しないセッションでもエラーにしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		slog.Error("failed to delete session", slog.String("error", err.Error()))
		return model.FromStoreError(err)
	}
	return nil
}

// Resolve はセッションIDから認証済みユーザーを解決する。
// 未指定・不明・期限切れの場合はnilを返す。
func (s *Service) Resolve(ctx context.Context, sessionID string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		slog.Error("failed to resolve session", slog.String("error", err.Error()))
		return nil, model.FromStoreError(err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, nil
	}

	return &model.Identity{UserID: session.UserID, Username: session.Username}, nil
}

// createSession はセッションを作成し永続化する。有効期限は作成時点からの絶対時間。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		slog.Error("failed to generate session ID", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		slog.Error("failed to save session",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.FromStoreError(fmt.Errorf("failed to save session: %w", err))
	}

	return session, nil
}

func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		h, err := HashPassword("timing-equalizer-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
