// Package user はユーザーディレクトリのドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/portfolio-intel/internal/model"
	"github.com/hitoshi/portfolio-intel/internal/repository"
)

// WatchlistDeleter はウォッチリストの削除インターフェース。
type WatchlistDeleter interface {
	Delete(ctx context.Context, userID string) error
}

// Service はユーザーディレクトリのサービス層。
// パスワードハッシュはこの層の呼び出し元（認証サービス）以外に渡さない。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	watchlists  WatchlistDeleter
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	watchlists WatchlistDeleter,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		watchlists:  watchlists,
		now:         time.Now,
	}
}

// GetByID は指定IDのユーザーを返す。存在しない場合はnilを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeFailure(ctx, "find_user_by_id", id, err)
	}
	return user, nil
}

// GetByUsername はユーザー名でユーザーを返す。存在しない場合はnilを返す。
func (s *Service) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, storeFailure(ctx, "find_user_by_username", "", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
// ユーザー名の重複は事前チェックと一意制約の両方で検出し、USERNAME_TAKENを返す。
func (s *Service) Create(ctx context.Context, username, passwordHash string) (*model.User, error) {
	existing, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewUsernameTakenError()
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, model.NewUsernameTakenError()
		}
		return nil, storeFailure(ctx, "create_user", user.ID, err)
	}

	return user, nil
}

// ListAll は全ユーザーの公開情報を返す。
func (s *Service) ListAll(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, storeFailure(ctx, "list_users", "", err)
	}

	public := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return public, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: watchlist → sessions → user
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します", slog.String("user_id", userID))

	if s.watchlists != nil {
		if err := s.watchlists.Delete(ctx, userID); err != nil {
			return fmt.Errorf("ウォッチリストの削除に失敗しました: %w", err)
		}
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return storeFailure(ctx, "delete_user_sessions", userID, err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return storeFailure(ctx, "delete_user", userID, err)
	}

	slog.Info("退会処理が完了しました", slog.String("user_id", userID))
	return nil
}

// storeFailure はストアエラーをログに残し、利用者向けのAPIErrorに変換する。
func storeFailure(ctx context.Context, op, userID string, err error) error {
	slog.ErrorContext(ctx, "user store operation failed",
		slog.String("operation", op),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	return model.FromStoreError(err)
}
