package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/portfolio-intel/internal/model"
	"github.com/hitoshi/portfolio-intel/internal/repository"
)

// --- モック定義 ---

// fakeDirectory はユーザー名をキーにしたインメモリのユーザーディレクトリ。
type fakeDirectory struct {
	mu      sync.Mutex
	users   map[string]*model.User
	nextID  int
	findErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]*model.User)}
}

func (d *fakeDirectory) GetByUsername(_ context.Context, username string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	return d.users[username], nil
}

func (d *fakeDirectory) Create(_ context.Context, username, passwordHash string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[username]; ok {
		return nil, model.NewUsernameTakenError()
	}
	d.nextID++
	u := &model.User{ID: fmt.Sprintf("user-%d", d.nextID), Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	d.users[username] = u
	return u, nil
}

type mockWatchlistInit struct {
	initFn func(ctx context.Context, userID string) error
	called []string
}

func (m *mockWatchlistInit) Initialize(ctx context.Context, userID string) error {
	m.called = append(m.called, userID)
	if m.initFn != nil {
		return m.initFn(ctx, userID)
	}
	return nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(context.Context, string) error  { return nil }
func (m *mockSessionRepo) DeleteExpired(context.Context) (int64, error) { return 0, nil }
func (m *mockSessionRepo) Ping(context.Context) error                   { return nil }

// --- compile-time interface checks ---
var _ UserDirectory = (*fakeDirectory)(nil)
var _ WatchlistInitializer = (*mockWatchlistInit)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	return apiErr.Code
}

// --- テスト ---

func TestSignupThenLogin_ReturnsSameUser(t *testing.T) {
	sessions := repository.NewMemorySessionRepo()
	wl := &mockWatchlistInit{}
	svc := NewService(newFakeDirectory(), sessions, wl, ServiceConfig{SessionMaxAge: 86400})
	ctx := context.Background()

	user, session, err := svc.Signup(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if session == nil || len(session.ID) != 64 {
		t.Fatalf("expected 64-char hex session id, got %+v", session)
	}
	if len(wl.called) != 1 || wl.called[0] != user.ID {
		t.Errorf("watchlist Initialize calls = %v, want [%s]", wl.called, user.ID)
	}

	loggedIn, loginSession, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("login user id = %q, want %q", loggedIn.ID, user.ID)
	}
	if loginSession.ID == session.ID {
		t.Error("each login should issue a new session id")
	}

	identity, err := svc.Resolve(ctx, loginSession.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if identity == nil || identity.UserID != user.ID || identity.Username != "alice" {
		t.Errorf("Resolve = %+v", identity)
	}
}

func TestSignup_SessionExpiryFollowsMaxAge(t *testing.T) {
	var saved *model.Session
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, s *model.Session) error {
			saved = s
			return nil
		},
	}
	svc := NewService(newFakeDirectory(), sessions, nil, ServiceConfig{SessionMaxAge: 3600})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, _, err := svc.Signup(context.Background(), "bob", "secret1"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if saved == nil {
		t.Fatal("session was not saved")
	}
	if !saved.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", saved.ExpiresAt, now.Add(time.Hour))
	}
	if saved.Username != "bob" {
		t.Errorf("Username = %q, want bob", saved.Username)
	}
}

func TestSignup_DuplicateUsername(t *testing.T) {
	svc := NewService(newFakeDirectory(), repository.NewMemorySessionRepo(), nil, ServiceConfig{SessionMaxAge: 60})
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "carol", "secret1"); err != nil {
		t.Fatalf("first Signup failed: %v", err)
	}
	_, _, err := svc.Signup(ctx, "carol", "another1")
	if got := apiErrorCode(t, err); got != model.ErrCodeUsernameTaken {
		t.Errorf("code = %q, want %q", got, model.ErrCodeUsernameTaken)
	}
}

func TestSignup_WatchlistFailureDoesNotFailSignup(t *testing.T) {
	wl := &mockWatchlistInit{
		initFn: func(context.Context, string) error { return errors.New("dynamo down") },
	}
	svc := NewService(newFakeDirectory(), repository.NewMemorySessionRepo(), wl, ServiceConfig{SessionMaxAge: 60})

	user, session, err := svc.Signup(context.Background(), "dave", "secret1")
	if err != nil {
		t.Fatalf("Signup should succeed even when watchlist init fails: %v", err)
	}
	if user == nil || session == nil {
		t.Fatal("expected user and session")
	}
}

func TestSignup_ValidationFailsBeforeStorage(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewService(dir, repository.NewMemorySessionRepo(), nil, ServiceConfig{SessionMaxAge: 60})

	_, _, err := svc.Signup(context.Background(), "ab", "secret1")
	if got := apiErrorCode(t, err); got != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", got, model.ErrCodeValidation)
	}
	if len(dir.users) != 0 {
		t.Error("no user should be created on validation failure")
	}
}

func TestLogin_UnknownUserAndWrongPasswordAreIndistinguishable(t *testing.T) {
	svc := NewService(newFakeDirectory(), repository.NewMemorySessionRepo(), nil, ServiceConfig{SessionMaxAge: 60})
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "erin", "secret1"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	_, _, errUnknown := svc.Login(ctx, "nobody", "secret1")
	_, _, errWrong := svc.Login(ctx, "erin", "wrong-password")

	var a, b *model.APIError
	if !errors.As(errUnknown, &a) || !errors.As(errWrong, &b) {
		t.Fatalf("expected APIErrors, got %v / %v", errUnknown, errWrong)
	}
	if a.Code != model.ErrCodeInvalidCredentials || *a != *b {
		t.Errorf("errors differ: %+v vs %+v", a, b)
	}
	if a.Message != "Invalid username or password" {
		t.Errorf("Message = %q", a.Message)
	}
}

func TestLogin_DirectoryErrorPropagates(t *testing.T) {
	dir := newFakeDirectory()
	dir.findErr = model.NewServiceUnavailableError()
	svc := NewService(dir, repository.NewMemorySessionRepo(), nil, ServiceConfig{SessionMaxAge: 60})

	_, _, err := svc.Login(context.Background(), "frank", "secret1")
	if got := apiErrorCode(t, err); got != model.ErrCodeServiceUnavailable {
		t.Errorf("code = %q, want %q", got, model.ErrCodeServiceUnavailable)
	}
}

func TestLogin_SessionStoreFailureIsServiceUnavailable(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewService(dir, repository.NewMemorySessionRepo(), nil, ServiceConfig{SessionMaxAge: 60})
	if _, _, err := svc.Signup(context.Background(), "gina", "secret1"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	svc.sessionRepo = &mockSessionRepo{
		createFn: func(context.Context, *model.Session) error { return errors.New("connection refused") },
	}
	_, _, err := svc.Login(context.Background(), "gina", "secret1")
	if got := apiErrorCode(t, err); got != model.ErrCodeServiceUnavailable {
		t.Errorf("code = %q, want %q", got, model.ErrCodeServiceUnavailable)
	}
}

func TestLogout_IsIdempotent(t *testing.T) {
	sessions := repository.NewMemorySessionRepo()
	svc := NewService(newFakeDirectory(), sessions, nil, ServiceConfig{SessionMaxAge: 60})
	ctx := context.Background()

	_, session, err := svc.Signup(ctx, "hank", "secret1")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.Logout(ctx, session.ID); err != nil {
			t.Fatalf("Logout #%d failed: %v", i+1, err)
		}
	}
	if err := svc.Logout(ctx, ""); err != nil {
		t.Errorf("Logout with empty id should succeed: %v", err)
	}

	identity, err := svc.Resolve(ctx, session.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if identity != nil {
		t.Error("destroyed session should not resolve")
	}
}

func TestResolve_ExpiredOrUnknown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			if id == "expired" {
				return &model.Session{ID: id, UserID: "u1", ExpiresAt: now.Add(-time.Second)}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(newFakeDirectory(), sessions, nil, ServiceConfig{SessionMaxAge: 60})
	svc.now = func() time.Time { return now }

	for _, id := range []string{"", "unknown", "expired"} {
		identity, err := svc.Resolve(context.Background(), id)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", id, err)
		}
		if identity != nil {
			t.Errorf("Resolve(%q) = %+v, want nil", id, identity)
		}
	}
}

func TestResolve_StoreTimeout(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(context.Context, string) (*model.Session, error) {
			return nil, context.DeadlineExceeded
		},
	}
	svc := NewService(newFakeDirectory(), sessions, nil, ServiceConfig{SessionMaxAge: 60})

	_, err := svc.Resolve(context.Background(), "sid")
	if got := apiErrorCode(t, err); got != model.ErrCodeStoreTimeout {
		t.Errorf("code = %q, want %q", got, model.ErrCodeStoreTimeout)
	}
}
