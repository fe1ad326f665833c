package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/repository"
)

// --- インメモリのリポジトリ ---

type memStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	identities map[string]*model.Identity // key: provider + "|" + providerUserID
	sessions   map[string]*model.Session

	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]*model.User),
		identities: make(map[string]*model.Identity),
		sessions:   make(map[string]*model.Session),
	}
}

type memUserRepo struct{ *memStore }
type memIdentityRepo struct{ *memStore }
type memSessionRepo struct{ *memStore }

func (r memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (r memUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.users[user.ID] = user
	r.identities[identity.Provider+"|"+identity.ProviderUserID] = identity
	return nil
}

func (r memUserRepo) MergeProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error) {
	return nil, errors.New("not implemented")
}

func (r memUserRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r memIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identities[provider+"|"+providerUserID], nil
}

func (r memIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[identity.Provider+"|"+identity.ProviderUserID] = identity
	return nil
}

func (r memIdentityRepo) UpdatePasswordHash(ctx context.Context, identityID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ident := range r.identities {
		if ident.ID == identityID && ident.Provider == model.ProviderPassword {
			ident.PasswordHash = passwordHash
			return nil
		}
	}
	return errors.New("password identity not found")
}

func (r memSessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r memSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	if s == nil || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return s, nil
}

func (r memSessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r memSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, errors.New("not configured")
}

// --- compile-time interface checks ---
var _ repository.UserRepository = memUserRepo{}
var _ repository.IdentityRepository = memIdentityRepo{}
var _ repository.SessionRepository = memSessionRepo{}
var _ OAuthProvider = (*mockOAuthProvider)(nil)

// --- ヘルパー ---

func newTestService(store *memStore, oauth OAuthProvider) *Service {
	return NewService(oauth, memUserRepo{store}, memIdentityRepo{store}, memSessionRepo{store},
		ServiceConfig{SessionMaxAge: 3600, BcryptCost: bcrypt.MinCost})
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError %s", err, code)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

// --- テスト ---

func TestSignUp_CreatesUserIdentityAndSession(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	session, err := svc.SignUp(context.Background(), "  Ada@Example.com ", "correct horse", " Ada Lovelace ")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if d := time.Until(session.ExpiresAt); d < 59*time.Minute || d > time.Hour {
		t.Errorf("session expires in %v, want about 1h", d)
	}

	user := store.users[session.UserID]
	if user == nil {
		t.Fatal("user should be created")
	}
	if user.Email != "ada@example.com" || user.DisplayName != "Ada Lovelace" {
		t.Errorf("user = %+v", user)
	}

	identity := store.identities["password|ada@example.com"]
	if identity == nil {
		t.Fatal("password identity should be created")
	}
	if identity.PasswordHash == "correct horse" {
		t.Error("password must be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte("correct horse")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}
}

func TestSignUp_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantCode string
	}{
		{"不正なメールアドレス", "not-an-email", "correct horse", model.ErrCodeInvalidEmail},
		{"表示名付きのアドレス", "Ada <ada@example.com>", "correct horse", model.ErrCodeInvalidEmail},
		{"短いパスワード", "ada@example.com", "short", model.ErrCodeWeakPassword},
		{"長すぎるパスワード", "ada@example.com", strings.Repeat("a", 73), model.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newMemStore(), nil)
			_, err := svc.SignUp(context.Background(), tt.email, tt.password, "")
			assertAPIErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestSignUp_EmailInUse(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "ada@example.com", "correct horse", ""); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	_, err := svc.SignUp(ctx, "ADA@example.com", "another pass", "")
	assertAPIErrorCode(t, err, model.ErrCodeEmailInUse)
}

func TestSignUp_RepositoryError(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("db down")
	svc := newTestService(store, nil)

	_, err := svc.SignUp(context.Background(), "ada@example.com", "correct horse", "")
	if err == nil || !errors.Is(err, store.createErr) {
		t.Errorf("err = %v, want wrapped db error", err)
	}
}

func TestSignIn(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	signup, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	t.Run("正しい認証情報", func(t *testing.T) {
		session, err := svc.SignIn(ctx, " ADA@example.com", "correct horse")
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		if session.UserID != signup.UserID {
			t.Errorf("UserID = %q, want %q", session.UserID, signup.UserID)
		}
		if session.ID == signup.ID {
			t.Error("a new session should be issued")
		}
	})

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"パスワード誤り", "ada@example.com", "wrong horse"},
		{"存在しないアカウント", "nobody@example.com", "correct horse"},
		{"空のメールアドレス", "", "correct horse"},
		{"空のパスワード", "ada@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignIn(ctx, tt.email, tt.password)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
		})
	}
}

func TestGetLoginURL(t *testing.T) {
	t.Run("Google設定あり", func(t *testing.T) {
		provider := &mockOAuthProvider{
			getLoginURLFn: func(state string) string {
				return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
			},
		}
		svc := newTestService(newMemStore(), provider)

		got, err := svc.GetLoginURL("test-state")
		if err != nil {
			t.Fatalf("GetLoginURL() error = %v", err)
		}
		if want := "https://accounts.google.com/o/oauth2/v2/auth?state=test-state"; got != want {
			t.Errorf("GetLoginURL() = %q, want %q", got, want)
		}
		if !svc.GoogleEnabled() {
			t.Error("GoogleEnabled() = false, want true")
		}
	})

	t.Run("Google設定なし", func(t *testing.T) {
		svc := newTestService(newMemStore(), nil)
		_, err := svc.GetLoginURL("state")
		assertAPIErrorCode(t, err, model.ErrCodeOAuthUnavailable)

		_, err = svc.HandleCallback(context.Background(), "code")
		assertAPIErrorCode(t, err, model.ErrCodeOAuthUnavailable)
	})
}

func googleUser(verified bool) *mockOAuthProvider {
	return &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-123",
				Email:          "Ada@Example.com",
				EmailVerified:  verified,
				Name:           "Ada",
				PhotoURL:       "https://lh3.googleusercontent.com/a/ada",
				Provider:       model.ProviderGoogle,
			}, nil
		},
	}
}

func TestHandleCallback_NewUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, googleUser(true))

	session, err := svc.HandleCallback(context.Background(), "auth-code-123")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	user := store.users[session.UserID]
	if user == nil {
		t.Fatal("user should be created")
	}
	if user.Email != "ada@example.com" || user.DisplayName != "Ada" || user.PhotoURL == "" {
		t.Errorf("user = %+v", user)
	}
	if ident := store.identities["google|google-user-123"]; ident == nil || ident.UserID != user.ID {
		t.Errorf("google identity = %+v, want linked to %s", ident, user.ID)
	}
}

func TestHandleCallback_ExistingIdentity(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, googleUser(true))
	ctx := context.Background()

	first, err := svc.HandleCallback(ctx, "code-1")
	if err != nil {
		t.Fatalf("first HandleCallback() error = %v", err)
	}
	second, err := svc.HandleCallback(ctx, "code-2")
	if err != nil {
		t.Fatalf("second HandleCallback() error = %v", err)
	}
	if first.UserID != second.UserID {
		t.Errorf("UserID = %q, want %q", second.UserID, first.UserID)
	}
	if len(store.users) != 1 {
		t.Errorf("users = %d, want 1", len(store.users))
	}
}

// TestHandleCallback_LinksVerifiedEmail は確認済みメールアドレスが一致する既存ユーザーに
// Google identityが追加されることを検証する。
func TestHandleCallback_LinksVerifiedEmail(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	signup, err := newTestService(store, nil).SignUp(ctx, "ada@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	session, err := newTestService(store, googleUser(true)).HandleCallback(ctx, "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session.UserID != signup.UserID {
		t.Errorf("UserID = %q, want existing %q", session.UserID, signup.UserID)
	}
	if len(store.users) != 1 {
		t.Errorf("users = %d, want 1", len(store.users))
	}
}

// TestHandleCallback_UnverifiedEmailNotLinked は未確認のメールアドレスでは既存ユーザーに紐付けないことを検証する。
func TestHandleCallback_UnverifiedEmailNotLinked(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	signup, err := newTestService(store, nil).SignUp(ctx, "ada@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	session, err := newTestService(store, googleUser(false)).HandleCallback(ctx, "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session.UserID == signup.UserID {
		t.Error("unverified email must not be linked to an existing user")
	}
}

func TestHandleCallback_ExchangeError(t *testing.T) {
	svc := newTestService(newMemStore(), &mockOAuthProvider{})
	if _, err := svc.HandleCallback(context.Background(), "code"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSignOutAndGetCurrentUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "Ada")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	user, err := svc.GetCurrentUser(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("Email = %q", user.Email)
	}

	if err := svc.SignOut(ctx, session.ID); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	_, err = svc.GetCurrentUser(ctx, session.ID)
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)

	_, err = svc.GetCurrentUser(ctx, "")
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)

	if err := svc.SignOut(ctx, ""); err == nil {
		t.Error("SignOut(\"\") should return error")
	}
}

func TestGetCurrentUser_DeletedUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	delete(store.users, session.UserID)

	_, err = svc.GetCurrentUser(ctx, session.ID)
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestChangePassword(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, "ada@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	t.Run("現在のパスワード誤り", func(t *testing.T) {
		err := svc.ChangePassword(ctx, session.UserID, "wrong horse", "battery staple")
		assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
	})

	t.Run("新しいパスワードが短い", func(t *testing.T) {
		err := svc.ChangePassword(ctx, session.UserID, "correct horse", "short")
		assertAPIErrorCode(t, err, model.ErrCodeWeakPassword)
	})

	t.Run("存在しないユーザー", func(t *testing.T) {
		err := svc.ChangePassword(ctx, "nobody", "correct horse", "battery staple")
		assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
	})

	t.Run("変更成功", func(t *testing.T) {
		if err := svc.ChangePassword(ctx, session.UserID, "correct horse", "battery staple"); err != nil {
			t.Fatalf("ChangePassword() error = %v", err)
		}
		if _, err := svc.SignIn(ctx, "ada@example.com", "battery staple"); err != nil {
			t.Errorf("SignIn with new password error = %v", err)
		}
		_, err := svc.SignIn(ctx, "ada@example.com", "correct horse")
		assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
	})
}

func TestChangePassword_GoogleOnlyAccount(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, googleUser(true))
	ctx := context.Background()

	session, err := svc.HandleCallback(ctx, "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	err = svc.ChangePassword(ctx, session.UserID, "anything", "battery staple")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRequest)
}
