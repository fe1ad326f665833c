// Package auth はメールアドレス・パスワード認証、Google OAuth認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/repository"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 8
	// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
	maxPasswordBytes = 72
	maxDisplayName   = 100
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	PhotoURL       string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time

	// dummyHash は存在しないアカウントへのログイン試行でも比較処理を行うためのハッシュ。
	dummyHash []byte
}

// NewService はServiceを生成する。
// oauthがnilの場合、Googleログインは利用不可として扱う。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("nexus-dummy-password"), config.BcryptCost)
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
		dummyHash:   dummy,
	}
}

// SignUp はメールアドレスとパスワードでアカウントを作成し、セッションを発行する。
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*model.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if len([]rune(displayName)) > maxDisplayName {
		return nil, model.NewInvalidProfileError("display_name must be at most 100 characters")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailInUseError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	identity := &model.Identity{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Provider:       model.ProviderPassword,
		ProviderUserID: email,
		PasswordHash:   string(hash),
		CreatedAt:      now,
	}
	if err := s.userRepo.CreateWithIdentity(ctx, user, identity); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user signed up",
		slog.String("user_id", user.ID),
		slog.String("provider", model.ProviderPassword),
	)

	return s.createSession(ctx, user.ID)
}

// SignIn はメールアドレスとパスワードを検証し、セッションを発行する。
// アカウントの有無とパスワード誤りは区別せずINVALID_CREDENTIALSを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, model.ProviderPassword, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil || identity.PasswordHash == "" {
		// 応答時間でアカウントの有無が分からないよう比較だけは行う
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user signed in",
		slog.String("user_id", identity.UserID),
		slog.String("provider", model.ProviderPassword),
	)

	return s.createSession(ctx, identity.UserID)
}

// GoogleEnabled はGoogleログインが設定されているかを返す。
func (s *Service) GoogleEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", model.NewOAuthUnavailableError()
	}
	return s.oauth.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 既存のidentityがあればそのユーザーでログインする。
// なければ確認済みメールアドレスが一致するユーザーにidentityを追加し、
// それもなければユーザーとidentityを新規作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if s.oauth == nil {
		return nil, model.NewOAuthUnavailableError()
	}

	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string
	switch {
	case identity != nil:
		userID = identity.UserID
		slog.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	default:
		userID, err = s.linkOrCreateOAuthUser(ctx, userInfo)
		if err != nil {
			return nil, err
		}
	}

	return s.createSession(ctx, userID)
}

func (s *Service) linkOrCreateOAuthUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	now := s.now()
	identity := &model.Identity{
		ID:             uuid.NewString(),
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	if info.EmailVerified && info.Email != "" {
		existing, err := s.userRepo.FindByEmail(ctx, info.Email)
		if err != nil {
			return "", fmt.Errorf("failed to find user by email: %w", err)
		}
		if existing != nil {
			identity.UserID = existing.ID
			if err := s.identRepo.Create(ctx, identity); err != nil {
				return "", fmt.Errorf("failed to link identity: %w", err)
			}
			slog.Info("identity linked to existing user",
				slog.String("user_id", existing.ID),
				slog.String("provider", info.Provider),
			)
			return existing.ID, nil
		}
	}

	user := &model.User{
		ID:          uuid.NewString(),
		Email:       strings.ToLower(info.Email),
		DisplayName: info.Name,
		PhotoURL:    info.PhotoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	identity.UserID = user.ID
	if err := s.userRepo.CreateWithIdentity(ctx, user, identity); err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return user.ID, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションが無効な場合、またはユーザーが削除済みの場合はUNAUTHORIZEDを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// ChangePassword は現在のパスワードを確認したうえでパスワードを変更する。
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, model.ProviderPassword, strings.ToLower(user.Email))
	if err != nil {
		return fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil || identity.UserID != userID {
		return model.NewInvalidRequestError("this account does not use password sign-in")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(currentPassword)); err != nil {
		return model.NewInvalidCredentialsError()
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.identRepo.UpdatePasswordHash(ctx, identity.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password changed", slog.String("user_id", userID))
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// normalizeEmail は前後の空白を除いて小文字化し、形式を検証する。
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewInvalidEmailError()
	}
	return email, nil
}

func validatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return model.NewWeakPasswordError(MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return model.NewInvalidRequestError("password must be at most 72 bytes")
	}
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
