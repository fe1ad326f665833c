package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
)

const (
	googleIssuerURL          = "https://accounts.google.com"
	defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// HTTPClient はGoogleへのリクエストに使うクライアント。nilの場合は10秒タイムアウトのクライアント。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleOAuthProvider はGoogle OAuth 2.0（認可コードフロー）による認証を提供する。
// トークン交換はoauth2、ユーザー情報の取得はOIDCのUserInfoエンドポイントで行う。
type GoogleOAuthProvider struct {
	oauth    *oauth2.Config
	provider *oidc.Provider
	client   *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
// ディスカバリーは行わず、Googleの既知のエンドポイントを使う。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := google.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	userInfoURL := config.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	providerConfig := &oidc.ProviderConfig{
		IssuerURL:   googleIssuerURL,
		AuthURL:     endpoint.AuthURL,
		TokenURL:    endpoint.TokenURL,
		UserInfoURL: userInfoURL,
	}

	return &GoogleOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		provider: providerConfig.NewProvider(context.Background()),
		client:   client,
	}
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
// アカウント選択画面を常に表示し、ログアウト直後に別アカウントを選べるようにする。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}

	// oauth2とoidcはどちらもコンテキストのHTTPクライアントを使う
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}

	var extra struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := info.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to parse user info claims: %w", err)
	}

	photo := extra.Picture
	if !strings.HasPrefix(photo, "https://") {
		photo = ""
	}

	return &OAuthUserInfo{
		ProviderUserID: info.Subject,
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
		Name:           extra.Name,
		PhotoURL:       photo,
		Provider:       model.ProviderGoogle,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
