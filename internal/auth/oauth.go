package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/hitoshi/lunchman/internal/model"
)

// プロバイダ名。users.providerに保存される。
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

const (
	defaultGoogleUserInfoURL   = "https://www.googleapis.com/oauth2/v3/userinfo"
	defaultFacebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,email"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダ名を返す。
	Name() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*model.ExternalIdentity, error)
}

// ProviderConfig はOAuthプロバイダーの設定。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なエンドポイント
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// OAuth2Provider はx/oauth2によるAuthorization Codeフローと
// ユーザー情報エンドポイントの呼び出しを行う。
type OAuth2Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	decode      func(body []byte) (*model.ExternalIdentity, error)
}

// NewGoogleProvider はGoogle OAuth 2.0のプロバイダーを生成する。
func NewGoogleProvider(cfg ProviderConfig) *OAuth2Provider {
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = endpoints.Google
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultGoogleUserInfoURL
	}
	return newOAuth2Provider(ProviderGoogle, cfg, []string{"openid", "email", "profile"}, decodeGoogleUserInfo)
}

// NewFacebookProvider はFacebook Loginのプロバイダーを生成する。
func NewFacebookProvider(cfg ProviderConfig) *OAuth2Provider {
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = endpoints.Facebook
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultFacebookUserInfoURL
	}
	return newOAuth2Provider(ProviderFacebook, cfg, []string{"email", "public_profile"}, decodeFacebookUserInfo)
}

func newOAuth2Provider(name string, cfg ProviderConfig, scopes []string, decode func([]byte) (*model.ExternalIdentity, error)) *OAuth2Provider {
	return &OAuth2Provider{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoint,
			Scopes:       scopes,
		},
		userInfoURL: cfg.UserInfoURL,
		decode:      decode,
	}
}

// Name はプロバイダ名を返す。
func (p *OAuth2Provider) Name() string {
	return p.name
}

// GetLoginURL は認証URLを生成する。
func (p *OAuth2Provider) GetLoginURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *OAuth2Provider) ExchangeCode(ctx context.Context, code string) (*model.ExternalIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	body, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	identity, err := p.decode(body)
	if err != nil {
		return nil, err
	}
	identity.Provider = p.name
	return identity, nil
}

// fetchUserInfo はアクセストークン付きクライアントでユーザー情報を取得する。
func (p *OAuth2Provider) fetchUserInfo(ctx context.Context, token *oauth2.Token) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func decodeGoogleUserInfo(body []byte) (*model.ExternalIdentity, error) {
	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}
	return &model.ExternalIdentity{UID: info.Sub, Name: info.Name, Email: info.Email}, nil
}

// facebookUserInfo はGraph APIの/meレスポンス。
type facebookUserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func decodeFacebookUserInfo(body []byte) (*model.ExternalIdentity, error) {
	var info facebookUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("empty id in user info response")
	}
	return &model.ExternalIdentity{UID: info.ID, Name: info.Name, Email: info.Email}, nil
}

// compile-time interface check
var _ OAuthProvider = (*OAuth2Provider)(nil)
