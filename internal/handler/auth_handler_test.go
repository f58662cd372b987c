package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/lunchman/internal/middleware"
	"github.com/hitoshi/lunchman/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	providerNamesFn  func() []string
	getLoginURLFn    func(provider, state string) (string, error)
	handleCallbackFn func(ctx context.Context, provider, code, organizationID string) (*model.Session, *model.User, error)
	logoutFn         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) ProviderNames() []string {
	if m.providerNamesFn != nil {
		return m.providerNamesFn()
	}
	return nil
}

func (m *mockAuthService) GetLoginURL(provider, state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(provider, state)
	}
	return "", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, provider, code, organizationID string) (*model.Session, *model.User, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, provider, code, organizationID)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func newTestAuthHandler(svc AuthServiceInterface) *AuthHandler {
	return NewAuthHandler(svc, AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		SessionMaxAge: 86400,
	})
}

// --- テスト ---

func TestAuthHandler_Login_RedirectsToProvider(t *testing.T) {
	var gotProvider string
	svc := &mockAuthService{
		getLoginURLFn: func(provider, state string) (string, error) {
			gotProvider = provider
			return "https://www.facebook.com/dialog/oauth?state=" + state, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := newRequest(http.MethodGet, "/auth/facebook/login?organization_id=org-1", "", nil, map[string]string{"provider": "facebook"})
	w := httptest.NewRecorder()
	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if gotProvider != "facebook" {
		t.Errorf("provider = %q, want facebook", gotProvider)
	}

	stateCookie := findCookie(resp, oauthStateCookie)
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("expected oauth_state cookie")
	}
	if !strings.HasSuffix(resp.Header.Get("Location"), "state="+stateCookie.Value) {
		t.Errorf("Location = %q should carry the state cookie value", resp.Header.Get("Location"))
	}

	orgCookie := findCookie(resp, oauthOrgCookie)
	if orgCookie == nil || orgCookie.Value != "org-1" {
		t.Errorf("organization cookie = %+v, want org-1", orgCookie)
	}
}

func TestAuthHandler_Login_UnknownProvider_Returns404(t *testing.T) {
	svc := &mockAuthService{
		getLoginURLFn: func(provider, state string) (string, error) {
			return "", model.NewNotFoundError("認証プロバイダ", provider)
		},
	}
	h := newTestAuthHandler(svc)

	w := httptest.NewRecorder()
	h.Login(w, newRequest(http.MethodGet, "/auth/twitter/login", "", nil, map[string]string{"provider": "twitter"}))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if findCookie(w.Result(), oauthStateCookie) != nil {
		t.Error("state cookie should not be set for unknown provider")
	}
}

func TestAuthHandler_Callback_Success_SetsCookieAndRedirects(t *testing.T) {
	var gotProvider, gotCode, gotOrg string
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, provider, code, organizationID string) (*model.Session, *model.User, error) {
			gotProvider, gotCode, gotOrg = provider, code, organizationID
			return &model.Session{
				ID:        "session-id-abc",
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, testMember, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := newRequest(http.MethodGet, "/auth/google/callback?code=test-code&state=test-state", "", nil, map[string]string{"provider": "google"})
	// stateの検証のためにcookieを設定
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "test-state"})
	req.AddCookie(&http.Cookie{Name: oauthOrgCookie, Value: "org-9"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); loc != "http://localhost:3000" {
		t.Errorf("Location = %q", loc)
	}
	if gotProvider != "google" || gotCode != "test-code" || gotOrg != "org-9" {
		t.Errorf("callback args = %q %q %q", gotProvider, gotCode, gotOrg)
	}

	sessionCookie := findCookie(resp, middleware.SessionCookieName)
	if sessionCookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if sessionCookie.Value != "session-id-abc" || !sessionCookie.HttpOnly {
		t.Errorf("session cookie = %+v", sessionCookie)
	}
	if sessionCookie.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", sessionCookie.MaxAge)
	}

	// 一時Cookieは破棄される
	if c := findCookie(resp, oauthStateCookie); c == nil || c.MaxAge >= 0 {
		t.Errorf("oauth_state cookie should be cleared, got %+v", c)
	}
}

func TestAuthHandler_Callback_BadRequests(t *testing.T) {
	called := false
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, provider, code, organizationID string) (*model.Session, *model.User, error) {
			called = true
			return nil, nil, nil
		},
	}
	h := newTestAuthHandler(svc)

	tests := []struct {
		name   string
		target string
		cookie string
	}{
		{"stateが一致しない", "/auth/google/callback?code=c&state=attacker", "expected"},
		{"state Cookieがない", "/auth/google/callback?code=c&state=s", ""},
		{"stateが空", "/auth/google/callback?code=c", ""},
		{"認可コードがない", "/auth/google/callback?state=s", "s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(http.MethodGet, tt.target, "", nil, map[string]string{"provider": "google"})
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.Callback(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	if called {
		t.Error("HandleCallback should not be called")
	}
}

func TestAuthHandler_Callback_ServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"トークン交換失敗", errors.New("oauth2: cannot fetch token"), http.StatusInternalServerError},
		{"クレーム不正", model.NewValidationError("email"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				handleCallbackFn: func(ctx context.Context, provider, code, organizationID string) (*model.Session, *model.User, error) {
					return nil, nil, tt.err
				},
			}
			h := newTestAuthHandler(svc)

			req := newRequest(http.MethodGet, "/auth/google/callback?code=c&state=s", "", nil, map[string]string{"provider": "google"})
			req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s"})
			w := httptest.NewRecorder()
			h.Callback(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if findCookie(w.Result(), middleware.SessionCookieName) != nil {
				t.Error("session cookie should not be set on failure")
			}
		})
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return errors.New("already gone")
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-1"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if loggedOut != "session-1" {
		t.Errorf("logout session = %q", loggedOut)
	}
	// ログアウト失敗してもCookieはクリアされる
	c := findCookie(w.Result(), middleware.SessionCookieName)
	if c == nil || c.MaxAge >= 0 || c.Value != "" {
		t.Errorf("session cookie should be cleared, got %+v", c)
	}
}

func TestAuthHandler_Logout_NoSession(t *testing.T) {
	called := false
	h := newTestAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			called = true
			return nil
		},
	})

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if called {
		t.Error("Logout should not be called without a session cookie")
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	t.Run("ログイン中はユーザーを返す", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, newRequest(http.MethodGet, "/auth/me", "", testMember, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body userResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.ID != testMember.ID || body.AuthToken != testMember.AuthToken {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("ゲストは401", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, newRequest(http.MethodGet, "/auth/me", "", nil, nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestAuthHandler_Providers(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{
		providerNamesFn: func() []string { return []string{"facebook", "google"} },
	})

	w := httptest.NewRecorder()
	h.Providers(w, httptest.NewRequest(http.MethodGet, "/auth/providers", nil))

	var body map[string][]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := body["providers"]; len(got) != 2 || got[0] != "facebook" {
		t.Errorf("providers = %v", got)
	}
}
