package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/lunchman/internal/model"
)

// --- モック定義 ---

type principalResolverFunc func(ctx context.Context, sessionID, token string) (*model.User, error)

func (f principalResolverFunc) ResolvePrincipal(ctx context.Context, sessionID, token string) (*model.User, error) {
	return f(ctx, sessionID, token)
}

// fakeResolver はセッション→トークン→ゲストの順で解決する。
func fakeResolver(sessions map[string]*model.User, tokens map[string]*model.User) PrincipalResolver {
	return principalResolverFunc(func(_ context.Context, sessionID, token string) (*model.User, error) {
		if u, ok := sessions[sessionID]; ok {
			return u, nil
		}
		if u, ok := tokens[token]; ok {
			return u, nil
		}
		return model.Guest(), nil
	})
}

// --- テスト ---

func TestPrincipalMiddleware(t *testing.T) {
	alice := &model.User{ID: "alice", AuthToken: "alice-token"}
	bob := &model.User{ID: "bob", AuthToken: "bob-token"}
	resolver := fakeResolver(
		map[string]*model.User{"alice-session": alice},
		map[string]*model.User{"alice-token": alice, "bob-token": bob},
	)

	tests := []struct {
		name       string
		cookie     string
		authHeader string
		wantID     string
		wantMethod AuthMethod
	}{
		{"セッションCookie", "alice-session", "", "alice", AuthMethodSession},
		{"Tokenスキーム", "", "Token bob-token", "bob", AuthMethodToken},
		{"Token token=形式", "", `Token token="bob-token"`, "bob", AuthMethodToken},
		{"Bearerスキーム", "", "Bearer bob-token", "bob", AuthMethodToken},
		{"セッションが優先", "alice-session", "Token bob-token", "alice", AuthMethodSession},
		{"無効なセッションはトークンにフォールバック", "stale", "Token bob-token", "bob", AuthMethodToken},
		{"未対応のスキームは無視", "", "Basic Ym9iOnNlY3JldA==", "", AuthMethodNone},
		{"資格情報なしはゲスト", "", "", "", AuthMethodNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPrincipal *model.User
			var gotMethod AuthMethod
			handler := NewPrincipalMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPrincipal = PrincipalFromContext(r.Context())
				gotMethod = AuthMethodFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if gotPrincipal == nil {
				t.Fatal("handler was not called")
			}
			if gotPrincipal.ID != tt.wantID {
				t.Errorf("principal = %q, want %q", gotPrincipal.ID, tt.wantID)
			}
			if gotMethod != tt.wantMethod {
				t.Errorf("auth method = %q, want %q", gotMethod, tt.wantMethod)
			}
		})
	}
}

func TestPrincipalMiddleware_ResolverError_Returns500(t *testing.T) {
	resolver := principalResolverFunc(func(context.Context, string, string) (*model.User, error) {
		return nil, errors.New("db down")
	})
	called := false
	handler := NewPrincipalMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "s"})
	handler.ServeHTTP(w, req)

	if called {
		t.Error("handler should not be called")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Token abc", "abc"},
		{"token abc", "abc"},
		{`Token token="abc"`, "abc"},
		{"Bearer abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := TokenFromHeader(tt.header); got != tt.want {
			t.Errorf("TokenFromHeader(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequireAuthentication(t *testing.T) {
	handler := RequireAuthentication(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("ゲストは401", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/orders", nil))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		var body ErrorResponseBody
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Code != model.ErrCodeAuthenticationRequired {
			t.Errorf("code = %q, want %q", body.Code, model.ErrCodeAuthenticationRequired)
		}
	})

	t.Run("認証済みは通過", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req = req.WithContext(ContextWithPrincipal(req.Context(), &model.User{ID: "u1"}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestPrincipalFromContext_DefaultsToGuest(t *testing.T) {
	p := PrincipalFromContext(context.Background())
	if p == nil || !p.IsGuest() {
		t.Errorf("expected guest, got %+v", p)
	}
}
