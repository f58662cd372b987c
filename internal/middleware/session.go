// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/lunchman/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// AuthMethod はリクエストのプリンシパルがどの資格情報で解決されたかを表す。
type AuthMethod string

const (
	AuthMethodNone    AuthMethod = ""
	AuthMethodSession AuthMethod = "session"
	AuthMethodToken   AuthMethod = "token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	principalContextKey  = contextKey("principal")
	authMethodContextKey = contextKey("auth_method")
)

// PrincipalResolver はセッションIDまたはAPIトークンからプリンシパルを解決する。
// auth.Serviceが実装する。どちらでも解決できない場合はゲストを返す。
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, sessionID, token string) (*model.User, error)
}

// NewPrincipalMiddleware はリクエストのプリンシパルを解決してコンテキストに注入する
// ミドルウェアを返す。
//
// 解決順序: HTTP Only Cookieのセッション → Authorizationヘッダーのトークン → ゲスト。
// 未認証でもリクエストは拒否せず、ゲストとして後続に渡す。
func NewPrincipalMiddleware(resolver PrincipalResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				sessionID = cookie.Value
			}
			token := TokenFromHeader(r.Header.Get("Authorization"))

			principal, err := resolver.ResolvePrincipal(r.Context(), sessionID, token)
			if err != nil {
				slog.Error("failed to resolve principal",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			method := AuthMethodNone
			if !principal.IsGuest() {
				// セッションが優先されるため、トークンのみの場合だけトークン認証とみなす
				method = AuthMethodSession
				if token != "" && principal.AuthToken == token {
					method = AuthMethodToken
				}
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = context.WithValue(ctx, authMethodContextKey, method)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromHeader はAuthorizationヘッダーからAPIトークンを取り出す。
// "Token <token>"、"Token token=\"<token>\""、"Bearer <token>" を受け付ける。
func TokenFromHeader(header string) string {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
	default:
		return ""
	}

	value = strings.TrimSpace(value)
	if rest, found := strings.CutPrefix(value, "token="); found {
		value = strings.Trim(rest, `"`)
	}
	return value
}

// RequireAuthentication はゲストのリクエストを401で拒否するミドルウェア。
// NewPrincipalMiddlewareの後に配置する。
func RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()).IsGuest() {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext はリクエストコンテキストからプリンシパルを取得する。
// プリンシパルミドルウェアを通過していない場合はゲストを返す。
func PrincipalFromContext(ctx context.Context) *model.User {
	if u, ok := ctx.Value(principalContextKey).(*model.User); ok && u != nil {
		return u
	}
	return model.Guest()
}

// AuthMethodFromContext はプリンシパルの解決に使われた資格情報の種類を返す。
func AuthMethodFromContext(ctx context.Context) AuthMethod {
	m, _ := ctx.Value(authMethodContextKey).(AuthMethod)
	return m
}

// ContextWithPrincipal はコンテキストにプリンシパルを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal *model.User) context.Context {
	if !principal.IsGuest() {
		recordPrincipal(ctx, principal.ID)
	}
	return context.WithValue(ctx, principalContextKey, principal)
}
