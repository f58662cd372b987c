// Package auth は外部IdPによる認証、ユーザーの解決、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/lunchman/internal/metrics"
	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/repository"
)

// UserCreator は新規ユーザーの作成インターフェース。
// 管理者昇格とトークン発行を含む作成処理（user.Service）を想定する。
type UserCreator interface {
	Create(ctx context.Context, u *model.User) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge         int    // セッション有効期間（秒）
	DefaultOrganizationID string // ログイン時に組織が指定されなかった場合の所属先
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	providers   map[string]OAuthProvider
	userRepo    repository.UserRepository
	creator     UserCreator
	sessionRepo repository.SessionRepository
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	providers []OAuthProvider,
	userRepo repository.UserRepository,
	creator UserCreator,
	sessionRepo repository.SessionRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	byName := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		providers:   byName,
		userRepo:    userRepo,
		creator:     creator,
		sessionRepo: sessionRepo,
		metrics:     collector,
		config:      config,
	}
}

// ProviderNames は設定済みのプロバイダ名を昇順で返す。
func (s *Service) ProviderNames() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLoginURL は指定プロバイダのOAuth認証URLを生成する。
func (s *Service) GetLoginURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", model.NewNotFoundError("認証プロバイダ", provider)
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 外部IDに対応するユーザーがいなければorganizationIDに所属させて作成する。
func (s *Service) HandleCallback(ctx context.Context, provider, code, organizationID string) (*model.Session, *model.User, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, nil, model.NewNotFoundError("認証プロバイダ", provider)
	}

	claims, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, created, err := s.FromExternalIdentity(ctx, *claims, organizationID)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordLogin(provider, created)

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
		slog.Bool("created", created),
	)

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, user, nil
}

// FromExternalIdentity は外部IdPのクレームからユーザーを解決する。
// (provider, uid) → email の順に検索し、最初に一致したユーザーを返す。
// どちらも一致しなければクレームの値のままユーザーを作成し、createdを真で返す。
// 同じクレームでの同時作成による一意制約違反は再検索で解決する。
func (s *Service) FromExternalIdentity(ctx context.Context, claims model.ExternalIdentity, organizationID string) (*model.User, bool, error) {
	user, err := s.lookup(ctx, claims)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}

	if organizationID == "" {
		organizationID = s.config.DefaultOrganizationID
	}
	user = &model.User{
		Name:           claims.Name,
		Email:          claims.Email,
		Provider:       claims.Provider,
		UID:            claims.UID,
		OrganizationID: organizationID,
	}

	if err := s.creator.Create(ctx, user); err != nil {
		if !model.IsAPIErrorCode(err, model.ErrCodeConflict) {
			return nil, false, err
		}
		existing, lookupErr := s.lookup(ctx, claims)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if existing == nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return user, true, nil
}

func (s *Service) lookup(ctx context.Context, claims model.ExternalIdentity) (*model.User, error) {
	user, err := s.userRepo.FindByProviderUID(ctx, claims.Provider, claims.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by provider: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = s.userRepo.FindByEmail(ctx, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// ResolvePrincipal はセッションIDまたはAPIトークンからリクエストのプリンシパルを解決する。
// セッションが優先され、どちらでも解決できなければゲストを返す。
func (s *Service) ResolvePrincipal(ctx context.Context, sessionID, token string) (*model.User, error) {
	if sessionID != "" {
		user, err := s.userFromSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	if token != "" {
		user, err := s.userRepo.FindByAuthToken(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by token: %w", err)
		}
		if user != nil {
			return user, nil
		}
	}

	return model.Guest(), nil
}

// userFromSession はセッションのユーザーを返す。期限切れや削除済みの場合はnil。
func (s *Service) userFromSession(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
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

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
