// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/policy"
	"github.com/hitoshi/lunchman/internal/repository"
)

// Service はユーザー管理のサービス層。
// 作成時の管理者昇格・トークン発行、更新、退会のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	orgRepo     repository.OrganizationRepository
	newToken    TokenGenerator
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	orgRepo repository.OrganizationRepository,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		orgRepo:     orgRepo,
		newToken:    NewToken,
		now:         time.Now,
	}
}

// UpdateParams はユーザー更新の入力。nilのフィールドは変更しない。
type UpdateParams struct {
	Name           *string
	Email          *string
	Admin          *bool
	OrganizationID *string
}

// Create はユーザーを作成する。
// 同一トランザクション内で 管理者昇格判定 → トークン発行 → INSERT の順に実行する。
// 名前とメールアドレスは認証プロバイダの値をそのまま保存する。
func (s *Service) Create(ctx context.Context, u *model.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if err := s.ensureOrganization(ctx, u.OrganizationID); err != nil {
		return err
	}

	now := s.now()
	u.ID = uuid.New().String()
	u.CreatedAt = now
	u.UpdatedAt = now

	err := s.userRepo.InTx(ctx, func(tx repository.UserTx) error {
		if err := BecomeAdminIfFirst(ctx, tx, u); err != nil {
			return err
		}
		if err := GenerateAuthToken(ctx, tx, u, s.newToken); err != nil {
			return err
		}
		return tx.Insert(ctx, u)
	})
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを作成しました",
		slog.String("user_id", u.ID),
		slog.String("provider", u.Provider),
		slog.Bool("admin", u.Admin),
	)
	return nil
}

// Get はユーザーを返す。
func (s *Service) Get(ctx context.Context, principal *model.User, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	if err := policy.For(principal).Authorize(policy.ActionRead, policy.ResourceUser, u); err != nil {
		return nil, err
	}
	return u, nil
}

// List は全ユーザーを返す。管理者のみ可能。
func (s *Service) List(ctx context.Context, principal *model.User) ([]*model.User, error) {
	if err := policy.For(principal).Authorize(policy.ActionManage, policy.ResourceUser, nil); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Update はユーザーを更新する。
// 名前とメールは本人または管理者、管理者フラグと所属組織は管理者のみ変更できる。
func (s *Service) Update(ctx context.Context, principal *model.User, userID string, p UpdateParams) (*model.User, error) {
	u, err := s.authorizedUser(ctx, principal, policy.ActionUpdate, userID)
	if err != nil {
		return nil, err
	}

	ability := policy.For(principal)
	if (p.Admin != nil && *p.Admin != u.Admin) ||
		(p.OrganizationID != nil && *p.OrganizationID != u.OrganizationID) {
		if err := ability.Authorize(policy.ActionManage, policy.ResourceUser, u); err != nil {
			return nil, err
		}
	}

	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		u.Email = strings.TrimSpace(*p.Email)
	}
	if p.Admin != nil {
		u.Admin = *p.Admin
	}
	orgChanged := p.OrganizationID != nil && *p.OrganizationID != u.OrganizationID
	if p.OrganizationID != nil {
		u.OrganizationID = *p.OrganizationID
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}
	if orgChanged {
		if err := s.ensureOrganization(ctx, u.OrganizationID); err != nil {
			return nil, err
		}
	}

	u.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return u, nil
}

// RegenerateAuthToken は認証トークンを再発行する。本人または管理者のみ可能。
// 新しいトークンは以前の値とも他のユーザーの値とも異なる。
func (s *Service) RegenerateAuthToken(ctx context.Context, principal *model.User, userID string) (*model.User, error) {
	u, err := s.authorizedUser(ctx, principal, policy.ActionUpdate, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.userRepo.InTx(ctx, func(tx repository.UserTx) error {
		if err := GenerateAuthToken(ctx, tx, u, s.newToken); err != nil {
			return err
		}
		return tx.UpdateAuthToken(ctx, u.ID, u.AuthToken, now)
	})
	if err != nil {
		return nil, fmt.Errorf("認証トークンの再発行に失敗しました: %w", err)
	}
	u.UpdatedAt = now

	slog.Info("認証トークンを再発行しました",
		slog.String("user_id", u.ID),
	)
	return u, nil
}

// Delete はユーザーの退会処理を実行する。本人または管理者のみ可能。
// 削除順序: sessions → user（+ CASCADE: orders, order_items）
func (s *Service) Delete(ctx context.Context, principal *model.User, userID string) error {
	u, err := s.authorizedUser(ctx, principal, policy.ActionDestroy, userID)
	if err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", u.ID),
	)

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, u.ID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, u.ID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", u.ID),
	)
	return nil
}

// authorizedUser は対象ユーザーを取得し、actionが許可されているかを判定する。
// 管理者以外には存在しないユーザーも拒否として返す。
func (s *Service) authorizedUser(ctx context.Context, principal *model.User, action policy.Action, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		if principal.IsAdmin() {
			return nil, model.NewUserNotFoundError()
		}
		return nil, model.NewUnauthorizedError()
	}
	if err := policy.For(principal).Authorize(action, policy.ResourceUser, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ensureOrganization は組織が存在することを確認する。
func (s *Service) ensureOrganization(ctx context.Context, orgID string) error {
	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return fmt.Errorf("組織の取得に失敗しました: %w", err)
	}
	if org == nil {
		return model.NewValidationError("organization")
	}
	return nil
}
