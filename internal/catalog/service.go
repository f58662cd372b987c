// Package catalog は管理パネルから操作する組織・分類・品目・日替わりメニューの
// サービス層を提供する。
//
// 一覧はmanage権限、作成・更新・削除はアクセスポリシーで判定する。
// 名前と説明は保存前にサニタイズする。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/policy"
	"github.com/hitoshi/lunchman/internal/repository"
	"github.com/hitoshi/lunchman/internal/security"
)

// NameMaxLength は組織名・分類名・品目名の最大文字数。
const NameMaxLength = 255

// OrganizationParams は組織の作成・更新パラメータ。
type OrganizationParams struct {
	Name string
}

// CategoryParams は分類の作成・更新パラメータ。
type CategoryParams struct {
	Name     string
	Position int
}

// ItemParams は品目の作成・更新パラメータ。
type ItemParams struct {
	CategoryID  string
	Name        string
	Description string
	Price       int
}

// DayMenuParams は日替わりメニューの作成パラメータ。
// メニューは版管理されるため更新はなく、新しい版を作成する。
type DayMenuParams struct {
	Weekday time.Weekday
	ItemIDs []string
}

// Service はカタログ管理のサービス。
type Service struct {
	orgs       repository.OrganizationRepository
	categories repository.CategoryRepository
	items      repository.ItemRepository
	menus      repository.DayMenuRepository
	sanitizer  *security.TextSanitizer
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	orgs repository.OrganizationRepository,
	categories repository.CategoryRepository,
	items repository.ItemRepository,
	menus repository.DayMenuRepository,
	sanitizer *security.TextSanitizer,
) *Service {
	return &Service{
		orgs:       orgs,
		categories: categories,
		items:      items,
		menus:      menus,
		sanitizer:  sanitizer,
		now:        time.Now,
	}
}

// --- 組織 ---

// PublicOrganizations はサインアップ時に選択できる組織の一覧を返す。認可不要。
func (s *Service) PublicOrganizations(ctx context.Context) ([]*model.Organization, error) {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("組織一覧の取得に失敗しました: %w", err)
	}
	return orgs, nil
}

// ListOrganizations は管理用の組織一覧を返す。
func (s *Service) ListOrganizations(ctx context.Context, principal *model.User) ([]*model.Organization, error) {
	if err := policy.For(principal).Authorize(policy.ActionManage, policy.ResourceOrganization, nil); err != nil {
		return nil, err
	}
	return s.PublicOrganizations(ctx)
}

// CreateOrganization は組織を作成する。
func (s *Service) CreateOrganization(ctx context.Context, principal *model.User, p OrganizationParams) (*model.Organization, error) {
	if err := policy.For(principal).Authorize(policy.ActionCreate, policy.ResourceOrganization, nil); err != nil {
		return nil, err
	}
	name, err := s.name(p.Name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	org := &model.Organization{ID: uuid.New().String(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("組織の作成に失敗しました: %w", err)
	}
	slog.Info("組織を作成しました", slog.String("organization_id", org.ID), slog.String("user_id", principal.ID))
	return org, nil
}

// UpdateOrganization は組織名を変更する。
func (s *Service) UpdateOrganization(ctx context.Context, principal *model.User, id string, p OrganizationParams) (*model.Organization, error) {
	org, err := s.orgs.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("組織の取得に失敗しました: %w", err)
	}
	if err := authorizeExisting(principal, policy.ActionUpdate, policy.ResourceOrganization, org, org == nil, "組織", id); err != nil {
		return nil, err
	}
	name, err := s.name(p.Name)
	if err != nil {
		return nil, err
	}

	org.Name = name
	org.UpdatedAt = s.now()
	if err := s.orgs.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("組織の更新に失敗しました: %w", err)
	}
	return org, nil
}

// DeleteOrganization は組織を削除する。所属ユーザーがいる場合はConflictになる。
func (s *Service) DeleteOrganization(ctx context.Context, principal *model.User, id string) error {
	if err := policy.For(principal).Authorize(policy.ActionDestroy, policy.ResourceOrganization, nil); err != nil {
		return err
	}
	if err := s.orgs.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("組織の削除に失敗しました: %w", err)
	}
	slog.Info("組織を削除しました", slog.String("organization_id", id), slog.String("user_id", principal.ID))
	return nil
}

// --- 分類 ---

// ListCategories は分類をposition順に返す。
func (s *Service) ListCategories(ctx context.Context, principal *model.User) ([]*model.Category, error) {
	if err := policy.For(principal).Authorize(policy.ActionManage, policy.ResourceCategory, nil); err != nil {
		return nil, err
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("分類一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// CreateCategory は分類を作成する。
func (s *Service) CreateCategory(ctx context.Context, principal *model.User, p CategoryParams) (*model.Category, error) {
	if err := policy.For(principal).Authorize(policy.ActionCreate, policy.ResourceCategory, nil); err != nil {
		return nil, err
	}
	name, err := s.name(p.Name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &model.Category{ID: uuid.New().String(), Name: name, Position: p.Position, CreatedAt: now, UpdatedAt: now}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("分類の作成に失敗しました: %w", err)
	}
	return c, nil
}

// UpdateCategory は分類の名前と表示順を変更する。
func (s *Service) UpdateCategory(ctx context.Context, principal *model.User, id string, p CategoryParams) (*model.Category, error) {
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("分類の取得に失敗しました: %w", err)
	}
	if err := authorizeExisting(principal, policy.ActionUpdate, policy.ResourceCategory, c, c == nil, "分類", id); err != nil {
		return nil, err
	}
	name, err := s.name(p.Name)
	if err != nil {
		return nil, err
	}

	c.Name = name
	c.Position = p.Position
	c.UpdatedAt = s.now()
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("分類の更新に失敗しました: %w", err)
	}
	return c, nil
}

// DeleteCategory は分類を削除する。品目から参照されている場合はConflictになる。
func (s *Service) DeleteCategory(ctx context.Context, principal *model.User, id string) error {
	if err := policy.For(principal).Authorize(policy.ActionDestroy, policy.ResourceCategory, nil); err != nil {
		return err
	}
	if err := s.categories.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("分類の削除に失敗しました: %w", err)
	}
	return nil
}

// --- 品目 ---

// ListItems は品目を分類順に返す。
func (s *Service) ListItems(ctx context.Context, principal *model.User) ([]model.Item, error) {
	if err := policy.For(principal).Authorize(policy.ActionManage, policy.ResourceItem, nil); err != nil {
		return nil, err
	}
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("品目一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// CreateItem は品目を作成する。
func (s *Service) CreateItem(ctx context.Context, principal *model.User, p ItemParams) (*model.Item, error) {
	if err := policy.For(principal).Authorize(policy.ActionCreate, policy.ResourceItem, nil); err != nil {
		return nil, err
	}

	now := s.now()
	it := &model.Item{ID: uuid.New().String(), CreatedAt: now}
	if err := s.applyItemParams(ctx, it, p); err != nil {
		return nil, err
	}
	it.UpdatedAt = now

	if err := s.items.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("品目の作成に失敗しました: %w", err)
	}
	return it, nil
}

// UpdateItem は品目を更新する。
func (s *Service) UpdateItem(ctx context.Context, principal *model.User, id string, p ItemParams) (*model.Item, error) {
	it, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("品目の取得に失敗しました: %w", err)
	}
	if err := authorizeExisting(principal, policy.ActionUpdate, policy.ResourceItem, it, it == nil, "品目", id); err != nil {
		return nil, err
	}
	if err := s.applyItemParams(ctx, it, p); err != nil {
		return nil, err
	}
	it.UpdatedAt = s.now()

	if err := s.items.Update(ctx, it); err != nil {
		return nil, fmt.Errorf("品目の更新に失敗しました: %w", err)
	}
	return it, nil
}

// DeleteItem は品目を削除する。注文から参照されている場合はConflictになる。
func (s *Service) DeleteItem(ctx context.Context, principal *model.User, id string) error {
	if err := policy.For(principal).Authorize(policy.ActionDestroy, policy.ResourceItem, nil); err != nil {
		return err
	}
	if err := s.items.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("品目の削除に失敗しました: %w", err)
	}
	return nil
}

// applyItemParams はパラメータを検証してitに反映する。
// 違反したフィールドはまとめて1つのValidationFailedで返す。
func (s *Service) applyItemParams(ctx context.Context, it *model.Item, p ItemParams) error {
	var fields []string

	name, err := s.name(p.Name)
	if err != nil {
		fields = append(fields, "name")
	}
	if p.Price < 0 {
		fields = append(fields, "price")
	}

	var category *model.Category
	if p.CategoryID != "" {
		category, err = s.categories.FindByID(ctx, p.CategoryID)
		if err != nil {
			return fmt.Errorf("分類の取得に失敗しました: %w", err)
		}
	}
	if category == nil {
		fields = append(fields, "category")
	}

	if len(fields) > 0 {
		return model.NewValidationError(fields...)
	}

	it.CategoryID = category.ID
	it.CategoryName = category.Name
	it.Name = name
	it.Description = s.sanitizer.Description(p.Description)
	it.Price = p.Price
	return nil
}

// --- 日替わりメニュー ---

// ListDayMenus は日替わりメニューの全版を品目なしで返す。
func (s *Service) ListDayMenus(ctx context.Context, principal *model.User) ([]*model.DayMenu, error) {
	if err := policy.For(principal).Authorize(policy.ActionManage, policy.ResourceDayMenu, nil); err != nil {
		return nil, err
	}
	menus, err := s.menus.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("メニュー一覧の取得に失敗しました: %w", err)
	}
	return menus, nil
}

// GetDayMenu は日替わりメニューを品目付きで返す。
func (s *Service) GetDayMenu(ctx context.Context, principal *model.User, id string) (*model.DayMenu, error) {
	if err := policy.For(principal).Authorize(policy.ActionRead, policy.ResourceDayMenu, nil); err != nil {
		return nil, err
	}
	m, err := s.menus.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("メニューの取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError("日替わりメニュー", id)
	}
	return m, nil
}

// CreateDayMenu は曜日の新しいメニューの版を作成する。
// 品目は1つ以上必要で、すべて存在しなければならない。
func (s *Service) CreateDayMenu(ctx context.Context, principal *model.User, p DayMenuParams) (*model.DayMenu, error) {
	if err := policy.For(principal).Authorize(policy.ActionCreate, policy.ResourceDayMenu, nil); err != nil {
		return nil, err
	}

	var fields []string
	if p.Weekday < time.Sunday || p.Weekday > time.Saturday {
		fields = append(fields, "day_id")
	}
	ids := dedupe(p.ItemIDs)
	if len(ids) == 0 {
		fields = append(fields, "items")
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields...)
	}

	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("品目の取得に失敗しました: %w", err)
	}
	if missing := missingID(ids, items); missing != "" {
		return nil, model.NewNotFoundError("品目", missing)
	}

	m := &model.DayMenu{
		ID:        uuid.New().String(),
		Weekday:   p.Weekday,
		Items:     items,
		CreatedAt: s.now(),
	}
	if err := s.menus.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("メニューの作成に失敗しました: %w", err)
	}

	slog.Info("日替わりメニューを作成しました",
		slog.String("day_menu_id", m.ID),
		slog.String("weekday", m.Weekday.String()),
		slog.Int("items", len(items)),
	)
	return m, nil
}

// DeleteDayMenu は日替わりメニューの版を削除する。
func (s *Service) DeleteDayMenu(ctx context.Context, principal *model.User, id string) error {
	if err := policy.For(principal).Authorize(policy.ActionDestroy, policy.ResourceDayMenu, nil); err != nil {
		return err
	}
	if err := s.menus.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("メニューの削除に失敗しました: %w", err)
	}
	return nil
}

// name はサニタイズ後の名前を検証して返す。
func (s *Service) name(raw string) (string, error) {
	name := s.sanitizer.Name(raw)
	if n := utf8.RuneCountInString(name); n == 0 || n > NameMaxLength {
		return "", model.NewValidationError("name")
	}
	return name, nil
}

// authorizeExisting は取得済みの対象に対する操作を判定する。
// 管理者以外には存在しない対象も拒否として返し、存在有無を漏らさない。
func authorizeExisting(principal *model.User, action policy.Action, resource policy.Resource, instance any, missing bool, label, id string) error {
	if missing {
		if principal.IsAdmin() {
			return model.NewNotFoundError(label, id)
		}
		return model.NewUnauthorizedError()
	}
	return policy.For(principal).Authorize(action, resource, instance)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func missingID(ids []string, items []model.Item) string {
	found := make(map[string]bool, len(items))
	for _, it := range items {
		found[it.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return id
		}
	}
	return ""
}
