package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lunchman/internal/metrics"
	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/policy"
	"github.com/hitoshi/lunchman/internal/repository"
)

// Service は注文のサービス層。
// 検索結果の可視性制限とアクセスポリシーによる操作の可否判定を行う。
type Service struct {
	filter  *Filter
	orders  repository.OrderRepository
	items   repository.ItemRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	orders repository.OrderRepository,
	items repository.ItemRepository,
	loc *time.Location,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		filter:  NewFilter(orders, loc),
		orders:  orders,
		items:   items,
		metrics: collector,
		now:     time.Now,
	}
}

// List はcriteriaに一致する注文を返す。
// 管理者以外は指定内容にかかわらず自分の注文のみに制限される。
func (s *Service) List(ctx context.Context, principal *model.User, c Criteria) ([]*model.Order, error) {
	if !principal.IsAdmin() {
		if principal.IsGuest() {
			return []*model.Order{}, nil
		}
		c.OwnerID = principal.ID
	}
	return s.filter.Filter(ctx, c)
}

// Get は注文を返す。管理者以外は自分の注文のみ参照できる。
// 存在しない場合も他人の注文の場合も同じUNAUTHORIZEDを返す。
func (s *Service) Get(ctx context.Context, principal *model.User, orderID string) (*model.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if principal.IsAdmin() {
		if o == nil {
			return nil, model.NewNotFoundError("注文", orderID)
		}
		return o, nil
	}
	if o == nil || !o.OwnedBy(principal) {
		return nil, model.NewUnauthorizedError()
	}
	return o, nil
}

// Create はprincipalの注文を作成する。
// 品目は1つ以上必要で、すべて存在しなければならない。
func (s *Service) Create(ctx context.Context, principal *model.User, itemIDs []string) (*model.Order, error) {
	if err := policy.For(principal).Authorize(policy.ActionCreate, policy.ResourceOrder, nil); err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &model.Order{
		ID:        uuid.New().String(),
		UserID:    principal.ID,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("注文の作成に失敗しました: %w", err)
	}

	s.metrics.RecordOrderCreated(len(items))
	slog.Info("注文を作成しました",
		slog.String("order_id", o.ID),
		slog.String("user_id", principal.ID),
		slog.Int("items", len(items)),
	)
	return o, nil
}

// Update は注文の品目を置き換える。所有者または管理者のみ可能。
func (s *Service) Update(ctx context.Context, principal *model.User, orderID string, itemIDs []string) (*model.Order, error) {
	o, err := s.authorizedOrder(ctx, principal, policy.ActionUpdate, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if err := s.orders.ReplaceItems(ctx, o.ID, ids, now); err != nil {
		return nil, fmt.Errorf("注文の更新に失敗しました: %w", err)
	}

	o.Items = items
	o.UpdatedAt = now
	return o, nil
}

// Delete は注文を削除する。所有者または管理者のみ可能。
func (s *Service) Delete(ctx context.Context, principal *model.User, orderID string) error {
	o, err := s.authorizedOrder(ctx, principal, policy.ActionDestroy, orderID)
	if err != nil {
		return err
	}

	if err := s.orders.DeleteByID(ctx, o.ID); err != nil {
		return fmt.Errorf("注文の削除に失敗しました: %w", err)
	}

	s.metrics.RecordOrderDeleted()
	slog.Info("注文を削除しました",
		slog.String("order_id", o.ID),
		slog.String("user_id", principal.ID),
	)
	return nil
}

// authorizedOrder は注文を取得し、actionが許可されているかを判定する。
// 管理者以外には存在しない注文も拒否として返し、存在有無を漏らさない。
func (s *Service) authorizedOrder(ctx context.Context, principal *model.User, action policy.Action, orderID string) (*model.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if o == nil {
		if principal.IsAdmin() {
			return nil, model.NewNotFoundError("注文", orderID)
		}
		return nil, model.NewUnauthorizedError()
	}
	if err := policy.For(principal).Authorize(action, policy.ResourceOrder, o); err != nil {
		return nil, err
	}
	return o, nil
}

// resolveItems は品目IDを重複排除して品目を取得する。
func (s *Service) resolveItems(ctx context.Context, itemIDs []string) ([]model.Item, error) {
	ids := dedupe(itemIDs)
	if len(ids) == 0 {
		return nil, model.NewValidationError("items")
	}

	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("品目の取得に失敗しました: %w", err)
	}
	if len(items) != len(ids) {
		found := make(map[string]bool, len(items))
		for _, it := range items {
			found[it.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, model.NewNotFoundError("品目", id)
			}
		}
	}
	return items, nil
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
