// Package order は注文の検索と作成・変更を提供する。
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/repository"
)

// Criteria は注文検索の条件。
type Criteria struct {
	Date           time.Time // ゼロ値は現在日時
	OrganizationID string    // 注文者の所属組織（空なら全組織）
	OwnerID        string    // 注文者（空なら全員）
}

// NormalizeDate はdateがゼロ値ならnowを使い、locにおけるその日の終わりを返す。
func NormalizeDate(date, now time.Time, loc *time.Location) time.Time {
	if date.IsZero() {
		date = now
	}
	return model.EndOfDay(date, loc)
}

// Filter は日付と組織で注文を絞り込む。
// プリンシパルによる可視性の制限は呼び出し側（Service.List）で行う。
type Filter struct {
	orders repository.OrderRepository
	loc    *time.Location
	now    func() time.Time
}

// NewFilter はFilterを生成する。locがnilの場合はUTCを使う。
func NewFilter(orders repository.OrderRepository, loc *time.Location) *Filter {
	if loc == nil {
		loc = time.UTC
	}
	return &Filter{orders: orders, loc: loc, now: time.Now}
}

// Filter はcriteriaの日付に作成された注文を作成順に返す。
func (f *Filter) Filter(ctx context.Context, c Criteria) ([]*model.Order, error) {
	end := NormalizeDate(c.Date, f.now(), f.loc)

	orders, err := f.orders.List(ctx, repository.OrderQuery{
		From:           model.StartOfDay(end, f.loc),
		Before:         model.NextDayStart(end, f.loc),
		OrganizationID: c.OrganizationID,
		UserID:         c.OwnerID,
	})
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	return orders, nil
}
