// Package menu は日時から有効な日替わりメニューを解決する。
package menu

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/repository"
)

// Resolver は指定日時に有効な日替わりメニューを解決する。
// 曜日と日付境界はlocで解釈する。
type Resolver struct {
	menus repository.DayMenuRepository
	loc   *time.Location
}

// NewResolver はResolverを生成する。locがnilの場合はUTCを使う。
func NewResolver(menus repository.DayMenuRepository, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{menus: menus, loc: loc}
}

// Location は日付境界の解釈に使うタイムゾーンを返す。
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Actual はatの曜日に対応するメニューのうち、atの日の終わりまでに
// 作成された最新のものを返す。存在しない場合はMENU_NOT_FOUNDを返す。
func (r *Resolver) Actual(ctx context.Context, at time.Time) (*model.DayMenu, error) {
	weekday := at.In(r.loc).Weekday()
	menu, err := r.menus.FindLatest(ctx, weekday, model.NextDayStart(at, r.loc))
	if err != nil {
		return nil, fmt.Errorf("メニューの取得に失敗しました: %w", err)
	}
	if menu == nil {
		return nil, model.NewMenuNotFoundError()
	}
	return menu, nil
}

// Day は週表示の1日分。メニューがない日はMenuがnil。
type Day struct {
	Date time.Time
	Menu *model.DayMenu
}

// Week はatを含む週（月曜始まり）の7日分のメニューを返す。
// メニューのない曜日はエラーにせずMenu=nilで返す。
func (r *Resolver) Week(ctx context.Context, at time.Time) ([]Day, error) {
	start := model.StartOfDay(at, r.loc)
	offset := (int(start.Weekday()) + 6) % 7 // 月曜=0
	monday := start.AddDate(0, 0, -offset)

	days := make([]Day, 7)
	for i := range days {
		date := monday.AddDate(0, 0, i)
		menu, err := r.Actual(ctx, date)
		if err != nil && !model.IsAPIErrorCode(err, model.ErrCodeMenuNotFound) {
			return nil, err
		}
		days[i] = Day{Date: date, Menu: menu}
	}
	return days, nil
}
