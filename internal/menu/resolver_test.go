package menu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/lunchman/internal/model"
)

// --- モック ---

// memoryMenus はFindLatestをメモリ上のメニューで再現する。
type memoryMenus struct {
	menus []*model.DayMenu
	err   error
	calls int
}

func (m *memoryMenus) FindLatest(ctx context.Context, weekday time.Weekday, before time.Time) (*model.DayMenu, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var latest *model.DayMenu
	for _, menu := range m.menus {
		if menu.Weekday != weekday || !menu.CreatedAt.Before(before) {
			continue
		}
		if latest == nil || menu.CreatedAt.After(latest.CreatedAt) {
			latest = menu
		}
	}
	return latest, nil
}
func (m *memoryMenus) FindByID(ctx context.Context, id string) (*model.DayMenu, error) {
	return nil, nil
}
func (m *memoryMenus) List(ctx context.Context) ([]*model.DayMenu, error) { return m.menus, nil }
func (m *memoryMenus) Create(ctx context.Context, menu *model.DayMenu) error {
	m.menus = append(m.menus, menu)
	return nil
}
func (m *memoryMenus) DeleteByID(ctx context.Context, id string) error { return nil }

func date(y int, mo time.Month, d, h int) time.Time {
	return time.Date(y, mo, d, h, 0, 0, 0, time.UTC)
}

func mondayMenus() *memoryMenus {
	return &memoryMenus{menus: []*model.DayMenu{
		{ID: "mon-1", Weekday: time.Monday, CreatedAt: date(2024, 1, 1, 9)},
		{ID: "mon-2", Weekday: time.Monday, CreatedAt: date(2024, 1, 8, 9)},
	}}
}

// 火曜のメニューがなければMENU_NOT_FOUND
func TestActual_NoMenuForWeekday(t *testing.T) {
	r := NewResolver(mondayMenus(), time.UTC)

	_, err := r.Actual(context.Background(), date(2024, 1, 9, 12))
	if !model.IsAPIErrorCode(err, model.ErrCodeMenuNotFound) {
		t.Errorf("expected MENU_NOT_FOUND, got %v", err)
	}
}

func TestActual_PicksLatestNotAfterDay(t *testing.T) {
	r := NewResolver(mondayMenus(), time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"初回月曜", date(2024, 1, 1, 12), "mon-1"},
		// 作成時刻より前でも同じ日の終わりまでに作成されていれば有効
		{"二回目月曜の朝", date(2024, 1, 8, 6), "mon-2"},
		{"未来の月曜", date(2024, 3, 4, 12), "mon-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			menu, err := r.Actual(context.Background(), tt.at)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if menu.ID != tt.want {
				t.Errorf("menu = %s, want %s", menu.ID, tt.want)
			}
		})
	}
}

// 翌日0時ちょうどに作成されたメニューは前日には解決されない
func TestActual_ExcludesMenuCreatedAtNextMidnight(t *testing.T) {
	menus := &memoryMenus{menus: []*model.DayMenu{
		{ID: "mon-old", Weekday: time.Monday, CreatedAt: date(2024, 1, 1, 9)},
		{ID: "mon-midnight", Weekday: time.Monday, CreatedAt: date(2024, 1, 9, 0)},
	}}
	r := NewResolver(menus, time.UTC)

	menu, err := r.Actual(context.Background(), date(2024, 1, 8, 12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if menu.ID != "mon-old" {
		t.Errorf("menu = %s, want mon-old", menu.ID)
	}
}

func TestActual_BeforeAnyMenu(t *testing.T) {
	r := NewResolver(mondayMenus(), time.UTC)

	_, err := r.Actual(context.Background(), date(2023, 12, 25, 12))
	if !model.IsAPIErrorCode(err, model.ErrCodeMenuNotFound) {
		t.Errorf("expected MENU_NOT_FOUND, got %v", err)
	}
}

// 同じ曜日でt1<t2ならt1のメニュー作成時刻はt2のものを超えない
func TestActual_MonotonicFreshness(t *testing.T) {
	r := NewResolver(mondayMenus(), time.UTC)
	mondays := []time.Time{
		date(2024, 1, 1, 0), date(2024, 1, 1, 23), date(2024, 1, 8, 0), date(2024, 1, 15, 12), date(2024, 2, 5, 12),
	}

	var prev time.Time
	for _, at := range mondays {
		menu, err := r.Actual(context.Background(), at)
		if err != nil {
			t.Fatalf("Actual(%v): %v", at, err)
		}
		if menu.CreatedAt.Before(prev) {
			t.Errorf("Actual(%v) created_at %v is older than previous %v", at, menu.CreatedAt, prev)
		}
		prev = menu.CreatedAt
	}
}

// 曜日はタイムゾーンで決まる
func TestActual_UsesConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	r := NewResolver(mondayMenus(), tokyo)

	// UTCでは日曜20時、東京では月曜5時
	menu, err := r.Actual(context.Background(), date(2024, 1, 14, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if menu.ID != "mon-2" {
		t.Errorf("menu = %s, want mon-2", menu.ID)
	}
	if r.Location() != tokyo {
		t.Error("Location should return configured zone")
	}
}

func TestActual_RepositoryError(t *testing.T) {
	boom := errors.New("db down")
	r := NewResolver(&memoryMenus{err: boom}, nil)

	_, err := r.Actual(context.Background(), time.Now())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped repository error, got %v", err)
	}
}

func TestWeek(t *testing.T) {
	menus := mondayMenus()
	menus.menus = append(menus.menus, &model.DayMenu{ID: "wed-1", Weekday: time.Wednesday, CreatedAt: date(2024, 1, 3, 9)})
	r := NewResolver(menus, time.UTC)

	// 2024-01-11は木曜
	days, err := r.Week(context.Background(), date(2024, 1, 11, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("len(days) = %d, want 7", len(days))
	}
	if !days[0].Date.Equal(date(2024, 1, 8, 0)) {
		t.Errorf("week should start on Monday 2024-01-08, got %v", days[0].Date)
	}
	if days[0].Menu == nil || days[0].Menu.ID != "mon-2" {
		t.Errorf("Monday menu = %+v, want mon-2", days[0].Menu)
	}
	if days[2].Menu == nil || days[2].Menu.ID != "wed-1" {
		t.Errorf("Wednesday menu = %+v, want wed-1", days[2].Menu)
	}
	for _, i := range []int{1, 3, 4, 5, 6} {
		if days[i].Menu != nil {
			t.Errorf("day %d should have no menu, got %s", i, days[i].Menu.ID)
		}
	}
}

func TestWeek_SundayBelongsToPreviousWeek(t *testing.T) {
	r := NewResolver(mondayMenus(), time.UTC)

	days, err := r.Week(context.Background(), date(2024, 1, 14, 12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !days[0].Date.Equal(date(2024, 1, 8, 0)) {
		t.Errorf("week of Sunday 2024-01-14 should start 2024-01-08, got %v", days[0].Date)
	}
	if days[6].Date.Weekday() != time.Sunday {
		t.Errorf("last day should be Sunday, got %v", days[6].Date.Weekday())
	}
}
