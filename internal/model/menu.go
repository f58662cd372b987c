package model

import "time"

// Category は品目の分類（スープ、メイン等）を表す。
// Positionの昇順でメニューに並ぶ。
type Category struct {
	ID        string
	Name      string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item は注文可能なメニュー品目を表す。
type Item struct {
	ID           string
	CategoryID   string
	CategoryName string // 一覧取得時にcategoriesとJOINして埋める
	Name         string
	Description  string
	Price        int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DayMenu はある曜日に提供される品目のスナップショット。
// 同じ曜日に複数存在する場合はCreatedAtで版管理される。
type DayMenu struct {
	ID        string
	Weekday   time.Weekday // 0=日曜 ... 6=土曜
	Items     []Item
	CreatedAt time.Time
}

// ItemIDs はメニューに含まれる品目IDを返す。
func (m *DayMenu) ItemIDs() []string {
	ids := make([]string, len(m.Items))
	for i, it := range m.Items {
		ids[i] = it.ID
	}
	return ids
}
