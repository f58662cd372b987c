// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/lunchman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 検索系メソッドは見つからない場合にnilを返す。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByProviderUID は外部IdPのproviderとuidでユーザーを検索する。
	FindByProviderUID(ctx context.Context, provider, uid string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByAuthToken は認証トークンでユーザーを検索する。
	FindByAuthToken(ctx context.Context, token string) (*model.User, error)

	// List は全ユーザーを作成順に返す。
	List(ctx context.Context) ([]*model.User, error)

	// Update は名前・メール・管理者フラグ・所属組織を更新する。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するorders、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// InTx はユーザー作成・トークン更新用のトランザクションでfnを実行する。
	// トランザクションはユーザー作成用のアドバイザリロックを保持するため、
	// 件数確認やトークン重複確認とその後の書き込みの間に他の作成が割り込まない。
	// fnがエラーを返した場合はロールバックされる。
	InTx(ctx context.Context, fn func(tx UserTx) error) error
}

// UserTx はユーザー作成トランザクション内で使える操作。
type UserTx interface {
	// CountUsers は既存ユーザー数を返す。
	CountUsers(ctx context.Context) (int, error)

	// AuthTokenTaken はexceptUserID以外のユーザーがtokenを使用しているかを返す。
	AuthTokenTaken(ctx context.Context, token, exceptUserID string) (bool, error)

	// Insert はユーザーを作成する。
	Insert(ctx context.Context, user *model.User) error

	// UpdateAuthToken は既存ユーザーの認証トークンを更新する。
	UpdateAuthToken(ctx context.Context, userID, token string, updatedAt time.Time) error
}

// OrganizationRepository は組織データの永続化インターフェース。
type OrganizationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Organization, error)
	List(ctx context.Context) ([]*model.Organization, error)
	Create(ctx context.Context, org *model.Organization) error
	Update(ctx context.Context, org *model.Organization) error
	DeleteByID(ctx context.Context, id string) error
}

// CategoryRepository は品目分類の永続化インターフェース。
type CategoryRepository interface {
	FindByID(ctx context.Context, id string) (*model.Category, error)
	// List はposition、name順に返す。
	List(ctx context.Context) ([]*model.Category, error)
	Create(ctx context.Context, category *model.Category) error
	Update(ctx context.Context, category *model.Category) error
	DeleteByID(ctx context.Context, id string) error
}

// ItemRepository はメニュー品目の永続化インターフェース。
type ItemRepository interface {
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// FindByIDs は指定IDの品目をまとめて取得する。
	// 存在しないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []string) ([]model.Item, error)

	// List は分類順・品目名順に全品目を返す。
	List(ctx context.Context) ([]model.Item, error)

	Create(ctx context.Context, item *model.Item) error
	Update(ctx context.Context, item *model.Item) error

	// DeleteByID は品目を削除する。注文から参照されている場合はConflictになる。
	DeleteByID(ctx context.Context, id string) error
}

// DayMenuRepository は日替わりメニューの永続化インターフェース。
type DayMenuRepository interface {
	// FindLatest は指定曜日のメニューのうち、created_at < before で最新のものを
	// 品目付きで返す。見つからない場合はnilを返す。
	FindLatest(ctx context.Context, weekday time.Weekday, before time.Time) (*model.DayMenu, error)

	// FindByID は指定IDのメニューを品目付きで返す。
	FindByID(ctx context.Context, id string) (*model.DayMenu, error)

	// List は全メニューを品目なしで曜日順・作成日時の新しい順に返す。
	List(ctx context.Context) ([]*model.DayMenu, error)

	// Create はメニューと品目の紐付けを同一トランザクションで作成する。
	Create(ctx context.Context, menu *model.DayMenu) error

	DeleteByID(ctx context.Context, id string) error
}

// OrderQuery は注文検索の条件。
// ゼロ値のフィールドは条件に含めない（From/Toは常に必須）。
type OrderQuery struct {
	From           time.Time // この時刻以降（含む）
	Before         time.Time // この時刻より前（含まない）
	OrganizationID string    // 注文者の所属組織
	UserID         string    // 注文者
}

// OrderRepository は注文データの永続化インターフェース。
type OrderRepository interface {
	// FindByID は指定IDの注文を品目付きで返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// List は条件に一致する注文を品目付きで作成順に返す。
	List(ctx context.Context, q OrderQuery) ([]*model.Order, error)

	// Create は注文とorder_itemsを同一トランザクションで作成する。
	Create(ctx context.Context, order *model.Order) error

	// ReplaceItems は注文の品目を同一トランザクションで置き換える。
	ReplaceItems(ctx context.Context, orderID string, itemIDs []string, updatedAt time.Time) error

	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
