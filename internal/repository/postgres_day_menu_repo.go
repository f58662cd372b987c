package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/lunchman/internal/model"
)

// PostgresDayMenuRepo はPostgreSQLを使用した日替わりメニューリポジトリ。
type PostgresDayMenuRepo struct {
	db *sql.DB
}

// NewPostgresDayMenuRepo はPostgresDayMenuRepoを生成する。
func NewPostgresDayMenuRepo(db *sql.DB) *PostgresDayMenuRepo {
	return &PostgresDayMenuRepo{db: db}
}

// FindLatest は指定曜日のメニューのうち、created_at < before で最新のものを
// 品目付きで返す。見つからない場合はnilを返す。
func (r *PostgresDayMenuRepo) FindLatest(ctx context.Context, weekday time.Weekday, before time.Time) (*model.DayMenu, error) {
	return r.findOne(ctx,
		`SELECT id, day_id, created_at FROM day_menus
		 WHERE day_id = $1 AND created_at < $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		int(weekday), before,
	)
}

// FindByID は指定IDのメニューを品目付きで返す。見つからない場合はnilを返す。
func (r *PostgresDayMenuRepo) FindByID(ctx context.Context, id string) (*model.DayMenu, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, nil
	}
	return r.findOne(ctx, `SELECT id, day_id, created_at FROM day_menus WHERE id = $1`, id)
}

func (r *PostgresDayMenuRepo) findOne(ctx context.Context, query string, args ...any) (*model.DayMenu, error) {
	menu := &model.DayMenu{}
	var dayID int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&menu.ID, &dayID, &menu.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find day menu: %w", err)
	}
	menu.Weekday = time.Weekday(dayID)

	rows, err := r.db.QueryContext(ctx,
		itemSelect+`
		JOIN day_menu_items dmi ON dmi.item_id = i.id
		WHERE dmi.day_menu_id = $1`+itemOrder,
		menu.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load day menu items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	menu.Items = items

	return menu, nil
}

// List は全メニューを品目なしで曜日順・作成日時の新しい順に返す。
func (r *PostgresDayMenuRepo) List(ctx context.Context) ([]*model.DayMenu, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, day_id, created_at FROM day_menus ORDER BY day_id, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list day menus: %w", err)
	}
	defer rows.Close()

	var menus []*model.DayMenu
	for rows.Next() {
		menu := &model.DayMenu{}
		var dayID int
		if err := rows.Scan(&menu.ID, &dayID, &menu.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan day menu: %w", err)
		}
		menu.Weekday = time.Weekday(dayID)
		menus = append(menus, menu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day menus: %w", err)
	}
	return menus, nil
}

// Create はメニューと品目の紐付けを同一トランザクションで作成する。
func (r *PostgresDayMenuRepo) Create(ctx context.Context, menu *model.DayMenu) error {
	return withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO day_menus (id, day_id, created_at) VALUES ($1, $2, $3)`,
			menu.ID, int(menu.Weekday), menu.CreatedAt,
		)
		if err != nil {
			return mapPostgresError(err, "failed to insert day menu")
		}

		for _, it := range menu.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO day_menu_items (day_menu_id, item_id) VALUES ($1, $2)`,
				menu.ID, it.ID,
			); err != nil {
				return mapPostgresError(err, "failed to insert day menu item")
			}
		}
		return nil
	})
}

// DeleteByID はメニューを削除する。day_menu_itemsはCASCADE削除される。
func (r *PostgresDayMenuRepo) DeleteByID(ctx context.Context, id string) error {
	id, ok := normalizeID(id)
	if !ok {
		return model.NewNotFoundError("日替わりメニュー", id)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM day_menus WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err, "failed to delete day menu")
	}
	return checkRowsAffected(result, "日替わりメニュー", id)
}

// compile-time interface check
var _ DayMenuRepository = (*PostgresDayMenuRepo)(nil)
