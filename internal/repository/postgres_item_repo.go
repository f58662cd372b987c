package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/lunchman/internal/model"
)

// itemSelect は分類名付きで品目を取得するSELECT句。
// メニュー表示用に分類の表示順・品目名順で並べる。
const itemSelect = `SELECT i.id, i.category_id, c.name, i.name, i.description, i.price, i.created_at, i.updated_at
	FROM items i
	JOIN categories c ON c.id = i.category_id`

const itemOrder = ` ORDER BY c.position, c.name, i.name, i.id`

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(
			&it.ID, &it.CategoryID, &it.CategoryName, &it.Name,
			&it.Description, &it.Price, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// PostgresItemRepo はPostgreSQLを使用したメニュー品目リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// FindByID は指定IDの品目を取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, itemSelect+` WHERE i.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// FindByIDs は指定IDの品目をまとめて取得する。存在しないIDは結果に含まれない。
func (r *PostgresItemRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Item, error) {
	if len(ids) == 0 {
		return []model.Item{}, nil
	}
	rows, err := r.db.QueryContext(ctx, itemSelect+` WHERE i.id::text = ANY($1)`+itemOrder, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	return scanItems(rows)
}

// List は全品目を分類順・品目名順に返す。
func (r *PostgresItemRepo) List(ctx context.Context) ([]model.Item, error) {
	rows, err := r.db.QueryContext(ctx, itemSelect+itemOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return scanItems(rows)
}

// Create は品目を作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, it *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, category_id, name, description, price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, it.CategoryID, it.Name, it.Description, it.Price, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to create item")
	}
	return nil
}

// Update は品目を更新する。
func (r *PostgresItemRepo) Update(ctx context.Context, it *model.Item) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET category_id = $2, name = $3, description = $4, price = $5, updated_at = $6
		 WHERE id = $1`,
		it.ID, it.CategoryID, it.Name, it.Description, it.Price, it.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to update item")
	}
	return checkRowsAffected(result, "品目", it.ID)
}

// DeleteByID は品目を削除する。注文から参照されている場合はConflictになる。
func (r *PostgresItemRepo) DeleteByID(ctx context.Context, id string) error {
	id, ok := normalizeID(id)
	if !ok {
		return model.NewNotFoundError("品目", id)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err, "failed to delete item")
	}
	return checkRowsAffected(result, "品目", id)
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
