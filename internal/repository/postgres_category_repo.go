package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lunchman/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用した品目分類リポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// FindByID は指定IDの分類を取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, nil
	}
	c := &model.Category{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, position, created_at, updated_at FROM categories WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Position, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return c, nil
}

// List は全分類をposition、name順に返す。
func (r *PostgresCategoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, position, created_at, updated_at FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		c := &model.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

// Create は分類を作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, c *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, position, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Position, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to create category")
	}
	return nil
}

// Update は分類名と表示順を更新する。
func (r *PostgresCategoryRepo) Update(ctx context.Context, c *model.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, position = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Name, c.Position, c.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to update category")
	}
	return checkRowsAffected(result, "分類", c.ID)
}

// DeleteByID は分類を削除する。品目が残っている場合はConflictになる。
func (r *PostgresCategoryRepo) DeleteByID(ctx context.Context, id string) error {
	id, ok := normalizeID(id)
	if !ok {
		return model.NewNotFoundError("分類", id)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err, "failed to delete category")
	}
	return checkRowsAffected(result, "分類", id)
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
