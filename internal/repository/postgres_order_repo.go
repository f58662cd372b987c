package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/lunchman/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// FindByID は指定IDの注文を品目付きで返す。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, nil
	}
	order := &model.Order{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM orders WHERE id = $1`,
		id,
	).Scan(&order.ID, &order.UserID, &order.CreatedAt, &order.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	if err := r.loadItems(ctx, []*model.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// List は条件に一致する注文を品目付きで作成順に返す。
func (r *PostgresOrderRepo) List(ctx context.Context, q OrderQuery) ([]*model.Order, error) {
	// UUIDとして不正な組織・ユーザーに一致する注文はない
	var ok bool
	if q.OrganizationID != "" {
		if q.OrganizationID, ok = normalizeID(q.OrganizationID); !ok {
			return []*model.Order{}, nil
		}
	}
	if q.UserID != "" {
		if q.UserID, ok = normalizeID(q.UserID); !ok {
			return []*model.Order{}, nil
		}
	}

	query, args := buildOrderListQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*model.Order{}
	for rows.Next() {
		o := &model.Order{}
		if err := rows.Scan(&o.ID, &o.UserID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// buildOrderListQuery はOrderQueryからSQLと引数を組み立てる。
func buildOrderListQuery(q OrderQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT o.id, o.user_id, o.created_at, o.updated_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.created_at >= $1 AND o.created_at < $2`)
	args := []any{q.From, q.Before}

	if q.OrganizationID != "" {
		args = append(args, q.OrganizationID)
		fmt.Fprintf(&sb, " AND u.organization_id = $%d", len(args))
	}
	if q.UserID != "" {
		args = append(args, q.UserID)
		fmt.Fprintf(&sb, " AND o.user_id = $%d", len(args))
	}
	sb.WriteString(" ORDER BY o.created_at, o.id")

	return sb.String(), args
}

// loadItems は注文の品目を1クエリでまとめて読み込む。
func (r *PostgresOrderRepo) loadItems(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*model.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		o.Items = []model.Item{}
		byID[o.ID] = o
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT oi.order_id, i.id, i.category_id, c.name, i.name, i.description, i.price, i.created_at, i.updated_at
		 FROM order_items oi
		 JOIN items i ON i.id = oi.item_id
		 JOIN categories c ON c.id = i.category_id
		 WHERE oi.order_id::text = ANY($1)`+itemOrder,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var it model.Item
		if err := rows.Scan(
			&orderID, &it.ID, &it.CategoryID, &it.CategoryName, &it.Name,
			&it.Description, &it.Price, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order items: %w", err)
	}
	return nil
}

// Create は注文とorder_itemsを同一トランザクションで作成する。
// 品目の登録に失敗した場合は注文自体もロールバックされる。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) error {
	return withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
			order.ID, order.UserID, order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return mapPostgresError(err, "failed to insert order")
		}

		ids := make([]string, len(order.Items))
		for i, it := range order.Items {
			ids[i] = it.ID
		}
		return insertOrderItems(ctx, tx, order.ID, ids)
	})
}

// ReplaceItems は注文の品目を同一トランザクションで置き換える。
func (r *PostgresOrderRepo) ReplaceItems(ctx context.Context, orderID string, itemIDs []string, updatedAt time.Time) error {
	return withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE orders SET updated_at = $2 WHERE id = $1`, orderID, updatedAt)
		if err != nil {
			return mapPostgresError(err, "failed to update order")
		}
		if err := checkRowsAffected(result, "注文", orderID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
			return mapPostgresError(err, "failed to delete order items")
		}
		return insertOrderItems(ctx, tx, orderID, itemIDs)
	})
}

func insertOrderItems(ctx context.Context, tx *sql.Tx, orderID string, itemIDs []string) error {
	for _, itemID := range itemIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, item_id) VALUES ($1, $2)`,
			orderID, itemID,
		); err != nil {
			return mapPostgresError(err, "failed to insert order item")
		}
	}
	return nil
}

// DeleteByID は注文を削除する。order_itemsはCASCADE削除される。
func (r *PostgresOrderRepo) DeleteByID(ctx context.Context, id string) error {
	id, ok := normalizeID(id)
	if !ok {
		return model.NewNotFoundError("注文", id)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err, "failed to delete order")
	}
	return checkRowsAffected(result, "注文", id)
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
