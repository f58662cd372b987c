package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lunchman/internal/model"
)

// PostgresOrganizationRepo はPostgreSQLを使用した組織リポジトリ。
type PostgresOrganizationRepo struct {
	db *sql.DB
}

// NewPostgresOrganizationRepo はPostgresOrganizationRepoを生成する。
func NewPostgresOrganizationRepo(db *sql.DB) *PostgresOrganizationRepo {
	return &PostgresOrganizationRepo{db: db}
}

// FindByID は指定IDの組織を取得する。見つからない場合はnilを返す。
func (r *PostgresOrganizationRepo) FindByID(ctx context.Context, id string) (*model.Organization, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, nil
	}
	org := &model.Organization{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM organizations WHERE id = $1`,
		id,
	).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}

// List は全組織を名前順に返す。
func (r *PostgresOrganizationRepo) List(ctx context.Context) ([]*model.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*model.Organization
	for rows.Next() {
		org := &model.Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organizations: %w", err)
	}
	return orgs, nil
}

// Create は組織を作成する。
func (r *PostgresOrganizationRepo) Create(ctx context.Context, org *model.Organization) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		org.ID, org.Name, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to create organization")
	}
	return nil
}

// Update は組織名を更新する。
func (r *PostgresOrganizationRepo) Update(ctx context.Context, org *model.Organization) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET name = $2, updated_at = $3 WHERE id = $1`,
		org.ID, org.Name, org.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to update organization")
	}
	return checkRowsAffected(result, "組織", org.ID)
}

// DeleteByID は組織を削除する。所属ユーザーがいる場合はConflictになる。
func (r *PostgresOrganizationRepo) DeleteByID(ctx context.Context, id string) error {
	id, ok := normalizeID(id)
	if !ok {
		return model.NewNotFoundError("組織", id)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err, "failed to delete organization")
	}
	return checkRowsAffected(result, "組織", id)
}

// compile-time interface check
var _ OrganizationRepository = (*PostgresOrganizationRepo)(nil)
