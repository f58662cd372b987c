package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/lunchman/internal/model"
)

// userCreationLockKey はユーザー作成を直列化するアドバイザリロックのキー。
const userCreationLockKey int64 = 0x6c756e6368 // "lunch"

const userColumns = `id, name, email, provider, uid, auth_token, admin, organization_id, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Provider, &u.UID, &u.AuthToken,
		&u.Admin, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// findOne は1件取得クエリを実行する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) findOne(ctx context.Context, where string, args ...any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	id, ok := normalizeID(id)
	if !ok {
		return nil, nil
	}
	return r.findOne(ctx, `id = $1`, id)
}

// FindByProviderUID はproviderとuidでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByProviderUID(ctx context.Context, provider, uid string) (*model.User, error) {
	if provider == "" || uid == "" {
		return nil, nil
	}
	return r.findOne(ctx, `provider = $1 AND uid = $2`, provider, uid)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}
	return r.findOne(ctx, `email = $1`, email)
}

// FindByAuthToken は認証トークンでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByAuthToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, `auth_token = $1`, token)
}

// List は全ユーザーを作成順に返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Update は名前・メール・管理者フラグ・所属組織を更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET name = $2, email = $3, admin = $4, organization_id = $5, updated_at = $6
		 WHERE id = $1`,
		user.ID, user.Name, user.Email, user.Admin, user.OrganizationID, user.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to update user")
	}
	return checkRowsAffected(result, "ユーザー", user.ID)
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するorders、sessionsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	id, ok := normalizeID(id)
	if !ok {
		return model.NewNotFoundError("ユーザー", id)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err, "failed to delete user")
	}
	return checkRowsAffected(result, "ユーザー", id)
}

// InTx はユーザー作成用のアドバイザリロックを取得したトランザクションでfnを実行する。
// ロックはトランザクション終了時に自動で解放される。
func (r *PostgresUserRepo) InTx(ctx context.Context, fn func(tx UserTx) error) error {
	return withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userCreationLockKey); err != nil {
			return fmt.Errorf("failed to acquire user creation lock: %w", err)
		}
		return fn(&postgresUserTx{tx: tx})
	})
}

// postgresUserTx はUserTxの*sql.Tx実装。
type postgresUserTx struct {
	tx *sql.Tx
}

// CountUsers は既存ユーザー数を返す。
func (t *postgresUserTx) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := t.tx.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// AuthTokenTaken はexceptUserID以外のユーザーがtokenを使用しているかを返す。
func (t *postgresUserTx) AuthTokenTaken(ctx context.Context, token, exceptUserID string) (bool, error) {
	var taken bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE auth_token = $1 AND id::text <> $2)`,
		token, exceptUserID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check auth token: %w", err)
	}
	return taken, nil
}

// Insert はユーザーを作成する。
func (t *postgresUserTx) Insert(ctx context.Context, user *model.User) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Name, user.Email, user.Provider, user.UID, user.AuthToken,
		user.Admin, user.OrganizationID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to insert user")
	}
	return nil
}

// UpdateAuthToken は既存ユーザーの認証トークンを更新する。
func (t *postgresUserTx) UpdateAuthToken(ctx context.Context, userID, token string, updatedAt time.Time) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE users SET auth_token = $2, updated_at = $3 WHERE id = $1`,
		userID, token, updatedAt,
	)
	if err != nil {
		return mapPostgresError(err, "failed to update auth token")
	}
	return checkRowsAffected(result, "ユーザー", userID)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
var _ UserTx = (*postgresUserTx)(nil)
