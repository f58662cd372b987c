package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/hitoshi/lunchman/internal/model"
)

// mapPostgresError はPostgreSQLの制約違反をドメインのAPIErrorに変換する。
// 制約違反以外はopを付けてラップして返す。
func mapPostgresError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch string(pqErr.Code) {
	case pgerrcode.UniqueViolation:
		return model.NewConflictError(constraintField(pqErr))
	case pgerrcode.ForeignKeyViolation:
		// 参照中のレコード削除、または削除済みレコードへの参照
		return model.NewConflictError(constraintField(pqErr))
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		field := constraintField(pqErr)
		if field == "" {
			field = pqErr.Column
		}
		return model.NewValidationError(field)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("%s: transaction conflict (retryable): %w", op, err)
	default:
		return fmt.Errorf("%s: postgres error [%s]: %w", op, pqErr.Code, err)
	}
}

// constraintField は制約名から違反したフィールド名を推定する。
// 例: users_email_key → email, orders_user_id_fkey → user
func constraintField(pqErr *pq.Error) string {
	name := pqErr.Constraint
	if name == "" {
		return pqErr.Column
	}

	name = strings.TrimPrefix(name, pqErr.Table+"_")
	if name == "pkey" {
		return "id"
	}
	for _, suffix := range []string{"_fkey", "_key", "_check", "_pkey"} {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	return strings.TrimSuffix(name, "_id")
}

// withTx はトランザクション内でfnを実行する。
// fnがエラーを返した場合、またはpanicした場合はロールバックされる。
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapPostgresError(err, "failed to commit transaction")
	}
	return nil
}

// checkRowsAffected は削除・更新対象が存在しなかった場合にNotFoundを返す。
func checkRowsAffected(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError(resource, id)
	}
	return nil
}

// normalizeID はUUID形式のIDを正規表記に変換する。
// UUIDとして解釈できない値はどのレコードにも一致しないため、そのままfalseと共に返す。
func normalizeID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return id, false
	}
	return u.String(), true
}
