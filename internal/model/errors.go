package model

import (
	"errors"
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string   // エラーコード
	Message  string   // エラーメッセージ
	Category string   // カテゴリ: auth, validation, menu, order, system
	Action   string   // ユーザー向け対処方法
	Fields   []string // 違反したフィールド（検証・一意制約エラー時）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed       = "VALIDATION_FAILED"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeMenuNotFound           = "MENU_NOT_FOUND"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	ErrCodeConflict               = "CONFLICT"
)

// NewValidationError はエンティティの不変条件違反エラーを生成する。
func NewValidationError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "指定されたフィールドの値を確認してください。",
		Fields:   fields,
	}
}

// NewNotFoundError は参照先エンティティが存在しない場合のエラーを生成する。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", resource, id),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewMenuNotFoundError は指定日時に有効な日替わりメニューがない場合のエラーを生成する。
func NewMenuNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMenuNotFound,
		Message:  "指定された日のメニューはまだ登録されていません。",
		Category: "menu",
		Action:   "別の日付を指定するか、管理者にメニューの登録を依頼してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError はアクセスポリシーで操作が拒否された場合のエラーを生成する。
// 対象リソースの存在有無はメッセージに含めない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に権限を確認してください。",
	}
}

// NewAuthenticationRequiredError はログインが必要な操作を未ログインで行った場合のエラーを生成する。
func NewAuthenticationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewConflictError は一意制約違反のエラーを生成する。
func NewConflictError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "既に使用されている値です。",
		Category: "validation",
		Action:   "別の値を指定してください。",
		Fields:   fields,
	}
}

// IsAPIErrorCode はerrがcodeを持つAPIErrorかどうかを返す。
func IsAPIErrorCode(err error, code string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
