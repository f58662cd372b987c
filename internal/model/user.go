// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ユーザー名の長さ制約（文字数）。
const (
	UserNameMinLength = 1
	UserNameMaxLength = 150
)

// Organization はユーザーが所属する組織を表す。
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User はサービス利用ユーザーを表す。
// IDが空のUserはゲスト（未ログイン）として扱う。
type User struct {
	ID             string
	Name           string
	Email          string
	Provider       string // 外部IdP名（"google", "facebook"等）
	UID            string // 外部IdP上のユーザーID
	AuthToken      string
	Admin          bool
	OrganizationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Guest は未ログインのプリンシパルを返す。
// 永続化されたIDを持たず、管理者権限もない。
func Guest() *User {
	return &User{}
}

// IsGuest はユーザーが永続化されていないゲストかどうかを返す。
func (u *User) IsGuest() bool {
	return u == nil || u.ID == ""
}

// IsAdmin は管理者かどうかを返す。nilの場合はfalse。
func (u *User) IsAdmin() bool {
	return u != nil && u.Admin
}

// Validate はユーザーの不変条件を検証する。
// 違反したフィールドをすべて含むValidationFailedエラーを返す。
func (u *User) Validate() error {
	var fields []string

	name := strings.TrimSpace(u.Name)
	if n := utf8.RuneCountInString(name); n < UserNameMinLength || n > UserNameMaxLength {
		fields = append(fields, "name")
	}
	if strings.TrimSpace(u.Email) == "" {
		fields = append(fields, "email")
	}
	if u.OrganizationID == "" {
		fields = append(fields, "organization")
	}

	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExternalIdentity は外部IdPのコールバックから受け取るユーザー情報。
type ExternalIdentity struct {
	Provider string
	UID      string
	Name     string
	Email    string
}
