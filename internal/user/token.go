package user

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/repository"
)

// TokenLength は認証トークンの文字数。
const TokenLength = 20

// MaxTokenAttempts は重複時にトークンを引き直す最大回数。
const MaxTokenAttempts = 10

// TokenGenerator は認証トークンの候補を生成する。
type TokenGenerator func() (string, error)

// NewToken はURLセーフな20文字のランダムトークンを生成する。
func NewToken() (string, error) {
	b := make([]byte, TokenLength*3/4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate auth token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// BecomeAdminIfFirst はユーザーが1人も存在しなければuを管理者にする。
// ユーザー作成トランザクション内で、Insertより前に呼ぶ。
func BecomeAdminIfFirst(ctx context.Context, tx repository.UserTx, u *model.User) error {
	count, err := tx.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		u.Admin = true
	}
	return nil
}

// GenerateAuthToken は他のユーザーが使用していないトークンをu.AuthTokenに設定する。
// 新しいトークンは必ず現在の値と異なる。MaxTokenAttempts回で決まらなければConflictを返す。
func GenerateAuthToken(ctx context.Context, tx repository.UserTx, u *model.User, gen TokenGenerator) error {
	previous := u.AuthToken
	for range MaxTokenAttempts {
		token, err := gen()
		if err != nil {
			return err
		}
		if token == "" || token == previous {
			continue
		}

		taken, err := tx.AuthTokenTaken(ctx, token, u.ID)
		if err != nil {
			return err
		}
		if !taken {
			u.AuthToken = token
			return nil
		}
	}
	return model.NewConflictError("auth_token")
}
