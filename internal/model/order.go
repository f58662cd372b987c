package model

import "time"

// Order はユーザーの注文を表す。
// CreatedAtが注文日として日付フィルタに使われる。
type Order struct {
	ID        string
	UserID    string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy は注文が指定ユーザーのものかどうかを返す。
func (o *Order) OwnedBy(user *User) bool {
	if o == nil || user.IsGuest() {
		return false
	}
	return o.UserID == user.ID
}
