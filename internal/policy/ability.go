// Package policy はプリンシパルごとのアクセス可否を判定する。
//
// 判定はリクエストやDBに依存しない純粋関数で、ハンドラやサービスは
// 変更系の処理を行う前に必ずAuthorizeを呼ぶ。
package policy

import "github.com/hitoshi/lunchman/internal/model"

// Action は操作の種類。
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
	// ActionManage は全操作を表す。管理者にのみ許可される。
	ActionManage Action = "manage"
)

// Resource は操作対象のリソース種別。
type Resource string

const (
	ResourceUser         Resource = "user"
	ResourceOrganization Resource = "organization"
	ResourceCategory     Resource = "category"
	ResourceItem         Resource = "item"
	ResourceDayMenu      Resource = "day_menu"
	ResourceOrder        Resource = "order"
)

// Ability はあるプリンシパルに許可された操作の集合。
type Ability struct {
	principal *model.User
}

// For はprincipalのAbilityを返す。nilはゲストとして扱う。
func For(principal *model.User) *Ability {
	if principal == nil {
		principal = model.Guest()
	}
	return &Ability{principal: principal}
}

// Principal は判定対象のプリンシパルを返す。
func (a *Ability) Principal() *model.User {
	return a.principal
}

// Can はresourceのinstanceに対してactionが許可されているかを返す。
// instanceは種別単位の判定ではnilを渡す。
//
//   - 管理者: すべて許可
//   - それ以外: 全種別の閲覧、自分自身のUserの閲覧・更新・削除、
//     永続化済みユーザーによる注文の作成と自分の注文の更新・削除
func (a *Ability) Can(action Action, resource Resource, instance any) bool {
	if a.principal.IsAdmin() {
		return true
	}

	switch action {
	case ActionRead:
		return true
	case ActionCreate:
		return resource == ResourceOrder && !a.principal.IsGuest()
	case ActionUpdate, ActionDestroy:
		switch resource {
		case ResourceUser:
			u, ok := instance.(*model.User)
			return ok && sameIdentity(a.principal, u)
		case ResourceOrder:
			o, ok := instance.(*model.Order)
			return ok && o.OwnedBy(a.principal)
		}
	}
	return false
}

// Authorize はCanが偽の場合にUNAUTHORIZEDエラーを返す。
func (a *Ability) Authorize(action Action, resource Resource, instance any) error {
	if !a.Can(action, resource, instance) {
		return model.NewUnauthorizedError()
	}
	return nil
}

// sameIdentity は属性ではなく同一性で比較する。
// 同じ値を指すか、同じ永続化IDを持つ場合のみ真。
func sameIdentity(a, b *model.User) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	return a.ID != "" && a.ID == b.ID
}
