package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lunchman/internal/middleware"
	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, principal *model.User, userID string) (*model.User, error)
	List(ctx context.Context, principal *model.User) ([]*model.User, error)
	Update(ctx context.Context, principal *model.User, userID string, p user.UpdateParams) (*model.User, error)
	RegenerateAuthToken(ctx context.Context, principal *model.User, userID string) (*model.User, error)
	// Delete はユーザーを削除する。注文とセッションも連鎖削除される。
	Delete(ctx context.Context, principal *model.User, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// updateUserRequest はPATCH /api/users/{id} のリクエストボディ。
type updateUserRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Admin          *bool   `json:"admin"`
	OrganizationID *string `json:"organization_id"`
}

// Me はログイン中のユーザーを返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	u, err := h.service.Get(r.Context(), principal, principal.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u, principal))
}

// GetUser はユーザーを返す。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	u, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u, principal))
}

// ListUsers は全ユーザーを返す（管理者のみ）。
// GET /api/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	users, err := h.service.List(r.Context(), principal)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u, principal)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateUser はユーザーを更新する。
// 管理者フラグと所属組織の変更はmanage権限が必要。
// PATCH /api/users/{id}
// PATCH /api/admin/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	principal := middleware.PrincipalFromContext(r.Context())
	u, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "id"), user.UpdateParams{
		Name:           req.Name,
		Email:          req.Email,
		Admin:          req.Admin,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u, principal))
}

// RegenerateAuthToken はAPIトークンを再発行する。
// POST /api/users/{id}/auth_token
func (h *UserHandler) RegenerateAuthToken(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	u, err := h.service.RegenerateAuthToken(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u, principal))
}

// DeleteUser はユーザーを削除する。
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
