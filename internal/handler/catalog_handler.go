package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lunchman/internal/catalog"
	"github.com/hitoshi/lunchman/internal/middleware"
	"github.com/hitoshi/lunchman/internal/model"
)

// CatalogServiceInterface は管理パネルAPIが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	PublicOrganizations(ctx context.Context) ([]*model.Organization, error)
	ListOrganizations(ctx context.Context, principal *model.User) ([]*model.Organization, error)
	CreateOrganization(ctx context.Context, principal *model.User, p catalog.OrganizationParams) (*model.Organization, error)
	UpdateOrganization(ctx context.Context, principal *model.User, id string, p catalog.OrganizationParams) (*model.Organization, error)
	DeleteOrganization(ctx context.Context, principal *model.User, id string) error

	ListCategories(ctx context.Context, principal *model.User) ([]*model.Category, error)
	CreateCategory(ctx context.Context, principal *model.User, p catalog.CategoryParams) (*model.Category, error)
	UpdateCategory(ctx context.Context, principal *model.User, id string, p catalog.CategoryParams) (*model.Category, error)
	DeleteCategory(ctx context.Context, principal *model.User, id string) error

	ListItems(ctx context.Context, principal *model.User) ([]model.Item, error)
	CreateItem(ctx context.Context, principal *model.User, p catalog.ItemParams) (*model.Item, error)
	UpdateItem(ctx context.Context, principal *model.User, id string, p catalog.ItemParams) (*model.Item, error)
	DeleteItem(ctx context.Context, principal *model.User, id string) error

	ListDayMenus(ctx context.Context, principal *model.User) ([]*model.DayMenu, error)
	GetDayMenu(ctx context.Context, principal *model.User, id string) (*model.DayMenu, error)
	CreateDayMenu(ctx context.Context, principal *model.User, p catalog.DayMenuParams) (*model.DayMenu, error)
	DeleteDayMenu(ctx context.Context, principal *model.User, id string) error
}

// CatalogHandler は組織・分類・品目・日替わりメニューのHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service}
}

type organizationRequest struct {
	Name string `json:"name"`
}

type categoryRequest struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type itemRequest struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
}

type dayMenuRequest struct {
	DayID   int      `json:"day_id"`
	ItemIDs []string `json:"item_ids"`
}

// --- 組織 ---

// PublicOrganizations はサインアップ用の組織一覧を返す。認証不要。
// GET /api/organizations
func (h *CatalogHandler) PublicOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.PublicOrganizations(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeOrganizations(w, orgs)
}

// ListOrganizations GET /api/admin/organizations
func (h *CatalogHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.ListOrganizations(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeOrganizations(w, orgs)
}

// CreateOrganization POST /api/admin/organizations
func (h *CatalogHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.service.CreateOrganization(r.Context(), middleware.PrincipalFromContext(r.Context()), catalog.OrganizationParams{Name: req.Name})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrganizationResponse(o))
}

// UpdateOrganization PATCH /api/admin/organizations/{id}
func (h *CatalogHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.service.UpdateOrganization(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), catalog.OrganizationParams{Name: req.Name})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationResponse(o))
}

// DeleteOrganization DELETE /api/admin/organizations/{id}
func (h *CatalogHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.service.DeleteOrganization)
}

// --- 分類 ---

// ListCategories GET /api/admin/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCategory POST /api/admin/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.service.CreateCategory(r.Context(), middleware.PrincipalFromContext(r.Context()), catalog.CategoryParams(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// UpdateCategory PATCH /api/admin/categories/{id}
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), catalog.CategoryParams(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

// DeleteCategory DELETE /api/admin/categories/{id}
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.service.DeleteCategory)
}

// --- 品目 ---

// ListItems GET /api/admin/items
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(items))
}

// CreateItem POST /api/admin/items
func (h *CatalogHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.service.CreateItem(r.Context(), middleware.PrincipalFromContext(r.Context()), catalog.ItemParams(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(*it))
}

// UpdateItem PATCH /api/admin/items/{id}
func (h *CatalogHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.service.UpdateItem(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), catalog.ItemParams(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(*it))
}

// DeleteItem DELETE /api/admin/items/{id}
func (h *CatalogHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.service.DeleteItem)
}

// --- 日替わりメニュー ---

// ListDayMenus は全曜日・全版のメニューを返す。
// GET /api/admin/day_menus
func (h *CatalogHandler) ListDayMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.service.ListDayMenus(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]*dayMenuResponse, len(menus))
	for i, m := range menus {
		resp[i] = toDayMenuResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDayMenu GET /api/admin/day_menus/{id}
func (h *CatalogHandler) GetDayMenu(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetDayMenu(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayMenuResponse(m))
}

// CreateDayMenu は曜日のメニューの新しい版を作成する。
// POST /api/admin/day_menus
func (h *CatalogHandler) CreateDayMenu(w http.ResponseWriter, r *http.Request) {
	var req dayMenuRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.service.CreateDayMenu(r.Context(), middleware.PrincipalFromContext(r.Context()), catalog.DayMenuParams{
		Weekday: time.Weekday(req.DayID),
		ItemIDs: req.ItemIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDayMenuResponse(m))
}

// DeleteDayMenu DELETE /api/admin/day_menus/{id}
func (h *CatalogHandler) DeleteDayMenu(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.service.DeleteDayMenu)
}

func (h *CatalogHandler) delete(w http.ResponseWriter, r *http.Request, fn func(context.Context, *model.User, string) error) {
	if err := fn(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeOrganizations(w http.ResponseWriter, orgs []*model.Organization) {
	resp := make([]organizationResponse, len(orgs))
	for i, o := range orgs {
		resp[i] = toOrganizationResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}
