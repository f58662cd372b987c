package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lunchman/internal/middleware"
	"github.com/hitoshi/lunchman/internal/model"
	"github.com/hitoshi/lunchman/internal/order"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	List(ctx context.Context, principal *model.User, c order.Criteria) ([]*model.Order, error)
	Get(ctx context.Context, principal *model.User, orderID string) (*model.Order, error)
	Create(ctx context.Context, principal *model.User, itemIDs []string) (*model.Order, error)
	Update(ctx context.Context, principal *model.User, orderID string, itemIDs []string) (*model.Order, error)
	Delete(ctx context.Context, principal *model.User, orderID string) error
}

// MenuResolverInterface は日替わりメニューの解決を行うインターフェース。
type MenuResolverInterface interface {
	Location() *time.Location
	Actual(ctx context.Context, at time.Time) (*model.DayMenu, error)
}

// OrderHandler は注文のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
	menus   MenuResolverInterface
	now     func() time.Time
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface, menus MenuResolverInterface) *OrderHandler {
	return &OrderHandler{
		service: service,
		menus:   menus,
		now:     time.Now,
	}
}

// orderRequest は注文の作成・更新リクエストボディ。
type orderRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// orderListResponse は注文一覧と、その日の日替わりメニュー（なければnull）。
type orderListResponse struct {
	Date   string           `json:"date"`
	Orders []orderResponse  `json:"orders"`
	Menu   *dayMenuResponse `json:"menu"`
}

// ListOrders は指定日の注文一覧を返す。
// GET /api/orders?date=YYYY-MM-DD&organization_id=xxx
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	loc := h.menus.Location()
	date, ok := parseDate(r.URL.Query().Get("date"), loc)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("dateはYYYY-MM-DD形式で指定してください。"))
		return
	}
	if date.IsZero() {
		date = h.now()
	}

	principal := middleware.PrincipalFromContext(r.Context())
	orders, err := h.service.List(r.Context(), principal, order.Criteria{
		Date:           date,
		OrganizationID: r.URL.Query().Get("organization_id"),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	menu, err := h.menus.Actual(r.Context(), date)
	if err != nil && !model.IsAPIErrorCode(err, model.ErrCodeMenuNotFound) {
		handleServiceError(w, err)
		return
	}

	resp := orderListResponse{
		Date:   date.In(loc).Format(dateLayout),
		Orders: make([]orderResponse, len(orders)),
		Menu:   toDayMenuResponse(menu),
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder は注文を返す。
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	o, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// CreateOrder は注文を作成する。
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	principal := middleware.PrincipalFromContext(r.Context())
	o, err := h.service.Create(r.Context(), principal, req.ItemIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// UpdateOrder は注文の品目を置き換える。
// PATCH /api/orders/{id}
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	principal := middleware.PrincipalFromContext(r.Context())
	o, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "id"), req.ItemIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// DeleteOrder は注文を削除する。
// DELETE /api/orders/{id}
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
