package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/lunchman/internal/menu"
	"github.com/hitoshi/lunchman/internal/metrics"
	"github.com/hitoshi/lunchman/internal/middleware"
	"github.com/hitoshi/lunchman/internal/model"
)

// WeekResolverInterface は週表示を含むメニュー解決のインターフェース。
type WeekResolverInterface interface {
	MenuResolverInterface
	Week(ctx context.Context, at time.Time) ([]menu.Day, error)
}

// MenuHandler は日替わりメニュー参照のHTTPハンドラー。
type MenuHandler struct {
	resolver WeekResolverInterface
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewMenuHandler はMenuHandlerを生成する。
func NewMenuHandler(resolver WeekResolverInterface, collector metrics.MetricsCollector) *MenuHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &MenuHandler{
		resolver: resolver,
		metrics:  collector,
		now:      time.Now,
	}
}

type weekDayResponse struct {
	Date string           `json:"date"`
	Menu *dayMenuResponse `json:"menu"`
}

// date はクエリのdateを解釈する。省略時は現在日時。
func (h *MenuHandler) date(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, ok := parseDate(r.URL.Query().Get("date"), h.resolver.Location())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("dateはYYYY-MM-DD形式で指定してください。"))
		return time.Time{}, false
	}
	if date.IsZero() {
		date = h.now()
	}
	return date, true
}

// Actual は指定日に有効な日替わりメニューを返す。
// GET /api/menus/actual?date=YYYY-MM-DD
func (h *MenuHandler) Actual(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}

	m, err := h.resolver.Actual(r.Context(), date)
	if err != nil {
		if model.IsAPIErrorCode(err, model.ErrCodeMenuNotFound) {
			h.metrics.RecordMenuNotFound()
		}
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayMenuResponse(m))
}

// Week は指定日を含む週（月曜始まり）のメニューを返す。
// GET /api/menus/week?date=YYYY-MM-DD
func (h *MenuHandler) Week(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}

	days, err := h.resolver.Week(r.Context(), date)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	loc := h.resolver.Location()
	resp := make([]weekDayResponse, len(days))
	for i, d := range days {
		resp[i] = weekDayResponse{
			Date: d.Date.In(loc).Format(dateLayout),
			Menu: toDayMenuResponse(d.Menu),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
