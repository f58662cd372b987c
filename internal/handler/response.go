// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/lunchman/internal/middleware"
	"github.com/hitoshi/lunchman/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 64 << 10

// dateLayout はクエリパラメータの日付形式。
const dateLayout = "2006-01-02"

// --- レスポンス型 ---

type organizationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type categoryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type itemResponse struct {
	ID           string `json:"id"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        int    `json:"price"`
}

type dayMenuResponse struct {
	ID        string         `json:"id"`
	DayID     int            `json:"day_id"`
	Items     []itemResponse `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
}

type orderResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Items     []itemResponse `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// userResponse はユーザー情報のAPIレスポンス。
// auth_tokenは本人と管理者にのみ返す。
type userResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Provider       string `json:"provider,omitempty"`
	Admin          bool   `json:"admin"`
	OrganizationID string `json:"organization_id"`
	AuthToken      string `json:"auth_token,omitempty"`
}

func toOrganizationResponse(o *model.Organization) organizationResponse {
	return organizationResponse{ID: o.ID, Name: o.Name}
}

func toCategoryResponse(c *model.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Position: c.Position}
}

func toItemResponse(it model.Item) itemResponse {
	return itemResponse{
		ID:           it.ID,
		CategoryID:   it.CategoryID,
		CategoryName: it.CategoryName,
		Name:         it.Name,
		Description:  it.Description,
		Price:        it.Price,
	}
}

func toItemResponses(items []model.Item) []itemResponse {
	out := make([]itemResponse, len(items))
	for i, it := range items {
		out[i] = toItemResponse(it)
	}
	return out
}

func toDayMenuResponse(m *model.DayMenu) *dayMenuResponse {
	if m == nil {
		return nil
	}
	return &dayMenuResponse{
		ID:        m.ID,
		DayID:     int(m.Weekday),
		Items:     toItemResponses(m.Items),
		CreatedAt: m.CreatedAt,
	}
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Items:     toItemResponses(o.Items),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func toUserResponse(u *model.User, viewer *model.User) userResponse {
	resp := userResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Provider:       u.Provider,
		Admin:          u.Admin,
		OrganizationID: u.OrganizationID,
	}
	if viewer.IsAdmin() || (!viewer.IsGuest() && viewer.ID == u.ID) {
		resp.AuthToken = u.AuthToken
	}
	return resp
}

// --- ヘルパー関数 ---

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("リクエストボディの解析に失敗しました。"))
		return false
	}
	return true
}

// invalidRequestError はリクエスト形式の誤りを表すエラーを生成する。
func invalidRequestError(message string) *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  message,
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}

// parseDate はYYYY-MM-DD形式の日付をlocで解釈する。空文字列はゼロ値を返す。
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, "INVALID_REQUEST":
		return http.StatusBadRequest
	case model.ErrCodeNotFound, model.ErrCodeMenuNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnauthorized:
		return http.StatusForbidden
	case model.ErrCodeAuthenticationRequired:
		return http.StatusUnauthorized
	case model.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
