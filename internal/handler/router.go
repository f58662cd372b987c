package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lunchman/internal/metrics"
	"github.com/hitoshi/lunchman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	PrincipalResolver middleware.PrincipalResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 運用
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	UserService    UserServiceInterface
	OrderService   OrderServiceInterface
	MenuResolver   WeekResolverInterface
	CatalogService CatalogServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS
//	  → Principal → RateLimit(General) → CSRF
//
// /health と /metrics はプリンシパル解決の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用エンドポイント ---
	if deps.HealthChecker != nil {
		r.Get("/health", HealthHandler(deps.HealthChecker))
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	orderHandler := NewOrderHandler(deps.OrderService, deps.MenuResolver)
	menuHandler := NewMenuHandler(deps.MenuResolver, collector)
	catalogHandler := NewCatalogHandler(deps.CatalogService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPrincipalMiddleware(deps.PrincipalResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// --- 認証不要のルート ---

		// 認証ルート（OAuthフロー）
		r.Route("/auth", func(r chi.Router) {
			r.Get("/providers", authHandler.Providers)
			r.Get("/{provider}/login", authHandler.Login)
			r.Get("/{provider}/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// サインアップ時に選択する組織
		r.Get("/api/organizations", catalogHandler.PublicOrganizations)

		// メニューは誰でも参照できる
		r.Route("/api/menus", func(r chi.Router) {
			r.Get("/actual", menuHandler.Actual)
			r.Get("/week", menuHandler.Week)
		})

		r.Route("/api/orders", func(r chi.Router) {
			// 注文一覧はゲストには空で返す
			r.Get("/", orderHandler.ListOrders)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuthentication)

				// POST /api/orders - 注文作成（注文専用レート制限を追加）
				r.With(deps.RateLimiter.OrderCreationMiddleware()).Post("/", orderHandler.CreateOrder)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", orderHandler.GetOrder)
					r.Patch("/", orderHandler.UpdateOrder)
					r.Delete("/", orderHandler.DeleteOrder)
				})
			})
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthentication)

			r.Route("/api/users", func(r chi.Router) {
				r.Get("/me", userHandler.Me)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", userHandler.GetUser)
					r.Patch("/", userHandler.UpdateUser)
					r.Delete("/", userHandler.DeleteUser)
					r.Post("/auth_token", userHandler.RegenerateAuthToken)
				})
			})

			// 管理パネルAPI（権限判定はサービス層のポリシーで行う）
			r.Route("/api/admin", func(r chi.Router) {
				r.Route("/organizations", func(r chi.Router) {
					r.Get("/", catalogHandler.ListOrganizations)
					r.Post("/", catalogHandler.CreateOrganization)
					r.Patch("/{id}", catalogHandler.UpdateOrganization)
					r.Delete("/{id}", catalogHandler.DeleteOrganization)
				})
				r.Route("/categories", func(r chi.Router) {
					r.Get("/", catalogHandler.ListCategories)
					r.Post("/", catalogHandler.CreateCategory)
					r.Patch("/{id}", catalogHandler.UpdateCategory)
					r.Delete("/{id}", catalogHandler.DeleteCategory)
				})
				r.Route("/items", func(r chi.Router) {
					r.Get("/", catalogHandler.ListItems)
					r.Post("/", catalogHandler.CreateItem)
					r.Patch("/{id}", catalogHandler.UpdateItem)
					r.Delete("/{id}", catalogHandler.DeleteItem)
				})
				r.Route("/day_menus", func(r chi.Router) {
					r.Get("/", catalogHandler.ListDayMenus)
					r.Post("/", catalogHandler.CreateDayMenu)
					r.Get("/{id}", catalogHandler.GetDayMenu)
					r.Delete("/{id}", catalogHandler.DeleteDayMenu)
				})
				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.ListUsers)
					r.Patch("/{id}", userHandler.UpdateUser)
				})
			})
		})
	})

	return r
}
