package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/portfolio-intel/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	RequestRecorder   middleware.RequestRecorder
	CSRFEnabled       bool
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// イベント・ポートフォリオ
	EventService     EventServiceInterface
	PortfolioService PortfolioServiceInterface

	// ウォッチリスト
	WatchlistService WatchlistServiceInterface
	WebhookTester    WebhookTester

	// ユーザー
	UserService UserServiceInterface

	// 運用
	HealthChecks   []HealthCheck
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → CSRF（有効時）
//
// 認証が必要なルートではさらに Session → RateLimit(General) を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.RequestRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.RequestRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.CSRFEnabled {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	eventHandler := NewEventHandler(deps.EventService)
	portfolioHandler := NewPortfolioHandler(deps.PortfolioService)
	watchlistHandler := NewWatchlistHandler(deps.WatchlistService, deps.WebhookTester)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)
	healthHandler := NewHealthHandler(deps.HealthChecks...)

	// --- 認証不要のルート ---

	r.Route("/api/auth", func(r chi.Router) {
		// サインアップ・ログインはIP単位のレート制限を適用
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.Signup)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.With(middleware.NewSessionMiddleware(deps.SessionResolver)).Get("/me", authHandler.Me)
	})

	r.Get("/api/health", healthHandler.Health)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", eventHandler.ListEvents)
			r.Get("/{id}", eventHandler.GetEvent)
		})

		r.Get("/api/portfolio", portfolioHandler.GetPortfolio)

		r.Route("/api/watchlist", func(r chi.Router) {
			r.Get("/", watchlistHandler.GetWatchlist)
			r.Put("/", watchlistHandler.ReplaceWatchlist)
			r.Post("/test-webhook", watchlistHandler.TestWebhook)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.ListUsers)
			r.Get("/current", userHandler.CurrentUser)
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
