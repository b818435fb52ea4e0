package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cyclone/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス（nilの場合は /metrics を公開しない）
	StatusRecorder middleware.StatusRecorder
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ダッシュボード
	InstallationService InstallationServiceInterface
	OrganizationService OrganizationServiceInterface
	RepositoryService   RepositoryServiceInterface

	// セッション不要
	WaitlistService   WaitlistServiceInterface
	InvitationService InvitationServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → CSRF
//	  /api/* (認証必須): Session → RateLimit(General) [→ RateLimit(Write)]
//	  /api/waitlist:     RateLimit(Write)
//
// OAuthフローとGitHubからのリダイレクトはCSRF検証の対象外のGETのみで構成する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	dashboardHandler := NewDashboardHandler(deps.InstallationService, deps.OrganizationService, deps.AuthConfig.InstallURL)
	installationHandler := NewInstallationHandler(deps.InstallationService, deps.AuthConfig.BaseURL)
	orgHandler := NewOrganizationHandler(deps.OrganizationService)
	repoHandler := NewRepositoryHandler(deps.RepositoryService)
	waitlistHandler := NewWaitlistHandler(deps.WaitlistService)
	invitationHandler := NewInvitationHandler(deps.InvitationService, deps.AuthConfig.BaseURL)

	sessionMW := middleware.NewSessionMiddleware(deps.UserResolver)
	optionalSessionMW := middleware.NewOptionalSessionMiddleware(deps.UserResolver)
	writeLimit := deps.RateLimiter.WriteMiddleware()

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.Login)
		r.Get("/github/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.With(sessionMW).Get("/me", authHandler.Me)
	})

	// GitHub Appインストール後のリダイレクト（未ログインならサインインへ）
	r.With(optionalSessionMW).Get("/github/installation/callback", installationHandler.SetupCallback)

	// 招待キー受諾
	r.Get("/invite", invitationHandler.Claim)

	// ウェイトリスト（IP単位の書き込みレート制限）
	r.With(writeLimit).Post("/api/waitlist", waitlistHandler.Join)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(sessionMW)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/dashboard", dashboardHandler.Get)
		r.With(writeLimit).Post("/api/installations", installationHandler.Save)

		// 組織管理
		r.Route("/api/organizations", func(r chi.Router) {
			r.Get("/", orgHandler.List)
			r.With(writeLimit).Post("/", orgHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", orgHandler.Get)
				r.Get("/repositories", repoHandler.List)
				r.With(writeLimit).Post("/repositories", repoHandler.Link)
				r.Get("/available-repositories", repoHandler.ListAvailable)
			})
		})

		// リポジトリ設定
		r.Route("/api/repositories/{id}", func(r chi.Router) {
			r.With(writeLimit).Patch("/", repoHandler.Update)
			r.With(writeLimit).Delete("/", repoHandler.Delete)
		})
	})

	return r
}
