package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/cyclone/internal/access"
	"github.com/hitoshi/cyclone/internal/auth"
	"github.com/hitoshi/cyclone/internal/config"
	"github.com/hitoshi/cyclone/internal/database"
	"github.com/hitoshi/cyclone/internal/githubapp"
	"github.com/hitoshi/cyclone/internal/handler"
	"github.com/hitoshi/cyclone/internal/installation"
	"github.com/hitoshi/cyclone/internal/invitation"
	"github.com/hitoshi/cyclone/internal/logger"
	"github.com/hitoshi/cyclone/internal/metrics"
	"github.com/hitoshi/cyclone/internal/middleware"
	"github.com/hitoshi/cyclone/internal/organization"
	"github.com/hitoshi/cyclone/internal/repolink"
	"github.com/hitoshi/cyclone/internal/repository"
	"github.com/hitoshi/cyclone/internal/security"
	"github.com/hitoshi/cyclone/internal/store"
	"github.com/hitoshi/cyclone/internal/waitlist"
	"github.com/hitoshi/cyclone/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_FORMATに従ってロガーを差し替える
	logger.SetupDefaultWithFormat(w, cfg.LogFormat)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	default:
		return runMigrate(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return database.Connect(context.Background(), cfg.DatabaseURL)
}

// buildRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 返されたRateLimiterは呼び出し側でStopする。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter, error) {
	collector := metrics.NewCollector(reg)

	// 1. リポジトリの初期化（管理者権限のゲートウェイ。セッションとユーザーの参照はセッション権限）
	gw := store.NewGateway(db, store.ScopeAdmin)
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(gw)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	installationRepo := repository.NewPostgresInstallationRepo(gw)
	orgRepo := repository.NewPostgresOrganizationRepo(gw)
	linkedRepo := repository.NewPostgresLinkedRepo(gw)
	invitationRepo := repository.NewPostgresInvitationRepo(gw)
	waitlistRepo := repository.NewPostgresWaitlistRepo(gw)

	// 2. 外部連携の初期化
	oauthProvider := auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.GitHubRedirectURL,
		APIURL:       cfg.GitHubAPIURL,
		HTTPClient:   &http.Client{Timeout: cfg.GitHubHTTPTimeout},
	})
	if !cfg.HasGitHubApp() {
		slog.Warn("GitHub App credentials are not configured; repository listing will fail")
	}
	bridge := githubapp.NewBridge(githubapp.Config{
		AppID:         cfg.GitHubAppID,
		PrivateKeyPEM: cfg.GitHubAppPrivateKey,
		Slug:          cfg.GitHubAppSlug,
		APIURL:        cfg.GitHubAPIURL,
		Timeout:       cfg.GitHubHTTPTimeout,
	}, collector)

	matchKey, err := repolink.ParseMatchKey(cfg.RepoMatchKey)
	if err != nil {
		return nil, nil, err
	}

	// 3. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	resolver := access.NewResolver(installationRepo, orgRepo, linkedRepo, collector)

	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	installationService := installation.NewService(installationRepo)
	orgService := organization.NewService(resolver, orgRepo, sanitizer)
	repoService := repolink.NewService(resolver, linkedRepo, bridge, sanitizer, matchKey)
	invitationService := invitation.NewService(invitationRepo)
	waitlistService := waitlist.NewService(waitlistRepo)

	// 4. ルーターの構築
	limiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))

	deps := &handler.RouterDeps{
		UserResolver:      authService,
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure:   cfg.CookieSecure,
			CookieDomain:   cfg.CookieDomain,
			TrustedOrigins: strings.Split(cfg.CORSAllowedOrigin, ","),
		},
		Logger: slog.Default(),

		StatusRecorder: collector,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
			InstallURL:    bridge.InstallURL(),
		},

		InstallationService: installationService,
		OrganizationService: orgService,
		RepositoryService:   repoService,

		WaitlistService:   waitlistService,
		InvitationService: invitationService,
	}

	return handler.NewRouter(deps), limiter, nil
}

// rateLimiterConfig はreq/min単位の設定値をreq/sec単位のレート制限設定に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitWrite > 0 {
		rl.WriteRate = rate.Limit(float64(cfg.RateLimitWrite) / 60.0)
		rl.WriteBurst = cfg.RateLimitWrite
	}
	return rl
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	reg := prometheus.NewRegistry()
	router, limiter, err := buildRouter(cfg, db, reg)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	defer limiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GitHubHTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	collector := metrics.NewCollector(prometheus.NewRegistry())
	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db), collector, slog.Default(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.RunEvery(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
