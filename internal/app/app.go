package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/EtimGeorge/NexusAcademy-project/internal/auth"
	"github.com/EtimGeorge/NexusAcademy-project/internal/blog"
	"github.com/EtimGeorge/NexusAcademy-project/internal/config"
	"github.com/EtimGeorge/NexusAcademy-project/internal/course"
	"github.com/EtimGeorge/NexusAcademy-project/internal/database"
	"github.com/EtimGeorge/NexusAcademy-project/internal/enrollment"
	"github.com/EtimGeorge/NexusAcademy-project/internal/handler"
	"github.com/EtimGeorge/NexusAcademy-project/internal/logger"
	"github.com/EtimGeorge/NexusAcademy-project/internal/metrics"
	"github.com/EtimGeorge/NexusAcademy-project/internal/middleware"
	"github.com/EtimGeorge/NexusAcademy-project/internal/navigation"
	"github.com/EtimGeorge/NexusAcademy-project/internal/pages"
	"github.com/EtimGeorge/NexusAcademy-project/internal/repository"
	"github.com/EtimGeorge/NexusAcademy-project/internal/security"
	"github.com/EtimGeorge/NexusAcademy-project/internal/user"
	"github.com/EtimGeorge/NexusAcademy-project/internal/worker/blogsync"
	"github.com/EtimGeorge/NexusAcademy-project/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映してロガーを作り直す
	logger.SetLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

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
		slog.String("description", cmd.Description()),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("google_login", cfg.GoogleEnabled()),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := connectDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. ルーターの構築
	reg := newMetricsRegistry()
	router, cleanupFn, err := buildRouter(cfg, db, reg)
	if err != nil {
		return err
	}
	defer cleanupFn()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("webhook_path", maskPath(cfg.PaystackWebhookPath)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// connectDB は起動時の疎通確認付きでDBに接続する。
func connectDB(databaseURL string) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return database.Connect(ctx, databaseURL)
}

// buildRouter はリポジトリ・サービス・ハンドラーをワイヤリングしたルーターを返す。
// 戻り値の関数はレートリミッターなどのバックグラウンド処理を停止する。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, func(), error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	lessonRepo := repository.NewPostgresLessonRepo(db)
	enrollmentRepo := repository.NewPostgresEnrollmentRepo(db)
	postRepo := repository.NewPostgresBlogPostRepo(db)

	// 2. メトリクスとセキュリティサービスの初期化
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewContentSanitizer()

	// 3. ドメインサービスの初期化
	// Googleの設定が揃っていない場合はnilを渡し、ログインを無効化する
	var oauthProvider auth.OAuthProvider
	if cfg.GoogleEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		})
	}
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	courseService := course.NewService(courseRepo, lessonRepo)
	enrollmentService := enrollment.NewService(enrollmentRepo, courseRepo)
	blogService := blog.NewService(postRepo)
	userService := user.NewService(userRepo, sessionRepo)

	// 4. 画面（クライアントルーター）の構築
	table, err := navigation.NewRouteTable(navigation.DefaultRoutes())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build route table: %w", err)
	}
	registry, err := pages.NewRegistry(pages.Deps{
		Courses:           courseService,
		Enrollments:       enrollmentService,
		Blog:              blogService,
		Profiles:          userService,
		Sanitizer:         sanitizer,
		PostViews:         collector,
		PaystackPublicKey: cfg.PaystackPublicKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build page registry: %w", err)
	}
	pageHandler, err := handler.NewPageHandler(table, registry, userService, collector)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build page handler: %w", err)
	}

	// 5. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS: cfg.CookieSecure,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		WebhookPath:    cfg.PaystackWebhookPath,
		WebhookHandler: handler.NewWebhookHandler(cfg.PaystackSecretKey, enrollmentService, collector),

		CourseService:     courseService,
		BlogService:       blogService,
		UserService:       userService,
		EnrollmentService: enrollmentService,

		PageHandler: pageHandler,
		Shell:       pages.ShellHandler(),

		Health:  handler.NewHealthHandler(db),
		Metrics: metrics.Handler(reg),
		Logger:  slog.Default(),
	}

	return handler.NewRouter(deps), rateLimiter.Stop, nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、ブログ同期スケジューラとセッションクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := connectDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. メトリクスの初期化
	reg := newMetricsRegistry()
	collector := metrics.NewCollector(reg)

	// 3. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 4. メトリクスエンドポイント（METRICS_PORT指定時のみ）
	if cfg.MetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server listen error", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("worker starting",
		slog.Bool("blog_sync", cfg.BlogFeedURL != ""),
		slog.Duration("blog_sync_interval", cfg.BlogSyncInterval),
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをバックグラウンド実行（起動直後に1回実行される）
	go cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	// 5. ブログ同期スケジューラ
	if cfg.BlogFeedURL == "" {
		slog.Warn("BLOG_FEED_URL is not set; blog sync is disabled")
		<-ctx.Done()
		slog.Info("worker stopped gracefully")
		return nil
	}

	scheduler := newBlogScheduler(cfg, repository.NewPostgresBlogPostRepo(db), collector)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.BlogSyncInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// newBlogScheduler はSSRF防止付きクライアントでフィードを取得するスケジューラを構築する。
func newBlogScheduler(cfg *config.Config, posts repository.BlogPostRepository, recorder metrics.BlogSyncRecorder) *blogsync.Scheduler {
	guard := security.NewSSRFGuard(cfg.FetchTimeout, cfg.FetchMaxSize)
	syncer := blogsync.NewSyncer(
		cfg.BlogFeedURL,
		guard.Client(),
		guard,
		posts,
		security.NewContentSanitizer(),
		recorder,
		slog.Default(),
		guard.MaxResponseSize(),
	)
	return blogsync.NewScheduler(syncer, slog.Default())
}

// newMetricsRegistry はGo runtimeとプロセスのコレクターを登録したレジストリを返す。
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
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

	slog.Info("database migrations completed successfully")
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
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	hadUser := u.User != nil
	u.User = nil
	u.RawQuery = ""
	masked := u.String()
	if hadUser {
		prefix := u.Scheme + "://"
		masked = prefix + "***@" + strings.TrimPrefix(masked, prefix)
	}
	return masked
}

// maskPath はWebhookの受信パスを末尾4文字だけ残して伏せる。
// パス自体が推測されにくい秘密の一部になっている。
func maskPath(path string) string {
	if len(path) <= 4 {
		return "***"
	}
	return "***" + path[len(path)-4:]
}
