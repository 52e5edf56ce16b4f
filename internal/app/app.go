package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/portfolio-intel/internal/auth"
	"github.com/hitoshi/portfolio-intel/internal/config"
	"github.com/hitoshi/portfolio-intel/internal/database"
	"github.com/hitoshi/portfolio-intel/internal/event"
	"github.com/hitoshi/portfolio-intel/internal/handler"
	"github.com/hitoshi/portfolio-intel/internal/logger"
	"github.com/hitoshi/portfolio-intel/internal/metrics"
	"github.com/hitoshi/portfolio-intel/internal/middleware"
	"github.com/hitoshi/portfolio-intel/internal/notify"
	"github.com/hitoshi/portfolio-intel/internal/pipeline"
	"github.com/hitoshi/portfolio-intel/internal/repository"
	"github.com/hitoshi/portfolio-intel/internal/security"
	"github.com/hitoshi/portfolio-intel/internal/user"
	"github.com/hitoshi/portfolio-intel/internal/watchlist"
	"github.com/hitoshi/portfolio-intel/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envを読み込む。既存の環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
		slog.String("port", cfg.ServerPort),
		slog.String("session_store", cfg.SessionStore),
		slog.String("pipeline_notifier", cfg.PipelineNotifier),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、応答するまで待機する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.WaitForReady(ctx, db, cfg.DBWaitRetries, cfg.DBWaitDelay); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// openRedis はRedisを使う構成の場合のみクライアントを生成する。不要ならnilを返す。
func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}
	rdb, err := database.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
	return rdb, nil
}

// newSessionStore はSESSION_STOREに応じたセッションストアを返す。
func newSessionStore(cfg *config.Config, db *sql.DB, rdb *redis.Client) (repository.SessionRepository, error) {
	switch cfg.SessionStore {
	case config.SessionStorePostgres:
		return repository.NewPostgresSessionRepo(db), nil
	case config.SessionStoreMemory:
		slog.Warn("using in-memory session store; sessions are lost on restart and not shared between instances")
		return repository.NewMemorySessionRepo(), nil
	case config.SessionStoreRedis:
		if rdb == nil {
			return nil, errors.New("redis session store requires a redis client")
		}
		return repository.NewRedisSessionRepo(rdb), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// newNotifier はPIPELINE_NOTIFIERに応じた通知先を返す。
func newNotifier(cfg *config.Config, rdb *redis.Client) (pipeline.Notifier, error) {
	switch cfg.PipelineNotifier {
	case config.PipelineNotifierLog:
		return pipeline.NewLogNotifier(slog.Default()), nil
	case config.PipelineNotifierHTTP:
		return pipeline.NewHTTPNotifier(cfg.PipelineInterestURL, &http.Client{Timeout: cfg.PipelineTimeout}), nil
	case config.PipelineNotifierRedis:
		if rdb == nil {
			return nil, errors.New("redis pipeline notifier requires a redis client")
		}
		return pipeline.NewRedisNotifier(rdb, cfg.PipelineRedisChannel), nil
	default:
		return nil, fmt.Errorf("unknown pipeline notifier %q", cfg.PipelineNotifier)
	}
}

// newRegistry はプロセス・ランタイムのコレクタを含むPrometheusレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB・Redis・DynamoDB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	dynamo, err := database.NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
	if err != nil {
		return err
	}

	// 2. メトリクス
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo, err := newSessionStore(cfg, db, rdb)
	if err != nil {
		return err
	}
	eventRepo := repository.NewDynamoEventRepo(dynamo, cfg.EventsTable)
	eventRepo.OnRetry = collector.RecordBatchGetRetry
	userEventRepo := repository.NewDynamoUserEventRepo(dynamo, cfg.UserEventsTable)
	watchlistRepo := repository.NewDynamoWatchlistRepo(dynamo, cfg.WatchlistTable)

	// 4. パイプライン通知
	notifier, err := newNotifier(cfg, rdb)
	if err != nil {
		return err
	}
	dispatcher := pipeline.NewDispatcher(notifier, cfg.PipelineNotifier, cfg.PipelineTimeout, slog.Default(), collector)

	// 5. ドメインサービスの初期化
	watchlistService := watchlist.NewService(watchlistRepo, dispatcher, cfg.WebhookURLPrefix)
	userService := user.NewService(userRepo, sessionRepo, watchlistService)
	authService := auth.NewService(userService, sessionRepo, watchlistService,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	eventService := event.NewService(eventRepo, userEventRepo, security.NewEventSanitizer())

	ssrfGuard := security.NewSSRFGuard()
	webhookTester := notify.NewTester(
		ssrfGuard.NewSafeClient(cfg.WebhookTestTimeout),
		cfg.WebhookURLPrefix, cfg.WebhookTestTimeout, collector,
	)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionResolver:   authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		RequestRecorder:   collector,
		CSRFEnabled:       cfg.CSRFEnabled,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		EventService:     eventService,
		PortfolioService: handler.NewPortfolioServiceAdapter(eventService),
		WatchlistService: watchlistService,
		WebhookTester:    webhookTester,
		UserService:      userService,

		HealthChecks: []handler.HealthCheck{
			{Name: "users", Target: userRepo},
			{Name: "sessions", Target: sessionRepo},
			{Name: "events", Target: eventRepo},
			{Name: "user_events", Target: userEventRepo},
			{Name: "watchlists", Target: watchlistRepo},
		},
		MetricsHandler: metrics.Handler(reg),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// インメモリストアは別プロセスのワーカーから掃除できないため、サーバー内で削除する
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	startSessionSweeper(sweepCtx, cfg, sessionRepo, collector)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 送信中のパイプライン通知を待つ
	if err := dispatcher.Close(shutdownCtx); err != nil {
		slog.Warn("pipeline signals still in flight at shutdown", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// startSessionSweeper はインメモリストアのときだけ期限切れセッションの
// 定期削除をバックグラウンドで開始する。開始した場合trueを返す。
// 共有ストアの削除はworkerモードが担当する。
func startSessionSweeper(ctx context.Context, cfg *config.Config, store cleanup.SessionExpirer, rec cleanup.Recorder) bool {
	if cfg.SessionStore != config.SessionStoreMemory {
		return false
	}
	job := cleanup.NewCleanupJob(store, slog.Default(), rec)
	job.Interval = cfg.SessionCleanupInterval
	go job.Start(ctx)
	return true
}

// runWorker はワーカーモードで起動する。
// セッションストアに接続し、期限切れセッションのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.SessionStore == config.SessionStoreMemory {
		// インメモリストアはプロセス間で共有されないため、ワーカーから掃除できない
		return errors.New("worker requires a shared session store (postgres or redis)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db *sql.DB
	if cfg.SessionStore == config.SessionStorePostgres {
		var err error
		db, err = openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	sessionRepo, err := newSessionStore(cfg, db, rdb)
	if err != nil {
		return err
	}

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default(), metrics.Nop{})
	cleanupJob.Interval = cfg.SessionCleanupInterval

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx)

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

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/api/health", port)
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
