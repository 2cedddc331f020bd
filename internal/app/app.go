package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/founderhub/internal/admin"
	"github.com/hitoshi/founderhub/internal/analysis"
	"github.com/hitoshi/founderhub/internal/auth"
	"github.com/hitoshi/founderhub/internal/checkin"
	"github.com/hitoshi/founderhub/internal/client"
	"github.com/hitoshi/founderhub/internal/config"
	"github.com/hitoshi/founderhub/internal/database"
	"github.com/hitoshi/founderhub/internal/gamification"
	"github.com/hitoshi/founderhub/internal/handler"
	"github.com/hitoshi/founderhub/internal/logger"
	"github.com/hitoshi/founderhub/internal/matching"
	"github.com/hitoshi/founderhub/internal/metrics"
	"github.com/hitoshi/founderhub/internal/middleware"
	"github.com/hitoshi/founderhub/internal/realtime"
	"github.com/hitoshi/founderhub/internal/repository"
	"github.com/hitoshi/founderhub/internal/scheduling"
	"github.com/hitoshi/founderhub/internal/security"
	"github.com/hitoshi/founderhub/internal/user"
	"github.com/hitoshi/founderhub/internal/worker/cleanup"
	"github.com/hitoshi/founderhub/internal/worker/refresh"
	"github.com/hitoshi/founderhub/internal/workflow"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
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

	switch cmd {
	case CommandHealthcheck:
		// 軽量サブコマンドのため、フル初期化をスキップする
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandWatch:
		// サーバー用の必須設定は不要
		logger.SetupDefault(w)
		watchCfg, err := config.LoadWatch()
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		return runWatch(watchCfg)
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
	log := slog.Default()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 管理者パスワード（平文のみ設定されている場合は起動時にハッシュ化する）
	adminHash := cfg.AdminPasswordHash
	if adminHash == "" {
		adminHash, err = auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		slog.Warn("ADMIN_PASSWORD is set in plain text; prefer ADMIN_PASSWORD_HASH")
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	checkinRepo := repository.NewPostgresCheckinRepo(db)
	matchRepo := repository.NewPostgresMatchRepo(db)
	chatRepo := repository.NewPostgresCoffeeChatRepo(db)
	statsRepo := repository.NewPostgresStatsRepo(db)

	// 5. 外部分析サービスとセキュリティ
	analysisClient := analysis.NewClient(
		&http.Client{Timeout: cfg.AnalysisTimeout},
		cfg.AnalysisServiceURL,
		cfg.AnalysisCallsPerMinute,
		collector,
		log,
	)
	if !analysisClient.Configured() {
		slog.Warn("ANALYSIS_SERVICE_URL is not set; keyword fallback is used for extraction")
	}
	analysisService := analysis.NewService(analysisClient, log)
	sanitizer := security.NewTextSanitizer()

	// 6. ドメインサービスの初期化
	hub := realtime.NewHub(cfg.CORSAllowedOrigin, log)
	xpService := gamification.NewService(userRepo, log)
	chatService := scheduling.NewService(chatRepo, userRepo, xpService, hub, collector, cfg.MeetingBaseURL, log)
	matchService := matching.NewService(matchRepo, checkinRepo, userRepo, chatService, xpService, collector, log)
	checkinService := checkin.NewService(
		analysisService, analysisService,
		checkinRepo, matchRepo, userRepo, xpService,
		sanitizer, collector, log,
	)
	userService := user.NewService(userRepo, checkinRepo, statsRepo, sanitizer, log)
	adminService := admin.NewService(statsRepo, checkinRepo, userRepo, matchService, chatService)
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge:     cfg.SessionMaxAge,
		AdminPasswordHash: adminHash,
	}, log)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralPerMinute: cfg.RateLimitGeneral,
		CheckinPerMinute: cfg.RateLimitCheckin,
	})
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            log,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    rateLimiter,
		StatusRecorder: collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		CheckinService:    checkinService,
		MatchService:      matchService,
		CoffeeChatService: chatService,
		UserService:       userService,
		AdminService:      adminService,

		Hub:            hub,
		MetricsHandler: metrics.Handler(registry),
		DB:             db,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
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
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// signalContext はSIGINTまたはSIGTERMでキャンセルされるコンテキストを返す。
func signalContext(component string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-stop:
			slog.Info("shutting down " + component + "...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(stop)
	}()

	return ctx, cancel
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除を起動直後とSESSION_CLEANUP_INTERVAL毎に実行する。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	cleanupJob := cleanup.NewSessionCleanupJob(sessionRepo, slog.Default())

	ctx, cancel := signalContext("worker")
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// メインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runWatch はAPIクライアントとしてログインし、コーヒーチャットを定期的に再取得してログに出力する。
// 前回の再取得が終わっていない場合、そのティックはスキップする。
func runWatch(cfg *config.WatchConfig) error {
	log := slog.Default()

	api, err := client.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.RequestTimeout}, log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext("watch")
	defer cancel()

	u, err := api.Login(ctx, client.LoginRequest{Email: cfg.Email})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	slog.Info("logged in", slog.String("user_id", u.ID), slog.String("api_base_url", cfg.APIBaseURL))

	coordinator := workflow.NewCoordinator(workflow.NewSession(api, u.ID), log)
	poller := refresh.NewPoller(func(ctx context.Context) error {
		if err := coordinator.Load(ctx); err != nil {
			return err
		}
		logActiveChats(log, u.ID, coordinator.ActiveChats())
		return nil
	}, cfg.RefreshInterval, log)

	poller.Start(ctx)

	logoutCtx, logoutCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer logoutCancel()
	if err := api.Logout(logoutCtx); err != nil {
		slog.Warn("logout failed", slog.String("error", err.Error()))
	}
	return nil
}

func logActiveChats(log *slog.Logger, userID string, chats []client.CoffeeChat) {
	log.Info("active coffee chats", slog.Int("count", len(chats)))
	for _, c := range chats {
		attrs := []any{
			slog.String("chat_id", c.ID),
			slog.String("status", string(c.Status)),
			slog.Bool("is_expert", c.ExpertID == userID),
		}
		if c.ScheduledTime != nil {
			attrs = append(attrs, slog.Time("scheduled_time", *c.ScheduledTime))
		}
		if c.MeetingLink != nil {
			attrs = append(attrs, slog.String("meeting_link", *c.MeetingLink))
		}
		log.Info("coffee chat", attrs...)
	}
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	httpClient := &http.Client{Timeout: 5 * time.Second}

	resp, err := httpClient.Get(url)
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
