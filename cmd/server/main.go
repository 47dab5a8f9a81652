package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/gin-gonic/gin"

	"sportsreport-bot/internal/api"
	"sportsreport-bot/internal/composer"
	"sportsreport-bot/internal/config"
	"sportsreport-bot/internal/conversation"
	"sportsreport-bot/internal/database"
	"sportsreport-bot/internal/dialogue"
	"sportsreport-bot/internal/intent"
	"sportsreport-bot/internal/logging"
	"sportsreport-bot/internal/metrics"
	"sportsreport-bot/internal/sports"
	"sportsreport-bot/internal/store"
	"sportsreport-bot/internal/validator"
	"sportsreport-bot/internal/webhook"
	"sportsreport-bot/internal/whatsapp"
	"sportsreport-bot/internal/ws"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitGorm(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	st := store.New(db)

	catalog := sports.Default()
	v := validator.New(catalog)
	m := metrics.New()
	hub := ws.NewHub(logger)
	go hub.Run()

	var extractor intent.Extractor = intent.NewRuleExtractor(catalog)
	var decorator *composer.Decorator
	if cfg.UsesModel() {
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.ExtractTimeout,
		})
		if err != nil {
			return err
		}
		modelExtractor, err := intent.NewModelExtractor(chatModel, catalog)
		if err != nil {
			return err
		}
		// The model gets most of the budget; rules answer whatever is left.
		extractor = intent.Failback{
			intent.WithTimeout(modelExtractor, cfg.ExtractTimeout*4/5),
			extractor,
		}
		if cfg.DecorateReplies {
			decorator = composer.NewDecorator(chatModel, cfg.DecorateTimeout, logger)
		}
		logger.Info("intent extraction via chat model", "model", cfg.OpenAIModel)
	}
	extractor = intent.Safe{Extractor: extractor, Timeout: cfg.ExtractTimeout, Logger: logger}

	svc := conversation.NewService(
		st,
		extractor,
		dialogue.NewManager(catalog, v, cfg.DraftTTL),
		composer.New(catalog, cfg.SettingsURL),
		logger,
		conversation.Options{
			StoreTimeout:  cfg.StoreTimeout,
			DedupTTL:      cfg.DedupTTL,
			CommitRetries: cfg.CommitRetries,
			CommitBackoff: cfg.CommitBackoff,
			Decorator:     decorator,
			Notifier:      hub,
			Metrics:       m,
		},
	)

	sender := whatsapp.NewClient(cfg, logger)
	if sender.DryRun() {
		logger.Warn("WHATSAPP_TOKEN or PHONE_NUMBER_ID not set; replies are only logged")
	}

	webhookHandler := webhook.NewHandler(cfg, svc, sender, st, logger)
	subscriberHandler := api.NewSubscriberHandler(st, catalog, v, hub, logger)
	dashboardHandler := api.NewDashboardHandler(st, sender, sqlDB.PingContext, logger)

	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), cors())

	r.GET("/health", dashboardHandler.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/ws", func(c *gin.Context) { hub.ServeWs(c.Writer, c.Request) })

	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/subscribers/:id", subscriberHandler.GetSubscriber)
		apiGroup.PATCH("/subscribers/:id", subscriberHandler.PatchSubscriber)
		apiGroup.GET("/followups", subscriberHandler.ListFollowUps)

		apiGroup.GET("/messages", dashboardHandler.GetMessages)
		apiGroup.POST("/send", dashboardHandler.SendMessage)
	}

	go purgeProcessed(ctx, st, cfg.DedupTTL, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// purgeProcessed drops expired dedup records so the table stays small.
func purgeProcessed(ctx context.Context, st *store.Store, ttl time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.PurgeProcessed(ctx, ttl)
			if err != nil {
				logger.Warn("purge processed messages", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged processed messages", "count", n)
			}
		}
	}
}
