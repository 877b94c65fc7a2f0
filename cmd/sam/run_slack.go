package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"samhq.app/sam/common/id"
	"samhq.app/sam/common/llm"
	"samhq.app/sam/common/logger"
	"samhq.app/sam/common/otel"
	"samhq.app/sam/core/config"
	"samhq.app/sam/core/db"
	"samhq.app/sam/internal/assistant"
	httprouter "samhq.app/sam/internal/http/router"
	"samhq.app/sam/internal/slackbot"
	"samhq.app/sam/internal/store"
	"samhq.app/sam/internal/tools"
)

func runSlack(ctx context.Context, verbose bool) error {
	printBanner()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateSlack(); err != nil {
		return err
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		return fmt.Errorf("initializing otel: %w", err)
	}

	logger.Setup(cfg, verbose)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "sam starting", "env", cfg.Env, "bot_name", cfg.Slack.BotName)
	if err := id.Init(1); err != nil {
		return fmt.Errorf("initializing snowflake id generator: %w", err)
	}

	project, err := config.LoadProject(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", cfg.ConfigPath, err)
	}
	slog.InfoContext(ctx, "project loaded", "assistants", len(project.Assistants), "tools", len(project.Tools))

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	slog.InfoContext(ctx, "redis connected")

	api, socket := slackbot.NewClient(cfg.Slack, verbose)

	backends := tools.Backends{Slack: api}
	if cfg.GitLab.Enabled() {
		gl, err := tools.NewGitLabClient(cfg.GitLab)
		if err != nil {
			return fmt.Errorf("creating gitlab client: %w", err)
		}
		backends.Issues = gl.Issues
	}
	if cfg.Postgres.Enabled() {
		database, err := db.New(ctx, db.Config{DSN: cfg.Postgres.URL, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		backends.Database = database
		slog.InfoContext(ctx, "database connected")
	}
	if cfg.Typesense.Enabled() {
		backends.Documents = tools.NewTypesenseDocuments(cfg.Typesense)
	}

	catalog, err := tools.NewCatalog(cfg, backends)
	if err != nil {
		return fmt.Errorf("building tool catalog: %w", err)
	}
	registry, err := tools.NewRegistry(project.Tools, catalog)
	if err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	client, err := llm.NewClient(llm.Config{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL})
	if err != nil {
		return fmt.Errorf("creating openai client: %w", err)
	}
	metrics := assistant.NewMetrics()

	storeCfg := store.ConversationConfig{
		DailyReset: cfg.Conversation.DailyReset,
		Location:   cfg.Conversation.Location,
	}
	var backend assistant.Backend
	if cfg.OpenWebUI.Enabled() {
		chatClient, err := llm.NewClient(llm.Config{
			APIKey:  cfg.OpenWebUI.APIKey,
			BaseURL: cfg.OpenWebUI.URL + "/api",
			Timeout: 5 * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("creating openwebui client: %w", err)
		}
		chat := assistant.NewChatBackend(chatClient, cfg.OpenWebUI.Model)
		storeCfg.Model = cfg.OpenWebUI.Model
		storeCfg.ToolIDs = chat
		backend = chat
		slog.InfoContext(ctx, "using openwebui backend", "url", cfg.OpenWebUI.URL, "model", cfg.OpenWebUI.Model)
	} else {
		threads := assistant.NewOpenAIThreads(client)
		backend = assistant.NewAssistantsBackend(threads, assistant.NewRunDriver(threads, registry, metrics))
	}

	conversations := store.NewConversationStore(redisClient, storeCfg)
	bot := assistant.NewBot(conversations, backend, assistant.NewOpenAIAudio(client, cfg.Audio), metrics)
	handler := slackbot.NewHandler(api, bot, store.NewLocker(redisClient), project, cfg)
	listener := slackbot.NewListener(socket, handler)

	var server *http.Server
	if cfg.Port != "" {
		server = newHTTPServer(cfg, redisClient)
		go func() {
			slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(ctx, "http server error", "error", err)
			}
		}()
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := listener.Run(runCtx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
	return runErr
}

func newHTTPServer(cfg config.Config, redisClient *redis.Client) *http.Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := httprouter.New(httprouter.RouterConfig{
		ServiceName: cfg.OTel.ServiceName,
		Tracing:     cfg.OTel.Enabled(),
		Checks: map[string]httprouter.HealthCheck{
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
