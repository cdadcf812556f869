package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/bizowl/support-assistant/internal/agent"
	"github.com/bizowl/support-assistant/internal/agent/graph"
	"github.com/bizowl/support-assistant/internal/agent/model"
	"github.com/bizowl/support-assistant/internal/chatstore"
	"github.com/bizowl/support-assistant/internal/core"
	"github.com/bizowl/support-assistant/internal/dataset"
	"github.com/bizowl/support-assistant/internal/engine"
	"github.com/bizowl/support-assistant/internal/notify"
	"github.com/bizowl/support-assistant/internal/server"
	logx "github.com/bizowl/support-assistant/pkg/logger"
	pkgredis "github.com/bizowl/support-assistant/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Generation   model.GenerationModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig

	// Static data, mail and engine
	Data   dataset.Config
	Mail   notify.SMTPConfig
	Engine engine.Config
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		logx.Info().Msg("no .env file found, using environment variables")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	data, err := dataset.Load(cfg.Data)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to load data files")
	}

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise redis client")
	}
	defer rdb.Close()
	logx.Info().Msg("connected to redis")

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Str("ttl", cfg.Conversation.TTL).Err(err).Msg("invalid CONVERSATION_TTL")
	}

	remote := chatstore.NewRedisStore(rdb, ttl, cfg.Redis.OperationTimeout())
	store := chatstore.NewFallbackStore(remote, chatstore.NewMemoryStore())

	// A graph build failure degrades to the fixed unavailable apology
	// instead of refusing to start; the scripted flows keep working.
	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		Model:         cfg.Generation,
		Prompt:        cfg.Prompt,
		Corpus:        data.Corpus,
		HistoryWindow: cfg.Conversation.HistoryWindow,
		History:       store,
	})
	if err != nil {
		logx.Error().Err(err).Msg("failed to build response graph, free text will degrade")
		runner = nil
	}
	gen := agent.NewGenerator(runner, time.Duration(cfg.Generation.TimeoutSeconds)*time.Second)

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Mail.Enabled() {
		notifier = notify.NewSMTPNotifier(cfg.Mail)
		logx.Info().Msg("smtp contact notifications enabled")
	}

	cfg.Engine.HistoryWindow = cfg.Conversation.HistoryWindow
	eng := engine.New(data.Menu, data.FAQ, store, gen, notifier, cfg.Engine)

	handler := server.NewHandler(eng, cfg.Mail.Enabled())
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logx.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	stop()
	logx.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Fatal().Err(err).Msg("server forced to shutdown")
	}
	logx.Info().Msg("server stopped")
}
