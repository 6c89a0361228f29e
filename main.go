package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc/pool"

	"github.com/zemestet/relaybot/internal/agent/completion"
	"github.com/zemestet/relaybot/internal/agent/conversations"
	"github.com/zemestet/relaybot/internal/agent/metrics"
	"github.com/zemestet/relaybot/internal/agent/model"
	"github.com/zemestet/relaybot/internal/agent/observers"
	"github.com/zemestet/relaybot/internal/agent/pipeline"
	"github.com/zemestet/relaybot/internal/agent/progress"
	"github.com/zemestet/relaybot/internal/agent/prompts"
	"github.com/zemestet/relaybot/internal/agent/registry"
	"github.com/zemestet/relaybot/internal/agent/repo"
	"github.com/zemestet/relaybot/internal/channels"
	"github.com/zemestet/relaybot/internal/core"
	errx "github.com/zemestet/relaybot/internal/core/error"
	logx "github.com/zemestet/relaybot/pkg/logger"
)

// AppConfig defines all configurable parameters of the bot,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Telegram
	TelegramToken     string `envconfig:"TELEGRAM_TOKEN" required:"true"`
	MaxResponseLength int    `envconfig:"MAX_RESPONSE_LENGTH" default:"4096"`

	// Optional listen address for /metrics, disabled when empty
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	// Agent configs
	Completion   model.CompletionConfig
	Progress     model.ProgressConfig
	Conversation model.ConversationConfig
	Bot          model.BotConfig
}

func (c AppConfig) Validate() error {
	if c.TelegramToken == "" {
		return errx.Config("missing TELEGRAM_TOKEN", nil)
	}
	if c.MaxResponseLength <= 0 {
		return errx.Config("MAX_RESPONSE_LENGTH must be > 0", nil)
	}
	if err := c.Completion.Validate(); err != nil {
		return err
	}
	if err := c.Progress.Validate(); err != nil {
		return err
	}
	return c.Conversation.Validate()
}

func loadConfig() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, errx.Config("failed to process environment config", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	// Load .env file
	envErr := godotenv.Load(".env")

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(os.Getenv("ENVIRONMENT"))})
	if envErr != nil {
		logx.Warn().Err(envErr).Msg("Could not load .env file")
	}

	cfg, err := loadConfig()
	if err != nil {
		errx.Report(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Critical().Err(err).Msg("Bot stopped with error")
		stop()
		os.Exit(1)
	}
	logx.Info().Msg("Bot stopped")
}

func run(ctx context.Context, cfg AppConfig) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(reg)

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		return errx.Config(fmt.Sprintf("invalid CONVERSATION_TTL %q", cfg.Conversation.TTL), err)
	}

	client := completion.NewClient(cfg.Completion, recorder)
	bot := prompts.NewBotInfo(cfg.Bot)

	relay := pipeline.New(pipeline.Config{
		Completer:         client,
		History:           conversations.NewMessagesManager(repo.NewMemoryConversationRepository(ttl), cfg.Conversation),
		Registry:          registry.New[int64](),
		Notifier:          progress.NewNotifier(client, cfg.Progress, recorder),
		Bot:               bot,
		Platform:          channels.Platform,
		MaxResponseLength: cfg.MaxResponseLength,
		Recorder:          recorder,
		Callbacks:         []callbacks.Handler{observers.NewAllCallbacks()},
	})

	telegram, err := channels.NewTelegramChannel(cfg.TelegramToken, relay, bot.CommandNames())
	if err != nil {
		return err
	}

	logx.Info().
		Str("environment", cfg.Environment).
		Str("model", cfg.Completion.Model).
		Str("bot", cfg.Bot.Username).
		Msg("Starting relay bot")

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(telegram.Run)
	if cfg.MetricsAddr != "" {
		p.Go(func(ctx context.Context) error {
			return serveMetrics(ctx, cfg.MetricsAddr, reg)
		})
	}
	return p.Wait()
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logx.Info().Str("addr", addr).Msg("Serving metrics")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
