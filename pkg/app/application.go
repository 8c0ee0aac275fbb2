package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/appwright/pageforge/internal/middleware"
	"github.com/appwright/pageforge/internal/providers"
	"github.com/appwright/pageforge/internal/services"
	"github.com/appwright/pageforge/internal/tracing"
	"github.com/appwright/pageforge/pkg/config"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Tasks           services.TaskService
	Generator       services.GeneratorService
	Publisher       services.PublisherService
	Notifier        services.NotifierService
	Logger          *slog.Logger
	TracingShutdown func(context.Context) error

	responder providers.Responder
	repoHost  providers.RepoHost
}

// ApplicationOption configures the Application before services are wired.
type ApplicationOption func(*Application) error

// WithResponder substitutes the generation backend (tests).
func WithResponder(r providers.Responder) ApplicationOption {
	return func(app *Application) error {
		app.responder = r
		return nil
	}
}

// WithRepoHost substitutes the repository host backend (tests).
func WithRepoHost(h providers.RepoHost) ApplicationOption {
	return func(app *Application) error {
		app.repoHost = h
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "pageforge", "env", cfg.Env)
	slog.SetDefault(logger)

	app := &Application{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.responder == nil {
		app.responder = providers.NewGenAIClient(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.Model, cfg.MaxOutputTokens)
	}
	if app.repoHost == nil {
		app.repoHost = providers.NewGitHubClient(cfg.GitHubAPIURL, cfg.GitHubUsername, cfg.GitHubToken)
	}

	app.Generator = services.NewGeneratorService(app.responder, logger)
	app.Publisher = services.NewPublisherService(app.repoHost, logger, cfg.DefaultBranch, time.Duration(cfg.PagesSettleSeconds)*time.Second)
	app.Notifier = services.NewNotifierService(logger, cfg.NotifyMaxAttempts,
		time.Duration(cfg.NotifyBaseDelayMillis)*time.Millisecond,
		time.Duration(cfg.NotifyMaxDelaySeconds)*time.Second)
	app.Tasks = services.NewTaskService(app.Generator, app.Publisher, app.Notifier, logger)

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  "pageforge",
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		OTLPInsecure: cfg.TracingOTLPInsecure,
		SampleRatio:  cfg.TracingSampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestIDMiddleware(), middleware.LoggerMiddleware(logger), middleware.TracingMiddleware("pageforge"))
	app.Engine = engine

	return app, nil
}
