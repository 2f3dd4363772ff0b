package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/homelabrg/codelens/common/logger"
	"github.com/homelabrg/codelens/common/otel"
	"github.com/homelabrg/codelens/core/config"
	"github.com/homelabrg/codelens/core/db"
	"github.com/homelabrg/codelens/internal/analysis"
	"github.com/homelabrg/codelens/internal/archive"
	"github.com/homelabrg/codelens/internal/http/handler"
	"github.com/homelabrg/codelens/internal/http/middleware"
	httprouter "github.com/homelabrg/codelens/internal/http/router"
	"github.com/homelabrg/codelens/internal/llm"
	"github.com/homelabrg/codelens/internal/project"
	"github.com/homelabrg/codelens/internal/store"
	"github.com/homelabrg/codelens/internal/task"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "codelens starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	analysisStore, projectStore, repositoryStore, closeDB, err := setupStores(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up record stores", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	projectService, err := project.NewService(projectStore, cfg.Storage.FilesBasePath, cfg.Storage.CloneBasePath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up project service", "error", err)
		os.Exit(1)
	}
	gitSource, err := project.NewGitSource(repositoryStore, cfg.Storage.CloneBasePath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up repository source", "error", err)
		os.Exit(1)
	}
	resultArchive, err := archive.New(cfg.Storage.AnalysisResultsPath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up result archive", "error", err)
		os.Exit(1)
	}

	analyzer, err := setupAnalyzer(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up analyzer", "error", err)
		os.Exit(1)
	}

	tasks := task.NewRunner()
	pipeline := analysis.NewPipeline(projectService, analyzer)
	analysisService := analysis.NewService(analysisStore, resultArchive, projectService, gitSource, pipeline)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Handlers{
		Projects:     handler.NewProjectHandler(projectService),
		Repositories: handler.NewRepositoryHandler(gitSource, tasks),
		Analyses:     handler.NewAnalysisHandler(analysisService, tasks),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	// Let in-flight analysis runs finish before tearing down exporters.
	tasks.Wait()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// setupStores selects record stores: Postgres for analysis jobs when
// DATABASE_URL is configured, the JSON file database otherwise. Project and
// repository records are always file backed.
func setupStores(ctx context.Context, cfg config.Config) (store.AnalysisStore, store.ProjectStore, store.RepositoryStore, func(), error) {
	projectStore, err := store.NewFileProjectStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	repositoryStore, err := store.NewFileRepositoryStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if cfg.DB.Enabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		slog.InfoContext(ctx, "database connected")
		return store.NewPGAnalysisStore(database.Pool()), projectStore, repositoryStore, database.Close, nil
	}

	analysisStore, err := store.NewFileAnalysisStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return analysisStore, projectStore, repositoryStore, func() {}, nil
}

// setupAnalyzer builds the OpenAI analyzer, wrapped in a Redis response
// cache when REDIS_URL is configured.
func setupAnalyzer(ctx context.Context, cfg config.Config) (llm.Analyzer, error) {
	analyzer, err := llm.NewOpenAIAnalyzer(llm.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
	})
	if err != nil {
		return nil, err
	}

	if !cfg.Redis.Enabled() {
		return analyzer, nil
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	slog.InfoContext(ctx, "redis connected, llm cache enabled")

	return llm.NewCachedAnalyzer(analyzer, redisClient, 24*time.Hour), nil
}

func setupRouter(cfg config.Config, handlers httprouter.Handlers) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, handlers)

	return router
}

const banner = `
 ██████╗ ██████╗ ██████╗ ███████╗██╗     ███████╗███╗   ██╗███████╗
██╔════╝██╔═══██╗██╔══██╗██╔════╝██║     ██╔════╝████╗  ██║██╔════╝
██║     ██║   ██║██║  ██║█████╗  ██║     █████╗  ██╔██╗ ██║███████╗
██║     ██║   ██║██║  ██║██╔══╝  ██║     ██╔══╝  ██║╚██╗██║╚════██║
╚██████╗╚██████╔╝██████╔╝███████╗███████╗███████╗██║ ╚████║███████║
 ╚═════╝ ╚═════╝ ╚═════╝ ╚══════╝╚══════╝╚══════╝╚═╝  ╚═══╝╚══════╝
`
