package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ontoforge/ontoforge-go/internal/config"
	"github.com/ontoforge/ontoforge-go/internal/database"
	"github.com/ontoforge/ontoforge-go/internal/embeddings"
	"github.com/ontoforge/ontoforge-go/internal/metrics"
	"github.com/ontoforge/ontoforge-go/internal/resthttp"
	"github.com/ontoforge/ontoforge-go/internal/runtime"
	"github.com/ontoforge/ontoforge-go/internal/server"
)

var (
	libsqlURL     = flag.String("libsql-url", "", "libSQL database URL (default: file:./ontoforge.db)")
	authToken     = flag.String("auth-token", "", "Authentication token for remote databases")
	ontologiesDir = flag.String("ontologies-dir", "", "Base directory for ontologies. Enables multi-ontology mode.")
	transport     = flag.String("transport", "", "Transport to use: stdio, sse, or http")
	addr          = flag.String("addr", "", "Address to listen on for sse or http transports")
	sseEndpoint   = flag.String("sse-endpoint", "", "SSE endpoint path when using SSE transport")
)

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// Stdout carries the stdio MCP transport; logs go to stderr.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	flag.Parse()

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := newLogger(appCfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal, closing server")
		cancel()
	}()

	// Initialize database configuration
	dbConfig := database.NewConfig()

	// Initialize metrics (noop if disabled)
	metrics.InitFromEnv()

	// Override with command line flags if provided
	if *libsqlURL != "" {
		dbConfig.URL = *libsqlURL
	}
	if *authToken != "" {
		dbConfig.AuthToken = *authToken
	}
	if *ontologiesDir != "" {
		dbConfig.OntologiesDir = *ontologiesDir
		dbConfig.MultiOntology = true
	}
	if *transport != "" {
		appCfg.Transport = *transport
	}
	if *sseEndpoint != "" {
		appCfg.SSEEndpoint = *sseEndpoint
	}
	if *addr != "" {
		appCfg.SSEAddr = *addr
		appCfg.HTTPAddr = *addr
	}

	db, err := database.NewDBManager(dbConfig)
	if err != nil {
		log.Fatalf("Failed to create database manager: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", slog.Any("error", err))
		}
	}()

	provider := embeddings.NewFromEnv()
	if provider != nil {
		logger.Info("embeddings provider configured",
			slog.String("provider", provider.Name()),
			slog.Int("dims", provider.Dimensions()),
		)
	} else {
		logger.Info("no embeddings provider configured; semantic search disabled")
	}
	svc := runtime.NewService(db, provider, logger, runtime.WithEmbedTimeout(appCfg.EmbedTimeout))

	logger.Info("starting ontoforge server",
		slog.String("transport", appCfg.Transport),
		slog.Bool("multiOntology", dbConfig.MultiOntology),
	)
	switch appCfg.Transport {
	case "stdio":
		mcpServer := server.NewMCPServer(svc, db)
		go func() {
			if err := mcpServer.Run(ctx); err != nil {
				logger.Error("server error", slog.Any("error", err))
				cancel()
			}
		}()
	case "sse":
		mcpServer := server.NewMCPServer(svc, db)
		go func() {
			if err := mcpServer.RunSSE(ctx, appCfg.SSEAddr, appCfg.SSEEndpoint); err != nil {
				logger.Error("sse server error", slog.Any("error", err))
				cancel()
			}
		}()
	case "http":
		httpServer := resthttp.New(svc, db, logger)
		go func() {
			if err := httpServer.Start(appCfg.HTTPAddr); err != nil {
				logger.Error("http server error", slog.Any("error", err))
				cancel()
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
			defer shutdownCancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
	default:
		log.Fatalf("unknown transport: %s (expected: stdio, sse, or http)", appCfg.Transport)
	}

	<-ctx.Done()
	logger.Info("server stopped")
}
