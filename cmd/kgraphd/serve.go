package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kgraphd/kgraphd/internal/compact"
	"github.com/kgraphd/kgraphd/internal/config"
	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/graph"
	"github.com/kgraphd/kgraphd/internal/storage/sqlite"
	"github.com/kgraphd/kgraphd/internal/supervisor"
	"github.com/kgraphd/kgraphd/internal/telemetry"
	transporthttp "github.com/kgraphd/kgraphd/internal/transport/http"
)

func serveCmd() *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP+SSE knowledge-graph service in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&foreground, "foreground", true, "run in the foreground (always true; background daemonization is out of scope)")
	return cmd
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	tp, err := telemetry.Init(cfg.Name, version)
	if err != nil {
		log.Warn("telemetry init failed, continuing without it", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	store, err := sqlite.Open(ctx, cfg.DatabasePath, nil)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	registry := embedding.NewRegistry()
	switch cfg.Embeddings.Provider {
	case "remote":
		rp, err := embedding.NewRemoteProvider(embedding.RemoteProviderConfig{
			APIKey:   cfg.Embeddings.APIKey,
			Model:    cfg.Embeddings.Model,
			Endpoint: cfg.Embeddings.Endpoint,
		})
		if err != nil {
			log.Warn("remote embedding provider unavailable at startup, falling back to local", "error", err)
			registry.Configure(embedding.NewLocalProvider(cfg.Embeddings.Model))
		} else {
			registry.Configure(rp)
		}
	default:
		registry.Configure(embedding.NewLocalProvider(cfg.Embeddings.Model))
	}

	g := graph.New(store, store, registry, graph.ServerInfo{
		Name:         cfg.Name,
		Version:      version,
		DatabasePath: cfg.DatabasePath,
	}, cfg.Embeddings.Endpoint)
	g.SetSearchDefaults(graph.SearchDefaults{
		K:            cfg.Vector.DefaultK,
		Threshold:    cfg.Vector.DefaultThreshold,
		HybridWeight: cfg.Vector.DefaultHybridWeight,
	})
	g.SetEmbeddingDefaults(cfg.Embeddings.BatchSize, cfg.Embeddings.AutoGenerate)

	if cfg.Embeddings.CompactionAPIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != "" {
		if summarizer, err := compact.NewHaikuSummarizer(cfg.Embeddings.CompactionAPIKey); err != nil {
			log.Warn("observation compaction disabled", "error", err)
		} else {
			g.SetCompactor(summarizer)
		}
	}

	baseDir := filepath.Dir(filepath.Dir(cfg.DatabasePath))
	super := supervisor.New(supervisor.Options{
		Host:           cfg.Host,
		PreferredPort:  cfg.Port,
		BaseDir:        baseDir,
		DatabasePath:   cfg.DatabasePath,
		Name:           cfg.Name,
		Version:        version,
		InDocker:       cfg.InDocker,
		BackupDir:      cfg.BackupDir,
		MinBackups:     cfg.MinBackups,
		MinBackupAge:   time.Duration(cfg.MinBackupAgeDays) * 24 * time.Hour,
		BackupInterval: time.Duration(cfg.BackupIntervalMin) * time.Minute,
		Logger:         log,
	})

	ln, err := super.Start(ctx, store)
	if err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}

	httpServer := transporthttp.New(transporthttp.Options{
		Graph:          g,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         log,
		Identity: func() transporthttp.Identity {
			id, err := supervisor.ReadIdentity(supervisor.IdentityPath(baseDir))
			if err != nil {
				return transporthttp.Identity{Name: cfg.Name, Version: version, Host: cfg.Host, Port: super.Port(), DatabasePath: cfg.DatabasePath}
			}
			return *id
		},
	})

	serveCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("kgraphd serving", "port", super.Port(), "database_path", cfg.DatabasePath)
	serveErr := httpServer.Serve(serveCtx, ln)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := super.Shutdown(shutdownCtx); err != nil {
		log.Error("supervisor shutdown", "error", err)
	}

	if serveErr != nil && serveCtx.Err() == nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}
