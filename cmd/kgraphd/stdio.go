package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kgraphd/kgraphd/internal/config"
	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/graph"
	"github.com/kgraphd/kgraphd/internal/storage/sqlite"
	"github.com/kgraphd/kgraphd/internal/transport/stdio"
)

func stdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Run the knowledge-graph service over stdio (one tool call per line)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(cmd.Context())
		},
	}
}

func runStdio(ctx context.Context) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	store, err := sqlite.Open(ctx, cfg.DatabasePath, nil)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	registry := embedding.NewRegistry()
	registry.Configure(embedding.NewLocalProvider(cfg.Embeddings.Model))

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

	log.Info("kgraphd stdio adapter ready", "database_path", cfg.DatabasePath)
	return stdio.Run(ctx, stdio.Options{
		Graph:  g,
		In:     os.Stdin,
		Out:    os.Stdout,
		Logger: slog.Default(),
	})
}
