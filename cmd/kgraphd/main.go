// Command kgraphd is the persistent knowledge-graph service: it hosts the
// storage engine, the tool-layer API, and both protocol adapters behind a
// small cobra CLI, grounded on the teacher's cmd/bd root-command/subcommand
// layout adapted down from its multi-mode daemon surface to this service's
// three entry points (serve, stdio, status/stop).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version is overridden at build time via -ldflags.
	version = "dev"

	flagConfigPath string
	flagJSON       bool
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kgraphd",
		Short: "Persistent knowledge-graph service for AI agents",
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a config file (toml/yaml/json)")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON output")

	root.AddCommand(serveCmd())
	root.AddCommand(stdioCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(stopCmd())
	return root
}
