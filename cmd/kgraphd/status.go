package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kgraphd/kgraphd/internal/config"
	"github.com/kgraphd/kgraphd/internal/supervisor"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a kgraphd instance is running, reading its identity file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func identityPathFromConfig() (string, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	baseDir := filepath.Dir(filepath.Dir(cfg.DatabasePath))
	return supervisor.IdentityPath(baseDir), nil
}

func runStatus() error {
	path, err := identityPathFromConfig()
	if err != nil {
		return err
	}

	id, err := supervisor.ReadIdentity(path)
	if err != nil {
		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{"running": false})
		}
		fmt.Println("kgraphd: not running (no identity file)")
		return nil
	}

	healthy := probeHealth(id.Host, id.Port)

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"running": true,
			"healthy": healthy,
			"pid":     id.PID,
			"host":    id.Host,
			"port":    id.Port,
			"name":    id.Name,
			"version": id.Version,
		})
	}

	status := "unreachable"
	if healthy {
		status = "healthy"
	}
	fmt.Printf("kgraphd: running (pid %d) at %s:%d — %s\n", id.PID, id.Host, id.Port, status)
	return nil
}

func probeHealth(host string, port int) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/health", host, port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
