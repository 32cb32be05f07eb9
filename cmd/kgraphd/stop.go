package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kgraphd/kgraphd/internal/supervisor"
)

func stopCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Signal a running kgraphd instance to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to wait for the process to exit before giving up")
	return cmd
}

func runStop(wait time.Duration) error {
	path, err := identityPathFromConfig()
	if err != nil {
		return err
	}

	id, err := supervisor.ReadIdentity(path)
	if err != nil {
		fmt.Println("kgraphd: not running (no identity file)")
		return nil
	}

	proc, err := os.FindProcess(id.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", id.PID, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", id.PID, err)
	}

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if !probeHealth(id.Host, id.Port) {
			fmt.Printf("kgraphd: stopped (pid %d)\n", id.PID)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Printf("kgraphd: signaled pid %d, still responding after %s (may still be draining)\n", id.PID, wait)
	return nil
}
