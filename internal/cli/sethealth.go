package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	"github.com/vietddude/cmdwatch/internal/infra/controlplane"
)

var setHealthCmd = &cobra.Command{
	Use:   "set-health [target_id] [Healthy|Unhealthy]",
	Short: "Push a health update for a target to the control plane",
	Args:  cobra.ExactArgs(2),
	Run:   runSetHealth,
}

func init() {
	rootCmd.AddCommand(setHealthCmd)
}

func runSetHealth(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	state := domain.HealthState(args[1])
	if state != domain.HealthHealthy && state != domain.HealthUnhealthy {
		slog.Error("Invalid health state", "state", args[1])
		os.Exit(1)
	}

	client := controlplane.NewClient(controlplane.Config{
		URL:     cfg.ControlPlane.URL,
		Timeout: cfg.ControlPlane.Timeout.Std(),
	})

	if err := client.SetTargetHealth(context.Background(), args[0], state); err != nil {
		slog.Error("Failed to set target health", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Target %s marked %s\n", args[0], state)
}
