package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	"github.com/vietddude/cmdwatch/internal/dispatch"
	"github.com/vietddude/cmdwatch/internal/infra/controlplane"
	redisclient "github.com/vietddude/cmdwatch/internal/infra/redis"
	"github.com/vietddude/cmdwatch/internal/infra/storage"
	"github.com/vietddude/cmdwatch/internal/infra/storage/memory"
	"github.com/vietddude/cmdwatch/internal/infra/storage/postgres"
)

var (
	dispatchTargets []string
	dispatchComment string
	dispatchDesired string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [script]",
	Short: "Dispatch a command to targets and enqueue watch jobs",
	Args:  cobra.ExactArgs(1),
	Run:   runDispatch,
}

func init() {
	dispatchCmd.Flags().StringSliceVar(&dispatchTargets, "targets", nil, "target ids (required)")
	dispatchCmd.Flags().StringVar(&dispatchComment, "comment", "", "comment recorded with the command")
	dispatchCmd.Flags().StringVar(&dispatchDesired, "desired", string(domain.StatusSuccess), "status to wait for")
	_ = dispatchCmd.MarkFlagRequired("targets")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	if cfg.Redis.URL == "" {
		slog.Error("Redis is required for dispatch; set redis.url in the config")
		os.Exit(1)
	}

	desired, err := domain.ParseInvocationStatus(dispatchDesired)
	if err != nil {
		slog.Error("Invalid desired status", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	queue, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = queue.Close()
	}()

	var repo storage.InvocationRepository
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = db.Close()
		}()
		repo = postgres.NewInvocationRepo(db)
	} else {
		repo = memory.NewInvocationRepo(memory.NewMemoryStorage())
	}

	client := controlplane.NewClient(controlplane.Config{
		URL:     cfg.ControlPlane.URL,
		Timeout: cfg.ControlPlane.Timeout.Std(),
	})
	d := dispatch.NewDispatcher(client, repo, queue)

	commandID, err := d.Dispatch(ctx, args[0], dispatchComment, dispatchTargets, dispatch.Options{
		Desired:  desired,
		Timeout:  cfg.Watch.DefaultTimeout.Std(),
		Interval: cfg.Watch.DefaultInterval.Std(),
	})
	if err != nil {
		slog.Error("Dispatch failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Dispatched command %s to %d target(s)\n", commandID, len(dispatchTargets))
}
