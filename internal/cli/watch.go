package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	"github.com/vietddude/cmdwatch/internal/infra/controlplane"
	"github.com/vietddude/cmdwatch/internal/watch"
)

var (
	watchDesired  string
	watchTimeout  time.Duration
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [command_id] [target_id]",
	Short: "Follow one invocation until it reaches the desired status",
	Args:  cobra.ExactArgs(2),
	Run:   runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchDesired, "desired", string(domain.StatusSuccess), "status to wait for")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 5*time.Minute, "watch time budget")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 10*time.Second, "delay between status queries")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	desired, err := domain.ParseInvocationStatus(watchDesired)
	if err != nil {
		slog.Error("Invalid desired status", "error", err)
		os.Exit(1)
	}

	client := controlplane.NewClient(controlplane.Config{
		URL:     cfg.ControlPlane.URL,
		Timeout: cfg.ControlPlane.Timeout.Std(),
	})
	poller := watch.NewPoller(client)

	status, err := poller.Await(context.Background(), args[0], args[1], desired, watchTimeout, watchInterval)
	if err != nil {
		slog.Error("Watch failed", "error", err, "retryable", watch.IsRetryable(err))
		os.Exit(1)
	}

	fmt.Printf("Invocation %s on %s reached %s\n", args[0], args[1], status)
}
