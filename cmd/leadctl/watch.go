package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/matheus3301/leadsync/internal/control"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream push connection status changes",
	Long: `Print the push connection status and every change until interrupted
or the console exits.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	c, name, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = c.Watch(ctx, func(st healthpb.HealthCheckResponse_ServingStatus) error {
		return printStatus(statusOutput{Session: name, Service: control.PushService, Status: st.String()})
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session %q: %w", name, err)
	}
	return nil
}
