package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/leadsync/internal/control"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the push connection status",
	Long: `Show whether the console's push connection is up.

Exits with an error when the console is not running or the connection
is not established.

Examples:
  leadctl status
  leadctl --session work status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c, name, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("session %q: %w", name, err)
	}
	if err := printStatus(statusOutput{Session: name, Service: control.PushService, Status: st.String()}); err != nil {
		return err
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("push connection is %s", st)
	}
	return nil
}
