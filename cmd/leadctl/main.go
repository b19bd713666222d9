package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/matheus3301/leadsync/internal/control"
	"github.com/matheus3301/leadsync/internal/session"
	"github.com/spf13/cobra"
)

var (
	sessionFlag string
	jsonFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "leadctl",
	Short: "Inspect a running lead console",
	Long: `leadctl talks to a running leadconsole over its session's control
socket and reports the state of the push connection.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect resolves the session and dials its control socket.
func connect() (*control.Client, string, error) {
	name := session.Resolve(sessionFlag)
	if err := session.ValidateName(name); err != nil {
		return nil, "", err
	}
	c, err := control.Dial(session.SocketPath(name))
	if err != nil {
		return nil, "", fmt.Errorf("cannot connect to console for session %q: %w", name, err)
	}
	return c, name, nil
}

type statusOutput struct {
	Session string `json:"session"`
	Service string `json:"service"`
	Status  string `json:"status"`
}

func printStatus(out statusOutput) error {
	if jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(out)
	}
	fmt.Printf("Session: %s\n", out.Session)
	fmt.Printf("Push:    %s\n", out.Status)
	return nil
}
