package cmd

import (
	"context"
	"errors"
	"time"

	"evault/internal/backend"
	"evault/internal/cli"
	"evault/internal/cliauth"
	"evault/internal/session"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show whether a session is stored for the configured backend and whether
the backend still accepts it.

Examples:
  evault auth status
  evault auth status --server https://vault.example.com`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	s, err := newSessionFunc()
	if err != nil {
		return err
	}

	authPrint(cmd, "evault backend\n")
	authPrint(cmd, "  Endpoint:  %s\n", s.cfg.Server.URL)

	stored := s.manager.StoredToken()
	if stored == nil {
		authPrint(cmd, "  Status:    %s\n", text.FgYellow.Sprint("Not signed in"))
		authPrint(cmd, "             Run: evault auth login\n")
		return nil
	}

	// verify with the backend before claiming the session is usable
	ctx, cancel := context.WithTimeout(cmd.Context(), DefaultStatusCheckTimeout)
	defer cancel()
	state, err := s.manager.CheckCredentials(ctx)

	switch {
	case state == cliauth.AuthStateAuthenticated:
		printAuthenticatedStatus(cmd, stored)
	case errors.Is(err, session.ErrSessionExpired):
		authPrint(cmd, "  Status:    %s\n", text.FgYellow.Sprint("Session expired"))
		authPrint(cmd, "             Run: evault auth login\n")
	case errors.Is(err, backend.ErrInvalidToken):
		authPrint(cmd, "  Status:    %s\n", text.FgYellow.Sprint("Token invalidated"))
		authPrint(cmd, "             The backend no longer accepts this session.\n")
		authPrint(cmd, "             Run: evault auth login\n")
	case cli.IsConnectionFailure(err):
		connErr := cli.ClassifyConnectionError(err, s.cfg.Server.URL)
		authPrint(cmd, "  Status:    %s\n", text.FgRed.Sprint(connErr.Type.String()))
		if hint := connErr.Hint(); hint != "" {
			authPrint(cmd, "             %s\n", hint)
		}
	default:
		authPrint(cmd, "  Status:    %s\n", text.FgRed.Sprint("Unknown"))
		if err != nil {
			authPrint(cmd, "             %v\n", err)
		}
	}
	return nil
}

func printAuthenticatedStatus(cmd *cobra.Command, stored *cliauth.StoredToken) {
	authPrint(cmd, "  Status:    %s\n", text.FgGreen.Sprint("Authenticated"))
	if stored.Login != "" {
		authPrint(cmd, "  User:      %s\n", stored.Login)
	}
	authPrint(cmd, "  Since:     %s (%s ago)\n",
		stored.CreatedAt.Local().Format(time.RFC1123),
		time.Since(stored.CreatedAt).Round(time.Minute))
}
