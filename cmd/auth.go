package cmd

import (
	"context"
	"fmt"

	"evault/internal/cli"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	authQuiet  bool
	authOutput string
	logoutAll  bool
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication for evault",
	Long: `Manage the GitHub sign-in used by evault commands.

Examples:
  evault auth login                    # Sign in from the terminal
  evault auth login --no-browser       # Print the sign-in URL instead of opening it
  evault auth status                   # Show authentication status
  evault auth refresh                  # Extend the current session
  evault auth whoami                   # Show the signed-in GitHub user
  evault auth logout                   # Forget the stored session`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Long: `Remove the stored session token for the configured backend.

Examples:
  evault auth logout                   # Logout from the configured backend
  evault auth logout --all             # Clear tokens for every backend`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Extend the current session",
	Long: `Ask the backend to extend the stored session.

An expired session is removed and has to be replaced with 'evault auth login'.`,
	Args: cobra.NoArgs,
	RunE: runAuthRefresh,
}

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in GitHub user",
	Args:  cobra.NoArgs,
	RunE:  runAuthWhoami,
}

// authPrint prints output only if the --quiet flag is not set.
func authPrint(cmd *cobra.Command, format string, args ...interface{}) {
	if !authQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authWhoamiCmd)

	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress non-essential output")
	authLogoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Clear tokens for every backend")
	authWhoamiCmd.Flags().StringVarP(&authOutput, "output", "o", "table", "Output format: table or json")
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	s, err := newSessionFunc()
	if err != nil {
		return err
	}
	if logoutAll {
		if err := s.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear tokens: %w", err)
		}
		authPrint(cmd, "All stored sessions removed.\n")
		return nil
	}
	if err := s.manager.Logout(); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	authPrint(cmd, "Signed out of %s\n", s.cfg.Server.URL)
	return nil
}

func runAuthRefresh(cmd *cobra.Command, _ []string) error {
	s, err := newSessionFunc()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), DefaultStatusCheckTimeout)
	defer cancel()

	if err := s.requireAuth(ctx); err != nil {
		return err
	}
	authPrint(cmd, "%s Session for %s refreshed\n", text.FgGreen.Sprint("✓"), s.cfg.Server.URL)
	return nil
}

func runAuthWhoami(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(authOutput)
	if err != nil {
		return err
	}
	s, err := newSessionFunc()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), DefaultStatusCheckTimeout)
	defer cancel()

	if err := s.requireAuth(ctx); err != nil {
		return err
	}
	id, err := s.client.User(ctx)
	if err != nil {
		return s.wrapError(err)
	}
	return cli.PrintIdentity(cmd.OutOrStdout(), id, format)
}
