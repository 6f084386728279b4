package cmd

import (
	"errors"
	"os"

	"evault/internal/cli"
	"evault/internal/config"
	"evault/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the sign-in flow failed.
	ExitCodeAuthFailed = 3
)

// Global flags.
var (
	configPath string
	serverURL  string
	logLevel   string
)

// rootCmd represents the base command for the evault application.
var rootCmd = &cobra.Command{
	Use:   "evault",
	Short: "Share repository secrets through GitHub sign-in",
	Long: `evault stores encrypted secrets next to your GitHub repositories.

Sign in once from the terminal with 'evault auth login', then list your
repositories and create vaults for them. 'evault serve' runs the same
flows in a local web front.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

// initLogging sets up CLI logging before any command runs. serve switches
// to the JSON handler once its configuration is loaded.
func initLogging(cmd *cobra.Command, _ []string) error {
	raw := logLevel
	if raw == "" {
		raw = os.Getenv(config.EnvLogLevel)
	}
	if raw == "" {
		raw = "warn"
	}
	level, err := logging.ParseLevel(raw)
	if err != nil {
		return err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	return nil
}

func init() {
	rootCmd.SetVersionTemplate(`{{printf "evault version %s\n" .Version}}`)
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default ~/.config/evault)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Backend URL (env: EVAULT_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: EVAULT_LOG_LEVEL)")
}
