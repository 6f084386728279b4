package cmd

import (
	"fmt"
	"strings"

	"evault/pkg/logging"

	"github.com/spf13/cobra"
)

// devVersion is what main.go reports when no version was injected with
// -ldflags "-X main.version=...".
const devVersion = "dev"

// newVersionCmd prints the build version and the backend this binary is
// configured for, since a client is only useful together with its API.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of evault",
		Long: `Print the evault version and the backend API it talks to.

The backend comes from ~/.config/evault/config.yaml, EVAULT_SERVER_URL or
--server. An unreadable configuration only omits that line.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			v := rootCmd.Version
			switch v {
			case "":
				fmt.Fprintln(out, "evault version unknown")
			case devVersion:
				fmt.Fprintln(out, "evault version dev (development build)")
			default:
				fmt.Fprintf(out, "evault version %s\n", v)
			}

			cfg, err := loadConfig()
			if err != nil {
				logging.Debug("CLI", "No backend to report: %v", err)
				return
			}
			fmt.Fprintf(out, "Backend:  %s/%s\n", strings.TrimSuffix(cfg.Server.URL, "/"), strings.Trim(cfg.Server.APIPrefix, "/"))
		},
	}
}
