package cmd

import (
	"errors"
	"fmt"
	"strings"

	"evault/internal/backend"
	"evault/internal/cli"
	"evault/internal/cliauth"
	"evault/internal/session"
	"evault/pkg/logging"

	"github.com/spf13/cobra"
)

// Login-specific flags
var (
	loginDeviceType string
	loginNoBrowser  bool
)

// openBrowser is replaced in tests.
var openBrowser = cliauth.OpenBrowser

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with GitHub",
	Long: `Sign in with GitHub.

With the default cli device type, the browser is opened on the GitHub
sign-in page and this command waits until the sign-in is completed there.
The resulting session is stored under ~/.config/evault/tokens.

With --device-type web, the local web front ('evault serve') is opened
instead and the session lives in the browser.

Examples:
  evault auth login                    # Sign in from the terminal
  evault auth login --no-browser       # Print the URL, do not open a browser
  evault auth login --device-type web  # Sign in through the local web front`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().StringVar(&loginDeviceType, "device-type", string(session.DeviceTypeCLI), "Device type: cli or web")
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	dt, err := session.ParseDeviceType(loginDeviceType)
	if err != nil {
		return fmt.Errorf("invalid --device-type %q: use cli or web", loginDeviceType)
	}

	s, err := newSessionFunc()
	if err != nil {
		return err
	}

	if dt == session.DeviceTypeWeb {
		return loginThroughWebFront(cmd, s)
	}

	errOut := cmd.ErrOrStderr()
	progress := cli.NewProgress(errOut, cli.LoadingTexts, cli.LoadingTextInterval)

	err = s.manager.Login(cmd.Context(), cliauth.LoginOptions{
		NoBrowser: loginNoBrowser,
		OnURL: func(u string) {
			if loginNoBrowser {
				fmt.Fprintf(errOut, "Open the following URL in your browser to sign in:\n\n  %s\n\n", u)
			} else {
				fmt.Fprintf(errOut, "Opening your browser to sign in. If it does not open, visit:\n\n  %s\n\n", u)
			}
			progress.Start()
		},
		OnAttempt: func(attempt int) {
			logging.Debug("CLI", "Waiting for sign-in, attempt %d", attempt)
		},
	})
	if err != nil {
		progress.Fail("Sign-in failed")
		return loginError(s, err)
	}

	who := ""
	if id, ok := s.manager.Identity(); ok {
		who = " as " + id.Login
	}
	shown := progress.Visible()
	progress.Succeed(fmt.Sprintf("Signed in%s", who))
	if !shown {
		authPrint(cmd, "Signed in to %s%s\n", s.cfg.Server.URL, who)
	}
	return nil
}

// loginThroughWebFront opens the local web front's login route.
func loginThroughWebFront(cmd *cobra.Command, s *cliSession) error {
	target := strings.TrimSuffix(s.cfg.Web.PublicURL, "/") + "/login"
	if loginNoBrowser {
		authPrint(cmd, "Open %s in your browser. The web front must be running ('evault serve').\n", target)
		return nil
	}
	if err := openBrowser(target); err != nil {
		return fmt.Errorf("failed to open browser on %s: %w", target, err)
	}
	authPrint(cmd, "Opened %s. The session will live in that browser.\n", target)
	return nil
}

func loginError(s *cliSession, err error) error {
	switch {
	case errors.Is(err, backend.ErrPollAborted), errors.Is(err, cliauth.ErrPollTimeout):
		return &cli.AuthFailedError{Endpoint: s.cfg.Server.URL, Reason: err}
	case errors.Is(err, session.ErrInvalidDeviceType):
		return &cli.AuthFailedError{Endpoint: s.cfg.Server.URL, Reason: err}
	}
	var initErr *session.InitiationError
	if errors.As(err, &initErr) && initErr.StatusCode != 0 {
		return &cli.AuthFailedError{Endpoint: s.cfg.Server.URL, Reason: err}
	}
	return s.wrapError(err)
}
