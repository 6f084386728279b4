package cliauth

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"evault/internal/session"
	"evault/pkg/logging"
)

// OpenBrowser opens url in the default web browser without waiting for it.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

// BrowserNavigator is the terminal's Navigator: navigating means opening
// the system browser. A browser that cannot be launched is not fatal since
// the URL has already been printed.
type BrowserNavigator struct {
	Open func(url string) error
}

// Navigate opens target in the browser.
func (n *BrowserNavigator) Navigate(_ context.Context, target string) error {
	open := n.Open
	if open == nil {
		open = OpenBrowser
	}
	if err := open(target); err != nil {
		logging.Warn("CLIAuth", "Could not open a browser: %v", err)
	}
	return nil
}

var _ session.Navigator = (*BrowserNavigator)(nil)

// ExpiredSessionNavigator handles the forced re-authentication of a
// terminal session. There is no entry page to go back to, so navigating to
// the entry route discards the stored token and the next command asks for
// a new login.
type ExpiredSessionNavigator struct {
	Store     *TokenStore
	ServerURL string
}

// Navigate drops the stored token when target is the entry route.
func (n *ExpiredSessionNavigator) Navigate(_ context.Context, target string) error {
	if target != session.RouteEntry || n.Store == nil {
		return nil
	}
	return n.Store.DeleteToken(n.ServerURL)
}
