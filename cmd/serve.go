package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evault/internal/config"
	"evault/internal/webui"
	"evault/pkg/logging"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight requests may take after a
// termination signal.
const shutdownTimeout = 10 * time.Second

var (
	serveListen    string
	servePublicURL string
)

// serveCmd defines the serve command structure.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web front",
	Long: `Run the local evault web front.

The web front signs users in with the web device type, shows their
repositories and lets them create vaults. It also completes terminal
sign-ins started with 'evault auth login'.

When started by systemd with Type=notify, readiness is reported once the
listener is bound. SIGINT and SIGTERM trigger a graceful shutdown.

Configuration:
  ~/.config/evault/config.yaml, section "web". --listen and --public-url
  override web.listen and web.publicURL.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (default from config, 127.0.0.1:5173)")
	serveCmd.Flags().StringVar(&servePublicURL, "public-url", "", "Origin browsers use to reach the web front")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Web.Listen = serveListen
		cfg.Web.PublicURL = "http://" + serveListen
	}
	if servePublicURL != "" {
		cfg.Web.PublicURL = servePublicURL
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if logLevel != "" {
		if level, err = logging.ParseLevel(logLevel); err != nil {
			return err
		}
	}
	logging.InitForServer(level, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveWebFront(ctx, cfg, nil)
}

// serveWebFront runs the web front until ctx is done. ready, if set,
// receives the bound address.
func serveWebFront(ctx context.Context, cfg config.EvaultConfig, ready func(addr string)) error {
	front, err := webui.New(webui.Config{
		BackendURL:       cfg.Server.URL,
		APIPrefix:        cfg.Server.APIPrefix,
		Timeout:          cfg.Server.Timeout,
		PublicURL:        cfg.Web.PublicURL,
		TemplatesDir:     cfg.Web.TemplatesDir,
		SecureCookies:    cfg.Web.SecureCookies,
		StrictDeviceType: cfg.Web.StrictDeviceType,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize web front: %w", err)
	}
	if err := front.Start(); err != nil {
		return err
	}
	defer front.Close()

	ln, err := net.Listen("tcp", cfg.Web.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Web.Listen, err)
	}

	srv := &http.Server{
		Handler:           front.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("Serve", "Web front listening on %s (public URL %s, backend %s)", ln.Addr(), cfg.Web.PublicURL, cfg.Server.URL)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Serve", "Shutting down web front")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Warn("Serve", "Failed to notify systemd: %v", err)
	} else if sent {
		logging.Debug("Serve", "Notified systemd of readiness")
	}
	if ready != nil {
		ready(ln.Addr().String())
	}

	return g.Wait()
}
