// lansite publishes hand-written pages to every device on the local network.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/vesaa/lansite/internal/content"
	"github.com/vesaa/lansite/internal/server"
	"github.com/vesaa/lansite/internal/share"
)

const asciiLogo = `
 ██╗      █████╗ ███╗   ██╗███████╗██╗████████╗███████╗
 ██║     ██╔══██╗████╗  ██║██╔════╝██║╚══██╔══╝██╔════╝
 ██║     ███████║██╔██╗ ██║███████╗██║   ██║   █████╗
 ██║     ██╔══██║██║╚██╗██║╚════██║██║   ██║   ██╔══╝
 ███████╗██║  ██║██║ ╚████║███████║██║   ██║   ███████╗
 ╚══════╝╚═╝  ╚═╝╚═╝  ╚═══╝╚══════╝╚═╝   ╚═╝   ╚══════╝
`

const version = "v0.1.0"

// shutdownTimeout bounds how long in-flight requests may finish after a signal.
const shutdownTimeout = 5 * time.Second

func printBanner(w io.Writer, mode string) {
	fmt.Fprint(w, asciiLogo)
	fmt.Fprintf(w, "  ► lansite %s  |  Mode: %s\n\n", version, mode)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "lansite",
		Short: "lansite: publish simple pages to your local network",
		Long: `lansite keeps a small registry of named HTML pages under sites/ and serves
the whole working directory over HTTP so phones and laptops on the same
network can open them by address or QR code.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "Config file (default ./config.yaml or ~/.lansite/config.yaml)")
	root.PersistentFlags().StringVar(&g.root, "root", "", "Directory to serve and store sites in (overrides root_dir)")
	root.PersistentFlags().IntVar(&g.port, "port", 0, "HTTP port (overrides port)")

	root.AddCommand(
		newServeCmd(g),
		newCreateCmd(g),
		newDeleteCmd(g),
		newListCmd(g),
		newShowCmd(g),
		newPreviewCmd(g),
		newShareCmd(g),
		newHistoryCmd(g),
		newVersionCmd(),
	)
	return root
}

// ── serve ────────────────────────────────────────────────────────────────────
func newServeCmd(g *globalFlags) *cobra.Command {
	var openConsole bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the root directory and the admin console until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			printBanner(out, "SERVE")

			a, err := openApp(cmd, g, true)
			if err != nil {
				return err
			}
			defer a.Close()

			qr, err := share.NewEncoder()
			if err != nil {
				return err
			}
			defer qr.Close()

			auth, err := server.NewAuth(a.cfg.JWTSecret, a.cfg.AdminUser, a.cfg.AdminPass)
			if err != nil {
				return fmt.Errorf("admin credentials: %w", err)
			}
			for _, warning := range insecureDefaults(a.cfg) {
				a.logger.Warn(warning)
			}

			gin.SetMode(gin.ReleaseMode)
			srv, err := server.New(server.Deps{
				Registry: a.reg,
				History:  a.hist,
				QR:       qr,
				Preparer: content.NewPreparer(),
				Auth:     auth,
				Logger:   a.logger,
				QRSize:   a.cfg.QRSize,
				Minify:   a.cfg.Minify,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.reg.Watch(ctx); err != nil {
				a.logger.Warn("registry reload disabled", "error", err)
			}

			if err := srv.Start(a.cfg.ServerHost, a.cfg.Port); err != nil {
				var bindErr *server.BindError
				if errors.As(err, &bindErr) {
					return fmt.Errorf("%w (is another server running? try --port)", err)
				}
				return err
			}

			console := srv.BaseURL() + "/ui/"
			fmt.Fprintf(out, "  ✓ Serving %s\n", a.reg.Root())
			fmt.Fprintf(out, "  ✓ Address        → %s\n", srv.BaseURL())
			fmt.Fprintf(out, "  ✓ Admin console  → %s  (user: %s)\n", console, a.cfg.AdminUser)
			for _, e := range a.reg.List() {
				fmt.Fprintf(out, "    • %s → %s\n", e.Name, srv.SiteURL(e.Link))
			}
			if code, err := share.Terminal(console); err == nil {
				fmt.Fprintln(out)
				fmt.Fprint(out, code)
			}
			fmt.Fprintln(out)

			if openConsole {
				if err := share.OpenBrowser(console); err != nil {
					a.logger.Warn("open browser", "error", err)
				}
			}

			<-ctx.Done()
			fmt.Fprintln(out, "\n  → Shutting down gracefully…")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&openConsole, "open", false, "Open the admin console in the default browser")
	return cmd
}

// ── version ──────────────────────────────────────────────────────────────────
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print lansite version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lansite %s\n", version)
		},
	}
}
