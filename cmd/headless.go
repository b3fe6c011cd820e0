package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/sidecar/internal/logging"
	"github.com/smazurov/sidecar/internal/notifier"
	"github.com/smazurov/sidecar/internal/process"
	"github.com/smazurov/sidecar/internal/supervisor"
	"github.com/spf13/cobra"
)

// HeadlessOptions configures a headless run.
type HeadlessOptions struct {
	Server          ServerOptions
	SettleDelay     time.Duration
	GracefulTimeout time.Duration
}

// CreateHeadlessCmd creates the headless command: supervise the backend
// without the bridge and print its URL once it is ready.
func CreateHeadlessCmd() *cobra.Command {
	var opts HeadlessOptions
	var logLevel string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "headless [--] command [args...]",
		Short: "Run the backend without a UI bridge",
		Long: `Starts the backend, waits for its readiness announcement and prints the URL to stdout. ` +
			`Backend output is logged. The command exits with the backend's exit code; ` +
			`interrupting it stops the backend.`,
		Example: `  sidecar headless -- ./server --data ./data
  sidecar headless --command "./server --data ./data" --env "RUST_BACKTRACE=1"`,
		Run: func(c *cobra.Command, args []string) {
			format := "text"
			if logJSON {
				format = "json"
			}
			logging.Initialize(logging.Config{Level: logLevel, Format: format})
			logger := logging.GetLogger("main")

			opts.Server.Args = args

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := RunHeadless(ctx, opts, c.OutOrStdout())
			if err != nil {
				logger.Error("Failed to start server", "error", err)
				os.Exit(1)
			}

			logger.Info("Headless run finished", "exit_code", res.ExitCode, "status", res.Status, "port_known", res.PortKnown)
			if res.ExitCode < 0 {
				// killed by a signal
				os.Exit(1)
			}
			os.Exit(res.ExitCode)
		},
	}

	cmd.Flags().StringVar(&opts.Server.Command, "command", "", "Backend command line (instead of positional args)")
	cmd.Flags().StringVar(&opts.Server.ExtraEnv, "env", "", "Extra backend environment as KEY=VALUE,KEY=VALUE")
	cmd.Flags().StringVar(&opts.Server.BrowserEnv, "browser-env", DefaultBrowserEnv, "Variable that disables the backend's browser launch")
	cmd.Flags().StringVar(&opts.Server.LogEnv, "log-env", DefaultLogEnv, "Variable that sets the backend's log level")
	cmd.Flags().StringVar(&opts.Server.LogLevel, "server-log-level", DefaultLogLevel, "Backend log level")
	cmd.Flags().DurationVar(&opts.SettleDelay, "settle-delay", notifier.DefaultSettleDelay, "Delay between readiness and printing the URL")
	cmd.Flags().DurationVar(&opts.GracefulTimeout, "graceful-timeout", 5*time.Second, "Time to wait after SIGINT before killing the backend")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Sidecar log level")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// RunHeadless supervises the backend until it exits or ctx is cancelled,
// writing its URL to out once after the settle delay. The returned error is
// non-nil only when the backend could not be started.
func RunHeadless(ctx context.Context, opts HeadlessOptions, out io.Writer) (supervisor.Result, error) {
	spec, err := ServerSpec(opts.Server)
	if err != nil {
		return supervisor.Result{}, err
	}

	ui := notifier.New(opts.SettleDelay, logging.GetLogger("notifier"))
	ui.Attach(notifier.TargetFunc(func(url string) error {
		_, err := fmt.Fprintln(out, url)
		return err
	}))

	var procOpts []process.Option
	if opts.GracefulTimeout > 0 {
		procOpts = append(procOpts, process.WithGracefulTimeout(opts.GracefulTimeout))
	}

	sup := supervisor.New(supervisor.Options{
		Spec:           spec,
		ProcessOptions: procOpts,
		Notifier:       ui,
		Logger:         logging.GetLogger("supervisor"),
		OutputLogger:   logging.GetLogger("server"),
		OutputParser:   supervisor.ParseRustLogLevel(slog.LevelInfo),
		NotifySystemd:  true,
	})

	if err := sup.Start(ctx); err != nil {
		return supervisor.Result{}, err
	}
	return sup.Wait(), nil
}
