package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/user"

	"github.com/josephlewis42/jobsh/commands"
	"github.com/josephlewis42/jobsh/core"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/metrics"
	"github.com/josephlewis42/jobsh/core/process"
	"github.com/josephlewis42/jobsh/core/tty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	shellCommand     string
	shellMetricsAddr string
)

// shellConfig loads the configuration or falls back to the built-in one when
// init was never run.
func shellConfig(logger *log.Logger) (*config.Configuration, error) {
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Printf("No configuration in %q, using defaults. Run init to create one.", cfgPath)
		return config.Default(), nil
	}
	return cfg, err
}

// shellCmd runs the job control shell on the controlling terminal
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run the job control shell.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		shellLogger := log.New(cmd.ErrOrStderr(), "jobsh: ", 0)
		process.Logger = shellLogger

		cfg, err := shellConfig(shellLogger)
		if err != nil {
			return err
		}

		registry, err := commands.NewRegistry(cfg.Builtins...)
		if err != nil {
			return fmt.Errorf("config builtins: %w", err)
		}

		logFd, err := cfg.OpenEventLog()
		if err != nil {
			return err
		}
		defer logFd.Close()
		events := logger.NewJsonLinesLogRecorder(logFd).NewSession()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		metricsAddr := cfg.MetricsAddr
		if shellMetricsAddr != "" {
			metricsAddr = shellMetricsAddr
		}
		if metricsAddr != "" {
			metrics.EmitBuildInfo()
			go func() {
				if err := metrics.Serve(ctx, metricsAddr, shellLogger); err != nil {
					shellLogger.Printf("metrics: %v", err)
				}
			}()
		}

		interactive := shellCommand == "" && term.IsTerminal(int(os.Stdin.Fd()))
		opts := core.Options{
			Config:      cfg,
			Builtins:    registry,
			Terminal:    tty.Open(shellLogger),
			Stdin:       cmd.InOrStdin(),
			Stdout:      cmd.OutOrStdout(),
			Stderr:      cmd.ErrOrStderr(),
			Interactive: interactive,
			Events:      events,
			Logger:      shellLogger,
		}
		if shellCommand != "" {
			opts.Input = core.LinesInput()
		}

		shell, err := core.NewShell(opts)
		if err != nil {
			return err
		}
		defer shell.Close()

		username := ""
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
		if err := events.Record(&logger.SessionStart{
			User:        username,
			Pid:         os.Getpid(),
			Interactive: interactive,
		}); err != nil {
			shellLogger.Printf("recording event: %v", err)
		}

		var code int
		if shellCommand != "" {
			code = shell.Execute(shellCommand)
		} else {
			code = shell.Run()
		}

		if err := shell.Close(); err != nil && !errors.Is(err, io.EOF) {
			shellLogger.Printf("closing input: %v", err)
		}
		if code != 0 {
			return &ExitError{Code: code}
		}
		return nil
	},
}

func init() {
	shellCmd.Flags().StringVarP(&shellCommand, "command", "c", "", "run a single command line and exit")
	shellCmd.Flags().StringVar(&shellMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(shellCmd)
}
