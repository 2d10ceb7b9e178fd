// Package cli implements posctl, the operator tool for a terminal's local store.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xelth-com/eckposgo/internal/app"
	"github.com/xelth-com/eckposgo/internal/config"
)

// Opener assembles the terminal the commands act on
type Opener func(logger *logrus.Logger) (*app.App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	open Opener
	out  io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// OpenFromEnv loads configuration from the environment like the API service does
func OpenFromEnv(logger *logrus.Logger) (*app.App, error) {
	cfg, err := config.LoadLocal()
	if err != nil {
		return nil, err
	}
	syncCfg, err := config.LoadSyncConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, syncCfg, logger)
}

// NewRootCommand creates the root command. A nil open uses OpenFromEnv.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = OpenFromEnv
	}
	opts := &RootOptions{open: open, out: os.Stdout}

	cmd := &cobra.Command{
		Use:   "posctl",
		Short: "posctl - terminal maintenance",
		Long:  "Verify the fiscal ledger, run sync cycles and inspect the local store of a POS terminal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.out = cmd.OutOrStdout()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewVerifyLedgerCommand(opts))
	cmd.AddCommand(NewReceiptCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewDiagnoseCommand(opts))
	cmd.AddCommand(NewSeedDemoCommand(opts))

	return cmd
}

// withApp opens the terminal, runs fn and closes it again
func (o *RootOptions) withApp(fn func(a *app.App) error) error {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if o.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	a, err := o.open(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open terminal", err)
	}
	defer a.Close()
	return fn(a)
}

func (o *RootOptions) output() *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: o.out}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
