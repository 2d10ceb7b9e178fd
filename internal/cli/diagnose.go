package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/xelth-com/eckposgo/internal/app"
)

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Run integrity checks and apply safe repairs",
		Long: `Run the local integrity checks. Orphaned dishes are moved to the
default category; everything else is reported.

Exit codes:
  0 - No blocking issues remain
  1 - Blocking issues remain
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				report, err := a.Diagnostics.Run(cmd.Context())
				if err != nil {
					return WrapExitError(ExitCommandError, "diagnostics failed", err)
				}
				if err := opts.output().Emit(report, func(w io.Writer) {
					for _, is := range report.Issues {
						mark := " "
						if is.Repaired {
							mark = "✓"
						}
						fmt.Fprintf(w, "%s [%s] %s: %s\n", mark, is.Severity, is.Check, is.Message)
					}
					fmt.Fprintf(w, "%d issue(s), %d repaired, %d blocking\n", len(report.Issues), report.Repaired, report.Blocking)
				}); err != nil {
					return err
				}
				if report.Blocking > 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("%d blocking issue(s)", report.Blocking))
				}
				return nil
			})
		},
	}
}
