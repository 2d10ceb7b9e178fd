package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/xelth-com/eckposgo/internal/app"
	"github.com/xelth-com/eckposgo/internal/sync"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle now",
		Long: `Validate the local store, replay queued mutations and push every
enabled collection. Failed collections are queued for the next cycle.

Exit codes:
  0 - Every collection was pushed
  1 - Validation failed or some collections were queued
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				return runSync(cmd.Context(), opts, a)
			})
		},
	}
}

func runSync(ctx context.Context, opts *RootOptions, a *app.App) error {
	result, err := a.Engine.RunCycle(ctx)
	if result == nil {
		return WrapExitError(ExitCommandError, "sync did not run", err)
	}

	if oerr := opts.output().Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "status: %s (%s)\n", result.Status, result.Duration)
		fmt.Fprintf(w, "queue:  replayed %d, %d remaining\n", result.Drain.Succeeded, result.Drain.Remaining)
		for _, c := range result.Collections {
			switch {
			case c.Error != "":
				fmt.Fprintf(w, "  %-12s FAILED (queued): %s\n", c.Name, c.Error)
			case c.Skipped:
				fmt.Fprintf(w, "  %-12s nothing to push\n", c.Name)
			default:
				fmt.Fprintf(w, "  %-12s %d record(s)\n", c.Name, c.Records)
			}
		}
	}); oerr != nil {
		return oerr
	}

	if err != nil {
		return WrapExitError(ExitFailure, "sync aborted", err)
	}
	if result.Status == sync.StatusError {
		return NewExitError(ExitFailure, fmt.Sprintf("%d collection(s) failed", result.Failed))
	}
	return nil
}

// NewPullCommand creates the pull command.
func NewPullCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Import the remote menu, settings and users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				res, err := a.Engine.Pull(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "pull failed", err)
				}
				return opts.output().Emit(res, func(w io.Writer) {
					fmt.Fprintf(w, "appended %d, updated %d, %d conflict(s) pending\n", res.Appended, res.Updated, res.Pending)
					for _, c := range res.Conflicts {
						fmt.Fprintf(w, "  %s %v\n", c.Key(), c.Fields)
					}
				})
			})
		},
	}
}

// NewQueueCommand creates the queue command.
func NewQueueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List mutations waiting for replay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				entries, err := a.Queue.Entries(cmd.Context())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read queue", err)
				}
				return opts.output().Emit(entries, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, "queue is empty")
						return
					}
					for _, e := range entries {
						fmt.Fprintf(w, "%s  %-18s retries=%d  %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.RetryCount, e.LastError)
					}
				})
			})
		},
	}
}

// ConflictsOptions holds flags for the conflicts command.
type ConflictsOptions struct {
	*RootOptions
	Resolve string
	Actor   string
}

// NewConflictsCommand creates the conflicts command.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConflictsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List pending sync conflicts, or resolve them all",
		Long: `List the conflicts left by the last pull. With --resolve every pending
conflict is settled in one direction.

Examples:
  posctl conflicts
  posctl conflicts --resolve remote --actor anna`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				return runConflicts(cmd.Context(), opts, a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Resolve, "resolve", "", "resolve all pending conflicts (local|remote)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "posctl", "name recorded in the audit log")
	return cmd
}

func runConflicts(ctx context.Context, opts *ConflictsOptions, a *app.App) error {
	if opts.Resolve != "" {
		d := sync.Decision(opts.Resolve)
		if !d.Valid() {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --resolve %q: must be local or remote", opts.Resolve))
		}
		n, err := a.Engine.ResolveAll(ctx, d == sync.DecisionRemote, opts.Actor)
		if err != nil {
			return WrapExitError(ExitFailure, "resolve failed", err)
		}
		return opts.output().Emit(map[string]int{"resolved": n}, func(w io.Writer) {
			fmt.Fprintf(w, "resolved %d conflict(s) as %s\n", n, d)
		})
	}

	pending, err := a.Engine.PendingConflicts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read conflicts", err)
	}
	return opts.output().Emit(pending, func(w io.Writer) {
		if len(pending) == 0 {
			fmt.Fprintln(w, "no pending conflicts")
			return
		}
		for _, c := range pending {
			fmt.Fprintf(w, "%s:%s  fields=%s\n", c.EntityType, c.EntityID, string(c.Fields))
		}
	})
}
