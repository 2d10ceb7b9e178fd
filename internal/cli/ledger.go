package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/xelth-com/eckposgo/internal/app"
	"github.com/xelth-com/eckposgo/internal/receipt"
)

// NewVerifyLedgerCommand creates the verify-ledger command.
func NewVerifyLedgerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-ledger",
		Short: "Replay the fiscal chain and check every signature",
		Long: `Replay the fiscal ledger front to back, checking hash links, payload
hashes, signatures and that every closed order has a matching entry.

Exit codes:
  0 - Chain is intact
  1 - Chain breaks were found (recorded in the audit log)
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				return runVerifyLedger(cmd.Context(), opts, a)
			})
		},
	}
}

func runVerifyLedger(ctx context.Context, opts *RootOptions, a *app.App) error {
	report, verr := a.Ledger.Verify(ctx)
	if report == nil {
		return WrapExitError(ExitCommandError, "verification could not run", verr)
	}

	err := opts.output().Emit(report, func(w io.Writer) {
		fmt.Fprintf(w, "entries:    %d\n", report.Entries)
		fmt.Fprintf(w, "public key: %s\n", report.PublicKey)
		fmt.Fprintf(w, "last hash:  %s\n", report.LastHash)
		for _, b := range report.Breaks {
			fmt.Fprintf(w, "BREAK seq=%d order=%s: %s\n", b.Seq, b.OrderID, b.Reason)
		}
		if report.Valid {
			fmt.Fprintln(w, "chain OK")
		}
	})
	if err != nil {
		return err
	}
	if verr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d chain break(s)", len(report.Breaks)), verr)
	}
	return nil
}

// ReceiptOptions holds flags for the receipt command.
type ReceiptOptions struct {
	*RootOptions
	Output string
}

// NewReceiptCommand creates the receipt command.
func NewReceiptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReceiptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "receipt <order-id>",
		Short: "Render the signed receipt of a closed order as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				return runReceipt(cmd.Context(), opts, a, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default <invoice>.pdf)")
	return cmd
}

func runReceipt(ctx context.Context, opts *ReceiptOptions, a *app.App, orderID string) error {
	rc, err := receipt.Load(ctx, a.Store, orderID, a.Config.TerminalID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load receipt", err)
	}
	pdf, err := receipt.Render(*rc)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to render receipt", err)
	}

	path := opts.Output
	if path == "" {
		path = rc.Order.InvoiceLabel + ".pdf"
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write receipt", err)
	}

	result := map[string]any{"file": path, "invoice": rc.Order.InvoiceLabel, "qr": receipt.QRContent(rc.Order)}
	return opts.output().Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s written to %s\n", rc.Order.InvoiceLabel, path)
	})
}
