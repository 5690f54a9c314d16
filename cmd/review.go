package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/orderrecon/internal/reconcile"
)

var reviewJSON bool

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List pages, orders and events waiting on manual review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r, err := env.Engine.ReviewQueue(ctx)
		if err != nil {
			return eris.Wrap(err, "review queue")
		}
		if reviewJSON {
			return writeJSON(os.Stdout, r)
		}
		formatReview(os.Stdout, r)
		return nil
	},
}

func formatReview(out io.Writer, r *reconcile.Review) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "PAGES (%d)\n", len(r.Documents))
	fmt.Fprintln(w, "FILE\tPAGE\tKIND\tREASON")
	for _, d := range r.Documents {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d.Filename, d.PageNumber, d.Kind, d.ReviewReason)
	}

	fmt.Fprintf(w, "\nORDERS (%d)\n", len(r.Orders))
	fmt.Fprintln(w, "ORDER\tNOTES")
	for _, o := range r.Orders {
		fmt.Fprintf(w, "%s\t%d\n", o.OrderNumber, len(o.ReviewNotes))
	}

	fmt.Fprintf(w, "\nUNMATCHED EVENTS (%d)\n", len(r.UnmatchedEvents))
	fmt.Fprintln(w, "ID\tORDER\tSKU\tLOT\tQTY\tTRACKING")
	for _, e := range r.UnmatchedEvents {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", e.ID, e.ReportedOrderNumber, e.SKU, e.Lot, e.Quantity, e.TrackingNumber)
	}
	w.Flush() //nolint:errcheck
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "print the queue as JSON")
	rootCmd.AddCommand(reviewCmd)
}
