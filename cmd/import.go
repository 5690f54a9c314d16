package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/fetcher"
	"github.com/sells-group/orderrecon/internal/reconcile"
)

var importJSON bool

var importCmd = &cobra.Command{
	Use:   "import <path|url>...",
	Short: "Import order and label documents",
	Long:  "Extracts every page of the given documents, upserts the orders they carry and stores the rest for review. ZIP archives are expanded.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}
		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		docs, err := loadDocuments(ctx, env.Fetcher, args)
		if err != nil {
			return err
		}

		res := env.Engine.ImportBatch(ctx, docs)
		zap.L().Info("import complete",
			zap.Int("documents", len(docs)),
			zap.Int("failed", res.Failed),
		)

		if importJSON {
			return writeJSON(os.Stdout, res)
		}
		formatBatch(os.Stdout, docs, res)
		return nil
	},
}

// loadDocuments reads every location. A ZIP archive contributes one
// document per file it holds.
func loadDocuments(ctx context.Context, r *fetcher.Router, locations []string) ([]reconcile.Document, error) {
	var docs []reconcile.Document
	for _, loc := range locations {
		data, err := r.ReadAll(ctx, loc)
		if err != nil {
			return nil, eris.Wrapf(err, "read document %s", loc)
		}
		if !isArchive(loc, data) {
			docs = append(docs, reconcile.Document{Name: path.Base(loc), Data: data})
			continue
		}

		entries, err := fetcher.ReadZIP(data)
		if err != nil {
			return nil, eris.Wrapf(err, "expand archive %s", loc)
		}
		for _, e := range entries {
			docs = append(docs, reconcile.Document{Name: path.Base(loc) + "/" + e.Name, Data: e.Data})
		}
		zap.L().Debug("archive expanded", zap.String("archive", loc), zap.Int("documents", len(entries)))
	}
	return docs, nil
}

// isArchive reports whether data is a ZIP to expand. Spreadsheets are ZIP
// containers too and are left alone.
func isArchive(name string, data []byte) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".docx") {
		return false
	}
	return fetcher.IsZIP(data)
}

func formatBatch(out io.Writer, docs []reconcile.Document, res reconcile.BatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tPAGES\tORDERS CREATED\tREVIEW\tEVENTS MATCHED\tERROR")
	for i, d := range docs {
		r := res.Documents[i]
		if r == nil {
			msg := ""
			if res.Errors != nil {
				msg = res.Errors[i]
			}
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%s\n", d.Name, msg)
			continue
		}
		review := 0
		for _, p := range r.Pages {
			if p.NeedsReview {
				review++
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t\n", r.Name, len(r.Pages), r.OrdersCreated, review, r.EventsMatched)
	}
	w.Flush() //nolint:errcheck
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	importCmd.Flags().BoolVar(&importJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(importCmd)
}
