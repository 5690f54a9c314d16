package main

import (
	"os"
	"path"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/orderrecon/internal/reconcile"
)

var attachEventID int64

var attachCmd = &cobra.Command{
	Use:   "attach --event <id> <path|url>",
	Short: "Attach a document to a distribution event and match it",
	Args:  cobra.ExactArgs(1),
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

		data, err := env.Fetcher.ReadAll(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "read document %s", args[0])
		}

		res, err := env.Engine.AttachToEvent(ctx, attachEventID, reconcile.Document{Name: path.Base(args[0]), Data: data})
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, res)
	},
}

func init() {
	attachCmd.Flags().Int64Var(&attachEventID, "event", 0, "distribution event id (required)")
	_ = attachCmd.MarkFlagRequired("event")
	rootCmd.AddCommand(attachCmd)
}
