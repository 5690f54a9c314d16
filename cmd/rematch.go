package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rematchCmd = &cobra.Command{
	Use:   "rematch",
	Short: "Run the matcher over every unmatched distribution event",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Engine.Rematch(ctx)
		if err != nil {
			return eris.Wrap(err, "rematch")
		}
		zap.L().Info("rematch complete", zap.Int("matched", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rematchCmd)
}
