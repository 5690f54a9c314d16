package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/orderrecon/internal/feed"
)

var (
	syncFeed   string
	syncFormat string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the carrier feed and match its distribution events",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		location := syncFeed
		if location == "" {
			location = cfg.Feed.Location
		}
		if location == "" {
			return eris.New("feed location is required (--feed or ORDERRECON_FEED_LOCATION)")
		}
		cfg.Feed.Location = location
		if err := cfg.Validate("sync"); err != nil {
			return err
		}
		format := syncFormat
		if format == "" {
			format = cfg.Feed.Format
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := feed.OpenSource(location, feed.Format(format), env.Fetcher).Fetch(ctx)
		if err != nil {
			return eris.Wrap(err, "fetch feed")
		}

		res, err := env.Engine.SyncEvents(ctx, records)
		if err != nil {
			return eris.Wrap(err, "sync events")
		}
		return writeJSON(os.Stdout, res)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncFeed, "feed", "", "feed location: path, file://, ftp:// or http(s):// (default from config)")
	syncCmd.Flags().StringVar(&syncFormat, "format", "", "feed format: auto, csv or json (default from config)")
	rootCmd.AddCommand(syncCmd)
}
