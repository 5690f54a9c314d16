package main

import (
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/ledger"
	"github.com/sells-group/orderrecon/internal/lots"
)

var (
	lotsLedger     string
	lotsCutoffYear int
	lotsFrom       string
	lotsTo         string
	lotsFormat     string
	lotsOut        string
)

var lotsCmd = &cobra.Command{
	Use:   "lots",
	Short: "Report the current lot and remaining quantity per SKU",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		opts, err := lotOptions()
		if err != nil {
			return err
		}

		location := lotsLedger
		if location == "" {
			location = cfg.Ledger.Location
		}
		if location == "" {
			return eris.New("ledger location is required (--ledger or ORDERRECON_LEDGER_LOCATION)")
		}
		cfg.Ledger.Location = location
		if err := cfg.Validate("lots"); err != nil {
			return err
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		l, err := ledger.Load(ctx, ledger.OpenSource(location, env.Fetcher), ledger.Options{
			Format:      ledger.Format(cfg.Ledger.Format),
			Sheet:       cfg.Ledger.Sheet,
			DateLayouts: cfg.Ledger.DateLayouts,
			MinYear:     cfg.Ledger.MinYear,
		})
		if err != nil {
			return eris.Wrap(err, "load ledger")
		}
		if l.Skipped > 0 {
			zap.L().Warn("ledger rows skipped", zap.Int("skipped", l.Skipped))
		}

		statuses, err := env.Engine.LotStatus(ctx, l, opts)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if lotsOut != "" {
			f, err := os.Create(lotsOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", lotsOut)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return lots.Write(out, lots.Format(lotsFormat), statuses)
	},
}

// lotOptions builds the aggregation options from flags and config.
func lotOptions() (lots.Options, error) {
	opts := lots.Options{CutoffYear: lotsCutoffYear}
	if opts.CutoffYear == 0 {
		opts.CutoffYear = cfg.Lots.CutoffYear
	}

	var err error
	if opts.PeriodFrom, err = parseDay(lotsFrom); err != nil {
		return opts, eris.Wrap(err, "--from")
	}
	if opts.PeriodTo, err = parseDay(lotsTo); err != nil {
		return opts, eris.Wrap(err, "--to")
	}
	if opts.PeriodFrom != nil && opts.PeriodTo != nil && opts.PeriodTo.Before(*opts.PeriodFrom) {
		return opts, eris.New("--to is before --from")
	}
	return opts, nil
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, eris.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}

func init() {
	lotsCmd.Flags().StringVar(&lotsLedger, "ledger", "", "ledger location: path, file://, ftp:// or http(s):// (default from config)")
	lotsCmd.Flags().IntVar(&lotsCutoffYear, "cutoff-year", 0, "earliest tracked manufacture year (default from config)")
	lotsCmd.Flags().StringVar(&lotsFrom, "from", "", "period start, YYYY-MM-DD")
	lotsCmd.Flags().StringVar(&lotsTo, "to", "", "period end, YYYY-MM-DD")
	lotsCmd.Flags().StringVar(&lotsFormat, "format", "json", "report format: json, csv or xlsx")
	lotsCmd.Flags().StringVar(&lotsOut, "out", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(lotsCmd)
}
