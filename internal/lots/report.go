package lots

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrecon/internal/fetcher"
)

// Format names a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var reportHeader = []string{
	"sku", "current_lot", "year", "source", "produced",
	"lifetime_distributed", "period_distributed", "remaining",
}

// Write encodes statuses in the given format. Unknown figures are written
// as JSON null or an empty cell.
func Write(w io.Writer, format Format, statuses []Status) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(statuses), "lots: write json")
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(reportHeader); err != nil {
			return eris.Wrap(err, "lots: write csv header")
		}
		for _, s := range statuses {
			if err := cw.Write(s.row()); err != nil {
				return eris.Wrapf(err, "lots: write csv row %s", s.SKU)
			}
		}
		cw.Flush()
		return eris.Wrap(cw.Error(), "lots: flush csv")
	case FormatXLSX:
		rows := make([][]string, len(statuses))
		for i, s := range statuses {
			rows[i] = s.row()
		}
		return eris.Wrap(fetcher.WriteXLSX(w, "Lots", reportHeader, rows), "lots: write xlsx")
	default:
		return eris.Errorf("lots: unknown report format %q", format)
	}
}

func (s Status) row() []string {
	return []string{
		s.SKU, s.CurrentLot, cell(s.Year), string(s.Source), cell(s.Produced),
		cell(s.LifetimeDistributed), cell(s.PeriodDistributed), cell(s.Remaining),
	}
}

func cell(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
