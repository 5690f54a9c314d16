package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures delimited-text parsing.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // 0 disables comment lines
	LazyQuotes bool
	TrimSpace  bool
}

func (o CSVOptions) reader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	if o.Delimiter != 0 {
		cr.Comma = o.Delimiter
	}
	cr.Comment = o.Comment
	cr.LazyQuotes = o.LazyQuotes
	cr.FieldsPerRecord = -1 // ledgers and feeds have ragged rows
	return cr
}

// EachCSV passes every row of r to fn along with its 1-based line number.
// Rows may have differing widths. An error from fn stops the scan and is
// returned unchanged.
func EachCSV(ctx context.Context, r io.Reader, opts CSVOptions, fn func(line int, row []string) error) error {
	cr := opts.reader(r)
	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "csv: cancelled")
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "csv: read row")
		}
		if opts.TrimSpace {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}
		line, _ := cr.FieldPos(0)
		if err := fn(line, row); err != nil {
			return err
		}
	}
}

// ReadCSV collects every row of r, header included.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	var rows [][]string
	err := EachCSV(ctx, r, opts, func(_ int, row []string) error {
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// sniffCandidates are tried in order; ties go to the earlier entry.
var sniffCandidates = []rune{'\t', '|', ';', ','}

// SniffDelimiter picks the delimiter that splits the first non-empty line
// of sample into the most fields. Defaults to ','.
func SniffDelimiter(sample []byte) rune {
	var line []byte
	for _, l := range bytes.Split(sample, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			line = l
			break
		}
	}

	best, bestCount := ',', 0
	for _, d := range sniffCandidates {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
