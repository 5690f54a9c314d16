package ocr

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// NativePDF extracts text with a pure-Go PDF reader. Rows are rebuilt from
// glyph positions so table columns stay separated by runs of spaces, close
// to what pdftotext -layout produces.
type NativePDF struct{}

// NewNativePDF creates a NativePDF extractor.
func NewNativePDF() *NativePDF {
	return &NativePDF{}
}

// ExtractPages reads every page of doc in order. Pages with no content
// stream yield an empty string so page numbers stay aligned.
func (n *NativePDF) ExtractPages(ctx context.Context, doc []byte) (pages []string, err error) {
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}

	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = eris.Errorf("ocr: malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: open pdf")
	}

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "ocr: extract pages")
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: read page %d", i)
		}
		pages = append(pages, layoutRows(rows))
	}
	return pages, nil
}

// layoutRows renders rows top to bottom.
func layoutRows(rows pdf.Rows) string {
	sorted := make(pdf.Rows, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })

	lines := make([]string, 0, len(sorted))
	for _, row := range sorted {
		lines = append(lines, layoutRow(row.Content))
	}
	return strings.Join(lines, "\n")
}

// layoutRow joins glyph runs left to right. A gap wider than two average
// characters becomes a column break of at least two spaces; a smaller gap
// becomes one space.
func layoutRow(texts []pdf.Text) string {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var b strings.Builder
	prevEnd := -1.0
	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		charW := t.FontSize * 0.5
		if charW <= 0 {
			charW = 5
		}
		if prevEnd >= 0 {
			gap := t.X - prevEnd
			switch {
			case gap > 2*charW:
				spaces := int(gap / charW)
				if spaces < 2 {
					spaces = 2
				}
				b.WriteString(strings.Repeat(" ", spaces))
			case gap > 0.2*t.FontSize:
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		w := t.W
		if w <= 0 {
			w = charW * float64(len([]rune(t.S)))
		}
		prevEnd = t.X + w
	}
	return strings.TrimRight(b.String(), " ")
}
