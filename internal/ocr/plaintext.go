package ocr

import (
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// PlainText handles documents that already are UTF-8 text, with pages
// separated by form feeds.
type PlainText struct{}

// NewPlainText creates a PlainText extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// ExtractPages splits doc into pages. Invalid UTF-8 is rejected.
func (p *PlainText) ExtractPages(_ context.Context, doc []byte) ([]string, error) {
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}
	if !utf8.Valid(doc) {
		return nil, eris.New("ocr: document is not valid UTF-8 text")
	}
	return splitPages(string(doc)), nil
}
