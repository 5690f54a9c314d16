package ledger

import (
	"bytes"
	"context"
	"io"

	"github.com/sells-group/orderrecon/internal/fetcher"
)

// Source yields the raw bytes of one ledger file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the source in logs and picks the format when it is
	// not configured.
	Name() string
}

type locationSource struct {
	location string
	fetcher  fetcher.Fetcher
}

// OpenSource returns a Source for a local path, file://, ftp:// or
// http(s):// location read through f.
func OpenSource(location string, f fetcher.Fetcher) Source {
	return &locationSource{location: location, fetcher: f}
}

func (s *locationSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.fetcher.Download(ctx, s.location)
}

func (s *locationSource) Name() string { return s.location }

type bytesSource struct {
	name string
	data []byte
}

// BytesSource wraps an in-memory ledger, such as an upload.
func BytesSource(name string, data []byte) Source {
	return &bytesSource{name: name, data: data}
}

func (s *bytesSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *bytesSource) Name() string { return s.name }
