// Package fetcher reads ledger, feed and document sources from local paths,
// FTP and HTTP, and parses the CSV, JSON, XLSX and ZIP payloads they carry.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher opens a remote location for reading.
type Fetcher interface {
	// Download fetches the location and returns its body. The caller closes it.
	Download(ctx context.Context, location string) (io.ReadCloser, error)
}

// Options configures every transport the Router can dispatch to.
type Options struct {
	HTTP HTTPOptions
	FTP  FTPOptions
}

// Router dispatches a location to the fetcher for its scheme. Plain paths
// and file:// URLs are read from disk.
type Router struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// NewRouter creates a Router with one HTTP and one FTP fetcher shared by all
// downloads, so rate limits and breakers apply across calls.
func NewRouter(opts Options) *Router {
	return &Router{
		http: NewHTTPFetcher(opts.HTTP),
		ftp:  NewFTPFetcher(opts.FTP),
	}
}

// Download implements Fetcher.
func (r *Router) Download(ctx context.Context, location string) (io.ReadCloser, error) {
	switch Scheme(location) {
	case "http", "https":
		return r.http.Download(ctx, location)
	case "ftp":
		return r.ftp.Download(ctx, location)
	case "file":
		u, err := url.Parse(location)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: parse %s", location)
		}
		return openFile(u.Path)
	case "":
		return openFile(location)
	default:
		return nil, eris.Errorf("fetcher: unsupported location %q", location)
	}
}

// ReadAll downloads location and returns its full body.
func (r *Router) ReadAll(ctx context.Context, location string) ([]byte, error) {
	rc, err := r.Download(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", location)
	}
	return data, nil
}

// Scheme returns the lower-cased URL scheme of location, or "" for a plain
// filesystem path. Windows drive letters are not treated as schemes.
func Scheme(location string) string {
	i := strings.Index(location, "://")
	if i <= 1 {
		return ""
	}
	return strings.ToLower(location[:i])
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	return f, nil
}
