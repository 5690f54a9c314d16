package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// ZIPEntry is one regular file read out of an archive.
type ZIPEntry struct {
	Name string
	Data []byte
}

// maxZIPEntry bounds the size of a single uncompressed entry.
const maxZIPEntry = 256 << 20

// ReadZIP returns every regular file in the archive, in archive order.
// Directories and macOS resource forks are skipped.
func ReadZIP(data []byte) ([]ZIPEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	var entries []ZIPEntry
	for _, f := range r.File {
		if f.FileInfo().IsDir() || skipZIPName(f.Name) {
			continue
		}
		e, err := readZIPEntry(f)
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// IsZIP reports whether data starts with a ZIP local file header.
func IsZIP(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func skipZIPName(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}

func readZIPEntry(f *zip.File) (ZIPEntry, error) {
	if f.UncompressedSize64 > maxZIPEntry {
		return ZIPEntry{}, eris.Errorf("zip: entry %q too large (%d bytes)", f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return ZIPEntry{}, eris.Wrapf(err, "zip: open entry %q", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, maxZIPEntry+1))
	if err != nil {
		return ZIPEntry{}, eris.Wrapf(err, "zip: read entry %q", f.Name)
	}
	if len(data) > maxZIPEntry {
		return ZIPEntry{}, eris.Errorf("zip: entry %q too large", f.Name)
	}
	return ZIPEntry{Name: path.Clean(f.Name), Data: data}, nil
}
