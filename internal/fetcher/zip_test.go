package fetcher

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archive(t *testing.T, files map[string]string, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		fw, err := w.Create(name)
		require.NoError(t, err)
		if content, ok := files[name]; ok {
			_, err = fw.Write([]byte(content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReadZIP(t *testing.T) {
	data := archive(t, map[string]string{
		"batch/so-1001.pdf":        "%PDF-1.4 one",
		"batch/so-1002.txt":        "ORDER SO-1002",
		"__MACOSX/batch/._so-1001": "fork",
		"batch/._so-1002.txt":      "fork",
	}, "batch/", "batch/so-1001.pdf", "__MACOSX/batch/._so-1001", "batch/._so-1002.txt", "batch/so-1002.txt")

	assert.True(t, IsZIP(data))

	entries, err := ReadZIP(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "batch/so-1001.pdf", entries[0].Name)
	assert.Equal(t, "%PDF-1.4 one", string(entries[0].Data))
	assert.Equal(t, "batch/so-1002.txt", entries[1].Name)
}

func TestReadZIP_Invalid(t *testing.T) {
	assert.False(t, IsZIP([]byte("%PDF-1.4")))
	_, err := ReadZIP([]byte("not a zip"))
	assert.Error(t, err)
}
