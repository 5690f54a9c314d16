//go:build !integration

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderrecon/internal/config"
	"github.com/sells-group/orderrecon/internal/fetcher"
	"github.com/sells-group/orderrecon/internal/reconcile"
)

func TestSyncCmd_MissingFeed(t *testing.T) {
	cfg = &config.Config{}
	syncFeed = ""

	err := syncCmd.RunE(syncCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed location is required")
}

func TestSyncCmd_InvalidConfig(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}
	syncFeed = "feed.csv"
	t.Cleanup(func() { syncFeed = "" })

	err := syncCmd.RunE(syncCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "feed.rate_per_sec must be > 0")
}

func TestLotsCmd_MissingLedger(t *testing.T) {
	cfg = &config.Config{}
	lotsLedger, lotsFrom, lotsTo = "", "", ""

	err := lotsCmd.RunE(lotsCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger location is required")
}

func TestLotOptions(t *testing.T) {
	cfg = &config.Config{Lots: config.LotsConfig{CutoffYear: 2020}}
	t.Cleanup(func() { lotsCutoffYear, lotsFrom, lotsTo = 0, "", "" })

	lotsCutoffYear, lotsFrom, lotsTo = 0, "", ""
	opts, err := lotOptions()
	require.NoError(t, err)
	assert.Equal(t, 2020, opts.CutoffYear)
	assert.Nil(t, opts.PeriodFrom)
	assert.Nil(t, opts.PeriodTo)

	lotsCutoffYear, lotsFrom, lotsTo = 2022, "2024-01-01", "2024-03-31"
	opts, err = lotOptions()
	require.NoError(t, err)
	assert.Equal(t, 2022, opts.CutoffYear)
	require.NotNil(t, opts.PeriodFrom)
	assert.Equal(t, "2024-01-01", opts.PeriodFrom.Format("2006-01-02"))
	require.NotNil(t, opts.PeriodTo)

	lotsFrom, lotsTo = "2024-04-01", "2024-03-31"
	_, err = lotOptions()
	assert.ErrorContains(t, err, "before")

	lotsFrom, lotsTo = "04/01/2024", ""
	_, err = lotOptions()
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "so-1001.txt")
	require.NoError(t, os.WriteFile(plain, []byte("Order No: SO-1001"), 0o644))
	archive := filepath.Join(dir, "batch.zip")
	require.NoError(t, os.WriteFile(archive, zipOf(t, map[string]string{
		"a.txt":        "page a",
		"__MACOSX/._a": "junk",
		"nested/b.txt": "page b",
	}), 0o644))

	docs, err := loadDocuments(context.Background(), fetcher.NewRouter(fetcher.Options{}), []string{plain, archive})
	require.NoError(t, err)

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"so-1001.txt", "batch.zip/a.txt", "batch.zip/nested/b.txt"}, names)
	assert.Equal(t, []byte("Order No: SO-1001"), docs[0].Data)
}

func TestLoadDocuments_Missing(t *testing.T) {
	_, err := loadDocuments(context.Background(), fetcher.NewRouter(fetcher.Options{}),
		[]string{filepath.Join(t.TempDir(), "nope.pdf")})
	assert.Error(t, err)
}

func TestIsArchive(t *testing.T) {
	z := zipOf(t, map[string]string{"a.txt": "x"})
	assert.True(t, isArchive("batch.zip", z))
	assert.False(t, isArchive("ledger.xlsx", z))
	assert.False(t, isArchive("order.pdf", []byte("%PDF-1.7")))
}

func TestFormatBatch(t *testing.T) {
	docs := []reconcile.Document{{Name: "a.txt"}, {Name: "bad.bin"}}
	res := reconcile.BatchResult{
		Documents: []*reconcile.ImportResult{
			{Name: "a.txt", Pages: []reconcile.PageResult{{PageNumber: 1}, {PageNumber: 2, NeedsReview: true}}, OrdersCreated: 1},
			nil,
		},
		Errors: []string{"", "ocr: document is not valid UTF-8 text"},
		Failed: 1,
	}

	var buf bytes.Buffer
	formatBatch(&buf, docs, res)
	out := buf.String()
	assert.Contains(t, out, "DOCUMENT")
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "not valid UTF-8")
}
