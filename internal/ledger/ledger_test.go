package ledger

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/fetcher"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func fixedNow() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

func load(t *testing.T, name, content string) *Ledger {
	t.Helper()
	l, err := Load(context.Background(), BytesSource(name, []byte(content)), Options{Now: fixedNow})
	require.NoError(t, err)
	return l
}

func TestLoad_PipeDelimitedWithCorrections(t *testing.T) {
	l := load(t, "ledger.txt", `Lot No | Corrected Lot | Item # | Qty Produced | Mfg Date
AB2021001 |            | A100 | 1,000 | 15/03/2021
ab 2022 002 | AB2022002 | A100 | 250 |
XY-17 | XY2017-17 | B200 | 40 |
OLD1 |  | B200 | 60 | 2019-07-04
`)

	require.Len(t, l.Records, 4)
	assert.Zero(t, l.Skipped)

	assert.Equal(t, "A100", l.SKUByLot["AB2021001"])
	assert.Equal(t, 1000, l.Produced["AB2021001"])
	assert.Equal(t, 2021, l.Years["AB2021001"])

	// Raw codes map to their corrected code; lookups use the corrected code.
	assert.Equal(t, "AB2022002", l.Correct("ab 2022 002"))
	assert.Equal(t, "XY2017-17", l.Correct("xy-17"))
	assert.Equal(t, "AB2021001", l.Correct("AB2021001"))
	assert.Equal(t, 2017, l.Years["XY2017-17"])
	assert.Equal(t, "B200", l.SKUByLot["XY2017-17"])

	// No year digits in the lot: the ISO date column decides.
	assert.Equal(t, 2019, l.Years["OLD1"])

	assert.Equal(t, []string{"AB2021001", "AB2022002"}, l.LotsForSKU("A100"))
}

func TestLoad_YearPrecedence(t *testing.T) {
	l := load(t, "ledger.csv", `lot,sku,qty,manufacture date
LOT2020-9,A100,10,01/02/2018
LOT-77,A100,10,01/02/2018
LOT-78,A100,10,2018-02-01
LOT-79,A100,10,
LOT-80,A100,10,Feb 2018
`)

	// Digits in the lot code win over the date column.
	assert.Equal(t, 2020, l.Years["LOT2020-9"])
	// Day-first slash layout: 01/02/2018 is 1 Feb 2018.
	assert.Equal(t, 2018, l.Years["LOT-77"])
	assert.Equal(t, 2018, l.Years["LOT-78"])

	_, ok := l.Year("LOT-79")
	assert.False(t, ok)
	_, ok = l.Year("LOT-80")
	assert.False(t, ok)
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	l := load(t, "ledger.tsv", "lot\tsku\tqty\n"+
		"L2021A\tA100\t5\n"+
		"\tA100\t5\n"+
		"L2021B\tA100\tmany\n"+
		"L2021C\tA100\t\n"+
		"L2021D\tA100\t-3\n"+
		"L2021E\tA100\t7.5\n"+
		"\t\t\n"+
		"L2021F\tA100\t12.0\n")

	require.Len(t, l.Records, 2)
	assert.Equal(t, 5, l.Skipped)
	assert.Equal(t, 12, l.Produced["L2021F"])
}

func TestLoad_DuplicateLotsAccumulate(t *testing.T) {
	l := load(t, "ledger.csv", "lot,sku,qty\nL2022,A100,100\nL2022,A100,50\n")
	assert.Equal(t, 150, l.Produced["L2022"])
	assert.Len(t, l.Records, 2)
}

func TestLoad_FutureAndAncientDigitsAreNotYears(t *testing.T) {
	l := load(t, "ledger.csv", "lot,sku,qty\nZ3050,A100,1\nZ1234,A100,1\nZ2025,A100,1\nZ12025,A100,1\n")

	_, ok := l.Year("Z3050")
	assert.False(t, ok)
	_, ok = l.Year("Z1234")
	assert.False(t, ok)
	// Next year is still plausible.
	assert.Equal(t, 2025, l.Years["Z2025"])
	assert.Equal(t, 2025, l.Years["Z12025"])
}

func TestLoad_MissingColumns(t *testing.T) {
	_, err := Load(context.Background(), BytesSource("ledger.csv", []byte("sku,description\nA100,widget\n")), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lacks a lot or quantity column")
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(context.Background(), BytesSource("ledger.csv", []byte("\n\n")), Options{})
	assert.Error(t, err)
}

func TestLoad_XLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, fetcher.WriteXLSX(&buf, "Lots", []string{"Lot", "SKU", "Quantity"}, [][]string{
		{"K2023-01", "C300", "80"},
		{"bad", "C300", "n/a"},
	}))

	// Detected by content even without an .xlsx name.
	l, err := Load(context.Background(), BytesSource("upload", buf.Bytes()), Options{Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, l.Records, 1)
	assert.Equal(t, 1, l.Skipped)
	assert.Equal(t, 2023, l.Years["K2023-01"])

	_, err = Load(context.Background(), BytesSource("upload.xlsx", buf.Bytes()), Options{Sheet: "Missing"})
	assert.Error(t, err)
}

func TestLoad_ForcedFormat(t *testing.T) {
	_, err := Load(context.Background(), BytesSource("ledger.xlsx", []byte("lot,qty\nL1,1\n")), Options{Format: FormatDelimited})
	require.NoError(t, err)

	_, err = Load(context.Background(), BytesSource("ledger.csv", []byte("lot,qty\n")), Options{Format: "parquet"})
	assert.ErrorContains(t, err, "unknown format")
}

func TestOpenSource_FileAndHTTP(t *testing.T) {
	const content = "lot,sku,qty\nL2022,A100,10\n"
	router := fetcher.NewRouter(fetcher.Options{HTTP: fetcher.HTTPOptions{RatePerSec: 100}})

	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	l, err := Load(context.Background(), OpenSource(path, router), Options{})
	require.NoError(t, err)
	assert.Len(t, l.Records, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, content)
	}))
	defer srv.Close()

	l, err = Load(context.Background(), OpenSource(srv.URL+"/ledger.csv", router), Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, l.Produced["L2022"])
}

func TestOpenSource_Unreadable(t *testing.T) {
	router := fetcher.NewRouter(fetcher.Options{})
	_, err := Load(context.Background(), OpenSource(filepath.Join(t.TempDir(), "missing.csv"), router), Options{})
	assert.ErrorContains(t, err, "ledger: open")
}

func TestCorrect_NilLedger(t *testing.T) {
	var l *Ledger
	assert.Equal(t, "AB12", l.Correct(" ab 12 "))
	assert.Nil(t, l.LotsForSKU("A100"))
}
