package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/extract"
	"github.com/sells-group/orderrecon/internal/ocr"
	"github.com/sells-group/orderrecon/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	ctx    context.Context
	store  store.Store
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))

	return &fixture{
		ctx:    context.Background(),
		store:  s,
		engine: New(s, ocr.NewPlainText(), extract.New(extract.Options{}), Options{MaxConcurrentDocuments: 2}),
	}
}

func twoCol(left, right string) string {
	return fmt.Sprintf("%-43s%s", left, right)
}

func itemRow(sku, desc, qty, lot string) string {
	return fmt.Sprintf("%-12s%-24s%-9s%s", sku, desc, qty, lot)
}

// orderPage is a side-by-side order form for the RANCHO account.
func orderPage(number string, rows ...string) string {
	lines := []string{
		"ACME VETERINARY DISTRIBUTION",
		"Sales Order",
		twoCol("Order No: "+number, "Order Date: 03/04/2024"),
		twoCol("Customer Code: RANCHO", "Ship Date: 03/06/2024"),
		"",
		twoCol("Bill To:", "Ship To:"),
		twoCol("Rancho Vet Supply, Inc.", "Rancho Clinic West"),
		twoCol("123 Main St", "900 Ocean Ave"),
		twoCol("Fresno, CA 93721", "Monterey, CA 93940"),
		"",
		itemRow("Item", "Description", "Qty", "Lot"),
	}
	if len(rows) == 0 {
		rows = []string{itemRow("A100", "Vaccine 10-dose", "5", "LOT2023A")}
	}
	lines = append(lines, rows...)
	lines = append(lines, "", "Terms: Net 30")
	return strings.Join(lines, "\n")
}

// anonymousOrderPage has an order number and lines but nothing to identify
// the customer with.
func anonymousOrderPage(number string) string {
	return strings.Join([]string{
		"Sales Order",
		"Order No: " + number,
		"",
		itemRow("Item", "Description", "Qty", "Lot"),
		itemRow("A100", "Vaccine 10-dose", "5", "LOT2023A"),
	}, "\n")
}

func labelPage() string {
	return strings.Join([]string{
		"UPS GROUND",
		"SHIP TO:",
		"RANCHO CLINIC WEST",
		"900 OCEAN AVE",
		"MONTEREY, CA 93940",
		"",
		"TRACKING #: 1Z999AA10123456784",
	}, "\n")
}

func coverPage() string {
	return "Thank you for your business.\nPlease retain for your records."
}

// doc joins pages with form feeds, the way the text extractor splits them.
func doc(name string, pages ...string) Document {
	return Document{Name: name, Data: []byte(strings.Join(pages, "\f"))}
}
