package extract

import (
	"fmt"
	"strings"
)

func twoCol(left, right string) string {
	return fmt.Sprintf("%-43s%s", left, right)
}

func itemRow(sku, desc, qty, lot string) string {
	return fmt.Sprintf("%-12s%-24s%-9s%s", sku, desc, qty, lot)
}

func page(lines ...string) string {
	return NormalizeText(strings.Join(lines, "\n"))
}

// orderPage is a side-by-side order form with two good lines.
func orderPage(extraRows ...string) string {
	lines := []string{
		"ACME VETERINARY DISTRIBUTION",
		"Sales Order",
		twoCol("Order No: SO-1001", "Order Date: 03/04/2024"),
		twoCol("Customer Code: RANCHO", "Ship Date: 03/06/2024"),
		"",
		twoCol("Bill To:", "Ship To:"),
		twoCol("Rancho Vet Supply, Inc.", "Rancho Clinic West"),
		twoCol("123 Main St", "Attn: Dr. Lopez"),
		twoCol("Suite 4", "900 Ocean Ave"),
		twoCol("Fresno, CA 93721", "Monterey, CA 93940"),
		"Phone: (559) 555-0100",
		"",
		itemRow("Item", "Description", "Qty", "Lot"),
		itemRow("A100", "Vaccine 10-dose", "5", "LOT2023A"),
		itemRow("B200", "Syringe pack", "12", "BX-20230012"),
	}
	lines = append(lines, extraRows...)
	lines = append(lines,
		"",
		twoCol("Subtotal", "$123.00"),
		"Terms: Net 30",
	)
	return page(lines...)
}

func labelPage() string {
	return page(
		"UPS GROUND",
		"SHIP TO:",
		"RANCHO CLINIC WEST",
		"900 OCEAN AVE",
		"MONTEREY, CA 93940",
		"",
		"TRACKING #: 1Z999AA10123456784",
	)
}
