package feed

import (
	"bytes"
	"context"
	"io"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/fetcher"
	"github.com/sells-group/orderrecon/internal/model"
)

// Format selects how feed bytes are parsed.
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Source yields one synchronization run's records.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
	Name() string
}

type locationSource struct {
	location string
	format   Format
	fetcher  fetcher.Fetcher
}

// OpenSource returns a Source reading location through f. HTTP locations
// go through the fetcher's rate limiting, retries and circuit breaker.
func OpenSource(location string, format Format, f fetcher.Fetcher) Source {
	return &locationSource{location: location, format: format, fetcher: f}
}

func (s *locationSource) Name() string { return s.location }

func (s *locationSource) Fetch(ctx context.Context) ([]Record, error) {
	rc, err := s.fetcher.Download(ctx, s.location)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: open %s", s.location)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, eris.Wrapf(err, "feed: read %s", s.location)
	}
	return Parse(ctx, s.location, data, s.format)
}

// Parse decodes feed bytes. FormatAuto picks JSON for a .json name or a
// body starting with '[' or '{', CSV otherwise.
func Parse(ctx context.Context, name string, data []byte, format Format) ([]Record, error) {
	if format == "" || format == FormatAuto {
		format = FormatCSV
		trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
		if strings.EqualFold(path.Ext(name), ".json") || bytes.HasPrefix(trimmed, []byte("[")) || bytes.HasPrefix(trimmed, []byte("{")) {
			format = FormatJSON
		}
	}

	switch format {
	case FormatJSON:
		recs, err := fetcher.ReadJSONArray[Record](ctx, bytes.NewReader(data))
		return recs, eris.Wrapf(err, "feed: decode json %s", name)
	case FormatCSV:
		rows, err := fetcher.ReadCSV(ctx, bytes.NewReader(data), fetcher.CSVOptions{
			Delimiter:  fetcher.SniffDelimiter(data),
			LazyQuotes: true,
			TrimSpace:  true,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "feed: read csv %s", name)
		}
		return recordsFromRows(rows)
	default:
		return nil, eris.Errorf("feed: unknown format %q", format)
	}
}

type field int

const (
	fExternalID field = iota
	fOrderNumber
	fShipDate
	fSKU
	fLot
	fQuantity
	fTracking
	fShipToName
	fShipToCity
	fShipToState
	fShipToPostal
	numFields
)

// csvAliases lists accepted header spellings folded to lower-case letters
// and digits.
var csvAliases = map[field][]string{
	fExternalID:   {"externalid", "id", "eventid", "shipmentid", "lineid"},
	fOrderNumber:  {"ordernumber", "order", "orderno", "so", "sonumber", "salesorder", "reference"},
	fShipDate:     {"shipdate", "shipped", "dateshipped", "shippedon", "date"},
	fSKU:          {"sku", "item", "itemno", "itemnumber", "product", "productcode", "partnumber"},
	fLot:          {"lot", "lotno", "lotnumber", "lotcode", "batch"},
	fQuantity:     {"quantity", "qty", "units", "qtyshipped", "shippedqty"},
	fTracking:     {"trackingnumber", "tracking", "trackingno", "trackingid"},
	fShipToName:   {"shiptoname", "shipto", "recipient", "consignee", "customer", "customername"},
	fShipToCity:   {"shiptocity", "city"},
	fShipToState:  {"shiptostate", "state", "st"},
	fShipToPostal: {"shiptopostal", "shiptozip", "zip", "zipcode", "postal", "postalcode"},
}

var csvIndex = func() map[string]field {
	idx := make(map[string]field)
	for f, names := range csvAliases {
		for _, n := range names {
			idx[n] = f
		}
	}
	return idx
}()

func foldHeader(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func recordsFromRows(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	var cols [numFields]int
	for i := range cols {
		cols[i] = -1
	}
	for i, h := range rows[0] {
		if f, ok := csvIndex[foldHeader(h)]; ok && cols[f] < 0 {
			cols[f] = i
		}
	}
	if cols[fSKU] < 0 || cols[fQuantity] < 0 {
		return nil, eris.Errorf("feed: header %q lacks a sku or quantity column", strings.Join(rows[0], ","))
	}

	get := func(row []string, f field) string {
		if i := cols[f]; i >= 0 && i < len(row) {
			return row[i]
		}
		return ""
	}

	var recs []Record
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		// An unparseable quantity stays 0 and fails validation later.
		qty, _ := strconv.Atoi(strings.ReplaceAll(get(row, fQuantity), ",", ""))
		recs = append(recs, Record{
			ExternalID:     get(row, fExternalID),
			OrderNumber:    get(row, fOrderNumber),
			ShipDate:       get(row, fShipDate),
			SKU:            get(row, fSKU),
			Lot:            get(row, fLot),
			Quantity:       qty,
			TrackingNumber: get(row, fTracking),
			ShipToName:     get(row, fShipToName),
			ShipToCity:     get(row, fShipToCity),
			ShipToState:    get(row, fShipToState),
			ShipToPostal:   get(row, fShipToPostal),
		})
	}
	return recs, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Prepare converts records to events, dropping invalid records and
// duplicates within the run. It returns the number of invalid records.
func Prepare(records []Record, layouts []string) ([]model.DistributionEvent, int) {
	log := zap.L().With(zap.String("component", "feed"))
	seen := make(map[string]bool, len(records))
	events := make([]model.DistributionEvent, 0, len(records))
	invalid := 0
	for i, r := range records {
		e, err := r.ToEvent(layouts)
		if err != nil {
			invalid++
			log.Warn("feed: invalid record skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		if seen[e.Fingerprint] {
			continue
		}
		seen[e.Fingerprint] = true
		events = append(events, e)
	}
	return events, invalid
}
