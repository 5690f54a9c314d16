package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings required by the given run mode are
// present and in range. Modes: "import", "sync", "lots", "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "import":
		errs = append(errs, c.validateStore()...)
		if c.Extract.QuantityCeiling <= 0 {
			errs = append(errs, "extract.quantity_ceiling must be > 0")
		}
		if c.OCR.Provider == "local" && c.OCR.PdfToTextPath == "" {
			errs = append(errs, "ocr.pdftotext_path is required for the local provider")
		}
	case "sync":
		errs = append(errs, c.validateStore()...)
		if c.Feed.Location == "" {
			errs = append(errs, "feed.location is required")
		}
		if c.Feed.RatePerSec <= 0 {
			errs = append(errs, "feed.rate_per_sec must be > 0")
		}
	case "lots":
		errs = append(errs, c.validateStore()...)
		if c.Ledger.Location == "" {
			errs = append(errs, "ledger.location is required")
		}
		if c.Lots.CutoffYear <= 0 {
			errs = append(errs, "lots.cutoff_year must be > 0")
		}
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.MaxConcurrentDocuments < 1 || c.Batch.MaxConcurrentDocuments > 64 {
		errs = append(errs, fmt.Sprintf("batch.max_concurrent_documents must be between 1 and 64 (got %d)", c.Batch.MaxConcurrentDocuments))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}
