package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrecon/internal/config"
	"github.com/sells-group/orderrecon/internal/extract"
	"github.com/sells-group/orderrecon/internal/fetcher"
	"github.com/sells-group/orderrecon/internal/ocr"
	"github.com/sells-group/orderrecon/internal/reconcile"
	"github.com/sells-group/orderrecon/internal/store"
)

// reconEnv holds the store, the engine and the shared fetcher needed by the
// import/sync/serve commands.
type reconEnv struct {
	Store   store.Store
	Engine  *reconcile.Engine
	Fetcher *fetcher.Router
}

// Close releases resources held by the environment.
func (re *reconEnv) Close() {
	if re.Store != nil {
		_ = re.Store.Close()
	}
}

// initEngine opens and migrates the store, then builds the extractor
// chain and the engine. Callers should defer env.Close().
func initEngine(ctx context.Context) (*reconEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	pages, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	x, err := newExtractor(cfg.Extract)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engine := reconcile.New(st, pages, x, reconcile.Options{
		MaxConcurrentDocuments: cfg.Batch.MaxConcurrentDocuments,
		UpsertRetries:          cfg.Batch.UpsertRetries,
	})

	return &reconEnv{
		Store:   st,
		Engine:  engine,
		Fetcher: newFetcher(cfg.Feed),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "orderrecon.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newExtractor builds the field heuristics, overlaying the pattern table
// file when one is configured.
func newExtractor(c config.ExtractConfig) (*extract.Extractor, error) {
	opts := extract.Options{
		QuantityCeiling: c.QuantityCeiling,
		DateLayouts:     c.DateLayouts,
	}
	if c.PatternsFile != "" {
		rules, err := extract.LoadRules(c.PatternsFile)
		if err != nil {
			return nil, err
		}
		opts.Rules = rules
	}
	return extract.New(opts), nil
}

func newFetcher(c config.FeedConfig) *fetcher.Router {
	timeout := time.Duration(c.TimeoutSecs) * time.Second
	return fetcher.NewRouter(fetcher.Options{
		HTTP: fetcher.HTTPOptions{
			UserAgent:  "orderrecon/1.0",
			Timeout:    timeout,
			MaxRetries: c.MaxRetries,
			RatePerSec: c.RatePerSec,
		},
		FTP: fetcher.FTPOptions{Timeout: timeout, MaxRetries: c.MaxRetries},
	})
}
