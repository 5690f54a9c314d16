package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/feed"
	"github.com/sells-group/orderrecon/internal/reconcile"
	"github.com/sells-group/orderrecon/internal/store"
)

// maxDocumentBytes caps an uploaded document.
const maxDocumentBytes = 64 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server for imports and synchronization",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		port := cfg.Server.Port

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Engine),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter registers the trigger endpoints over engine.
func newRouter(engine *reconcile.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}),
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/documents", func(w http.ResponseWriter, r *http.Request) {
		doc, err := readDocument(w, r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := engine.ImportDocument(r.Context(), doc)
		if err != nil {
			zap.L().Warn("document import failed", zap.String("document", doc.Name), zap.Error(err))
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respond(w, http.StatusCreated, res)
	})

	r.Post("/events/{id}/documents", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid event id")
			return
		}
		doc, err := readDocument(w, r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := engine.AttachToEvent(r.Context(), id, doc)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("event %d not found", id))
			return
		}
		if err != nil {
			zap.L().Error("attach failed", zap.Int64("event_id", id), zap.Error(err))
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respond(w, http.StatusOK, res)
	})

	r.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
		var records []feed.Record
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&records); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if problems := validateRecords(records); len(problems) > 0 {
			respond(w, http.StatusBadRequest, map[string]any{"error": "invalid records", "records": problems})
			return
		}
		res, err := engine.SyncEvents(r.Context(), records)
		if err != nil {
			zap.L().Error("sync failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "sync failed")
			return
		}
		respond(w, http.StatusOK, res)
	})

	r.Post("/rematch", func(w http.ResponseWriter, r *http.Request) {
		n, err := engine.Rematch(r.Context())
		if err != nil {
			zap.L().Error("rematch failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "rematch failed")
			return
		}
		respond(w, http.StatusOK, map[string]int{"matched": n})
	})

	r.Get("/review", func(w http.ResponseWriter, r *http.Request) {
		q, err := engine.ReviewQueue(r.Context())
		if err != nil {
			zap.L().Error("review queue failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "review queue failed")
			return
		}
		respond(w, http.StatusOK, q)
	})

	return r
}

// readDocument takes the raw request body as one document named by the
// name query parameter.
func readDocument(w http.ResponseWriter, r *http.Request) (reconcile.Document, error) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "upload"
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		return reconcile.Document{}, eris.Wrap(err, "read request body")
	}
	if len(data) == 0 {
		return reconcile.Document{}, eris.New("empty request body")
	}
	return reconcile.Document{Name: name, Data: data}, nil
}

// validateRecords returns one message per invalid record, keyed by its
// index in the request.
func validateRecords(records []feed.Record) map[string]string {
	problems := make(map[string]string)
	for i, rec := range records {
		if err := feed.Validate(rec); err != nil {
			problems[strconv.Itoa(i)] = err.Error()
		}
	}
	return problems
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
