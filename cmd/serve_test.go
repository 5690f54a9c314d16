//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderrecon/internal/extract"
	"github.com/sells-group/orderrecon/internal/ocr"
	"github.com/sells-group/orderrecon/internal/reconcile"
	"github.com/sells-group/orderrecon/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))

	engine := reconcile.New(s, ocr.NewPlainText(), extract.New(extract.Options{}), reconcile.Options{})
	srv := httptest.NewServer(newRouter(engine))
	t.Cleanup(srv.Close)
	return srv, s
}

func orderText(number string) string {
	return strings.Join([]string{
		"Sales Order",
		fmt.Sprintf("%-43s%s", "Order No: "+number, "Order Date: 03/04/2024"),
		"Customer Code: RANCHO",
		"",
		fmt.Sprintf("%-12s%-24s%-9s%s", "Item", "Description", "Qty", "Lot"),
		fmt.Sprintf("%-12s%-24s%-9s%s", "A100", "Vaccine 10-dose", "5", "LOT2023A"),
	}, "\n")
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestDocumentsEndpoint(t *testing.T) {
	srv, s := newTestServer(t)

	resp, err := http.Post(srv.URL+"/documents?name=so-1001.txt", "text/plain", strings.NewReader(orderText("SO-1001")))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var res reconcile.ImportResult
	decode(t, resp, &res)
	assert.Equal(t, "so-1001.txt", res.Name)
	assert.Equal(t, 1, res.OrdersCreated)

	o, err := s.GetOrderByNumber(context.Background(), "SO-1001")
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestDocumentsEndpoint_BadBodies(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/documents", "text/plain", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/documents", "application/octet-stream", bytes.NewReader([]byte{0xff, 0xfe}))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSyncEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/documents?name=so-1001.txt", "text/plain", strings.NewReader(orderText("SO-1001")))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck

	resp = postJSON(t, srv.URL+"/sync", []map[string]any{
		{"external_id": "e1", "order_number": "SO-1001", "sku": "A100", "quantity": 5},
		{"external_id": "e2", "order_number": "SO-9999", "sku": "A100", "quantity": 1},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res reconcile.SyncResult
	decode(t, resp, &res)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Unmatched)
}

func TestSyncEndpoint_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sync", []map[string]any{
		{"sku": "A100", "quantity": 5},
		{"quantity": 0},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error   string            `json:"error"`
		Records map[string]string `json:"records"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "invalid records", body.Error)
	require.Contains(t, body.Records, "1")
	assert.Contains(t, body.Records["1"], "sku")
	assert.NotContains(t, body.Records, "0")

	resp, err := http.Post(srv.URL+"/sync", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAttachEndpoint(t *testing.T) {
	srv, s := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sync", []map[string]any{
		{"external_id": "e1", "order_number": "PO-77", "sku": "A100", "quantity": 5},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ev, err := s.GetEventByFingerprint(context.Background(), "ext:e1")
	require.NoError(t, err)
	require.NotNil(t, ev)

	resp, err = http.Post(fmt.Sprintf("%s/events/%d/documents?name=so-3003.txt", srv.URL, ev.ID),
		"text/plain", strings.NewReader(orderText("SO-3003")))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res reconcile.AttachResult
	decode(t, resp, &res)
	require.NotNil(t, res.Order)
	assert.Equal(t, "SO-3003", res.Order.OrderNumber)
	assert.Equal(t, "manual", string(res.Event.MatchRule))
}

func TestAttachEndpoint_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"non-numeric id", "/events/abc/documents", http.StatusBadRequest},
		{"zero id", "/events/0/documents", http.StatusBadRequest},
		{"unknown event", "/events/404/documents", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+tt.path, "text/plain", strings.NewReader(orderText("SO-1")))
			require.NoError(t, err)
			resp.Body.Close() //nolint:errcheck
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRematchAndReviewEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sync", []map[string]any{
		{"external_id": "e1", "order_number": "SO-1001", "sku": "A100", "quantity": 5},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rr, err := http.Get(srv.URL + "/review")
	require.NoError(t, err)
	var q reconcile.Review
	decode(t, rr, &q)
	rr.Body.Close() //nolint:errcheck
	assert.Len(t, q.UnmatchedEvents, 1)

	// The order arrives after the event; importing it links the event.
	resp2, err := http.Post(srv.URL+"/documents?name=so-1001.txt", "text/plain", strings.NewReader(orderText("SO-1001")))
	require.NoError(t, err)
	resp2.Body.Close() //nolint:errcheck

	resp = postJSON(t, srv.URL+"/rematch", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m map[string]int
	decode(t, resp, &m)
	assert.Equal(t, 0, m["matched"])

	rr, err = http.Get(srv.URL + "/review")
	require.NoError(t, err)
	defer rr.Body.Close() //nolint:errcheck
	q = reconcile.Review{}
	decode(t, rr, &q)
	assert.Empty(t, q.UnmatchedEvents)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/sync", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
