package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/metrics"
	"github.com/mamadbah2/batchledger/internal/repository/memory"
	"github.com/mamadbah2/batchledger/internal/server/handlers"
	"github.com/mamadbah2/batchledger/internal/service/catalog"
	"github.com/mamadbah2/batchledger/internal/service/inventory"
	"github.com/mamadbah2/batchledger/internal/service/monitor"
	"github.com/mamadbah2/batchledger/internal/service/notify"
	"github.com/mamadbah2/batchledger/internal/service/production"
	"github.com/mamadbah2/batchledger/internal/service/reconcile"
	"github.com/mamadbah2/batchledger/internal/service/reporting"
	"github.com/mamadbah2/batchledger/internal/service/shipping"
)

func newEngine(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	m := metrics.New()
	now := func() time.Time { return time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC) }

	cat := catalog.NewService(store, nil, nil)
	lots := ledger.NewLots(store, ledger.NewID, now, nil)
	batches := ledger.NewBatches(store, nil)
	finished := ledger.NewFinishedGoods(store, nil)
	mon := monitor.NewService(store, lots, m, nil)

	h := handlers.New(handlers.Services{
		Catalog:   cat,
		Inventory: inventory.NewService(lots, cat, nil, nil, nil),
		Monitor:   mon,
		Allocator: production.NewAllocator(cat, lots, now, nil),
		Recorder:  production.NewRecorder(production.RecorderDeps{Batches: batches, Lots: lots, Finished: finished, Metrics: m}, nil),
		Batches:   batches,
		Shipping:  shipping.NewService(finished, nil, nil, m, nil, now, nil),
		Reconcile: reconcile.NewService(batches, lots, finished, cat, nil, m, nil),
		Reporting: reporting.NewService(batches, lots, finished, mon, nil, now, nil),
		Notifier:  notify.NewWhatsAppNotifier(config.WhatsAppConfig{}, nil, nil),
	}, nil)
	return New(h, m.Handler(), nil), store
}

func do(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func TestHealthz(t *testing.T) {
	engine, _ := newEngine(t)
	rec := do(t, engine, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProductionFlow(t *testing.T) {
	engine, _ := newEngine(t)

	require.Equal(t, http.StatusCreated, do(t, engine, http.MethodPost, "/ingredients", `{"name":"Flour","category":"katı"}`).Code)
	require.Equal(t, http.StatusConflict, do(t, engine, http.MethodPost, "/ingredients", `{"name":"flour","category":"solid"}`).Code)
	require.Equal(t, http.StatusOK, do(t, engine, http.MethodPut, "/recipes",
		`{"code":"P-1","name":"Bread mix","net_package_kg":"0.5","shelf_life_months":2,"solids":{"Flour":"1"}}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, engine, http.MethodPut, "/recipes",
		`{"code":"P-2","net_package_kg":"0.5","solids":{"Flour":"0.7"}}`).Code)

	rec := do(t, engine, http.MethodGet, "/recipes/P-1/resolve?packages=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resolved struct {
		RequestedKg  string `json:"requested_kg"`
		Requirements map[string]struct {
			Kg string `json:"kg"`
		} `json:"requirements"`
	}
	decode(t, rec, &resolved)
	assert.Equal(t, "5", resolved.RequestedKg)
	assert.Equal(t, "5", resolved.Requirements["Flour"].Kg)

	require.Equal(t, http.StatusCreated, do(t, engine, http.MethodPost, "/lots", `{"ingredient":"Flour","lot_number":"F-1","received":"20"}`).Code)

	draft := `{"product_code":"P-1","batch_number":"B-1","packages":10,"entries":{"Flour":[{"lot_number":"F-1","quantity":"6"}]}}`
	rec = do(t, engine, http.MethodPost, "/batches/validate", draft)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, engine, http.MethodPost, "/batches", draft)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var committed struct {
		Batch struct {
			ID           string `json:"id"`
			SolidWasteKg string `json:"solid_waste_kg"`
			Status       string `json:"status"`
		} `json:"batch"`
	}
	decode(t, rec, &committed)
	assert.Equal(t, "committed", committed.Batch.Status)
	assert.Equal(t, "1", committed.Batch.SolidWasteKg)

	over := `{"batch_id":"` + committed.Batch.ID + `","customer":"Shop","type":"sale","kg":"6"}`
	assert.Equal(t, http.StatusConflict, do(t, engine, http.MethodPost, "/shipments", over).Code)
	ok := `{"batch_id":"` + committed.Batch.ID + `","customer":"Shop","type":"numune","kg":"2"}`
	require.Equal(t, http.StatusCreated, do(t, engine, http.MethodPost, "/shipments", ok).Code)

	rec = do(t, engine, http.MethodGet, "/batches/"+committed.Batch.ID+"/trace", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trace struct {
		Shipments  []json.RawMessage `json:"shipments"`
		SourceLots []json.RawMessage `json:"source_lots"`
	}
	decode(t, rec, &trace)
	assert.Len(t, trace.Shipments, 1)
	assert.Len(t, trace.SourceLots, 1)

	rec = do(t, engine, http.MethodGet, "/reconciliation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	rec = do(t, engine, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "batchledger_"), "metrics exposed")
}

func TestErrorMapping(t *testing.T) {
	engine, _ := newEngine(t)

	assert.Equal(t, http.StatusNotFound, do(t, engine, http.MethodGet, "/batches/URT-none/trace", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, engine, http.MethodPost, "/lots", `{"ingredient":`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, engine, http.MethodPost, "/batches", `{"product_code":"P-1","batch_number":"B","packages":0}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, engine, http.MethodGet, "/recipes/P-1/resolve?packages=x", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, engine, http.MethodGet, "/reports/daily?date=yesterday", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, engine, http.MethodDelete, "/lots/STK-none?reason=gone", "").Code)
}

func TestStoreOutage(t *testing.T) {
	engine, store := newEngine(t)
	store.SetFault(func(op, table string) error { return assert.AnError })

	rec := do(t, engine, http.MethodGet, "/ingredients", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, engine, http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded":true`)
}
