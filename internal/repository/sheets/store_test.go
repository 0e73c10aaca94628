package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/repository"
)

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
	assert.Equal(t, "AZ", columnLetter(51))
	assert.Equal(t, "BA", columnLetter(52))
}

func TestDecodeMatchesColumnsByHeader(t *testing.T) {
	sh := decode([][]interface{}{
		{"critical_kg", "ingredient"},
		{"10", "Flour"},
		{"", "Sugar"},
		{"3"},
	})

	rows := toRows(repository.Limits, sh)
	require.Len(t, rows, 3)
	assert.Equal(t, "Flour", rows[0]["ingredient"])
	assert.Equal(t, "10", rows[0]["critical_kg"])
	assert.Equal(t, "", rows[1]["critical_kg"])
	assert.Equal(t, "", rows[2]["ingredient"])

	rowNumber, _, ok := sh.find("ingredient", "Sugar")
	require.True(t, ok)
	assert.Equal(t, 3, rowNumber)
}

func newFakeSheets(t *testing.T, values [][]interface{}) (*Store, *atomic.Int32) {
	t.Helper()
	updates := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"range": "limits", "values": values})
		case http.MethodPut:
			updates.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"updatedCells": 1})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{})
		}
	}))
	t.Cleanup(srv.Close)

	store, err := NewStore(context.Background(), config.SheetsConfig{SpreadsheetID: "sheet-1"}, nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication(), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return store, updates
}

func TestStoreReadAllAgainstFakeAPI(t *testing.T) {
	store, _ := newFakeSheets(t, [][]interface{}{{"ingredient", "critical_kg"}, {"Flour", "12,5"}})

	rows, err := store.ReadAll(context.Background(), repository.Limits)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "12,5", rows[0]["critical_kg"])
}

func TestStoreCompareAndSwapDetectsStaleValue(t *testing.T) {
	store, updates := newFakeSheets(t, [][]interface{}{{"ingredient", "critical_kg"}, {"Flour", "12"}})

	err := store.CompareAndSwapCell(context.Background(), repository.Limits, "ingredient", "Flour", "critical_kg", "10", "8")
	assert.ErrorIs(t, err, models.ErrStaleValue)
	assert.Zero(t, updates.Load())

	err = store.CompareAndSwapCell(context.Background(), repository.Limits, "ingredient", "Flour", "critical_kg", "12", "8")
	require.NoError(t, err)
	assert.Equal(t, int32(1), updates.Load())

	err = store.CompareAndSwapCell(context.Background(), repository.Limits, "ingredient", "Salt", "critical_kg", "12", "8")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// replaceFake serves a fixed limits tab and records every write.
type replaceFake struct {
	mu      sync.Mutex
	failPut bool
	puts    []string
	writes  [][][]interface{}
	clears  int
}

func newReplaceFake(t *testing.T, values [][]interface{}, failPut bool) (*Store, *replaceFake) {
	t.Helper()
	fake := &replaceFake{failPut: failPut}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"range": "limits", "values": values})
		case http.MethodPut:
			fake.puts = append(fake.puts, r.URL.Path)
			if fake.failPut {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": map[string]interface{}{"code": 503, "message": "backend unavailable"}})
				return
			}
			var body struct {
				Values [][]interface{} `json:"values"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			fake.writes = append(fake.writes, body.Values)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{})
		default:
			fake.clears++
			_ = json.NewEncoder(w).Encode(map[string]interface{}{})
		}
	}))
	t.Cleanup(srv.Close)

	store, err := NewStore(context.Background(), config.SheetsConfig{SpreadsheetID: "sheet-1"}, nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication(), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return store, fake
}

var limitsTab = [][]interface{}{
	{"ingredient", "critical_kg"},
	{"Flour", "10"},
	{"Sugar", "5"},
	{"Salt", "1"},
}

func TestReplaceAllFailedWriteKeepsTab(t *testing.T) {
	store, fake := newReplaceFake(t, limitsTab, true)

	err := store.ReplaceAll(context.Background(), repository.Limits, []repository.Row{{"ingredient": "Flour", "critical_kg": "12"}})
	require.ErrorIs(t, err, models.ErrStoreUnavailable)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.NotEmpty(t, fake.puts)
	assert.Zero(t, fake.clears)
}

func TestReplaceAllBlanksStaleRows(t *testing.T) {
	store, fake := newReplaceFake(t, limitsTab, false)

	err := store.ReplaceAll(context.Background(), repository.Limits, []repository.Row{{"ingredient": "Flour", "critical_kg": "12"}})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Zero(t, fake.clears)
	require.Len(t, fake.writes, 1)
	assert.Equal(t, [][]interface{}{
		{"ingredient", "critical_kg"},
		{"Flour", "12"},
		{"", ""},
		{"", ""},
	}, fake.writes[0])
}
