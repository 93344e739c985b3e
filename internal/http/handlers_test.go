package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jfarhadi/pos-sync/internal/db"
	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jfarhadi/pos-sync/internal/stats"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiEnv struct {
	dbx     *sqlx.DB
	records repository.RecordsRepository
	retries repository.RetryLogRepository
	server  *Server
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	dbx, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(dbx, "sqlite3"))
	t.Cleanup(func() { _ = dbx.Close() })

	records := repository.NewRecordsRepository(dbx)
	retries := repository.NewRetryLogRepository(dbx)
	snaps := repository.NewSnapshotsRepository(dbx)
	reporter := stats.New(dbx, records, retries, snaps, 3, 500, 100, zap.NewNop())

	return &apiEnv{
		dbx:     dbx,
		records: records,
		retries: retries,
		server:  NewServer("store-001", records, reporter, retries),
	}
}

func (e *apiEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.server.e.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) postJSON(t *testing.T, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.server.e.ServeHTTP(rec, req)
	return rec
}

func TestHealthzHealthy(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHealthzUnhealthyIs503(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, env.dbx.Close())

	rec := env.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
}

func TestStatsEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.get(t, "/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var rep stats.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, stats.Healthy, rep.Verdict)
	assert.Zero(t, rep.PendingTransactions)
}

func TestListRetriesPagination(t *testing.T) {
	env := newAPIEnv(t)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, env.retries.Insert(context.Background(), nil, model.RetryLogEntry{
			EntityKind:    model.KindTransaction,
			EntityID:      fmt.Sprintf("TXN-%d", i),
			StoreID:       "store-001",
			AttemptNumber: 1,
			ErrorMessage:  "endpoint status=500",
			CreatedAt:     now.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec := env.get(t, "/v1/retries?limit=2&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Limit   int                   `json:"limit"`
		Offset  int                   `json:"offset"`
		Count   int                   `json:"count"`
		Results []model.RetryLogEntry `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Limit)
	assert.Equal(t, 1, body.Offset)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Results, 2)
	// Newest first, offset skips the newest.
	assert.Equal(t, "TXN-3", body.Results[0].EntityID)
	assert.Equal(t, "TXN-2", body.Results[1].EntityID)
}

func TestListRetriesBogusParamsFallBack(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.get(t, "/v1/retries?limit=-3&offset=abc")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Limit)
	assert.Zero(t, body.Offset)
}

func TestCreateEventCapturesTransaction(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.postJSON(t, "/v1/events", `{
		"kind": "transaction",
		"type": "sale",
		"productId": "SKU-1001",
		"quantity": 2,
		"unitPrice": 1250
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		ID      string `json:"id"`
		StoreID string `json:"storeId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "store-001", body.StoreID, "server owns the store id")

	stored, err := env.records.Get(context.Background(), model.KindTransaction, body.ID)
	require.NoError(t, err)
	assert.False(t, stored.Synced)
	assert.Zero(t, stored.SyncAttempts)
	assert.Equal(t, model.EventSale, stored.Type)
	assert.EqualValues(t, 2500, stored.Total, "total derived from quantity * unitPrice")
}

func TestCreateEventCapturesInventoryDelta(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.postJSON(t, "/v1/events", `{
		"kind": "inventory",
		"type": "damage",
		"productId": "SKU-2002",
		"quantity": -3
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	stored, err := env.records.Get(context.Background(), model.KindInventory, body.ID)
	require.NoError(t, err)
	assert.EqualValues(t, -3, stored.Quantity)
	assert.Zero(t, stored.Total)
}

func TestCreateEventValidation(t *testing.T) {
	env := newAPIEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad kind", `{"kind":"order","type":"sale","productId":"SKU-1","quantity":1}`},
		{"bad type", `{"kind":"transaction","type":"refund","productId":"SKU-1","quantity":1}`},
		{"missing product", `{"kind":"transaction","type":"sale","quantity":1}`},
		{"zero quantity", `{"kind":"inventory","type":"restock","productId":"SKU-1","quantity":0}`},
		{"malformed json", `{"kind":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.postJSON(t, "/v1/events", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateEventIDsSortByCaptureTime(t *testing.T) {
	env := newAPIEnv(t)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := env.postJSON(t, "/v1/events", `{"kind":"transaction","type":"sale","productId":"SKU-1","quantity":1,"unitPrice":100}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		var body struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		ids = append(ids, body.ID)
		time.Sleep(2 * time.Millisecond)
	}

	assert.True(t, ids[0] < ids[1] && ids[1] < ids[2], "ulids sort by capture time: %v", ids)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
