package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jfarhadi/pos-sync/internal/db"
	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reporterEnv struct {
	dbx      *sqlx.DB
	records  repository.RecordsRepository
	retries  repository.RetryLogRepository
	snaps    repository.SnapshotsRepository
	reporter *Reporter
}

func newReporterEnv(t *testing.T, pendingThreshold, failuresThreshold int) *reporterEnv {
	t.Helper()
	dbx, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(dbx, "sqlite3"))
	t.Cleanup(func() { _ = dbx.Close() })

	env := &reporterEnv{
		dbx:     dbx,
		records: repository.NewRecordsRepository(dbx),
		retries: repository.NewRetryLogRepository(dbx),
		snaps:   repository.NewSnapshotsRepository(dbx),
	}
	env.reporter = New(dbx, env.records, env.retries, env.snaps, 3, pendingThreshold, failuresThreshold, zap.NewNop())
	return env
}

func (e *reporterEnv) insertPending(t *testing.T, kind model.RecordKind, n int) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		require.NoError(t, e.records.Insert(context.Background(), nil, model.Record{
			ID:        fmt.Sprintf("%s-%04d", kind, i),
			Kind:      kind,
			StoreID:   "store-001",
			ProductID: "SKU-1",
			Type:      model.EventSale,
			Quantity:  1,
			EventTime: now,
			CreatedAt: now,
		}))
	}
}

func (e *reporterEnv) insertFailure(t *testing.T, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, e.retries.Insert(context.Background(), nil, model.RetryLogEntry{
		EntityKind:    model.KindTransaction,
		EntityID:      id,
		StoreID:       "store-001",
		AttemptNumber: 1,
		ErrorMessage:  "endpoint status=500",
		ShouldRetry:   true,
		CreatedAt:     createdAt,
	}))
}

func TestReportHealthy(t *testing.T) {
	env := newReporterEnv(t, 100, 50)
	env.insertPending(t, model.KindTransaction, 2)

	rep := env.reporter.Report(context.Background())

	assert.Equal(t, Healthy, rep.Verdict)
	assert.Equal(t, 2, rep.PendingTransactions)
	assert.Zero(t, rep.PendingInventory)
	assert.Zero(t, rep.FailuresToday)
	assert.Nil(t, rep.LastCycleAt)
	assert.Nil(t, rep.LastSuccessAt)
}

func TestReportDegradedByPendingBacklog(t *testing.T) {
	env := newReporterEnv(t, 5, 50)
	env.insertPending(t, model.KindTransaction, 4)
	env.insertPending(t, model.KindInventory, 3)

	rep := env.reporter.Report(context.Background())

	assert.Equal(t, Degraded, rep.Verdict, "combined backlog 7 > threshold 5")
	assert.Equal(t, 4, rep.PendingTransactions)
	assert.Equal(t, 3, rep.PendingInventory)
}

func TestReportDegradedByFailuresToday(t *testing.T) {
	env := newReporterEnv(t, 100, 2)
	now := time.Now().UTC()
	midnight := now.Truncate(24 * time.Hour)

	// Yesterday's failures do not count against today's threshold.
	env.insertFailure(t, "TXN-OLD", midnight.Add(-time.Hour))
	for i := 0; i < 3; i++ {
		env.insertFailure(t, fmt.Sprintf("TXN-%d", i), midnight.Add(time.Duration(i+1)*time.Minute))
	}

	rep := env.reporter.Report(context.Background())

	assert.Equal(t, Degraded, rep.Verdict)
	assert.Equal(t, 3, rep.FailuresToday)
}

func TestReportDisabledThresholds(t *testing.T) {
	// Zero thresholds disable degradation checks entirely.
	env := newReporterEnv(t, 0, 0)
	env.insertPending(t, model.KindTransaction, 500)
	env.insertFailure(t, "TXN-1", time.Now().UTC())

	rep := env.reporter.Report(context.Background())
	assert.Equal(t, Healthy, rep.Verdict)
}

func TestReportUnhealthyOnStoreFailure(t *testing.T) {
	env := newReporterEnv(t, 100, 50)
	require.NoError(t, env.dbx.Close())

	rep := env.reporter.Report(context.Background())

	assert.Equal(t, Unhealthy, rep.Verdict)
	assert.Zero(t, rep.PendingTransactions)
}

func TestReportCycleTimestamps(t *testing.T) {
	env := newReporterEnv(t, 100, 50)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, env.snaps.Insert(ctx, model.StatusSnapshot{
		Status: model.CycleRunning, SyncedCount: 3, CreatedAt: now.Add(-10 * time.Minute),
	}))
	require.NoError(t, env.snaps.Insert(ctx, model.StatusSnapshot{
		Status: model.CycleError, FailedCount: 1, CreatedAt: now.Add(-time.Minute),
	}))

	rep := env.reporter.Report(ctx)

	require.NotNil(t, rep.LastCycleAt)
	require.NotNil(t, rep.LastSuccessAt)
	assert.WithinDuration(t, now.Add(-time.Minute), *rep.LastCycleAt, time.Second)
	assert.WithinDuration(t, now.Add(-10*time.Minute), *rep.LastSuccessAt, time.Second)
}

func TestReportCountsExhausted(t *testing.T) {
	env := newReporterEnv(t, 100, 50)
	ctx := context.Background()
	env.insertPending(t, model.KindTransaction, 1)

	// Burn the record's whole retry budget.
	for i := 0; i < 3; i++ {
		require.NoError(t, env.records.MarkAttempt(ctx, nil, model.KindTransaction, "transaction-0000", time.Now().UTC()))
	}

	rep := env.reporter.Report(ctx)

	assert.Zero(t, rep.PendingTransactions, "exhausted records leave the pending pool")
	assert.Equal(t, 1, rep.ExhaustedTransactions)
	assert.Equal(t, Healthy, rep.Verdict, "exhausted records alone do not degrade")
}
