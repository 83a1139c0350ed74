package inventory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/tailore/internal/db"
	"github.com/erazemk/tailore/internal/metrics"
	"github.com/erazemk/tailore/internal/model"
	"github.com/erazemk/tailore/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	records *store.InventoryStore
	history *store.HistoryStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	f := &fixture{
		records: &store.InventoryStore{DB: database},
		history: &store.HistoryStore{DB: database},
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	f.svc = NewService(f.records, f.history, opts...)
	return f
}

// seed creates a product and forces its counters to the given values.
func (f *fixture) seed(t *testing.T, id string, quantity, reserved, available int) {
	t.Helper()
	ctx := context.Background()
	_, err := store.CreateProduct(ctx, f.records.DB.(*sqlx.DB), &model.Product{
		ID:          id,
		Name:        "Silk Gown " + id,
		RetailPrice: decimal.NewFromInt(450),
	}, quantity)
	require.NoError(t, err)
	require.NoError(t, f.records.Update(ctx, id, store.InventoryUpdate{
		Quantity:          &quantity,
		ReservedQuantity:  &reserved,
		AvailableQuantity: &available,
	}))
}

func (f *fixture) record(t *testing.T, id string) *model.InventoryRecord {
	t.Helper()
	rec, err := f.svc.GetStock(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (f *fixture) ledger(t *testing.T, id string) []model.StockHistoryEntry {
	t.Helper()
	entries, err := f.history.List(context.Background(), id, 0)
	require.NoError(t, err)
	return entries
}

func assertCounters(t *testing.T, rec *model.InventoryRecord, quantity, reserved, available int) {
	t.Helper()
	assert.Equal(t, quantity, rec.Quantity, "quantity")
	assert.Equal(t, reserved, rec.ReservedQuantity, "reserved")
	assert.Equal(t, available, rec.AvailableQuantity, "available")
}

func assertKind(t *testing.T, err error, sentinel *Error) *Error {
	t.Helper()
	require.ErrorIs(t, err, sentinel)
	var ie *Error
	require.True(t, errors.As(err, &ie))
	return ie
}

func TestReserveReleaseCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "P-1", 10, 0, 10)

	res, err := f.svc.Reserve(ctx, "P-1", 3, "alice")
	require.NoError(t, err)
	assert.Equal(t, ReserveResult{ProductID: "P-1", ReservedQuantity: 3, NewReservedTotal: 3, AvailableQuantity: 7}, *res)
	assertCounters(t, f.record(t, "P-1"), 10, 3, 7)

	rel, err := f.svc.Release(ctx, "P-1", 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, ReleaseResult{ProductID: "P-1", ReleasedQuantity: 1, NewReservedTotal: 2, AvailableQuantity: 8}, *rel)
	assertCounters(t, f.record(t, "P-1"), 10, 2, 8)

	com, err := f.svc.Commit(ctx, "P-1", 2, "alice")
	require.NoError(t, err)
	assert.Equal(t, CommitResult{ProductID: "P-1", CommittedQuantity: 2, NewTotalQuantity: 8, NewReserved: 0, AvailableQuantity: 8}, *com)
	assertCounters(t, f.record(t, "P-1"), 8, 0, 8)

	entries := f.ledger(t, "P-1")
	require.Len(t, entries, 3)
	// Newest first; all share the fixed clock so the id breaks the tie.
	assert.Equal(t, model.ActionCommit, entries[0].Action)
	assert.Equal(t, -2, entries[0].QuantityChange)
	assert.Equal(t, 10, entries[0].PreviousQuantity)
	assert.Equal(t, 8, entries[0].NewQuantity)
	assert.Equal(t, "Stock committed - sale finalized", entries[0].Reason)

	assert.Equal(t, model.ActionRelease, entries[1].Action)
	assert.Equal(t, 1, entries[1].QuantityChange)
	assert.Equal(t, 7, entries[1].PreviousQuantity)
	assert.Equal(t, 8, entries[1].NewQuantity)
	assert.Equal(t, "Stock released from reservation", entries[1].Reason)

	assert.Equal(t, model.ActionReserve, entries[2].Action)
	assert.Equal(t, -3, entries[2].QuantityChange)
	assert.Equal(t, 10, entries[2].PreviousQuantity)
	assert.Equal(t, 7, entries[2].NewQuantity)
	assert.Equal(t, "Stock reserved for order", entries[2].Reason)
	assert.Equal(t, "alice", entries[2].PerformedBy)
	assert.True(t, entries[2].CreatedAt.Equal(fixedNow))
}

func TestReserveInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 10, 3, 7)

	_, err := f.svc.Reserve(context.Background(), "P-1", 8, "alice")
	ie := assertKind(t, err, ErrInsufficientStock)
	assert.Equal(t, 8, ie.Requested)
	assert.Equal(t, 7, ie.Limit)

	assertCounters(t, f.record(t, "P-1"), 10, 3, 7)
	assert.Empty(t, f.ledger(t, "P-1"))
}

func TestReserveExactlyAvailable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 5, 0, 5)

	_, err := f.svc.Reserve(context.Background(), "P-1", 5, "alice")
	require.NoError(t, err)
	assertCounters(t, f.record(t, "P-1"), 5, 5, 0)

	_, err = f.svc.Reserve(context.Background(), "P-1", 1, "alice")
	assertKind(t, err, ErrInsufficientStock)
}

func TestReleaseMoreThanReserved(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 10, 2, 8)

	_, err := f.svc.Release(context.Background(), "P-1", 3, "alice")
	ie := assertKind(t, err, ErrInvalidRelease)
	assert.Equal(t, 3, ie.Requested)
	assert.Equal(t, 2, ie.Limit)
	assertCounters(t, f.record(t, "P-1"), 10, 2, 8)
}

func TestCommitMoreThanReserved(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 10, 0, 10)

	_, err := f.svc.Commit(context.Background(), "P-1", 1, "alice")
	ie := assertKind(t, err, ErrInvalidCommit)
	assert.Equal(t, 1, ie.Requested)
	assert.Equal(t, 0, ie.Limit)
	assertCounters(t, f.record(t, "P-1"), 10, 0, 10)
	assert.Empty(t, f.ledger(t, "P-1"))
}

func TestCommitLeavesAvailableUntouched(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 100, 20, 50)

	res, err := f.svc.Commit(context.Background(), "P-1", 10, "alice")
	require.NoError(t, err)
	assert.Equal(t, 50, res.AvailableQuantity)
	assertCounters(t, f.record(t, "P-1"), 90, 10, 50)
}

func TestNonPositiveQuantityRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "P-1", 10, 0, 10)

	for _, qty := range []int{0, -1} {
		_, err := f.svc.Reserve(ctx, "P-1", qty, "alice")
		assertKind(t, err, ErrInvalidQuantity)
		_, err = f.svc.Release(ctx, "P-1", qty, "alice")
		assertKind(t, err, ErrInvalidQuantity)
		_, err = f.svc.Commit(ctx, "P-1", qty, "alice")
		assertKind(t, err, ErrInvalidQuantity)
	}

	assertCounters(t, f.record(t, "P-1"), 10, 0, 10)
	assert.Empty(t, f.ledger(t, "P-1"))
}

func TestAdjustZeroRecordsReduce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 10, 0, 10)

	res, err := f.svc.Adjust(context.Background(), "P-1", 0, "", "admin")
	require.NoError(t, err)
	assert.Equal(t, AdjustResult{ProductID: "P-1", PreviousQuantity: 10, QuantityChange: 0, NewQuantity: 10, AvailableQuantity: 10}, *res)

	rec := f.record(t, "P-1")
	assertCounters(t, rec, 10, 0, 10)
	require.NotNil(t, rec.LastRestocked)
	assert.True(t, rec.LastRestocked.Equal(fixedNow))

	entries := f.ledger(t, "P-1")
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionReduce, entries[0].Action)
	assert.Equal(t, 0, entries[0].QuantityChange)
	assert.Equal(t, 10, entries[0].PreviousQuantity)
	assert.Equal(t, 10, entries[0].NewQuantity)
	assert.Equal(t, DefaultAdjustReason, entries[0].Reason)
}

func TestAdjustRestockAndReduce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "P-1", 10, 3, 7)

	res, err := f.svc.Adjust(ctx, "P-1", 5, "Delivery", "admin")
	require.NoError(t, err)
	assert.Equal(t, AdjustResult{ProductID: "P-1", PreviousQuantity: 10, QuantityChange: 5, NewQuantity: 15, AvailableQuantity: 12}, *res)
	rec := f.record(t, "P-1")
	assertCounters(t, rec, 15, 3, 12)
	require.NotNil(t, rec.LastRestocked)
	assert.True(t, rec.LastRestocked.Equal(fixedNow))

	_, err = f.svc.Adjust(ctx, "P-1", -4, "", "admin")
	require.NoError(t, err)
	assertCounters(t, f.record(t, "P-1"), 11, 3, 8)

	entries := f.ledger(t, "P-1")
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionReduce, entries[0].Action)
	assert.Equal(t, DefaultAdjustReason, entries[0].Reason)
	assert.Equal(t, 15, entries[0].PreviousQuantity)
	assert.Equal(t, 11, entries[0].NewQuantity)
	assert.Equal(t, model.ActionRestock, entries[1].Action)
	assert.Equal(t, "Delivery", entries[1].Reason)
	assert.Equal(t, "admin", entries[1].PerformedBy)
}

func TestAdjustBelowZeroRejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 4, 0, 4)

	_, err := f.svc.Adjust(context.Background(), "P-1", -5, "Damaged", "admin")
	ie := assertKind(t, err, ErrInvalidQuantity)
	assert.Equal(t, -5, ie.Requested)
	assertCounters(t, f.record(t, "P-1"), 4, 0, 4)
}

func TestAdjustBelowReservedGoesNegative(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 10, 8, 2)

	res, err := f.svc.Adjust(context.Background(), "P-1", -5, "Shrinkage", "admin")
	require.NoError(t, err)
	assert.Equal(t, -3, res.AvailableQuantity)
	assertCounters(t, f.record(t, "P-1"), 5, 8, -3)
}

func TestUnknownProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetStock(ctx, "missing")
	assertKind(t, err, ErrNotFound)
	_, err = f.svc.Reserve(ctx, "missing", 1, "alice")
	assertKind(t, err, ErrNotFound)
	_, err = f.svc.Release(ctx, "missing", 1, "alice")
	assertKind(t, err, ErrNotFound)
	_, err = f.svc.Commit(ctx, "missing", 1, "alice")
	assertKind(t, err, ErrNotFound)
	_, err = f.svc.Adjust(ctx, "missing", 1, "", "alice")
	assertKind(t, err, ErrNotFound)
	_, err = f.svc.ListHistory(ctx, "missing", 10)
	assertKind(t, err, ErrNotFound)
}

func TestListHistoryLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "P-1", 10, 0, 10)

	for i := 0; i < 4; i++ {
		_, err := f.svc.Reserve(ctx, "P-1", 1, "alice")
		require.NoError(t, err)
	}

	entries, err := f.svc.ListHistory(ctx, "P-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 6, entries[0].NewQuantity)
	assert.Equal(t, 7, entries[1].NewQuantity)
}

func TestConcurrentReservesDoNotOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "P-1", 10, 0, 10)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(ctx, "P-1", 1, "alice")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, rejected)
	assertCounters(t, f.record(t, "P-1"), 10, 10, 0)
	assert.Len(t, f.ledger(t, "P-1"), 10)
}

func TestQuantityMinusReservedPreserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "P-1", 20, 0, 20)

	steps := []func() error{
		func() error { _, err := f.svc.Reserve(ctx, "P-1", 5, "a"); return err },
		func() error { _, err := f.svc.Adjust(ctx, "P-1", 3, "", "a"); return err },
		func() error { _, err := f.svc.Release(ctx, "P-1", 2, "a"); return err },
		func() error { _, err := f.svc.Commit(ctx, "P-1", 3, "a"); return err },
		func() error { _, err := f.svc.Adjust(ctx, "P-1", -6, "", "a"); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		rec := f.record(t, "P-1")
		assert.Equal(t, rec.Quantity-rec.ReservedQuantity, rec.AvailableQuantity, "step %d", i)
		assert.GreaterOrEqual(t, rec.ReservedQuantity, 0)
	}
}

const operationsHeader = `# HELP inventory_operations_total Stock operations by action and outcome.
# TYPE inventory_operations_total counter
`

const ledgerFailuresHeader = `# HELP inventory_ledger_append_failures_total Stock history writes that failed after the record was updated.
# TYPE inventory_ledger_append_failures_total counter
`

func assertMetric(t *testing.T, reg *prometheus.Registry, expected, name string) {
	t.Helper()
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), name))
}

type failingLedger struct {
	store.HistoryStore
	err error
}

func (l *failingLedger) Append(context.Context, *model.StockHistoryEntry) error {
	return l.err
}

func TestLedgerFailureDoesNotFailOperation(t *testing.T) {
	database := db.NewTestDB(t)
	records := &store.InventoryStore{DB: database}
	ledger := &failingLedger{HistoryStore: store.HistoryStore{DB: database}, err: errors.New("disk full")}
	reg := prometheus.NewRegistry()
	m := metrics.NewInventoryMetrics(reg)
	svc := NewService(records, ledger, WithMetrics(m))

	ctx := context.Background()
	_, err := store.CreateProduct(ctx, database, &model.Product{ID: "P-1", Name: "Blazer", RetailPrice: decimal.NewFromInt(200)}, 10)
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, "P-1", 4, "alice")
	require.NoError(t, err)
	assert.Equal(t, 6, res.AvailableQuantity)

	rec, err := records.Get(ctx, "P-1")
	require.NoError(t, err)
	assertCounters(t, rec, 10, 4, 6)

	entries, err := ledger.List(ctx, "P-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assertMetric(t, reg, ledgerFailuresHeader+`inventory_ledger_append_failures_total{action="reserve"} 1
`, "inventory_ledger_append_failures_total")
	assertMetric(t, reg, operationsHeader+`inventory_operations_total{action="reserve",outcome="success"} 1
`, "inventory_operations_total")
}

type brokenRecords struct{}

func (brokenRecords) Get(context.Context, string) (*model.InventoryRecord, error) {
	return nil, errors.New("database is locked")
}

func (brokenRecords) Update(context.Context, string, store.InventoryUpdate) error {
	return errors.New("database is locked")
}

func TestStorageFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewInventoryMetrics(reg)
	svc := NewService(brokenRecords{}, &failingLedger{}, WithMetrics(m))

	_, err := svc.Reserve(context.Background(), "P-1", 1, "alice")
	ie := assertKind(t, err, ErrStorage)
	assert.False(t, ie.Validation())
	assert.Contains(t, err.Error(), "database is locked")
	assertMetric(t, reg, operationsHeader+`inventory_operations_total{action="reserve",outcome="error"} 1
`, "inventory_operations_total")
}

func TestLockTimeoutIsStorageError(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "P-1", 10, 0, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Reserve(ctx, "P-1", 1, "alice")
	ie := assertKind(t, err, ErrStorage)
	assert.ErrorIs(t, ie, context.Canceled)
}

func TestRejectionsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewInventoryMetrics(reg)
	f := newFixture(t, WithMetrics(m))
	f.seed(t, "P-1", 1, 0, 1)

	_, err := f.svc.Reserve(context.Background(), "P-1", 2, "alice")
	require.Error(t, err)
	assertMetric(t, reg, operationsHeader+`inventory_operations_total{action="reserve",outcome="rejected"} 1
`, "inventory_operations_total")
}
