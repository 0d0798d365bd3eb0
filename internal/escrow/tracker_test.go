package escrow

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/supplychain/internal/chain"
	"github.com/talkincode/supplychain/internal/domain"
)

var epoch = time.UnixMilli(1_700_000_000_000)

type fakeOrderLedger struct {
	mu         sync.Mutex
	orders     []domain.Order
	loadErr    error
	releaseErr error
	released   []string
	block      chan struct{}
	entered    chan struct{}
}

func (l *fakeOrderLedger) LoadOrdersFromChain(_ context.Context, _ string) ([]domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	return append([]domain.Order(nil), l.orders...), nil
}

func (l *fakeOrderLedger) ReleaseEscrow(_ context.Context, _ chain.Signer, orderID string) (string, error) {
	if l.entered != nil {
		l.entered <- struct{}{}
	}
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.releaseErr != nil {
		return "", l.releaseErr
	}
	l.released = append(l.released, orderID)
	return "digest-" + orderID, nil
}

type fakeSigner struct{}

func (fakeSigner) Address() string { return "0xowner" }

func (fakeSigner) SignAndExecute(context.Context, *chain.Transaction) (*chain.TransactionBlockResponse, error) {
	return nil, errors.New("not used")
}

type creditCall struct {
	storeID, shelfID string
	items            []domain.Item
}

type fakeCreditor struct {
	calls []creditCall
	err   error
}

func (c *fakeCreditor) CreditShelf(_ context.Context, storeID, shelfID string, items ...domain.Item) (*domain.Shelf, error) {
	c.calls = append(c.calls, creditCall{storeID, shelfID, items})
	if c.err != nil {
		return nil, c.err
	}
	return &domain.Shelf{ID: shelfID, StoreID: storeID, Items: items}, nil
}

func newTestMeta(t *testing.T) *BoltMetadataStore {
	t.Helper()
	store, err := OpenMetadataStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testOrder(id string, createdAt, delay int64) domain.Order {
	return domain.Order{ID: id, SupplierID: 3, ItemName: "Milk", Quantity: 4, TotalPrice: 12_000_000_000, CreatedAt: createdAt, ReleaseDelay: delay}
}

type trackerFixture struct {
	tracker  *Tracker
	ledger   *fakeOrderLedger
	creditor *fakeCreditor
	meta     *BoltMetadataStore
	clock    *testclock.Clock
	bus      EventBus.Bus
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	f := &trackerFixture{
		ledger:   &fakeOrderLedger{},
		creditor: &fakeCreditor{},
		meta:     newTestMeta(t),
		clock:    testclock.NewClock(epoch),
		bus:      EventBus.New(),
	}
	f.tracker = NewTracker(TrackerConfig{
		Ledger:    f.ledger,
		Signer:    fakeSigner{},
		Meta:      f.meta,
		Inventory: f.creditor,
		Bus:       f.bus,
		Clock:     f.clock,
	})
	return f
}

func TestTrackerCountdown(t *testing.T) {
	f := newTrackerFixture(t)
	f.ledger.orders = []domain.Order{testOrder("0x1", epoch.UnixMilli(), 5000)}
	require.NoError(t, f.tracker.Refresh(context.Background()))
	assert.Equal(t, "0xowner", f.tracker.Owner())

	got, ok := f.tracker.Order("0x1")
	require.True(t, ok)
	assert.Equal(t, int64(5000), got.TimeUntilRelease)
	assert.Equal(t, domain.OrderPending, got.State)

	f.clock.Advance(2 * time.Second)
	f.tracker.tick()
	got, _ = f.tracker.Order("0x1")
	assert.Equal(t, int64(3000), got.TimeUntilRelease)
	assert.Equal(t, "3s", domain.FormatCountdown(got.TimeUntilRelease))

	f.clock.Advance(10 * time.Second)
	f.tracker.tick()
	got, _ = f.tracker.Order("0x1")
	assert.Equal(t, int64(0), got.TimeUntilRelease)
	assert.Equal(t, domain.OrderReleasable, got.State)
	assert.Equal(t, "Ready!", domain.FormatCountdown(got.TimeUntilRelease))
}

func TestTrackerRefreshMergesByID(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	now := epoch.UnixMilli()

	f.ledger.orders = []domain.Order{testOrder("0xa", now, 1000), testOrder("0xb", now+1, 1000)}
	require.NoError(t, f.tracker.Refresh(ctx))
	require.Len(t, f.tracker.Orders(), 2)

	updated := testOrder("0xb", now+1, 1000)
	updated.Quantity = 9
	f.ledger.orders = []domain.Order{updated, testOrder("0xc", now+2, 1000)}
	require.NoError(t, f.tracker.Refresh(ctx))

	orders := f.tracker.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "0xb", orders[0].ID)
	assert.Equal(t, int64(9), orders[0].Quantity)
	assert.Equal(t, "0xc", orders[1].ID)
}

func TestTrackerRefreshErrorKeepsOrders(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.ledger.orders = []domain.Order{testOrder("0xa", epoch.UnixMilli(), 1000)}
	require.NoError(t, f.tracker.Refresh(ctx))

	f.ledger.loadErr = errors.New("rpc down")
	assert.Error(t, f.tracker.Refresh(ctx))
	assert.Len(t, f.tracker.Orders(), 1)
	_, lastErr := f.tracker.LastRefresh()
	assert.EqualError(t, lastErr, "rpc down")
}

func TestTrackedOrderSurvivesIndexingLag(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	f.tracker.Track(testOrder("0xnew", epoch.UnixMilli(), 60_000))
	require.NoError(t, f.tracker.Refresh(ctx))
	_, ok := f.tracker.Order("0xnew")
	assert.True(t, ok)

	f.clock.Advance(localGrace + time.Second)
	require.NoError(t, f.tracker.Refresh(ctx))
	_, ok = f.tracker.Order("0xnew")
	assert.False(t, ok)
}

func TestTrackedOrderPendingUntilLedgerCopy(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	local := testOrder("0xnew", epoch.UnixMilli(), 0)
	f.tracker.Track(local)
	got, ok := f.tracker.Order("0xnew")
	require.True(t, ok)
	assert.True(t, got.AwaitingLedger)
	assert.Equal(t, domain.OrderPending, got.State)

	f.clock.Advance(5 * time.Second)
	f.tracker.tick()
	got, _ = f.tracker.Order("0xnew")
	assert.Equal(t, domain.OrderPending, got.State)

	f.ledger.orders = []domain.Order{testOrder("0xnew", epoch.UnixMilli(), 60_000)}
	require.NoError(t, f.tracker.Refresh(ctx))
	got, _ = f.tracker.Order("0xnew")
	assert.False(t, got.AwaitingLedger)
	assert.Equal(t, int64(55_000), got.TimeUntilRelease)
	assert.Equal(t, domain.OrderPending, got.State)

	f.clock.Advance(time.Minute)
	f.tracker.tick()
	got, _ = f.tracker.Order("0xnew")
	assert.Equal(t, domain.OrderReleasable, got.State)
}

func TestReleaseCreditsCachedShelf(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.ledger.orders = []domain.Order{testOrder("0x1", epoch.UnixMilli(), 0)}
	require.NoError(t, f.tracker.Refresh(ctx))
	require.NoError(t, f.meta.Put(domain.OrderMeta{
		OrderID: "0x1", StoreID: "store", ShelfID: "store-shelf-0",
		ItemName: "Milk", Quantity: 4, Price: 4.5, SupplierID: 3,
	}))

	var events []OrderEvent
	require.NoError(t, f.bus.Subscribe(TopicOrderReleased, func(ev OrderEvent) { events = append(events, ev) }))

	res, err := f.tracker.Release(ctx, "0x1")
	require.NoError(t, err)
	assert.Equal(t, "digest-0x1", res.Digest)
	assert.True(t, res.Credited)
	require.NotNil(t, res.Item)
	assert.Equal(t, "3", res.Item.Supplier)
	assert.NotEmpty(t, res.Item.ID)

	require.Len(t, f.creditor.calls, 1)
	call := f.creditor.calls[0]
	assert.Equal(t, "store", call.storeID)
	assert.Equal(t, "store-shelf-0", call.shelfID)
	require.Len(t, call.items, 1)
	assert.Equal(t, "Milk", call.items[0].Name)
	assert.Equal(t, int64(4), call.items[0].Quantity)
	assert.Equal(t, 4.5, call.items[0].Price)

	meta, err := f.meta.Get("0x1")
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.Empty(t, f.tracker.Orders())
	require.Len(t, events, 1)
	assert.Equal(t, "released", events[0].Action)
}

func TestReleaseWithoutMetadata(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.ledger.orders = []domain.Order{testOrder("0x1", epoch.UnixMilli(), 0)}
	require.NoError(t, f.tracker.Refresh(ctx))

	res, err := f.tracker.Release(ctx, "0x1")
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Empty(t, f.creditor.calls)
	assert.Empty(t, f.tracker.Orders())
}

func TestReleaseFailureKeepsOrder(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.ledger.orders = []domain.Order{testOrder("0x1", epoch.UnixMilli(), 60_000)}
	f.ledger.releaseErr = &chain.TransactionAbortedError{Digest: "d", Status: "failure", Reason: "EReleaseTooEarly"}
	require.NoError(t, f.tracker.Refresh(ctx))
	require.NoError(t, f.meta.Put(domain.OrderMeta{OrderID: "0x1", StoreID: "s", ShelfID: "s-shelf-0", ItemName: "Milk", Quantity: 4}))

	var failed []OrderEvent
	require.NoError(t, f.bus.Subscribe(TopicOrderReleaseFailed, func(ev OrderEvent) { failed = append(failed, ev) }))

	_, err := f.tracker.Release(ctx, "0x1")
	assert.True(t, chain.IsTransactionAborted(err))

	got, ok := f.tracker.Order("0x1")
	require.True(t, ok)
	assert.Equal(t, domain.OrderPending, got.State)
	meta, err := f.meta.Get("0x1")
	require.NoError(t, err)
	assert.NotNil(t, meta)
	assert.Empty(t, f.creditor.calls)
	require.Len(t, failed, 1)
	assert.Equal(t, "failure", failed[0].Status)
}

func TestReleaseUnresolvedPlacementDropsMetadata(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.creditor.err = domain.ErrShelfNotFound
	require.NoError(t, f.meta.Put(domain.OrderMeta{OrderID: "0x1", StoreID: "s", ShelfID: "gone", ItemName: "Milk", Quantity: 1}))

	res, err := f.tracker.Release(ctx, "0x1")
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Contains(t, res.CreditError, "shelf not found")
	meta, err := f.meta.Get("0x1")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestReleaseCreditFailureKeepsMetadata(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.creditor.err = errors.New("database is locked")
	require.NoError(t, f.meta.Put(domain.OrderMeta{OrderID: "0x1", StoreID: "s", ShelfID: "s-shelf-0", ItemName: "Milk", Quantity: 1}))

	res, err := f.tracker.Release(ctx, "0x1")
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Contains(t, res.CreditError, "database is locked")
	meta, err := f.meta.Get("0x1")
	require.NoError(t, err)
	assert.NotNil(t, meta)
}

func TestReleaseInFlightGuard(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.ledger.block = make(chan struct{})
	f.ledger.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.tracker.Release(ctx, "0x1")
		done <- err
	}()
	<-f.ledger.entered

	_, err := f.tracker.Release(ctx, "0x1")
	assert.ErrorIs(t, err, ErrReleaseInFlight)

	close(f.ledger.block)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"0x1"}, f.ledger.released)
}

func TestTrackerStartStop(t *testing.T) {
	f := newTrackerFixture(t)
	f.ledger.orders = []domain.Order{testOrder("0x1", epoch.UnixMilli(), 5000)}

	f.tracker.Start(context.Background(), time.Second, 5*time.Second)
	require.Eventually(t, func() bool {
		_, ok := f.tracker.Order("0x1")
		return ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, f.clock.WaitAdvance(time.Second, time.Second, 2))
	require.Eventually(t, func() bool {
		got, _ := f.tracker.Order("0x1")
		return got.TimeUntilRelease == 4000
	}, time.Second, 10*time.Millisecond)

	f.tracker.Stop()
	f.tracker.Stop()
}
