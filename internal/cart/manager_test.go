package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobix/storefront/internal/cart/domain"
	"github.com/mobix/storefront/internal/storage"
	"github.com/mobix/storefront/pkg/clock"
)

func testItem(productID string, colorCode, storageCode int) domain.LineItem {
	return domain.LineItem{
		ProductID:    productID,
		ProductName:  "Phone " + productID,
		ProductImage: "https://img.example/" + productID,
		ProductPrice: 499,
		ColorCode:    colorCode,
		ColorName:    "Black",
		StorageCode:  storageCode,
		StorageName:  "128GB",
	}
}

func newTestManager(t *testing.T, store *storage.Store, fc *clock.Fake) *Manager {
	t.Helper()
	m := NewManager(context.Background(), store,
		WithClock(fc),
		WithInitGuard(&InitGuard{}),
	)
	t.Cleanup(m.Close)
	return m
}

func TestAddItemMergesSameVariant(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	for i := 0; i < 3; i++ {
		m.AddItem(ctx, testItem("1", 1000, 2000))
	}

	items := m.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 3, m.TotalCount())
}

func TestAddItemDistinctVariantsStayDistinct(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.AddItem(ctx, testItem("1", 1001, 2000)) // same product, other color
	m.AddItem(ctx, testItem("2", 1000, 2000))
	m.AddItem(ctx, testItem("2", 1000, 2000))

	items := m.Items()
	require.Len(t, items, 3)
	assert.Equal(t, 4, m.TotalCount())
}

func TestUpdateQuantitySetsDirectly(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.UpdateQuantity(ctx, 0, 5)

	items := m.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestUpdateQuantityBelowOneRemoves(t *testing.T) {
	ctx := context.Background()

	for _, quantity := range []int{0, -5} {
		fc := clock.NewFake(time.Now())
		m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

		m.AddItem(ctx, testItem("1", 1000, 2000))
		m.UpdateQuantity(ctx, 0, quantity)

		assert.Empty(t, m.Items())
		assert.Zero(t, m.TotalCount())
	}
}

func TestRemoveItemOutOfBoundsIsNoOp(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.RemoveItem(ctx, 5)
	m.RemoveItem(ctx, -1)

	assert.Len(t, m.Items(), 1)
}

func TestExpiredCartDroppedOnLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(storage.NewMemory())
	fc := clock.NewFake(time.Now())

	writer := newTestManager(t, store, fc)
	writer.AddItem(ctx, testItem("1", 1000, 2000))
	writer.AddItem(ctx, testItem("1", 1000, 2000))
	writer.AddItem(ctx, testItem("2", 1000, 2000))
	writer.Close()

	fc.Advance(61 * time.Minute)

	m := newTestManager(t, store, fc)
	assert.Empty(t, m.Items())
	assert.Equal(t, 3, m.ExpiredCount())

	select {
	case n := <-m.Notifications():
		assert.Equal(t, domain.NotificationExpired, n.Kind)
		assert.Equal(t, 3, n.Count)
	default:
		t.Fatal("expected an expiry notification")
	}
}

func TestLoadExpiryNotifiesOnlyOncePerGuard(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(storage.NewMemory())
	fc := clock.NewFake(time.Now())

	writer := newTestManager(t, store, fc)
	writer.AddItem(ctx, testItem("1", 1000, 2000))
	writer.Close()

	fc.Advance(2 * time.Hour)

	guard := &InitGuard{}
	first := NewManager(context.Background(), store, WithClock(fc), WithInitGuard(guard))
	t.Cleanup(first.Close)
	assert.Equal(t, 1, first.ExpiredCount())

	// Same process, second instantiation: still empty, no second alert.
	second := NewManager(context.Background(), store, WithClock(fc), WithInitGuard(guard))
	t.Cleanup(second.Close)
	assert.Empty(t, second.Items())
	assert.Zero(t, second.ExpiredCount())
}

func TestFreshCartSurvivesLoadWithinTTL(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(storage.NewMemory())
	fc := clock.NewFake(time.Now())

	writer := newTestManager(t, store, fc)
	writer.AddItem(ctx, testItem("1", 1000, 2000))
	writer.AddItem(ctx, testItem("2", 1001, 2001))
	writer.AddItem(ctx, testItem("2", 1001, 2001))
	expected := writer.Items()
	writer.Close()

	fc.Advance(10 * time.Minute)

	m := newTestManager(t, store, fc)
	restored := m.Items()
	require.Len(t, restored, len(expected))
	for i := range expected {
		assert.Equal(t, expected[i].Key(), restored[i].Key())
		assert.Equal(t, expected[i].Quantity, restored[i].Quantity)
		assert.Equal(t, expected[i].ProductName, restored[i].ProductName)
		assert.Equal(t, expected[i].ProductPrice, restored[i].ProductPrice)
	}
	assert.Equal(t, 3, m.TotalCount())
	assert.Zero(t, m.ExpiredCount())
}

func TestTimerExpiresIdleCart(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.AddItem(ctx, testItem("1", 1000, 2000))

	fc.Advance(10 * time.Minute)
	assert.Equal(t, 2, m.TotalCount(), "no expiry before the TTL")
	assert.Zero(t, m.ExpiredCount())

	fc.Advance(50*time.Minute + time.Second)
	assert.Empty(t, m.Items())
	assert.Equal(t, 2, m.ExpiredCount())
}

func TestMutationRestartsExpirationWindow(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	fc.Advance(50 * time.Minute)

	// Re-anchors the whole-cart window
	m.AddItem(ctx, testItem("2", 1000, 2000))

	fc.Advance(30 * time.Minute)
	assert.Equal(t, 2, m.TotalCount(), "window restarted by the second add")

	fc.Advance(31 * time.Minute)
	assert.Empty(t, m.Items())
	assert.Equal(t, 2, m.ExpiredCount())
}

func TestReconcileServerCountBelowLocalResets(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.AddItem(ctx, testItem("2", 1000, 2000))

	m.ReconcileServerCount(ctx, 1)

	assert.Empty(t, m.Items())
	assert.True(t, m.SessionReset())

	select {
	case n := <-m.Notifications():
		assert.Equal(t, domain.NotificationSessionReset, n.Kind)
		assert.Equal(t, 2, n.Count)
	default:
		t.Fatal("expected a session reset notification")
	}
}

func TestReconcileServerCountAtOrAboveLocalKeepsItems(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.AddItem(ctx, testItem("2", 1000, 2000))

	m.ReconcileServerCount(ctx, 2)
	assert.Equal(t, 2, m.TotalCount())

	m.ReconcileServerCount(ctx, 10)
	assert.Equal(t, 2, m.TotalCount())
	assert.False(t, m.SessionReset())
}

func TestClearLeavesExpiryNotificationPending(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(storage.NewMemory()), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	fc.Advance(2 * time.Hour)
	require.Equal(t, 1, m.ExpiredCount())

	// Manual clear and the expiry alert are independent channels.
	m.AddItem(ctx, testItem("2", 1000, 2000))
	m.Clear(ctx)
	assert.Equal(t, 1, m.ExpiredCount())

	m.Dismiss()
	assert.Zero(t, m.ExpiredCount())
}

func TestMalformedPersistedCartReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	require.NoError(t, backend.Set(ctx, domain.KeyItems, []byte("{not json")))
	require.NoError(t, backend.Set(ctx, domain.KeyUpdatedAt, []byte("123")))

	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(backend), fc)

	assert.Empty(t, m.Items())
	assert.Zero(t, m.ExpiredCount())

	// The broken keys were swept away.
	value, err := backend.Get(ctx, domain.KeyItems)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestDrainReturnsClearedLinesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(backend), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.AddItem(ctx, testItem("2", 1000, 2000))

	drained := m.Drain(ctx)
	assert.Equal(t, 3, domain.TotalCount(drained))
	assert.Empty(t, m.Items())

	// A second drain finds nothing: the lines were claimed atomically.
	assert.Empty(t, m.Drain(ctx))

	value, err := backend.Get(ctx, domain.KeyItems)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestEmptyCartRemovesStorageKeys(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	fc := clock.NewFake(time.Now())
	m := newTestManager(t, storage.NewStore(backend), fc)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	value, err := backend.Get(ctx, domain.KeyItems)
	require.NoError(t, err)
	require.NotNil(t, value)

	m.RemoveItem(ctx, 0)
	value, err = backend.Get(ctx, domain.KeyItems)
	require.NoError(t, err)
	assert.Nil(t, value)
	value, err = backend.Get(ctx, domain.KeyUpdatedAt)
	require.NoError(t, err)
	assert.Nil(t, value)
}

type recordingPublisher struct {
	expired []int
	resets  [][2]int
}

func (p *recordingPublisher) PublishCartExpired(_ context.Context, droppedUnits int) error {
	p.expired = append(p.expired, droppedUnits)
	return nil
}

func (p *recordingPublisher) PublishSessionReset(_ context.Context, serverCount, localUnits int) error {
	p.resets = append(p.resets, [2]int{serverCount, localUnits})
	return nil
}

func TestLifecycleEventsReachPublisher(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(time.Now())
	pub := &recordingPublisher{}
	m := NewManager(context.Background(), storage.NewStore(storage.NewMemory()),
		WithClock(fc),
		WithInitGuard(&InitGuard{}),
		WithPublisher(pub),
	)
	t.Cleanup(m.Close)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	fc.Advance(2 * time.Hour)
	require.Equal(t, []int{1}, pub.expired)

	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.AddItem(ctx, testItem("1", 1000, 2000))
	m.ReconcileServerCount(ctx, 0)
	require.Equal(t, [][2]int{{0, 2}}, pub.resets)
}
