package cart

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mobix/storefront/internal/cart/domain"
	"github.com/mobix/storefront/internal/storage"
	"github.com/mobix/storefront/pkg/clock"
	"github.com/mobix/storefront/pkg/logger"
)

// EventPublisher receives cart lifecycle events. Publishing is
// best-effort; errors are logged and never block a mutation.
type EventPublisher interface {
	PublishCartExpired(ctx context.Context, droppedUnits int) error
	PublishSessionReset(ctx context.Context, serverCount, localUnits int) error
}

// InitGuard ensures the load-time expiry notification fires at most once
// per process, however many managers are constructed.
type InitGuard struct {
	done atomic.Bool
}

func (g *InitGuard) tryAcquire() bool {
	return g.done.CompareAndSwap(false, true)
}

var bootGuard InitGuard

// Manager owns the cart state machine: line items with variant-key
// merging, a whole-cart rolling TTL, server-count reconciliation and
// one-time expiry/reset notifications. All mutations persist through the
// best-effort store and never fail.
type Manager struct {
	mu        sync.Mutex
	store     *storage.Store
	clock     clock.Clock
	ttl       time.Duration
	publisher EventPublisher
	guard     *InitGuard

	items      []domain.LineItem
	lastUpdate time.Time

	// Pending notification state, cleared by Dismiss.
	expiredCount int
	sessionReset bool

	timer         clock.Timer
	notifications chan domain.Notification
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock substitutes the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithTTL overrides the rolling expiration window.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithPublisher attaches a lifecycle event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithInitGuard substitutes the process-wide one-time expiry guard.
func WithInitGuard(g *InitGuard) Option {
	return func(m *Manager) { m.guard = g }
}

// NewManager restores the cart from storage, applying the load-time
// expiry check, and arms the expiration timer when items survived.
func NewManager(ctx context.Context, store *storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		clock:         clock.New(),
		ttl:           domain.DefaultTTL,
		guard:         &bootGuard,
		notifications: make(chan domain.Notification, 8),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.restore(ctx)
	return m
}

// restore loads persisted state. Malformed data reads as an empty cart.
func (m *Manager) restore(ctx context.Context) {
	raw := m.store.Get(ctx, domain.KeyItems)
	if raw == nil {
		return
	}

	var items []domain.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn(ctx).Err(err).Msg("discarding malformed persisted cart")
		m.store.Remove(ctx, domain.KeyItems)
		m.store.Remove(ctx, domain.KeyUpdatedAt)
		return
	}
	if len(items) == 0 {
		// An empty persisted cart should never exist; treat as absent.
		m.store.Remove(ctx, domain.KeyItems)
		m.store.Remove(ctx, domain.KeyUpdatedAt)
		return
	}

	lastUpdate := m.clock.Now()
	if ts := m.store.Get(ctx, domain.KeyUpdatedAt); ts != nil {
		if millis, err := strconv.ParseInt(string(ts), 10, 64); err == nil {
			lastUpdate = time.UnixMilli(millis)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := m.clock.Now().Sub(lastUpdate)
	if elapsed > m.ttl {
		dropped := domain.TotalCount(items)
		m.store.Remove(ctx, domain.KeyItems)
		m.store.Remove(ctx, domain.KeyUpdatedAt)

		// Only the first manager in the process surfaces the load-time
		// expiry; later ones just come up empty.
		if m.guard.tryAcquire() {
			m.expiredCount = dropped
			m.notify(domain.Notification{
				Kind:  domain.NotificationExpired,
				Count: dropped,
				At:    m.clock.Now(),
			})
			m.publishExpired(ctx, dropped)
		}

		logger.Info(ctx).
			Int("dropped_units", dropped).
			Dur("elapsed", elapsed).
			Msg("persisted cart expired on load")
		return
	}

	m.items = items
	m.lastUpdate = lastUpdate
	m.armTimerLocked(m.ttl - elapsed)

	logger.Info(ctx).
		Int("items", len(items)).
		Int("units", domain.TotalCount(items)).
		Msg("cart restored from storage")
}

// AddItem merges the item into the cart. An existing line with the same
// variant key gains one unit; otherwise a new line is appended with
// quantity 1. Either way the whole-cart expiration window restarts.
func (m *Manager) AddItem(ctx context.Context, item domain.LineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	key := item.Key()

	merged := false
	for i := range m.items {
		if m.items[i].Key() == key {
			m.items[i].Quantity++
			m.items[i].AddedAt = now
			merged = true
			break
		}
	}
	if !merged {
		item.Quantity = 1
		item.AddedAt = now
		m.items = append(m.items, item)
	}

	m.touchLocked(ctx, now)
}

// RemoveItem deletes the line at the given position. A stale index is a
// silent no-op: the index came from a list the caller itself rendered.
func (m *Manager) RemoveItem(ctx context.Context, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ctx, index)
}

// UpdateQuantity sets the line quantity directly. Anything below one is
// equivalent to removing the line.
func (m *Manager) UpdateQuantity(ctx context.Context, index int, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.items) {
		return
	}
	if quantity < 1 {
		m.removeLocked(ctx, index)
		return
	}

	now := m.clock.Now()
	m.items[index].Quantity = quantity
	m.items[index].AddedAt = now
	m.touchLocked(ctx, now)
}

// Clear empties the cart. Pending notifications are left alone: manual
// clear and expiry notification are independent channels.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = nil
	m.touchLocked(ctx, m.clock.Now())
}

// Drain empties the cart and returns the removed lines in the same
// step, so concurrent callers cannot both claim the same units.
func (m *Manager) Drain(ctx context.Context) []domain.LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	drained := m.items
	m.items = nil
	if len(drained) > 0 {
		m.touchLocked(ctx, m.clock.Now())
	}
	return drained
}

// ReconcileServerCount checks local state against the authoritative
// session count. A server count below the local unit count means the
// server-side session was reset; local items are dropped and a
// session-reset notification is raised.
func (m *Manager) ReconcileServerCount(ctx context.Context, serverCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	local := domain.TotalCount(m.items)
	if serverCount >= local {
		return
	}

	logger.Warn(ctx).
		Int("server_count", serverCount).
		Int("local_units", local).
		Msg("server session count below local cart, resetting")

	m.items = nil
	m.sessionReset = true
	m.notify(domain.Notification{
		Kind:  domain.NotificationSessionReset,
		Count: local,
		At:    m.clock.Now(),
	})
	if m.publisher != nil {
		if err := m.publisher.PublishSessionReset(ctx, serverCount, local); err != nil {
			logger.Error(ctx).Err(err).Msg("failed to publish session reset event")
		}
	}

	m.touchLocked(ctx, m.clock.Now())
}

// Dismiss clears any pending expiry or session-reset notification.
func (m *Manager) Dismiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiredCount = 0
	m.sessionReset = false
}

// Items returns a copy of the current line items in insertion order.
func (m *Manager) Items() []domain.LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LineItem, len(m.items))
	copy(out, m.items)
	return out
}

// TotalCount returns the sum of all line quantities.
func (m *Manager) TotalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.TotalCount(m.items)
}

// ExpiredCount returns the units dropped by the last expiration, zero
// once dismissed.
func (m *Manager) ExpiredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiredCount
}

// SessionReset reports whether a session-reset notification is pending.
func (m *Manager) SessionReset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionReset
}

// Notifications exposes the cart event stream. Events are dropped, not
// blocked on, when the consumer falls behind.
func (m *Manager) Notifications() <-chan domain.Notification {
	return m.notifications
}

// Close tears down the expiration timer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) removeLocked(ctx context.Context, index int) {
	if index < 0 || index >= len(m.items) {
		return
	}
	m.items = append(m.items[:index], m.items[index+1:]...)
	m.touchLocked(ctx, m.clock.Now())
}

// touchLocked refreshes lastUpdate, persists, and re-arms the expiration
// timer. Every mutation funnels through here so the timer can never
// outlive the timestamp it was anchored to.
func (m *Manager) touchLocked(ctx context.Context, now time.Time) {
	m.lastUpdate = now
	m.persistLocked(ctx)

	if len(m.items) == 0 {
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
		return
	}
	m.armTimerLocked(m.ttl)
}

func (m *Manager) armTimerLocked(d time.Duration) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.AfterFunc(d, m.expire)
}

// expire runs when the armed timer fires. State may have moved since
// arming, so it re-checks both emptiness and the TTL against the current
// timestamp before clearing anything.
func (m *Manager) expire() {
	ctx := context.Background()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) == 0 {
		return
	}
	if m.clock.Now().Sub(m.lastUpdate) < m.ttl {
		// A mutation re-anchored the window after this timer was armed.
		return
	}

	dropped := domain.TotalCount(m.items)
	m.items = nil
	m.expiredCount = dropped
	m.timer = nil
	m.persistLocked(ctx)

	m.notify(domain.Notification{
		Kind:  domain.NotificationExpired,
		Count: dropped,
		At:    m.clock.Now(),
	})
	m.publishExpired(ctx, dropped)

	logger.Info(ctx).Int("dropped_units", dropped).Msg("cart expired")
}

// persistLocked mirrors in-memory state to storage. An empty cart
// removes its keys entirely rather than writing empty records.
func (m *Manager) persistLocked(ctx context.Context) {
	if len(m.items) == 0 {
		m.store.Remove(ctx, domain.KeyItems)
		m.store.Remove(ctx, domain.KeyUpdatedAt)
		return
	}

	raw, err := json.Marshal(m.items)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("failed to encode cart for storage")
		return
	}
	m.store.Set(ctx, domain.KeyItems, raw)
	m.store.Set(ctx, domain.KeyUpdatedAt, []byte(strconv.FormatInt(m.lastUpdate.UnixMilli(), 10)))
}

func (m *Manager) notify(n domain.Notification) {
	select {
	case m.notifications <- n:
	default:
		logger.Logger.Debug().Str("kind", string(n.Kind)).Msg("notification dropped, consumer behind")
	}
}

func (m *Manager) publishExpired(ctx context.Context, dropped int) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishCartExpired(ctx, dropped); err != nil {
		logger.Error(ctx).Err(err).Msg("failed to publish cart expired event")
	}
}
