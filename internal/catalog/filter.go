package catalog

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mobix/storefront/internal/catalog/domain"
	"github.com/mobix/storefront/pkg/clock"
	"github.com/mobix/storefront/pkg/logger"
)

// DefaultDebounce is the quiet period before search input settles.
const DefaultDebounce = 300 * time.Millisecond

// CategoryParam is the shareable query parameter carrying the category.
const CategoryParam = "category"

// QueryState mirrors filter state into something shareable, so the
// current filter is re-derivable from a URL alone.
type QueryState interface {
	Get(key string) string
	Set(key, value string)
	Del(key string)
}

// URLQuery is a QueryState over url.Values.
type URLQuery struct {
	mu     sync.Mutex
	values url.Values
}

// NewURLQuery wraps existing query values; nil starts empty
func NewURLQuery(values url.Values) *URLQuery {
	if values == nil {
		values = url.Values{}
	}
	return &URLQuery{values: values}
}

func (q *URLQuery) Get(key string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.values.Get(key)
}

func (q *URLQuery) Set(key, value string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.values.Set(key, value)
}

func (q *URLQuery) Del(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.values.Del(key)
}

// Encode renders the current query string
func (q *URLQuery) Encode() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.values.Encode()
}

// Filter owns the search and category state feeding the product grid.
// Search input propagates to the debounced copy only after the quiet
// period; category changes apply immediately and are mirrored to the
// shareable query state.
type Filter struct {
	mu       sync.Mutex
	clock    clock.Clock
	window   time.Duration
	query    QueryState
	search   string
	settled  string
	pending  clock.Timer
	category string
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithFilterClock substitutes the wall clock, for tests.
func WithFilterClock(c clock.Clock) FilterOption {
	return func(f *Filter) { f.clock = c }
}

// WithDebounceWindow overrides the debounce quiet period.
func WithDebounceWindow(d time.Duration) FilterOption {
	return func(f *Filter) { f.window = d }
}

// NewFilter creates a filter, restoring the category from the query
// state when a valid one is present.
func NewFilter(query QueryState, opts ...FilterOption) *Filter {
	f := &Filter{
		clock:    clock.New(),
		window:   DefaultDebounce,
		query:    query,
		category: domain.CategoryAll,
	}
	for _, opt := range opts {
		opt(f)
	}

	if restored := query.Get(CategoryParam); domain.ValidCategory(restored) {
		f.category = restored
	}
	return f
}

// SetSearchText records the raw input immediately and re-arms the
// debounce timer; only the last value in a burst settles.
func (f *Filter) SetSearchText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.search = text
	if f.pending != nil {
		f.pending.Stop()
	}
	f.pending = f.clock.AfterFunc(f.window, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.settled = f.search
		f.pending = nil
	})
}

// SearchText returns the raw, immediate input.
func (f *Filter) SearchText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.search
}

// DebouncedSearchText returns the settled search term.
func (f *Filter) DebouncedSearchText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// SetCategory applies the category immediately and syncs the query
// state. The "all" sentinel removes the parameter instead of writing it.
// Values outside the closed set are ignored.
func (f *Filter) SetCategory(value string) {
	if !domain.ValidCategory(value) {
		logger.Logger.Debug().Str("category", value).Msg("ignoring unknown category")
		return
	}

	f.mu.Lock()
	f.category = value
	f.mu.Unlock()

	if value == domain.CategoryAll {
		f.query.Del(CategoryParam)
		return
	}
	f.query.Set(CategoryParam, value)
}

// ShareableQuery renders the synced query state as a query string when
// the underlying state supports encoding, so the active filter can
// travel as a URL.
func (f *Filter) ShareableQuery() string {
	if enc, ok := f.query.(interface{ Encode() string }); ok {
		return enc.Encode()
	}
	return ""
}

// Category returns the active category.
func (f *Filter) Category() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.category
}

// Apply derives the filtered product list from a catalog snapshot.
func (f *Filter) Apply(products []domain.Product) []domain.Product {
	f.mu.Lock()
	search := f.settled
	category := f.category
	f.mu.Unlock()

	return FilterProducts(products, search, category)
}

// FilterProducts selects products matching the search term and category.
// Search is a case-insensitive substring match on name or brand;
// category is exact, with "all" matching everything.
func FilterProducts(products []domain.Product, search, category string) []domain.Product {
	term := strings.ToLower(search)
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !matchesSearch(p, term) {
			continue
		}
		if category != domain.CategoryAll && category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesSearch(p domain.Product, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Brand), term)
}

// Paginate windows a product list. Pages are 1-based; out-of-range pages
// clamp to the nearest valid page.
func Paginate(products []domain.Product, page, pageSize int) ([]domain.Product, int) {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := (len(products) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(products) {
		start = len(products)
	}
	if end > len(products) {
		end = len(products)
	}
	return products[start:end], totalPages
}
