package catalog

import (
	"context"
	"sync"

	"github.com/bitafam/terrenos/internal/domain"
)

// Loader fetches the full listing sequence, already ordered.
type Loader func(ctx context.Context) ([]domain.Listing, error)

// Browser holds the state of one catalog view: the loaded listings, the
// committed filter, the search input buffer, and the current page.
//
// The search box is two-stage. SetSearchInput only edits the buffer;
// CommitSearch copies it into the filter. Any change to the committed filter
// moves the view back to page 1.
type Browser struct {
	mu       sync.Mutex
	all      []domain.Listing
	filter   Filter
	input    string
	page     int
	pageSize int
}

// NewBrowser returns an empty view showing pageSize listings per page.
func NewBrowser(pageSize int) *Browser {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Browser{page: 1, pageSize: pageSize}
}

// Refresh replaces the loaded listings with the loader's result. On error the
// previous listings stay in place and the error is returned for logging.
func (b *Browser) Refresh(ctx context.Context, load Loader) error {
	items, err := load(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.all = items
	b.page = ClampPage(b.page, TotalPages(len(Apply(items, b.filter)), b.pageSize))
	b.mu.Unlock()
	return nil
}

// SetType changes the type criterion and resets to page 1.
func (b *Browser) SetType(t domain.ListingType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.Type = t
	b.page = 1
}

// SetPrice changes the price bracket and resets to page 1.
func (b *Browser) SetPrice(p PriceRange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.Price = p
	b.page = 1
}

// SetSearchInput edits the search buffer without affecting results.
func (b *Browser) SetSearchInput(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.input = s
}

// CommitSearch applies the buffered search term, unmodified, and resets to
// page 1.
func (b *Browser) CommitSearch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.Search = b.input
	b.page = 1
}

// Next moves one page forward, stopping at the last page.
func (b *Browser) Next() { b.GoTo(b.PageIndex() + 1) }

// Prev moves one page back, stopping at page 1.
func (b *Browser) Prev() { b.GoTo(b.PageIndex() - 1) }

// GoTo jumps to page n, clamped to the available pages.
func (b *Browser) GoTo(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.page = ClampPage(n, TotalPages(len(Apply(b.all, b.filter)), b.pageSize))
}

// PageIndex returns the current 1-based page.
func (b *Browser) PageIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page
}

// Filter returns the committed filter.
func (b *Browser) Filter() Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// SearchInput returns the uncommitted search buffer.
func (b *Browser) SearchInput() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.input
}

// Filtered returns every loaded listing that passes the committed filter.
func (b *Browser) Filtered() []domain.Listing {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Apply(b.all, b.filter)
}

// Current returns the page being shown.
func (b *Browser) Current() Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Paginate(Apply(b.all, b.filter), b.page, b.pageSize)
}
