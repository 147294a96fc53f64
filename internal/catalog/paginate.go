package catalog

import "github.com/bitafam/terrenos/internal/domain"

// DefaultPageSize is the number of listings shown per catalog page.
const DefaultPageSize = 6

// Page is one slice of a filtered listing sequence plus the metadata a
// pager needs.
type Page struct {
	Items      []domain.Listing `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
	HasNext    bool             `json:"has_next"`
	HasPrev    bool             `json:"has_prev"`
}

// TotalPages returns ceil(n/size). Sizes below 1 fall back to DefaultPageSize.
func TotalPages(n, size int) int {
	if size < 1 {
		size = DefaultPageSize
	}
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// ClampPage bounds page to [1, max(1, totalPages)].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if totalPages < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Paginate returns the page-th slice of items (1-based) of the given size.
// Out-of-range pages are clamped, so an empty input yields page 1 with no
// items.
func Paginate(items []domain.Listing, page, size int) Page {
	if size < 1 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := TotalPages(total, size)
	page = ClampPage(page, pages)

	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	out := make([]domain.Listing, end-start)
	copy(out, items[start:end])

	return Page{
		Items:      out,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}
