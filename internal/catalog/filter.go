// Package catalog implements the listing query pipeline: the in-memory
// filter predicate, page slicing, and the per-view browsing state that ties
// them together. Listings are always fetched whole and ordered by creation
// time; everything here runs on that slice without touching the store.
package catalog

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bitafam/terrenos/internal/domain"
)

// Price bracket boundaries. Both limits belong to the medium bracket.
const (
	MediumMin = 80000.0
	MediumMax = 120000.0
)

// PriceRange selects one of the fixed price brackets.
type PriceRange string

const (
	PriceAll    PriceRange = ""
	PriceLow    PriceRange = "low"
	PriceMedium PriceRange = "medium"
	PriceHigh   PriceRange = "high"
)

var (
	// ErrUnknownType is returned for a type filter that names no listing type.
	ErrUnknownType = errors.New("unknown listing type filter")
	// ErrUnknownPrice is returned for an unrecognized price bracket.
	ErrUnknownPrice = errors.New("unknown price range filter")
)

var priceAliases = map[string]PriceRange{
	"":       PriceAll,
	"all":    PriceAll,
	"todos":  PriceAll,
	"low":    PriceLow,
	"bajo":   PriceLow,
	"medium": PriceMedium,
	"medio":  PriceMedium,
	"high":   PriceHigh,
	"alto":   PriceHigh,
}

// ParsePriceRange maps a bracket name or its Spanish alias to a PriceRange.
// "all", "todos" and the empty string disable the price filter.
func ParsePriceRange(s string) (PriceRange, error) {
	p, ok := priceAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return PriceAll, ErrUnknownPrice
	}
	return p, nil
}

// ParseTypeFilter maps a type name or alias to a ListingType. "all", "todos"
// and the empty string disable the type filter and yield "".
func ParseTypeFilter(s string) (domain.ListingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "todos":
		return "", nil
	}
	t, ok := domain.ParseListingType(s)
	if !ok {
		return "", ErrUnknownType
	}
	return t, nil
}

// Contains reports whether price p falls in bracket r.
func (r PriceRange) Contains(p float64) bool {
	switch r {
	case PriceLow:
		return p < MediumMin
	case PriceMedium:
		return p >= MediumMin && p <= MediumMax
	case PriceHigh:
		return p > MediumMax
	default:
		return true
	}
}

// Filter is the committed filter state of a catalog view. Zero values
// disable the corresponding criterion.
type Filter struct {
	Type   domain.ListingType
	Price  PriceRange
	Search string
}

// ParseFilter builds a Filter from raw query values, accepting the same
// aliases as ParseTypeFilter and ParsePriceRange.
func ParseFilter(typ, price, search string) (Filter, error) {
	t, err := ParseTypeFilter(typ)
	if err != nil {
		return Filter{}, err
	}
	p, err := ParsePriceRange(price)
	if err != nil {
		return Filter{}, err
	}
	return Filter{Type: t, Price: p, Search: search}, nil
}

// Keep reports whether l passes every active criterion of f. The search term
// matches title or location as a case-insensitive substring; only the empty
// term disables it, so surrounding spaces take part in the match.
func Keep(l domain.Listing, f Filter) bool {
	if f.Type != "" && lower(string(l.Type)) != lower(string(f.Type)) {
		return false
	}
	if !f.Price.Contains(l.Price) {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := lower(f.Search)
	return strings.Contains(lower(l.Title), term) || strings.Contains(lower(l.Location), term)
}

// Apply returns the listings that pass f, preserving their order. The input
// slice is not modified.
func Apply(listings []domain.Listing, f Filter) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if Keep(l, f) {
			out = append(out, l)
		}
	}
	return out
}

// lower applies Spanish lower-casing. A Caser carries state, so one is built
// per call.
func lower(s string) string {
	return cases.Lower(language.Spanish).String(s)
}
