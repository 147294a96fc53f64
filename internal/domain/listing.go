package domain

import "strings"

// ListingType classifies the intended use of a parcel.
type ListingType string

const (
	TypeResidential ListingType = "residential"
	TypeCommercial  ListingType = "commercial"
	TypeIndustrial  ListingType = "industrial"
	TypeCountryside ListingType = "countryside"
	TypeRural       ListingType = "rural"
	TypeUrban       ListingType = "urban"
)

// DefaultListingType is used when a submission carries no type.
const DefaultListingType = TypeUrban

// ListingTypes lists every valid type in display order.
var ListingTypes = []ListingType{
	TypeResidential, TypeCommercial, TypeIndustrial, TypeCountryside, TypeRural, TypeUrban,
}

var typeAliases = map[string]ListingType{
	"residential": TypeResidential,
	"residencial": TypeResidential,
	"commercial":  TypeCommercial,
	"comercial":   TypeCommercial,
	"industrial":  TypeIndustrial,
	"countryside": TypeCountryside,
	"campestre":   TypeCountryside,
	"rural":       TypeRural,
	"urban":       TypeUrban,
	"urbano":      TypeUrban,
}

// ParseListingType maps a canonical name or a Spanish alias to a ListingType.
// Matching is case-insensitive and ignores surrounding spaces.
func ParseListingType(s string) (ListingType, bool) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// ListingStatus is the commercial state of a listing.
type ListingStatus string

const (
	StatusAvailable ListingStatus = "available"
	StatusSold      ListingStatus = "sold"
	StatusReserved  ListingStatus = "reserved"
)

var statusAliases = map[string]ListingStatus{
	"available":  StatusAvailable,
	"disponible": StatusAvailable,
	"sold":       StatusSold,
	"vendido":    StatusSold,
	"reserved":   StatusReserved,
	"reservado":  StatusReserved,
}

// ParseListingStatus maps a canonical name or a Spanish alias to a status.
func ParseListingStatus(s string) (ListingStatus, bool) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// Toggled returns the status a "mark as sold / available" action moves to.
// Reserved listings become available again.
func (s ListingStatus) Toggled() ListingStatus {
	if s == StatusAvailable {
		return StatusSold
	}
	return StatusAvailable
}
