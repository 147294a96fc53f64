package services

import (
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bitafam/terrenos/internal/domain"
)

// imageURLPattern is the shape accepted for images linked instead of uploaded.
var imageURLPattern = regexp.MustCompile(`(?i)^https?://.+\.(jpg|jpeg|png|webp|gif)$`)

// ListingInput is the raw form of a create or update submission. Numeric
// fields stay strings until validation so that "abc" is reported as a field
// error instead of a decode failure.
type ListingInput struct {
	Title       string
	Description string
	Location    string
	Price       string
	Area        string
	Type        string
	Status      string
	Details     domain.Details

	// ImageURLs are external images appended after any uploaded files.
	ImageURLs []string
	// Cover selects the cover by URL. It wins over CoverIndex.
	Cover string
	// CoverIndex selects the cover by position in the final image sequence.
	CoverIndex *int
	// RemoveImages drops stored images on update.
	RemoveImages []string
}

// MediaFile is one uploaded image.
type MediaFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// fields is the validated, typed part of a ListingInput.
type fields struct {
	title, description, location string
	price, area                  float64
	typ                          domain.ListingType
	status                       domain.ListingStatus
	hasStatus                    bool
	details                      domain.Details
	imageURLs                    []string
}

func (in ListingInput) validate() (fields, error) {
	var f fields
	f.title = strings.TrimSpace(in.Title)
	f.description = strings.TrimSpace(in.Description)
	f.location = strings.TrimSpace(in.Location)
	switch {
	case f.title == "":
		return f, invalid("title", "El título es obligatorio.")
	case f.description == "":
		return f, invalid("description", "La descripción es obligatoria.")
	case f.location == "":
		return f, invalid("location", "La ubicación es obligatoria.")
	}

	if strings.TrimSpace(in.Price) == "" {
		return f, invalid("price", "El precio es obligatorio.")
	}
	p, ok := parseAmount(in.Price)
	if !ok {
		return f, invalid("price", "El precio debe ser un número mayor o igual a 0.")
	}
	f.price = p

	if strings.TrimSpace(in.Area) != "" {
		a, ok := parseAmount(in.Area)
		if !ok {
			return f, invalid("area", "El área debe ser un número mayor o igual a 0.")
		}
		f.area = a
	}

	f.typ = domain.DefaultListingType
	if strings.TrimSpace(in.Type) != "" {
		t, ok := domain.ParseListingType(in.Type)
		if !ok {
			return f, invalid("type", "Tipo de terreno no válido.")
		}
		f.typ = t
	}

	f.status = domain.StatusAvailable
	if strings.TrimSpace(in.Status) != "" {
		st, ok := domain.ParseListingStatus(in.Status)
		if !ok {
			return f, invalid("status", "Estado no válido.")
		}
		f.status, f.hasStatus = st, true
	}

	for _, u := range in.ImageURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !imageURLPattern.MatchString(u) {
			return f, invalid("image_urls", "La URL de imagen no es válida: "+u)
		}
		f.imageURLs = append(f.imageURLs, u)
	}

	f.details = trimDetails(in.Details)
	return f, nil
}

// parseAmount accepts a non-negative finite decimal.
func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func trimDetails(d domain.Details) domain.Details {
	return domain.Details{
		Dimensions:    strings.TrimSpace(d.Dimensions),
		Terrain:       strings.TrimSpace(d.Terrain),
		Access:        strings.TrimSpace(d.Access),
		Zoning:        strings.TrimSpace(d.Zoning),
		Services:      strings.TrimSpace(d.Services),
		Documentation: strings.TrimSpace(d.Documentation),
	}
}

// ResolveCover returns cover when it is one of urls, otherwise the first URL,
// otherwise "".
func ResolveCover(urls []string, cover string) string {
	if cover != "" {
		for _, u := range urls {
			if u == cover {
				return cover
			}
		}
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// pickCover turns the Cover / CoverIndex choice into a candidate URL,
// falling back to current.
func pickCover(in ListingInput, urls []string, current string) string {
	if c := strings.TrimSpace(in.Cover); c != "" {
		return c
	}
	if in.CoverIndex != nil && *in.CoverIndex >= 0 && *in.CoverIndex < len(urls) {
		return urls[*in.CoverIndex]
	}
	return current
}

func appendUnique(dst []string, urls ...string) []string {
	for _, u := range urls {
		dup := false
		for _, have := range dst {
			if have == u {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, u)
		}
	}
	return dst
}

func without(urls, drop []string) []string {
	if len(drop) == 0 {
		return append([]string(nil), urls...)
	}
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[strings.TrimSpace(d)] = true
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !skip[u] {
			out = append(out, u)
		}
	}
	return out
}
