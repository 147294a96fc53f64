package catalog

import "github.com/bitafam/terrenos/internal/domain"

// Split partitions listings into those owned by userID and the rest, keeping
// the input order in both. An empty userID owns nothing.
func Split(listings []domain.Listing, userID string) (mine, others []domain.Listing) {
	mine = []domain.Listing{}
	others = []domain.Listing{}
	for _, l := range listings {
		if userID != "" && l.OwnerID == userID {
			mine = append(mine, l)
			continue
		}
		others = append(others, l)
	}
	return mine, others
}
