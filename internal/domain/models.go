// Package domain defines the persistence models for land listings, the user
// registry, auth accounts, and contact inquiries. These types are mapped with
// GORM and form the core data layer of the marketplace.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Listing is a land parcel offered for sale by its owner.
//
// Fields:
//   - ID: stable UUID primary key (char(36)), assigned on creation.
//   - OwnerID: identity that created the listing; never reassigned.
//   - Title / Description / Location: required free text.
//   - Price: asking price, >= 0.
//   - Area: surface in square meters, >= 0 (0 when unknown).
//   - Type / Status: enumerations, see ListingType and ListingStatus.
//   - ImageURLs: ordered public URLs, insertion order = upload order.
//   - CoverURL: member of ImageURLs, or "" when ImageURLs is empty.
//   - Details: optional technical descriptors.
//   - CreatedAt: sort key for every listing query (descending).
type Listing struct {
	ID          string                      `json:"id"          gorm:"type:char(36);primaryKey"`
	OwnerID     string                      `json:"owner_id"    gorm:"type:varchar(64);not null;index:idx_owner_listings,priority:1"`
	Title       string                      `json:"title"       gorm:"type:varchar(255);not null"`
	Description string                      `json:"description" gorm:"type:text;not null"`
	Location    string                      `json:"location"    gorm:"type:varchar(255);not null"`
	Price       float64                     `json:"price"       gorm:"not null;check:price >= 0"`
	Area        float64                     `json:"area"        gorm:"not null;default:0"`
	Type        ListingType                 `json:"type"        gorm:"type:varchar(16);not null;default:'urban'"`
	Status      ListingStatus               `json:"status"      gorm:"type:varchar(16);not null;default:'available'"`
	ImageURLs   datatypes.JSONSlice[string] `json:"image_urls"`
	CoverURL    string                      `json:"cover_url"   gorm:"type:text"`
	Details     Details                     `json:"details"     gorm:"embedded"`
	CreatedAt   time.Time                   `json:"created_at"  gorm:"index;index:idx_owner_listings,priority:2"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for Listing.
func (Listing) TableName() string { return "listings" }

// Details groups the optional technical descriptors of a parcel.
type Details struct {
	Dimensions    string `json:"dimensions"    gorm:"type:text"`
	Terrain       string `json:"terrain"       gorm:"type:text"`
	Access        string `json:"access"        gorm:"type:text"`
	Zoning        string `json:"zoning"        gorm:"type:text"`
	Services      string `json:"services"      gorm:"type:text"`
	Documentation string `json:"documentation" gorm:"type:text"`
}

// HasCover reports whether the cover invariant holds: the cover is one of the
// image URLs, or there are no images and the cover is empty.
func (l Listing) HasCover() bool {
	if len(l.ImageURLs) == 0 {
		return l.CoverURL == ""
	}
	for _, u := range l.ImageURLs {
		if u == l.CoverURL {
			return true
		}
	}
	return false
}

// User is a row in the known-users registry. Only registered identities may
// publish listings.
type User struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;index"`
	Role      string    `json:"role"       gorm:"type:varchar(32);not null;default:'user'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Account is an authentication identity. Its ID doubles as the user ID.
type Account struct {
	ID           string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_accounts_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// Inquiry is a contact request sent from a listing's detail page.
// Sent records whether the notification was delivered.
type Inquiry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ListingID string    `json:"listing_id" gorm:"type:char(36);not null;index"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null"`
	Phone     string    `json:"phone"      gorm:"type:varchar(64)"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	Sent      bool      `json:"sent"       gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`

	// Listing is the inquired parcel. Inquiries go away with it.
	Listing Listing `json:"-" gorm:"foreignKey:ListingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Inquiry.
func (Inquiry) TableName() string { return "inquiries" }
