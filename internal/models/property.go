package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Property struct {
	ID            int64           `json:"id"`
	HostID        int64           `json:"host_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	PropertyType  string          `json:"property_type"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	Location      string          `json:"location"`
	Bedrooms      int             `json:"bedrooms"`
	Bathrooms     int             `json:"bathrooms"`
	MaxGuests     int             `json:"max_guests"`
	Amenities     []string        `json:"amenities"`
	IsAvailable   bool            `json:"is_available"`
	Rating        float64         `json:"rating"`
	IsPopular     bool            `json:"is_popular"`
	BookingCount  int64           `json:"booking_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	HostUsername string `json:"host_username,omitempty"`
}

// PriceFor returns the flat-rate total for the given number of nights.
func (p *Property) PriceFor(nights int) decimal.Decimal {
	return p.PricePerNight.Mul(decimal.NewFromInt(int64(nights)))
}

// OwnedBy reports whether the user is the listing's host.
func (p *Property) OwnedBy(userID int64) bool {
	return p.HostID == userID
}

// PropertyFilter narrows property listings. Zero values disable a criterion.
type PropertyFilter struct {
	PropertyType string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Location     string
	IsAvailable  *bool
	HostID       int64
	Limit        int
	Offset       int
}
