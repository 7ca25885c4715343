package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Reservation struct {
	ID              int64           `json:"id"`
	GuestID         int64           `json:"guest_id"`
	PropertyID      int64           `json:"property_id"`
	CheckIn         time.Time       `json:"check_in"`
	CheckOut        time.Time       `json:"check_out"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	GuestsCount     int             `json:"guests_count"`
	SpecialRequests string          `json:"special_requests,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int64           `json:"version"`

	// Filled by joins on read.
	HostID           int64  `json:"host_id,omitempty"`
	PropertyTitle    string `json:"property_title,omitempty"`
	PropertyLocation string `json:"property_location,omitempty"`
	GuestUsername    string `json:"guest_username,omitempty"`
}

// Nights returns the number of billable nights of the stay.
func (r *Reservation) Nights() int {
	return Nights(r.CheckIn, r.CheckOut)
}

// Overlaps reports whether the reservation blocks the half-open range [checkIn, checkOut).
func (r *Reservation) Overlaps(checkIn, checkOut time.Time) bool {
	if !IsActiveStatus(r.Status) {
		return false
	}
	return RangesOverlap(r.CheckIn, r.CheckOut, checkIn, checkOut)
}

var reservationTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusCancelled: true,
		StatusCompleted: true,
	},
}

// ActiveStatuses are the statuses that hold dates on a property.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(status string) bool {
	return len(reservationTransitions[status]) == 0
}

// CanTransition reports whether a reservation may move from one status to another.
func CanTransition(from, to string) bool {
	return reservationTransitions[from][to]
}

// RangesOverlap applies the half-open interval test: [a,b) and [c,d) overlap iff a < d and c < b.
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Nights counts billable nights, rounding any partial day up.
func Nights(checkIn, checkOut time.Time) int {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return 0
	}
	nights := d / (24 * time.Hour)
	if d%(24*time.Hour) != 0 {
		nights++
	}
	return int(nights)
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

// ReservationFilter narrows reservation listings. Zero values disable a criterion.
type ReservationFilter struct {
	GuestID    int64
	HostID     int64
	PropertyID int64
	Status     string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}
