package models

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusFailed    BookingStatus = "FAILED"
)

// bookingTransitions defines the state machine for booking status changes.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusFailed},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted: {},
	BookingStatusCancelled: {},
	BookingStatusFailed:    {},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := bookingTransitions[s]
	return exists
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := bookingTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// AuthorizeTransition decides whether the given actor may move a booking from
// current to target. It is pure: it never mutates the booking, it only grants
// or denies. The identity of the actor matters, not just the role — a guide
// may only act on bookings they own as the guide, a tourist only on their own.
func AuthorizeTransition(current, target BookingStatus, role Role, actorID int, b *Booking) error {
	if !target.IsValid() {
		return fmt.Errorf("unknown booking status %q", target)
	}
	if current.IsTerminal() {
		return fmt.Errorf("booking is already %s and cannot change status", current)
	}
	if !current.CanTransitionTo(target) {
		return fmt.Errorf("cannot change booking status from %s to %s", current, target)
	}

	switch target {
	case BookingStatusConfirmed, BookingStatusCompleted:
		if role == RoleAdmin || (role == RoleGuide && actorID == b.GuideID) {
			return nil
		}
		return fmt.Errorf("only the booking's guide or an admin may set status %s", target)
	case BookingStatusCancelled:
		if role == RoleAdmin || (role == RoleTourist && actorID == b.TouristID) {
			return nil
		}
		return fmt.Errorf("only the booking's tourist or an admin may cancel")
	case BookingStatusFailed:
		// FAILED is normally set by the payment gateway callbacks; by hand
		// it is an admin-only correction.
		if role == RoleAdmin {
			return nil
		}
		return fmt.Errorf("only an admin may set status %s", target)
	}
	return fmt.Errorf("unknown booking status %q", target)
}

type Booking struct {
	ID            int           `db:"id" json:"id"`
	TouristID     int           `db:"tourist_id" json:"touristId"`
	GuideID       int           `db:"guide_id" json:"guideId"`
	TourListingID int           `db:"tour_listing_id" json:"tourListingId"`
	Status        BookingStatus `db:"status" json:"status"`
	RequestedDate time.Time     `db:"requested_date" json:"requestedDate"`
	GroupSize     int           `db:"group_size" json:"groupSize"`
	TotalPrice    float64       `db:"total_price" json:"totalPrice"`
	Notes         string        `db:"notes" json:"notes"`
	PaymentID     *int          `db:"payment_id" json:"paymentId,omitempty"`
	CompletedAt   *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updatedAt"`
}

// BookingDetail is a booking with the joined listing, tourist and payment
// fields used by the read-by-id endpoint.
type BookingDetail struct {
	Booking
	ListingTitle  string   `db:"listing_title" json:"listingTitle"`
	ListingPrice  float64  `db:"listing_price" json:"listingPrice"`
	TouristName   string   `db:"tourist_name" json:"touristName"`
	TouristEmail  string   `db:"tourist_email" json:"touristEmail"`
	PaymentStatus *string  `db:"pay_status" json:"paymentStatus,omitempty"`
	TransactionID *string  `db:"transaction_id" json:"transactionId,omitempty"`
	PaymentAmount *float64 `db:"pay_amount" json:"paymentAmount,omitempty"`
}

type CreateBookingRequest struct {
	TourListingID int    `json:"tourListingId" binding:"required"`
	RequestedDate string `json:"requestedDate" binding:"required"`
	GroupSize     int    `json:"groupSize" binding:"required,gt=0"`
	Notes         string `json:"notes"`
}

type UpdateBookingRequest struct {
	Status        *string `json:"status"`
	RequestedDate *string `json:"requestedDate"`
	GroupSize     *int    `json:"groupSize"`
	Notes         *string `json:"notes"`
}

type BookingEvent struct {
	BookingID     int           `json:"booking_id"`
	TouristID     int           `json:"tourist_id"`
	GuideID       int           `json:"guide_id"`
	TourListingID int           `json:"tour_listing_id"`
	Status        BookingStatus `json:"status"`
	TotalPrice    float64       `json:"total_price"`
	TransactionID string        `json:"transaction_id"`
	EventType     string        `json:"event_type"` // booking_created, booking_confirmed, booking_failed, booking_cancelled
}
