package models

import "time"

type Review struct {
	ID        int       `db:"id" json:"id"`
	BookingID int       `db:"booking_id" json:"bookingId"`
	TouristID int       `db:"tourist_id" json:"touristId"`
	GuideID   int       `db:"guide_id" json:"guideId"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateReviewRequest struct {
	BookingID int    `json:"bookingId" binding:"required"`
	Rating    int    `json:"rating" binding:"required,gte=1,lte=5"`
	Comment   string `json:"comment"`
}
