package models

import "time"

type TourListing struct {
	ID            int       `db:"id" json:"id"`
	GuideID       int       `db:"guide_id" json:"guideId"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	Category      string    `db:"category" json:"category"`
	City          string    `db:"city" json:"city"`
	Country       string    `db:"country" json:"country"`
	Price         float64   `db:"price" json:"price"`
	Duration      int       `db:"duration" json:"duration"`
	MaxGroupSize  int       `db:"max_group_size" json:"maxGroupSize"`
	MeetingPoint  string    `db:"meeting_point" json:"meetingPoint"`
	IsActive      bool      `db:"is_active" json:"isActive"`
	TotalBookings int       `db:"total_bookings" json:"totalBookings"`
	AverageRating float64   `db:"average_rating" json:"averageRating"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateListingRequest struct {
	Title        string  `json:"title" binding:"required"`
	Description  string  `json:"description"`
	Category     string  `json:"category" binding:"required"`
	City         string  `json:"city" binding:"required"`
	Country      string  `json:"country"`
	Price        float64 `json:"price" binding:"required,gt=0"`
	Duration     int     `json:"duration" binding:"required,gt=0"`
	MaxGroupSize int     `json:"maxGroupSize"`
	MeetingPoint string  `json:"meetingPoint"`
}

type UpdateListingRequest struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Category     *string  `json:"category"`
	City         *string  `json:"city"`
	Country      *string  `json:"country"`
	Price        *float64 `json:"price"`
	Duration     *int     `json:"duration"`
	MaxGroupSize *int     `json:"maxGroupSize"`
	MeetingPoint *string  `json:"meetingPoint"`
	IsActive     *bool    `json:"isActive"`
}
