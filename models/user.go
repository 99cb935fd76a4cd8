package models

import "time"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleGuide   Role = "GUIDE"
	RoleTourist Role = "TOURIST"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleGuide, RoleTourist:
		return true
	}
	return false
}

type User struct {
	ID              int       `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	Phone           string    `db:"phone" json:"phone"`
	Address         string    `db:"address" json:"address"`
	Role            Role      `db:"role" json:"role"`
	IsActive        bool      `db:"is_active" json:"isActive"`
	AverageRating   float64   `db:"average_rating" json:"averageRating"`
	TotalToursGiven int       `db:"total_tours_given" json:"totalToursGiven"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}
