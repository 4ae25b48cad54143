package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cartalks/backend/internal/identity"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	LicensePlate string    `json:"licensePlate" db:"license_plate"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	PushToken    *string   `json:"-" db:"push_token"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate checks basic user fields
func (u *User) Validate() error {
	if u.LicensePlate == "" {
		return fmt.Errorf("license plate is required")
	}
	if !identity.IsValidDutchPlate(u.LicensePlate) {
		return fmt.Errorf("invalid Dutch license plate format")
	}
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if len(u.Username) < 2 || len(u.Username) > 100 {
		return fmt.Errorf("username length invalid")
	}
	return nil
}

type CreateUserRequest struct {
	Username     string `json:"username" binding:"required"`
	LicensePlate string `json:"licensePlate" binding:"required"`
	Password     string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	LicensePlate string `json:"licensePlate" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type PushTokenRequest struct {
	PushToken string `json:"pushToken" binding:"required"`
}

// PlateMatch is one plate search hit: the plate and the display name of
// its owner.
type PlateMatch struct {
	Plate string `json:"plate"`
	Owner string `json:"owner"`
}

type SearchUsersRequest struct {
	Query string `form:"q" binding:"required"`
	Limit int    `form:"limit"`
}
