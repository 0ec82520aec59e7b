package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        *string   `json:"email,omitempty"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	// Code is the shareable friend code (epoch millis at signup).
	Code         string    `json:"code"`
	IsVerified   bool      `json:"is_verified"`
	ProfileImage string    `json:"profile_image"`
	// PlayerID is the push-provider device id, set at signup/login.
	PlayerID *string `json:"-"`
	// WidgetCount counts paired widgets this user has created.
	WidgetCount int       `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Friend is the reduced view of a user on someone's friend list.
type Friend struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	ProfileImage string    `json:"profile_image"`
}
