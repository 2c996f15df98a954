package users

import (
	"time"

	"github.com/medistock/medistock/internal/auth"
)

// User represents an account. Users are never hard-deleted; Banned blocks login.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Mobile       string    `json:"mobile"`
	PasswordHash string    `json:"-"`
	PharmacyID   string    `json:"pharmacy_id,omitempty"`
	Role         string    `json:"role"`
	Banned       bool      `json:"banned_user"`
	CreatedAt    time.Time `json:"created_at"`
	Pharmacy     *Pharmacy `json:"pharmacyInfo,omitempty"`
}

// Subject is the token snapshot of the user.
func (u User) Subject() auth.Subject {
	return auth.Subject{
		UserID:     u.ID,
		PharmacyID: u.PharmacyID,
		Role:       u.Role,
		Email:      u.Email,
		Name:       u.Name,
	}
}

// Pharmacy is a tenant account.
type Pharmacy struct {
	ID         int64     `json:"id"`
	PharmacyID string    `json:"pharmacy_id"`
	Name       string    `json:"pharmacy_name"`
	Slug       string    `json:"pharmacy_slug"`
	CreatedAt  time.Time `json:"created_at"`
}

// RegisterInput carries a new admin and their pharmacy.
type RegisterInput struct {
	Name         string `json:"name" validate:"required,min=3,max=30"`
	Email        string `json:"email" validate:"required,email"`
	Mobile       string `json:"mobile" validate:"required,len=11,number"`
	PharmacyName string `json:"pharmacy_name" validate:"required,min=3,max=30"`
	Password     string `json:"password" validate:"required,min=8,max=30"`
}

// LoginInput identifies a user by email or mobile.
type LoginInput struct {
	Identifier string `json:"email_mobile" validate:"required,min=3,max=50"`
	Password   string `json:"password" validate:"required,min=6,max=30"`
}

// Session is the result of a successful login.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
}
