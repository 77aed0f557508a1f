package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultRating is the rating every new account starts with.
const DefaultRating = 5.0

// Account is a registered user stored in the accounts collection.
type Account struct {
	ID        primitive.ObjectID `json:"id"        bson:"_id,omitempty"`
	FirstName string             `json:"firstName" bson:"first_name"`
	LastName  string             `json:"lastName"  bson:"last_name"`
	Email     string             `json:"email"     bson:"email"`
	Password  string             `json:"-"         bson:"password"` // bcrypt hash, never serialized
	Location  string             `json:"location"  bson:"location"`
	Rating    float64            `json:"rating"    bson:"rating"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName"  validate:"required,max=50"`
	Email     string `json:"email"     validate:"required,email"`
	Password  string `json:"password"  validate:"required,min=6,max=72"`
	Location  string `json:"location"  validate:"required"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate is the JSON body for PUT /api/auth/profile. Empty fields
// are left unchanged.
type ProfileUpdate struct {
	FirstName string `json:"firstName" validate:"omitempty,max=50"`
	LastName  string `json:"lastName"  validate:"omitempty,max=50"`
	Location  string `json:"location"  validate:"omitempty,max=100"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == "" && u.LastName == "" && u.Location == ""
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    *Account `json:"user"`
}
