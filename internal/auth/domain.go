package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies an account within the clinic.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Account represents a registered portal account. PasswordHash only ever
// holds a bcrypt digest; the plaintext password is hashed before the
// record is created or updated.
type Account struct {
	ID                uuid.UUID
	Name              string
	Email             string
	PasswordHash      string
	Phone             string
	DateOfBirth       *time.Time
	Address           string
	InsuranceProvider string
	InsurancePolicy   string
	Role              Role
	IsActive          bool
	EmailVerified     bool
	VerificationToken string
	ResetToken        string
	ResetTokenExpires *time.Time
	LastLoginAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PublicAccount is the client-facing view of an account. It carries no
// credential material: no password hash and none of the secret tokens.
type PublicAccount struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone,omitempty"`
	DateOfBirth       *time.Time `json:"dateOfBirth,omitempty"`
	Address           string     `json:"address,omitempty"`
	InsuranceProvider string     `json:"insuranceProvider,omitempty"`
	InsurancePolicy   string     `json:"insurancePolicy,omitempty"`
	Role              Role       `json:"role"`
	IsActive          bool       `json:"isActive"`
	EmailVerified     bool       `json:"emailVerified"`
	LastLoginAt       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Public strips credential material from the account.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:                a.ID,
		Name:              a.Name,
		Email:             a.Email,
		Phone:             a.Phone,
		DateOfBirth:       a.DateOfBirth,
		Address:           a.Address,
		InsuranceProvider: a.InsuranceProvider,
		InsurancePolicy:   a.InsurancePolicy,
		Role:              a.Role,
		IsActive:          a.IsActive,
		EmailVerified:     a.EmailVerified,
		LastLoginAt:       a.LastLoginAt,
		CreatedAt:         a.CreatedAt,
	}
}

// Session bundles a freshly signed token with the account view returned
// by login and registration.
type Session struct {
	Token   string        `json:"token"`
	Account PublicAccount `json:"user"`
}
