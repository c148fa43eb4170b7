package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleClient     Role = "client"
	RoleInfluencer Role = "influencer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClient, RoleInfluencer:
		return true
	}
	return false
}

// Profile mirrors an identity owned by the hosted auth provider.
type Profile struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	FullName  string     `json:"full_name" db:"full_name"`
	Email     string     `json:"email" db:"email"`
	Role      Role       `json:"role" db:"role"`
	ClientID  *uuid.UUID `json:"client_id,omitempty" db:"client_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Viewer is the signed-in caller as reported by the auth provider.
type Viewer struct {
	UserID uuid.UUID
	Role   Role
}
