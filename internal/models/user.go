package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdvisor  Role = "advisor"
	// RoleGuest is never stored; it marks an unauthenticated caller.
	RoleGuest Role = "guest"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdvisor
}

// User is the auth identity. Its profile shares the same id.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PendingEmail string    `gorm:"type:varchar(255)" json:"pending_email,omitempty"`

	Password string `gorm:"not null" json:"-"`
	IsActive bool   `gorm:"not null" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Profile *Profile `gorm:"foreignKey:ID;references:ID" json:"profile,omitempty"`
}

type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Role      Role      `gorm:"type:varchar(20);not null;index" json:"role"`
	FullName  string    `gorm:"type:varchar(120)" json:"full_name"`
	Phone     string    `gorm:"type:varchar(30)" json:"phone"`
	PushToken string    `gorm:"type:varchar(255)" json:"push_token,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the client-mutable profile columns. Role and id
// are never part of it.
type ProfileUpdate struct {
	FullName  *string `json:"full_name"`
	Phone     *string `json:"phone"`
	PushToken *string `json:"push_token"`
}

func (u ProfileUpdate) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.FullName != nil {
		cols["full_name"] = *u.FullName
	}
	if u.Phone != nil {
		cols["phone"] = *u.Phone
	}
	if u.PushToken != nil {
		cols["push_token"] = *u.PushToken
	}
	return cols
}
