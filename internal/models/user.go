package models

import (
	"strings"

	"gorm.io/datatypes"
)

// Roles a user account can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Address is stored as a JSON document on the user row.
type Address struct {
	Street     string `json:"street,omitempty" mapstructure:"street"`
	City       string `json:"city,omitempty" mapstructure:"city"`
	Province   string `json:"province,omitempty" mapstructure:"province"`
	PostalCode string `json:"postal_code,omitempty" mapstructure:"postal_code"`
}

// User is an account managed through the admin panel.
type User struct {
	BaseModel

	Username       string                      `gorm:"uniqueIndex;size:30;not null" json:"username" validate:"required,min=3,max=30"`
	Name           string                      `gorm:"size:100" json:"name" validate:"max=100"`
	Email          string                      `gorm:"uniqueIndex;size:255;not null" json:"email" validate:"required,email"`
	Password       string                      `gorm:"not null" json:"-" validate:"required"`
	PhoneNumber    string                      `gorm:"size:15" json:"phone_number" validate:"max=15"`
	Address        datatypes.JSONType[Address] `json:"address"`
	ProfilePicture string                      `gorm:"size:255" json:"profile_picture"`
	Role           string                      `gorm:"size:16;default:user;not null" json:"role" validate:"required,oneof=user admin"`
}

// Normalize applies the canonical casing used for unique lookups.
func (u *User) Normalize() {
	u.Username = NormalizeHandle(u.Username)
	u.Email = NormalizeHandle(u.Email)
	if u.Role == "" {
		u.Role = RoleUser
	}
}

// NormalizeHandle trims and lower-cases usernames and email addresses.
func NormalizeHandle(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
