// Package models contains data structures for the village portal's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole is the portal role a user acts under.
type UserRole string

const (
	// RoleWarga is a resident who submits requests.
	RoleWarga UserRole = "warga"
	// RoleKadus is a hamlet head, the designated local approver.
	RoleKadus UserRole = "kadus"
	// RoleAdmin is a village administrator who gives final approval.
	RoleAdmin UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleWarga, RoleKadus, RoleAdmin:
		return true
	}
	return false
}

// User represents an account on the village portal.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email       string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password    string         `gorm:"not null" json:"-"`
	DisplayName string         `gorm:"size:100" json:"display_name"`
	Phone       string         `gorm:"size:20" json:"phone"`
	Address     string         `gorm:"size:255" json:"address"`
	Role        UserRole       `gorm:"size:16;not null;default:warga;index" json:"role"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}
