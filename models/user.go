package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles understood by the role guard middleware.
const (
	RoleCustomer = "customer"
	RoleCourier  = "courier"
	RoleOwner    = "owner"
)

// User represents a registered account (customer, courier or owner).
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"size:256;uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"size:256;not null" json:"-"` // bcrypt hash, never serialized
	Forename  string         `gorm:"size:256;not null" json:"forename"`
	Surname   string         `gorm:"size:256;not null" json:"surname"`
	Role      string         `gorm:"size:16;not null" json:"role"` // "customer", "courier" or "owner"
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
