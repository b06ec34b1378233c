package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`                              // Never expose password in JSON
	Role         string         `gorm:"type:varchar(20);default:'student'" json:"role"` // student, admin
	TokenVersion int            `gorm:"default:0" json:"-"`                             // Increment to invalidate all user tokens

	// Contact details consulted by the profile completeness check
	FirstName   string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName    string     `gorm:"type:varchar(100)" json:"last_name"`
	Phone       string     `gorm:"type:varchar(30)" json:"phone"`
	Address     string     `gorm:"type:text" json:"address"`
	Eircode     string     `gorm:"type:varchar(10)" json:"eircode"`
	DateOfBirth *time.Time `json:"date_of_birth"`

	// Relationships
	Registrations  []Registration      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"registrations,omitempty"`
	Completions    []Completion        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AdminAuditLog  []AdminAuditLog     `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// ProfileComplete reports whether every contact field a registration
// requires has been filled in.
func (u *User) ProfileComplete() bool {
	return u.FirstName != "" &&
		u.LastName != "" &&
		u.Phone != "" &&
		u.Address != "" &&
		u.Eircode != "" &&
		u.DateOfBirth != nil
}
