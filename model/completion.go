package model

import (
	"time"
)

// Completion is the permanent record that a user finished a course. Its
// existence forecloses any future registration for the same pair: the
// registration ledger checks this table before inserting.
type Completion struct {
	UserID      uint      `gorm:"primaryKey" json:"user_id"`
	CourseID    uint      `gorm:"primaryKey" json:"course_id"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
	MarkedBy    uint      `gorm:"not null" json:"marked_by"` // admin who finalized it

	// Relationships
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Admin  User   `gorm:"foreignKey:MarkedBy" json:"-"`
}
