package model

import (
	"time"

	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a course session.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusArchived SessionStatus = "archived"
)

// Course represents a bookable offering in the catalog (e.g., "Manual
// Handling", "First Aid Refresher").
type Course struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Title      string         `gorm:"not null" json:"title"`
	Category   string         `gorm:"type:varchar(100);index" json:"category"`
	Difficulty string         `gorm:"type:varchar(50)" json:"difficulty"`
	MinLevel   int            `gorm:"default:0" json:"min_level"`
	Active     bool           `gorm:"default:true" json:"active"`

	// Relationships
	Sessions      []CourseSession `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"sessions,omitempty"`
	Registrations []Registration  `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// CourseSession is a concretely scheduled occurrence of a course with a
// fixed capacity. Archived sessions accept no new assignments or
// selections, but existing links stay valid for history.
type CourseSession struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID    uint           `gorm:"not null;index" json:"course_id"`
	SessionDate time.Time      `gorm:"not null" json:"session_date"`
	StartTime   string         `gorm:"type:varchar(10)" json:"start_time"` // optional, "15:04"
	Address     string         `gorm:"type:text" json:"address"`
	MaxCapacity int            `gorm:"not null" json:"max_capacity"`
	Status      SessionStatus  `gorm:"type:varchar(20);default:'active';index" json:"status"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName specifies the table name for CourseSession
func (CourseSession) TableName() string {
	return "course_sessions"
}

// IsActive reports whether the session still accepts new links.
func (s *CourseSession) IsActive() bool {
	return s.Status == SessionStatusActive
}
