package model

import (
	"time"
)

// AdminAuditLog is the audit trail for back-office actions on other
// users' registrations and completions.
type AdminAuditLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AdminID     uint      `gorm:"not null;index" json:"admin_id"`
	Action      string    `gorm:"type:varchar(100);not null" json:"action"` // e.g., "registration_assign", "completion_mark"
	Resource    string    `gorm:"type:varchar(100)" json:"resource"`        // e.g., "registrations", "completions"
	TargetUser  uint      `gorm:"index" json:"target_user"`
	CourseID    uint      `json:"course_id"`
	Description string    `gorm:"type:text" json:"description"`
	IPAddress   string    `gorm:"type:varchar(45)" json:"ip_address"`
	CreatedAt   time.Time `json:"created_at"`

	// Relationships
	Admin User `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"admin,omitempty"`
}

// TableName specifies the table name for AdminAuditLog
func (AdminAuditLog) TableName() string {
	return "admin_audit_logs"
}
