package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChangeEntity names the kind of record a change event refers to.
type ChangeEntity string

const (
	EntityCourse       ChangeEntity = "course"
	EntitySession      ChangeEntity = "session"
	EntityRegistration ChangeEntity = "registration"
	EntityCompletion   ChangeEntity = "completion"
)

// ChangeEvent is one entry in the change feed that admin views poll to
// re-sync their cached state. Events are recorded after the mutation
// commits, fire-and-forget: a failed insert is logged and dropped.
type ChangeEvent struct {
	ID       uint         `gorm:"primaryKey" json:"id"`
	EventID  string       `gorm:"type:varchar(36);uniqueIndex;not null" json:"event_id"`
	Entity   ChangeEntity `gorm:"type:varchar(30);not null;index" json:"entity"`
	Mutation string       `gorm:"type:varchar(30);not null" json:"mutation"` // created, updated, deleted, invited, session_selected, session_assigned, completed, ...

	UserID    *uint          `gorm:"index" json:"user_id,omitempty"`
	CourseID  *uint          `gorm:"index" json:"course_id,omitempty"`
	SessionID *uint          `gorm:"index" json:"session_id,omitempty"`
	Payload   datatypes.JSON `json:"payload,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for ChangeEvent
func (ChangeEvent) TableName() string {
	return "change_events"
}
