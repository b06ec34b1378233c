package model

import (
	"time"
)

// EnrollmentState is the workflow state of a registration. It is always
// derived from the stored fields, never persisted as its own column, so
// the fields and the state can never disagree.
type EnrollmentState string

const (
	// StateNotInvited is the initial state after registering.
	StateNotInvited EnrollmentState = "not_invited"
	// StateInvited means an admin has opened session selection.
	StateInvited EnrollmentState = "invited"
	// StateUserSelected means the registrant picked a session themselves.
	StateUserSelected EnrollmentState = "user_selected"
	// StateAdminAssigned means an admin bound the registration to a
	// session. The binding is authoritative: the user can no longer
	// change their own selection.
	StateAdminAssigned EnrollmentState = "admin_assigned"
)

// Registration is a user's active claim to a course slot, pending a
// session assignment. Identified by (UserID, CourseID).
type Registration struct {
	UserID       uint      `gorm:"primaryKey" json:"user_id"`
	CourseID     uint      `gorm:"primaryKey" json:"course_id"`
	Priority     int       `gorm:"not null" json:"priority"` // dense 1..N within the user's registrations
	RegisteredAt time.Time `gorm:"not null" json:"registered_at"`

	IsInvited bool       `gorm:"default:false" json:"is_invited"`
	InvitedAt *time.Time `json:"invited_at"` // set iff IsInvited

	AssignedSessionID     *uint `json:"assigned_session_id"`      // set by an administrator
	UserSelectedSessionID *uint `json:"user_selected_session_id"` // set by the registrant

	// Relationships
	User            User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course          Course         `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	AssignedSession *CourseSession `gorm:"foreignKey:AssignedSessionID" json:"assigned_session,omitempty"`
	SelectedSession *CourseSession `gorm:"foreignKey:UserSelectedSessionID" json:"selected_session,omitempty"`
}

// State derives the workflow state. Admin assignment dominates any user
// selection.
func (r *Registration) State() EnrollmentState {
	switch {
	case r.AssignedSessionID != nil:
		return StateAdminAssigned
	case !r.IsInvited:
		return StateNotInvited
	case r.UserSelectedSessionID != nil:
		return StateUserSelected
	default:
		return StateInvited
	}
}

// EffectiveSessionID resolves the session this registration occupies:
// the admin assignment when present, otherwise the user's own selection,
// otherwise nil. Capacity accounting counts effective sessions only.
func (r *Registration) EffectiveSessionID() *uint {
	if r.AssignedSessionID != nil {
		return r.AssignedSessionID
	}
	return r.UserSelectedSessionID
}
