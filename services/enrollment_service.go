package services

import (
	"context"
	"time"

	"github.com/enrollhq/course-portal/database"
	"github.com/enrollhq/course-portal/model"
	"gorm.io/gorm"
)

// EnrollmentService drives a registration through the invite →
// selection/assignment workflow. Session capacity is always re-checked
// inside the transaction that writes the link, under a lock on the
// session row, so two callers cannot both take the last spot.
type EnrollmentService struct {
	db            *gorm.DB
	capacity      *CapacityService
	feed          *ChangeFeedService
	allowOverbook bool
}

// NewEnrollmentService creates a new enrollment workflow service.
// allowOverbook lets admin assignment exceed session capacity.
func NewEnrollmentService(db *gorm.DB, capacity *CapacityService, feed *ChangeFeedService, allowOverbook bool) *EnrollmentService {
	return &EnrollmentService{
		db:            db,
		capacity:      capacity,
		feed:          feed,
		allowOverbook: allowOverbook,
	}
}

// Invite toggles the invited flag on a registration. Existing session
// links are left untouched. Safe to retry.
func (s *EnrollmentService) Invite(ctx context.Context, ident Identity, userID, courseID uint, invited bool) error {
	if err := requireAdmin(ident); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg model.Registration
		if err := database.LockForUpdate(tx).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			First(&reg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{
			"is_invited": invited,
			"invited_at": nil,
		}
		if invited {
			updates["invited_at"] = time.Now().UTC()
		}

		return tx.Model(&model.Registration{}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Updates(updates).Error
	})
	if err != nil {
		return err
	}

	mutation := "invited"
	if !invited {
		mutation = "uninvited"
	}
	s.feed.Publish(ctx, Change{
		Entity:   model.EntityRegistration,
		Mutation: mutation,
		UserID:   &userID,
		CourseID: &courseID,
	})

	return nil
}

// SelectSession sets or clears (sessionID == nil) the caller's own
// session choice. Rejected with ErrNotPermitted once an admin has
// assigned a session: the assignment is authoritative and exclusive.
func (s *EnrollmentService) SelectSession(ctx context.Context, ident Identity, courseID uint, sessionID *uint) error {
	if err := requireUser(ident); err != nil {
		return err
	}
	userID := ident.UserID

	var previous *uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg model.Registration
		if err := database.LockForUpdate(tx).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			First(&reg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		if reg.AssignedSessionID != nil {
			return ErrNotPermitted
		}
		if !reg.IsInvited {
			return ErrNotPermitted
		}
		previous = reg.UserSelectedSessionID

		if sessionID != nil {
			if err := s.checkSession(tx, courseID, *sessionID, userID, false); err != nil {
				return err
			}
		}

		return tx.Model(&model.Registration{}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Update("user_selected_session_id", sessionID).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, previous, sessionID)

	mutation := "session_selected"
	if sessionID == nil {
		mutation = "selection_cleared"
	}
	s.feed.Publish(ctx, Change{
		Entity:    model.EntityRegistration,
		Mutation:  mutation,
		UserID:    &userID,
		CourseID:  &courseID,
		SessionID: sessionID,
	})

	return nil
}

// AssignSession sets or clears an administrator's session binding. It
// dominates any user selection and the user cannot change it. Capacity
// is still enforced unless the service was configured to allow
// deliberate overbooking; archived sessions are always rejected.
func (s *EnrollmentService) AssignSession(ctx context.Context, ident Identity, userID, courseID uint, sessionID *uint) error {
	if err := requireAdmin(ident); err != nil {
		return err
	}

	var previous, revealed *uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg model.Registration
		if err := database.LockForUpdate(tx).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			First(&reg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		previous = reg.EffectiveSessionID()
		if sessionID == nil {
			// Clearing the assignment makes the preserved selection
			// effective again, so its cached count changes too.
			revealed = reg.UserSelectedSessionID
		}

		if sessionID != nil {
			if err := s.checkSession(tx, courseID, *sessionID, userID, s.allowOverbook); err != nil {
				return err
			}
		}

		return tx.Model(&model.Registration{}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Update("assigned_session_id", sessionID).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, previous, sessionID)
	if revealed != nil && (previous == nil || *revealed != *previous) {
		s.capacity.Invalidate(ctx, *revealed)
	}

	mutation := "session_assigned"
	if sessionID == nil {
		mutation = "assignment_cleared"
	}
	s.feed.Publish(ctx, Change{
		Entity:    model.EntityRegistration,
		Mutation:  mutation,
		UserID:    &userID,
		CourseID:  &courseID,
		SessionID: sessionID,
	})

	return nil
}

// checkSession locks the session row and re-validates availability
// inside the caller's transaction. The lock serializes concurrent
// writers targeting the same session; whoever commits second sees the
// first writer's link in the count.
func (s *EnrollmentService) checkSession(tx *gorm.DB, courseID, sessionID, userID uint, skipCapacity bool) error {
	var session model.CourseSession
	if err := database.LockForUpdate(tx).First(&session, sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrNotFound
		}
		return err
	}

	if session.CourseID != courseID {
		return ErrSessionNotAvailable
	}
	if !session.IsActive() {
		return ErrSessionNotAvailable
	}

	if skipCapacity {
		return nil
	}

	count, err := enrollmentCountExcluding(tx, sessionID, userID, courseID)
	if err != nil {
		return err
	}
	if count >= int64(session.MaxCapacity) {
		return ErrSessionFull
	}

	return nil
}

func (s *EnrollmentService) invalidate(ctx context.Context, previous, next *uint) {
	var ids []uint
	if previous != nil {
		ids = append(ids, *previous)
	}
	if next != nil && (previous == nil || *next != *previous) {
		ids = append(ids, *next)
	}
	s.capacity.Invalidate(ctx, ids...)
}
