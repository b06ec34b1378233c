package services

import (
	"context"
	"time"

	"github.com/enrollhq/course-portal/database"
	"github.com/enrollhq/course-portal/model"
	"gorm.io/gorm"
)

// RegistrationService is the registration ledger: per-user, per-course
// membership with a dense 1..N priority ordering and a hard cap on
// concurrent registrations. Every mutation runs in a single transaction
// with the user row locked, so the cap check and the renumbering can
// never interleave with another writer for the same user.
type RegistrationService struct {
	db        *gorm.DB
	maxActive int
	capacity  *CapacityService
	feed      *ChangeFeedService
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(db *gorm.DB, maxActive int, capacity *CapacityService, feed *ChangeFeedService) *RegistrationService {
	if maxActive < 1 {
		maxActive = 3
	}
	return &RegistrationService{
		db:        db,
		maxActive: maxActive,
		capacity:  capacity,
		feed:      feed,
	}
}

// MaxActive returns the configured per-user registration cap.
func (s *RegistrationService) MaxActive() int {
	return s.maxActive
}

// Create registers the caller for a course. Idempotent: registering for
// a course the caller already holds returns the existing entry with
// created false.
func (s *RegistrationService) Create(ctx context.Context, ident Identity, courseID uint) (*model.Registration, bool, error) {
	if err := requireUser(ident); err != nil {
		return nil, false, err
	}
	return s.create(ctx, ident.UserID, courseID, true)
}

// AdminCreate registers an arbitrary user, bypassing the profile
// completeness check. The cap and the completion block still apply.
func (s *RegistrationService) AdminCreate(ctx context.Context, ident Identity, userID, courseID uint) (*model.Registration, bool, error) {
	if err := requireAdmin(ident); err != nil {
		return nil, false, err
	}
	return s.create(ctx, userID, courseID, false)
}

func (s *RegistrationService) create(ctx context.Context, userID, courseID uint, checkProfile bool) (*model.Registration, bool, error) {
	var reg model.Registration
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The user row lock serializes the cap check against concurrent
		// creates and renumbering for the same user.
		var user model.User
		if err := database.LockForUpdate(tx).First(&user, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		if checkProfile && !user.ProfileComplete() {
			return ErrProfileIncomplete
		}

		var course model.Course
		if err := tx.First(&course, courseID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		// A completion record permanently forecloses re-registration.
		var completed int64
		if err := tx.Model(&model.Completion{}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Count(&completed).Error; err != nil {
			return err
		}
		if completed > 0 {
			return ErrAlreadyCompleted
		}

		err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&reg).Error
		if err == nil {
			// Already registered: idempotent no-op.
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		var active int64
		if err := tx.Model(&model.Registration{}).
			Where("user_id = ?", userID).
			Count(&active).Error; err != nil {
			return err
		}
		if int(active) >= s.maxActive {
			return ErrMaxRegistrationsExceeded
		}

		reg = model.Registration{
			UserID:       userID,
			CourseID:     courseID,
			Priority:     int(active) + 1,
			RegisteredAt: time.Now().UTC(),
		}
		created = true
		return tx.Create(&reg).Error
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.feed.Publish(ctx, Change{
			Entity:   model.EntityRegistration,
			Mutation: "created",
			UserID:   &reg.UserID,
			CourseID: &reg.CourseID,
		})
	}

	return &reg, created, nil
}

// Remove deletes the caller's registration and renumbers the remaining
// entries to a dense 1..N sequence in the same transaction.
func (s *RegistrationService) Remove(ctx context.Context, ident Identity, courseID uint) error {
	if err := requireUser(ident); err != nil {
		return err
	}
	return s.remove(ctx, ident.UserID, courseID)
}

// AdminRemove deletes an arbitrary user's registration.
func (s *RegistrationService) AdminRemove(ctx context.Context, ident Identity, userID, courseID uint) error {
	if err := requireAdmin(ident); err != nil {
		return err
	}
	return s.remove(ctx, userID, courseID)
}

func (s *RegistrationService) remove(ctx context.Context, userID, courseID uint) error {
	var freedSession *uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := database.LockForUpdate(tx).First(&user, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		var reg model.Registration
		if err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&reg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		freedSession = reg.EffectiveSessionID()

		if err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).
			Delete(&model.Registration{}).Error; err != nil {
			return err
		}

		return renumberPriorities(tx, userID)
	})
	if err != nil {
		return err
	}

	if freedSession != nil {
		s.capacity.Invalidate(ctx, *freedSession)
	}
	s.feed.Publish(ctx, Change{
		Entity:    model.EntityRegistration,
		Mutation:  "deleted",
		UserID:    &userID,
		CourseID:  &courseID,
		SessionID: freedSession,
	})

	return nil
}

// Reorder moves the caller's registration for courseID to newPriority
// (1-indexed); every other entry shifts accordingly. The whole sequence
// is rewritten in one transaction so equal priorities can never be
// observed.
func (s *RegistrationService) Reorder(ctx context.Context, ident Identity, courseID uint, newPriority int) error {
	if err := requireUser(ident); err != nil {
		return err
	}
	userID := ident.UserID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := database.LockForUpdate(tx).First(&user, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		regs, err := activeRegistrations(tx, userID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range regs {
			if regs[i].CourseID == courseID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return ErrNotFound
		}

		if newPriority < 1 || newPriority > len(regs) {
			return ErrInvalidPriority
		}

		// Splice the entry to its new position, preserving the relative
		// order of everything else.
		moved := regs[idx]
		regs = append(regs[:idx], regs[idx+1:]...)
		rest := make([]model.Registration, 0, len(regs)+1)
		rest = append(rest, regs[:newPriority-1]...)
		rest = append(rest, moved)
		rest = append(rest, regs[newPriority-1:]...)

		return writePriorities(tx, userID, rest)
	})
	if err != nil {
		return err
	}

	s.feed.Publish(ctx, Change{
		Entity:   model.EntityRegistration,
		Mutation: "reordered",
		UserID:   &userID,
		CourseID: &courseID,
	})

	return nil
}

// List returns the caller's registrations in priority order.
func (s *RegistrationService) List(ctx context.Context, ident Identity) ([]model.Registration, error) {
	if err := requireUser(ident); err != nil {
		return nil, err
	}
	return s.listFor(ctx, ident.UserID)
}

// AdminList returns an arbitrary user's registrations in priority order.
func (s *RegistrationService) AdminList(ctx context.Context, ident Identity, userID uint) ([]model.Registration, error) {
	if err := requireAdmin(ident); err != nil {
		return nil, err
	}
	return s.listFor(ctx, userID)
}

func (s *RegistrationService) listFor(ctx context.Context, userID uint) ([]model.Registration, error) {
	var regs []model.Registration
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Course").
		Preload("AssignedSession").
		Preload("SelectedSession").
		Order("priority ASC").
		Find(&regs).Error
	return regs, err
}

// activeRegistrations loads a user's registrations in priority order,
// tie-broken by registration time.
func activeRegistrations(tx *gorm.DB, userID uint) ([]model.Registration, error) {
	var regs []model.Registration
	err := tx.Where("user_id = ?", userID).
		Order("priority ASC, registered_at ASC").
		Find(&regs).Error
	return regs, err
}

// writePriorities rewrites the full priority sequence as index+1 over
// the given order. Always rewriting the whole list is what keeps the
// sequence dense and duplicate-free.
func writePriorities(tx *gorm.DB, userID uint, ordered []model.Registration) error {
	for i := range ordered {
		if ordered[i].Priority == i+1 {
			continue
		}
		if err := tx.Model(&model.Registration{}).
			Where("user_id = ? AND course_id = ?", userID, ordered[i].CourseID).
			Update("priority", i+1).Error; err != nil {
			return err
		}
	}
	return nil
}

// renumberPriorities restores the dense 1..N sequence after a deletion.
// Runs inside the caller's transaction.
func renumberPriorities(tx *gorm.DB, userID uint) error {
	regs, err := activeRegistrations(tx, userID)
	if err != nil {
		return err
	}
	return writePriorities(tx, userID, regs)
}
