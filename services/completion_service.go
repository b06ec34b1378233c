package services

import (
	"context"
	"time"

	"github.com/enrollhq/course-portal/database"
	"github.com/enrollhq/course-portal/model"
	"gorm.io/gorm"
)

// CompletionService records course completions. Marking a completion
// retires the live registration and renumbers the remaining ones in the
// same transaction, so the ledger never shows both.
type CompletionService struct {
	db       *gorm.DB
	capacity *CapacityService
	feed     *ChangeFeedService
}

func NewCompletionService(db *gorm.DB, capacity *CapacityService, feed *ChangeFeedService) *CompletionService {
	return &CompletionService{db: db, capacity: capacity, feed: feed}
}

// MarkCompleted records that a user finished a course. The live
// registration is deleted and its priority slot reclaimed atomically.
// Re-marking an already completed course is a no-op.
func (s *CompletionService) MarkCompleted(ctx context.Context, ident Identity, userID, courseID uint) error {
	if err := requireAdmin(ident); err != nil {
		return err
	}

	var freedSession *uint
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := database.LockForUpdate(tx).First(&user, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		var existing model.Completion
		err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).
			First(&existing).Error
		if err == nil {
			return nil // already completed, idempotent
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		var reg model.Registration
		if err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).
			First(&reg).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		freedSession = reg.EffectiveSessionID()

		completion := model.Completion{
			UserID:      userID,
			CourseID:    courseID,
			CompletedAt: time.Now().UTC(),
			MarkedBy:    ident.UserID,
		}
		if err := tx.Create(&completion).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).
			Delete(&model.Registration{}).Error; err != nil {
			return err
		}
		if err := renumberPriorities(tx, userID); err != nil {
			return err
		}

		created = true
		return nil
	})
	if err != nil {
		return err
	}

	if !created {
		return nil
	}

	if freedSession != nil {
		s.capacity.Invalidate(ctx, *freedSession)
	}
	s.feed.Publish(ctx, Change{
		Entity:   model.EntityCompletion,
		Mutation: "completed",
		UserID:   &userID,
		CourseID: &courseID,
	})

	return nil
}

// UnmarkCompleted removes a completion record, letting the user
// register for the course again. The original registration is not
// restored.
func (s *CompletionService) UnmarkCompleted(ctx context.Context, ident Identity, userID, courseID uint) error {
	if err := requireAdmin(ident); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&model.Completion{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	s.feed.Publish(ctx, Change{
		Entity:   model.EntityCompletion,
		Mutation: "uncompleted",
		UserID:   &userID,
		CourseID: &courseID,
	})

	return nil
}

// ListForUser returns the user's completions, newest first. Users may
// read their own history; admins may read anyone's.
func (s *CompletionService) ListForUser(ctx context.Context, ident Identity, userID uint) ([]model.Completion, error) {
	if !ident.valid() {
		return nil, ErrNotAuthenticated
	}
	if ident.UserID != userID && !ident.IsAdmin {
		return nil, ErrNotAuthorized
	}

	var completions []model.Completion
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("completed_at DESC").
		Find(&completions).Error
	if err != nil {
		return nil, err
	}
	return completions, nil
}
