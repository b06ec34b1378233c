package services

import (
	"context"
	"time"

	"github.com/enrollhq/course-portal/model"
	"gorm.io/gorm"
)

// CourseService manages the catalog of courses and their scheduled
// sessions.
type CourseService struct {
	db       *gorm.DB
	capacity *CapacityService
	feed     *ChangeFeedService
}

func NewCourseService(db *gorm.DB, capacity *CapacityService, feed *ChangeFeedService) *CourseService {
	return &CourseService{db: db, capacity: capacity, feed: feed}
}

// List returns active courses with their active sessions, for the
// public catalog.
func (s *CourseService) List(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).
		Preload("Sessions", "status = ?", model.SessionStatusActive).
		Where("active = ?", true).
		Order("title ASC").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

// Get returns a single course with all its sessions, including
// archived ones (the UI greys those out).
func (s *CourseService) Get(ctx context.Context, courseID uint) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).
		Preload("Sessions").
		First(&course, courseID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}

type CourseInput struct {
	Title      string `json:"title" validate:"required,min=2,max=200"`
	Category   string `json:"category" validate:"max=100"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	MinLevel   int    `json:"min_level" validate:"min=0"`
	Active     *bool  `json:"active"`
}

func (s *CourseService) Create(ctx context.Context, ident Identity, input CourseInput) (*model.Course, error) {
	if err := requireAdmin(ident); err != nil {
		return nil, err
	}

	course := model.Course{
		Title:      input.Title,
		Category:   input.Category,
		Difficulty: input.Difficulty,
		MinLevel:   input.MinLevel,
		Active:     true,
	}
	if input.Active != nil {
		course.Active = *input.Active
	}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, err
	}

	s.feed.Publish(ctx, Change{
		Entity:   model.EntityCourse,
		Mutation: "created",
		CourseID: &course.ID,
	})
	return &course, nil
}

func (s *CourseService) Update(ctx context.Context, ident Identity, courseID uint, input CourseInput) (*model.Course, error) {
	if err := requireAdmin(ident); err != nil {
		return nil, err
	}

	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	course.Title = input.Title
	course.Category = input.Category
	course.Difficulty = input.Difficulty
	course.MinLevel = input.MinLevel
	if input.Active != nil {
		course.Active = *input.Active
	}
	if err := s.db.WithContext(ctx).Save(&course).Error; err != nil {
		return nil, err
	}

	s.feed.Publish(ctx, Change{
		Entity:   model.EntityCourse,
		Mutation: "updated",
		CourseID: &course.ID,
	})
	return &course, nil
}

type SessionInput struct {
	SessionDate time.Time `json:"session_date" validate:"required"`
	StartTime   string    `json:"start_time" validate:"omitempty,len=5"`
	Address     string    `json:"address" validate:"max=500"`
	MaxCapacity int       `json:"max_capacity" validate:"required,min=1,max=1000"`
}

func (s *CourseService) CreateSession(ctx context.Context, ident Identity, courseID uint, input SessionInput) (*model.CourseSession, error) {
	if err := requireAdmin(ident); err != nil {
		return nil, err
	}

	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	session := model.CourseSession{
		CourseID:    courseID,
		SessionDate: input.SessionDate,
		StartTime:   input.StartTime,
		Address:     input.Address,
		MaxCapacity: input.MaxCapacity,
		Status:      model.SessionStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}

	s.feed.Publish(ctx, Change{
		Entity:    model.EntitySession,
		Mutation:  "created",
		CourseID:  &courseID,
		SessionID: &session.ID,
	})
	return &session, nil
}

func (s *CourseService) UpdateSession(ctx context.Context, ident Identity, sessionID uint, input SessionInput) (*model.CourseSession, error) {
	if err := requireAdmin(ident); err != nil {
		return nil, err
	}

	var session model.CourseSession
	if err := s.db.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	session.SessionDate = input.SessionDate
	session.StartTime = input.StartTime
	session.Address = input.Address
	session.MaxCapacity = input.MaxCapacity
	if err := s.db.WithContext(ctx).Save(&session).Error; err != nil {
		return nil, err
	}

	// Capacity may have changed, the cached count is now suspect.
	s.capacity.Invalidate(ctx, session.ID)

	s.feed.Publish(ctx, Change{
		Entity:    model.EntitySession,
		Mutation:  "updated",
		CourseID:  &session.CourseID,
		SessionID: &session.ID,
	})
	return &session, nil
}

// ArchiveSession retires a session. Existing registration links stay in
// place for history, but no new selections or assignments are accepted.
func (s *CourseService) ArchiveSession(ctx context.Context, ident Identity, sessionID uint) error {
	if err := requireAdmin(ident); err != nil {
		return err
	}

	var session model.CourseSession
	if err := s.db.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrNotFound
		}
		return err
	}

	if session.Status == model.SessionStatusArchived {
		return nil
	}
	session.Status = model.SessionStatusArchived
	if err := s.db.WithContext(ctx).Save(&session).Error; err != nil {
		return err
	}

	s.capacity.Invalidate(ctx, session.ID)
	s.feed.Publish(ctx, Change{
		Entity:    model.EntitySession,
		Mutation:  "archived",
		CourseID:  &session.CourseID,
		SessionID: &session.ID,
	})
	return nil
}

// ArchivePastSessions marks every active session whose date has passed
// as archived. Run nightly by the cron manager.
func (s *CourseService) ArchivePastSessions(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.CourseSession{}).
		Where("status = ? AND session_date < ?", model.SessionStatusActive, before).
		Update("status", model.SessionStatusArchived)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
