package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/enrollhq/course-portal/model"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChangeFeedService records change events after committed mutations so
// admin views can re-sync their cached state. Publishing is
// fire-and-forget, at most once: a failed insert is logged and dropped,
// never surfaced to the caller whose mutation already committed.
type ChangeFeedService struct {
	db *gorm.DB
}

// NewChangeFeedService creates a new change feed service
func NewChangeFeedService(db *gorm.DB) *ChangeFeedService {
	return &ChangeFeedService{db: db}
}

// Change describes one committed mutation.
type Change struct {
	Entity    model.ChangeEntity
	Mutation  string
	UserID    *uint
	CourseID  *uint
	SessionID *uint
	Payload   interface{}
}

// Publish appends a change event to the feed. Errors are logged only.
func (s *ChangeFeedService) Publish(ctx context.Context, change Change) {
	event := model.ChangeEvent{
		EventID:   uuid.New().String(),
		Entity:    change.Entity,
		Mutation:  change.Mutation,
		UserID:    change.UserID,
		CourseID:  change.CourseID,
		SessionID: change.SessionID,
	}

	if change.Payload != nil {
		raw, err := json.Marshal(change.Payload)
		if err != nil {
			log.Printf("change feed: dropping payload for %s/%s: %v", change.Entity, change.Mutation, err)
		} else {
			event.Payload = datatypes.JSON(raw)
		}
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		log.Printf("change feed: failed to record %s/%s: %v", change.Entity, change.Mutation, err)
	}
}

// ListSince returns events with an ID greater than sinceID, oldest
// first, capped at limit.
func (s *ChangeFeedService) ListSince(ctx context.Context, sinceID uint, limit int) ([]model.ChangeEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var events []model.ChangeEvent
	err := s.db.WithContext(ctx).
		Where("id > ?", sinceID).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// TrimOlderThan deletes events recorded before cutoff and returns the
// number removed.
func (s *ChangeFeedService) TrimOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.ChangeEvent{})
	return res.RowsAffected, res.Error
}
