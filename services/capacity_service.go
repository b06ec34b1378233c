package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/enrollhq/course-portal/model"
	"gorm.io/gorm"
)

// capacityCacheTTL bounds staleness between mutations and the explicit
// invalidation that follows them.
const capacityCacheTTL = 30 * time.Second

// CapacityCache is the subset of the Redis cache the capacity tracker
// needs. A nil cache disables caching entirely.
type CapacityCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CapacityService derives session enrollment counts from the
// registration ledger. Counts are never stored on the session row; the
// ledger is the single source of truth and the cache is invalidated on
// every mutation that touches a session link.
type CapacityService struct {
	db    *gorm.DB
	cache CapacityCache
}

// NewCapacityService creates a new capacity service. cache may be nil.
func NewCapacityService(db *gorm.DB, cache CapacityCache) *CapacityService {
	return &CapacityService{db: db, cache: cache}
}

func capacityKey(sessionID uint) string {
	return fmt.Sprintf("capacity:session:%d", sessionID)
}

// CurrentEnrollment returns the number of registrations whose effective
// session equals sessionID.
func (s *CapacityService) CurrentEnrollment(ctx context.Context, sessionID uint) (int, error) {
	if s.cache != nil {
		if val, err := s.cache.Get(ctx, capacityKey(sessionID)); err == nil {
			if n, convErr := strconv.Atoi(val); convErr == nil {
				return n, nil
			}
		}
	}

	count, err := enrollmentCount(s.db.WithContext(ctx), sessionID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, capacityKey(sessionID), strconv.FormatInt(count, 10), capacityCacheTTL); err != nil {
			log.Printf("capacity cache set failed for session %d: %v", sessionID, err)
		}
	}

	return int(count), nil
}

// IsAvailable reports whether the session is active and has a spot
// left. This read is advisory: selection re-validates inside its own
// transaction.
func (s *CapacityService) IsAvailable(ctx context.Context, sessionID uint) (bool, error) {
	var session model.CourseSession
	if err := s.db.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, ErrNotFound
		}
		return false, err
	}

	if !session.IsActive() {
		return false, nil
	}

	count, err := s.CurrentEnrollment(ctx, sessionID)
	if err != nil {
		return false, err
	}

	return count < session.MaxCapacity, nil
}

// Snapshot returns the session row together with its current
// enrollment count, for the availability endpoint.
func (s *CapacityService) Snapshot(ctx context.Context, sessionID uint) (*model.CourseSession, int, error) {
	var session model.CourseSession
	if err := s.db.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	count, err := s.CurrentEnrollment(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	return &session, count, nil
}

// Invalidate drops cached counts for the given sessions. Called after
// every committed mutation that touches an assigned or selected session.
func (s *CapacityService) Invalidate(ctx context.Context, sessionIDs ...uint) {
	if s.cache == nil || len(sessionIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, capacityKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("capacity cache invalidation failed: %v", err)
	}
}

// enrollmentCount counts registrations whose effective session (the
// admin assignment when set, otherwise the user's selection) equals
// sessionID. Runs against whatever handle it is given, so transactional
// callers bypass the cache.
func enrollmentCount(tx *gorm.DB, sessionID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.Registration{}).
		Where("assigned_session_id = ? OR (assigned_session_id IS NULL AND user_selected_session_id = ?)",
			sessionID, sessionID).
		Count(&count).Error
	return count, err
}

// enrollmentCountExcluding is enrollmentCount minus one specific
// registration, used when that registration is about to move.
func enrollmentCountExcluding(tx *gorm.DB, sessionID, userID, courseID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.Registration{}).
		Where("assigned_session_id = ? OR (assigned_session_id IS NULL AND user_selected_session_id = ?)",
			sessionID, sessionID).
		Not("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count, err
}
