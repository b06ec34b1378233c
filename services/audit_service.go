package services

import (
	"context"
	"log"

	"github.com/enrollhq/course-portal/model"
	"gorm.io/gorm"
)

// AuditService writes a trail of administrative actions. Recording is
// best-effort: a failed insert is logged and swallowed so it never
// breaks the mutation it describes.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

func (s *AuditService) Record(ctx context.Context, entry model.AdminAuditLog) {
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("Failed to record audit entry %s/%s: %v", entry.Action, entry.Resource, err)
	}
}

// List returns recent audit entries, newest first.
func (s *AuditService) List(ctx context.Context, ident Identity, limit int) ([]model.AdminAuditLog, error) {
	if err := requireAdmin(ident); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []model.AdminAuditLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
