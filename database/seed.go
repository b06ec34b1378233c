package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/enrollhq/course-portal/model"
	"github.com/enrollhq/course-portal/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("Starting database seeding...")

	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	log.Println("Database seeding completed")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", "admin").Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("Admin user already exists, skipping")
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@localhost"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "change-me-please"
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         "admin",
		FirstName:    "Portal",
		LastName:     "Admin",
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Seeded admin user %s", email)
	return nil
}

// SeedCourses creates a small demo catalog with upcoming sessions.
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("Courses already exist, skipping")
		return nil
	}

	courses := []model.Course{
		{Title: "Manual Handling", Category: "safety", Difficulty: "beginner", Active: true},
		{Title: "First Aid Refresher", Category: "safety", Difficulty: "intermediate", MinLevel: 1, Active: true},
		{Title: "Fire Warden Training", Category: "safety", Difficulty: "beginner", Active: true},
	}

	for i := range courses {
		if err := s.db.Create(&courses[i]).Error; err != nil {
			return err
		}

		// Two upcoming sessions per course
		for week := 1; week <= 2; week++ {
			session := model.CourseSession{
				CourseID:    courses[i].ID,
				SessionDate: time.Now().UTC().AddDate(0, 0, 7*week),
				StartTime:   "09:30",
				Address:     "Training Room 2, Main Office",
				MaxCapacity: 12,
				Status:      model.SessionStatusActive,
			}
			if err := s.db.Create(&session).Error; err != nil {
				return err
			}
		}
	}

	log.Printf("Seeded %d courses", len(courses))
	return nil
}
