package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enrollhq/course-portal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// setupTestDB opens a fresh in-memory SQLite database with the full
// schema migrated. Each call gets its own database so tests cannot
// see each other's rows.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := atomic.AddInt64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", n)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.JWTTokenBlacklist{},
		&model.Course{},
		&model.CourseSession{},
		&model.Registration{},
		&model.Completion{},
		&model.ChangeEvent{},
		&model.AdminAuditLog{},
		&model.CronJobLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// testServices bundles the service graph over one test database.
type testServices struct {
	db            *gorm.DB
	capacity      *CapacityService
	feed          *ChangeFeedService
	registrations *RegistrationService
	enrollments   *EnrollmentService
	completions   *CompletionService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	return newServicesFor(setupTestDB(t))
}

// newServicesFor builds the service graph over an already-open database.
func newServicesFor(db *gorm.DB) *testServices {
	capacity := NewCapacityService(db, nil)
	feed := NewChangeFeedService(db)
	return &testServices{
		db:            db,
		capacity:      capacity,
		feed:          feed,
		registrations: NewRegistrationService(db, 3, capacity, feed),
		enrollments:   NewEnrollmentService(db, capacity, feed, false),
		completions:   NewCompletionService(db, capacity, feed),
	}
}

func createUser(t *testing.T, db *gorm.DB, email string, complete bool) *model.User {
	t.Helper()
	user := model.User{
		Email:        email,
		PasswordHash: "x",
		Role:         "student",
	}
	if complete {
		dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
		user.FirstName = "Test"
		user.LastName = "User"
		user.Phone = "0851234567"
		user.Address = "1 Main Street"
		user.Eircode = "D01F5P2"
		user.DateOfBirth = &dob
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return &user
}

func createAdmin(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	admin := createUser(t, db, email, true)
	if err := db.Model(admin).Update("role", "admin").Error; err != nil {
		t.Fatalf("Failed to promote admin: %v", err)
	}
	admin.Role = "admin"
	return admin
}

func createCourse(t *testing.T, db *gorm.DB, title string) *model.Course {
	t.Helper()
	course := model.Course{Title: title, Active: true}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("Failed to create course %s: %v", title, err)
	}
	return &course
}

func createSession(t *testing.T, db *gorm.DB, courseID uint, capacity int) *model.CourseSession {
	t.Helper()
	session := model.CourseSession{
		CourseID:    courseID,
		SessionDate: time.Now().AddDate(0, 1, 0),
		MaxCapacity: capacity,
		Status:      model.SessionStatusActive,
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return &session
}

func asUser(u *model.User) Identity {
	return Identity{UserID: u.ID, IsAdmin: u.IsAdmin()}
}

func loadRegistration(t *testing.T, db *gorm.DB, userID, courseID uint) *model.Registration {
	t.Helper()
	var reg model.Registration
	err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&reg).Error
	if err != nil {
		t.Fatalf("Failed to load registration (%d,%d): %v", userID, courseID, err)
	}
	return &reg
}
