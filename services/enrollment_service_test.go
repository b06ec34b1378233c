package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/enrollhq/course-portal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// registerInvited creates a registration and marks it invited, the
// precondition for session selection.
func registerInvited(t *testing.T, s *testServices, admin, user *model.User, courseID uint) {
	t.Helper()
	ctx := context.Background()
	if _, _, err := s.registrations.Create(ctx, asUser(user), courseID); err != nil {
		t.Fatalf("Create registration failed: %v", err)
	}
	if err := s.enrollments.Invite(ctx, asUser(admin), user.ID, courseID, true); err != nil {
		t.Fatalf("Invite failed: %v", err)
	}
}

func TestInviteTogglesFlag(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")

	if _, _, err := s.registrations.Create(ctx, asUser(user), course.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.enrollments.Invite(ctx, asUser(admin), user.ID, course.ID, true); err != nil {
		t.Fatalf("Invite failed: %v", err)
	}
	reg := loadRegistration(t, s.db, user.ID, course.ID)
	if !reg.IsInvited || reg.InvitedAt == nil {
		t.Errorf("Expected invited with timestamp, got invited=%v invitedAt=%v", reg.IsInvited, reg.InvitedAt)
	}
	if reg.State() != model.StateInvited {
		t.Errorf("Expected state invited, got %s", reg.State())
	}

	if err := s.enrollments.Invite(ctx, asUser(admin), user.ID, course.ID, false); err != nil {
		t.Fatalf("Uninvite failed: %v", err)
	}
	reg = loadRegistration(t, s.db, user.ID, course.ID)
	if reg.IsInvited || reg.InvitedAt != nil {
		t.Errorf("Expected uninvited with nil timestamp, got invited=%v invitedAt=%v", reg.IsInvited, reg.InvitedAt)
	}
}

func TestInviteRequiresAdmin(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")

	err := s.enrollments.Invite(ctx, asUser(user), user.ID, course.ID, true)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized, got %v", err)
	}
}

func TestSelectSessionHappyPath(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	session := createSession(t, s.db, course.ID, 10)

	registerInvited(t, s, admin, user, course.ID)

	if err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, &session.ID); err != nil {
		t.Fatalf("SelectSession failed: %v", err)
	}

	reg := loadRegistration(t, s.db, user.ID, course.ID)
	if reg.State() != model.StateUserSelected {
		t.Errorf("Expected state user_selected, got %s", reg.State())
	}
	if got := reg.EffectiveSessionID(); got == nil || *got != session.ID {
		t.Errorf("Expected effective session %d, got %v", session.ID, got)
	}

	// Clearing returns to invited.
	if err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, nil); err != nil {
		t.Fatalf("Clear selection failed: %v", err)
	}
	reg = loadRegistration(t, s.db, user.ID, course.ID)
	if reg.State() != model.StateInvited {
		t.Errorf("Expected state invited after clear, got %s", reg.State())
	}
}

func TestSelectSessionRequiresInvite(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	session := createSession(t, s.db, course.ID, 10)

	if _, _, err := s.registrations.Create(ctx, asUser(user), course.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, &session.ID)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("Expected ErrNotPermitted before invite, got %v", err)
	}
}

func TestSelectSessionWrongCourse(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	other := createCourse(t, s.db, "First Aid")
	otherSession := createSession(t, s.db, other.ID, 10)

	registerInvited(t, s, admin, user, course.ID)

	err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, &otherSession.ID)
	if !errors.Is(err, ErrSessionNotAvailable) {
		t.Fatalf("Expected ErrSessionNotAvailable, got %v", err)
	}
}

func TestSelectSessionArchived(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	session := createSession(t, s.db, course.ID, 10)
	s.db.Model(session).Update("status", model.SessionStatusArchived)

	registerInvited(t, s, admin, user, course.ID)

	err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, &session.ID)
	if !errors.Is(err, ErrSessionNotAvailable) {
		t.Fatalf("Expected ErrSessionNotAvailable for archived session, got %v", err)
	}
}

func TestSelectSessionFull(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	course := createCourse(t, s.db, "Manual Handling")
	session := createSession(t, s.db, course.ID, 1)

	first := createUser(t, s.db, "first@test.com", true)
	second := createUser(t, s.db, "second@test.com", true)
	registerInvited(t, s, admin, first, course.ID)
	registerInvited(t, s, admin, second, course.ID)

	if err := s.enrollments.SelectSession(ctx, asUser(first), course.ID, &session.ID); err != nil {
		t.Fatalf("First selection failed: %v", err)
	}

	err := s.enrollments.SelectSession(ctx, asUser(second), course.ID, &session.ID)
	if !errors.Is(err, ErrSessionFull) {
		t.Fatalf("Expected ErrSessionFull, got %v", err)
	}
}

func TestSelectSessionReselectDoesNotCountSelf(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	session := createSession(t, s.db, course.ID, 1)

	registerInvited(t, s, admin, user, course.ID)

	if err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, &session.ID); err != nil {
		t.Fatalf("First selection failed: %v", err)
	}
	// Re-selecting the same full session must not count the holder
	// against themselves.
	if err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, &session.ID); err != nil {
		t.Fatalf("Re-selection failed: %v", err)
	}
}

func TestSelectSessionLockedByAssignment(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	assigned := createSession(t, s.db, course.ID, 10)
	wanted := createSession(t, s.db, course.ID, 10)

	registerInvited(t, s, admin, user, course.ID)
	if err := s.enrollments.AssignSession(ctx, asUser(admin), user.ID, course.ID, &assigned.ID); err != nil {
		t.Fatalf("AssignSession failed: %v", err)
	}

	err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, &wanted.ID)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("Expected ErrNotPermitted under assignment, got %v", err)
	}
	// Clearing is locked too.
	err = s.enrollments.SelectSession(ctx, asUser(user), course.ID, nil)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("Expected ErrNotPermitted clearing under assignment, got %v", err)
	}
}

func TestAssignSessionDominatesSelection(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	chosen := createSession(t, s.db, course.ID, 10)
	forced := createSession(t, s.db, course.ID, 10)

	registerInvited(t, s, admin, user, course.ID)
	if err := s.enrollments.SelectSession(ctx, asUser(user), course.ID, &chosen.ID); err != nil {
		t.Fatalf("SelectSession failed: %v", err)
	}
	if err := s.enrollments.AssignSession(ctx, asUser(admin), user.ID, course.ID, &forced.ID); err != nil {
		t.Fatalf("AssignSession failed: %v", err)
	}

	reg := loadRegistration(t, s.db, user.ID, course.ID)
	if reg.State() != model.StateAdminAssigned {
		t.Errorf("Expected state admin_assigned, got %s", reg.State())
	}
	if got := reg.EffectiveSessionID(); got == nil || *got != forced.ID {
		t.Errorf("Expected effective session %d, got %v", forced.ID, got)
	}
	// The user's own pick survives underneath for when the assignment
	// is cleared.
	if reg.UserSelectedSessionID == nil || *reg.UserSelectedSessionID != chosen.ID {
		t.Errorf("Expected preserved selection %d, got %v", chosen.ID, reg.UserSelectedSessionID)
	}

	if err := s.enrollments.AssignSession(ctx, asUser(admin), user.ID, course.ID, nil); err != nil {
		t.Fatalf("Clear assignment failed: %v", err)
	}
	reg = loadRegistration(t, s.db, user.ID, course.ID)
	if reg.State() != model.StateUserSelected {
		t.Errorf("Expected state user_selected after clearing assignment, got %s", reg.State())
	}
}

func TestAssignSessionCapacity(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	course := createCourse(t, s.db, "Manual Handling")
	session := createSession(t, s.db, course.ID, 1)

	first := createUser(t, s.db, "first@test.com", true)
	second := createUser(t, s.db, "second@test.com", true)
	registerInvited(t, s, admin, first, course.ID)
	registerInvited(t, s, admin, second, course.ID)

	if err := s.enrollments.AssignSession(ctx, asUser(admin), first.ID, course.ID, &session.ID); err != nil {
		t.Fatalf("First assignment failed: %v", err)
	}
	err := s.enrollments.AssignSession(ctx, asUser(admin), second.ID, course.ID, &session.ID)
	if !errors.Is(err, ErrSessionFull) {
		t.Fatalf("Expected ErrSessionFull, got %v", err)
	}

	// With overbooking enabled the same assignment goes through.
	overbooking := NewEnrollmentService(s.db, s.capacity, s.feed, true)
	if err := overbooking.AssignSession(ctx, asUser(admin), second.ID, course.ID, &session.ID); err != nil {
		t.Fatalf("Overbooked assignment failed: %v", err)
	}
}

func TestAssignSessionArchived(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	session := createSession(t, s.db, course.ID, 10)
	s.db.Model(session).Update("status", model.SessionStatusArchived)

	registerInvited(t, s, admin, user, course.ID)

	err := s.enrollments.AssignSession(ctx, asUser(admin), user.ID, course.ID, &session.ID)
	if !errors.Is(err, ErrSessionNotAvailable) {
		t.Fatalf("Expected ErrSessionNotAvailable, got %v", err)
	}
}

func TestClearAssignmentInvalidatesSelectionCache(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	cache := newFakeCache()
	capacity := NewCapacityService(s.db, cache)
	enrollments := NewEnrollmentService(s.db, capacity, s.feed, false)

	admin := createAdmin(t, s.db, "admin@test.com")
	user := createUser(t, s.db, "user@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")
	chosen := createSession(t, s.db, course.ID, 10)
	forced := createSession(t, s.db, course.ID, 10)

	registerInvited(t, s, admin, user, course.ID)
	if err := enrollments.SelectSession(ctx, asUser(user), course.ID, &chosen.ID); err != nil {
		t.Fatalf("SelectSession failed: %v", err)
	}
	if err := enrollments.AssignSession(ctx, asUser(admin), user.ID, course.ID, &forced.ID); err != nil {
		t.Fatalf("AssignSession failed: %v", err)
	}

	// The assignment dominates, so the chosen session counts nobody.
	// Prime its cache with that zero.
	count, err := capacity.CurrentEnrollment(ctx, chosen.ID)
	if err != nil {
		t.Fatalf("CurrentEnrollment failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 enrolled while assignment dominates, got %d", count)
	}

	// Clearing the assignment makes the preserved selection effective
	// again; the cached zero must not survive it.
	if err := enrollments.AssignSession(ctx, asUser(admin), user.ID, course.ID, nil); err != nil {
		t.Fatalf("Clear assignment failed: %v", err)
	}
	count, err = capacity.CurrentEnrollment(ctx, chosen.ID)
	if err != nil {
		t.Fatalf("CurrentEnrollment after clear failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected fresh count 1 for the revealed selection, got %d", count)
	}
}

// raceForLastSpot has callers race SelectSession for the single
// remaining spot in a session and verifies exactly one wins.
func raceForLastSpot(t *testing.T, s *testServices, callers int) {
	t.Helper()
	ctx := context.Background()
	tag := time.Now().UnixNano()
	admin := createAdmin(t, s.db, fmt.Sprintf("race-admin-%d@test.com", tag))
	course := createCourse(t, s.db, "Manual Handling")
	session := createSession(t, s.db, course.ID, 1)

	idents := make([]Identity, callers)
	for i := range idents {
		user := createUser(t, s.db, fmt.Sprintf("racer%d-%d@test.com", i, tag), true)
		registerInvited(t, s, admin, user, course.ID)
		idents[i] = asUser(user)
	}

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range idents {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.enrollments.SelectSession(ctx, idents[i], course.ID, &session.ID)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSessionFull):
		default:
			t.Errorf("Unexpected selection error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("Expected exactly one winner, got %d", won)
	}

	count, err := s.capacity.CurrentEnrollment(ctx, session.ID)
	if err != nil {
		t.Fatalf("CurrentEnrollment failed: %v", err)
	}
	if count > 1 {
		t.Errorf("Session overbooked: %d enrolled with capacity 1", count)
	}
}

func TestSelectSessionConcurrentLastSpot(t *testing.T) {
	db := setupTestDB(t)
	// SQLite admits one writer; funnel the racers through a single
	// connection so pending transactions queue instead of failing busy.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	raceForLastSpot(t, newServicesFor(db), 8)
}

func TestSelectSessionConcurrentLastSpotPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open postgres: %v", err)
	}
	err = db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CourseSession{},
		&model.Registration{},
		&model.Completion{},
		&model.ChangeEvent{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	raceForLastSpot(t, newServicesFor(db), 8)
}
