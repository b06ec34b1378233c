package services

import (
	"context"
	"errors"
	"testing"

	"github.com/enrollhq/course-portal/model"
)

func TestCreateAssignsDensePriorities(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "dense@test.com", true)

	for i, title := range []string{"Manual Handling", "First Aid", "Fire Safety"} {
		course := createCourse(t, s.db, title)
		reg, _, err := s.registrations.Create(ctx, asUser(user), course.ID)
		if err != nil {
			t.Fatalf("Create %s failed: %v", title, err)
		}
		if reg.Priority != i+1 {
			t.Errorf("Expected priority %d for %s, got %d", i+1, title, reg.Priority)
		}
	}
}

func TestCreateRequiresCompleteProfile(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "incomplete@test.com", false)
	course := createCourse(t, s.db, "Manual Handling")

	_, _, err := s.registrations.Create(ctx, asUser(user), course.ID)
	if !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("Expected ErrProfileIncomplete, got %v", err)
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "twice@test.com", true)
	course := createCourse(t, s.db, "Manual Handling")

	first, created, err := s.registrations.Create(ctx, asUser(user), course.ID)
	if err != nil {
		t.Fatalf("First create failed: %v", err)
	}
	if !created {
		t.Error("Expected first create to report an insert")
	}
	second, created, err := s.registrations.Create(ctx, asUser(user), course.ID)
	if err != nil {
		t.Fatalf("Second create failed: %v", err)
	}
	if created {
		t.Error("Expected repeat create to report a no-op")
	}
	if second.Priority != first.Priority {
		t.Errorf("Expected existing registration back, got priority %d vs %d", second.Priority, first.Priority)
	}

	var count int64
	s.db.Model(&model.Registration{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 registration, found %d", count)
	}
}

func TestCreateEnforcesCap(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "capped@test.com", true)

	for _, title := range []string{"A", "B", "C"} {
		course := createCourse(t, s.db, title)
		if _, _, err := s.registrations.Create(ctx, asUser(user), course.ID); err != nil {
			t.Fatalf("Create %s failed: %v", title, err)
		}
	}

	extra := createCourse(t, s.db, "D")
	_, _, err := s.registrations.Create(ctx, asUser(user), extra.ID)
	if !errors.Is(err, ErrMaxRegistrationsExceeded) {
		t.Fatalf("Expected ErrMaxRegistrationsExceeded, got %v", err)
	}

	// The cap binds admins too.
	admin := createAdmin(t, s.db, "capadmin@test.com")
	_, _, err = s.registrations.AdminCreate(ctx, asUser(admin), user.ID, extra.ID)
	if !errors.Is(err, ErrMaxRegistrationsExceeded) {
		t.Fatalf("Expected ErrMaxRegistrationsExceeded via admin, got %v", err)
	}
}

func TestCreateBlockedAfterCompletion(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "done@test.com", true)
	admin := createAdmin(t, s.db, "doneadmin@test.com")
	course := createCourse(t, s.db, "Manual Handling")

	if _, _, err := s.registrations.Create(ctx, asUser(user), course.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.completions.MarkCompleted(ctx, asUser(admin), user.ID, course.ID); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	_, _, err := s.registrations.Create(ctx, asUser(user), course.ID)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("Expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestAdminCreateSkipsProfileCheck(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "blank@test.com", false)
	admin := createAdmin(t, s.db, "admin@test.com")
	course := createCourse(t, s.db, "Manual Handling")

	reg, _, err := s.registrations.AdminCreate(ctx, asUser(admin), user.ID, course.ID)
	if err != nil {
		t.Fatalf("AdminCreate failed: %v", err)
	}
	if reg.Priority != 1 {
		t.Errorf("Expected priority 1, got %d", reg.Priority)
	}
}

func TestRemoveRenumbersRemaining(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "remove@test.com", true)

	var courses []*model.Course
	for _, title := range []string{"A", "B", "C"} {
		course := createCourse(t, s.db, title)
		courses = append(courses, course)
		if _, _, err := s.registrations.Create(ctx, asUser(user), course.ID); err != nil {
			t.Fatalf("Create %s failed: %v", title, err)
		}
	}

	// Drop the middle entry.
	if err := s.registrations.Remove(ctx, asUser(user), courses[1].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	regs, err := s.registrations.List(ctx, asUser(user))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("Expected 2 registrations, got %d", len(regs))
	}
	for i, reg := range regs {
		if reg.Priority != i+1 {
			t.Errorf("Expected dense priority %d, got %d", i+1, reg.Priority)
		}
	}
	if regs[0].CourseID != courses[0].ID || regs[1].CourseID != courses[2].ID {
		t.Errorf("Remaining courses out of order: %d, %d", regs[0].CourseID, regs[1].CourseID)
	}
}

func TestRemoveUnknownRegistration(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "nothing@test.com", true)

	err := s.registrations.Remove(ctx, asUser(user), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestReorderMovesEntry(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "reorder@test.com", true)

	var courses []*model.Course
	for _, title := range []string{"A", "B", "C"} {
		course := createCourse(t, s.db, title)
		courses = append(courses, course)
		if _, _, err := s.registrations.Create(ctx, asUser(user), course.ID); err != nil {
			t.Fatalf("Create %s failed: %v", title, err)
		}
	}

	// Promote C to the top.
	if err := s.registrations.Reorder(ctx, asUser(user), courses[2].ID, 1); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}

	regs, err := s.registrations.List(ctx, asUser(user))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []uint{courses[2].ID, courses[0].ID, courses[1].ID}
	for i, reg := range regs {
		if reg.CourseID != want[i] {
			t.Errorf("Position %d: expected course %d, got %d", i+1, want[i], reg.CourseID)
		}
		if reg.Priority != i+1 {
			t.Errorf("Position %d: expected priority %d, got %d", i+1, i+1, reg.Priority)
		}
	}
}

func TestReorderRejectsOutOfRange(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "range@test.com", true)
	course := createCourse(t, s.db, "A")
	if _, _, err := s.registrations.Create(ctx, asUser(user), course.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, p := range []int{0, -1, 2, 99} {
		err := s.registrations.Reorder(ctx, asUser(user), course.ID, p)
		if !errors.Is(err, ErrInvalidPriority) {
			t.Errorf("Priority %d: expected ErrInvalidPriority, got %v", p, err)
		}
	}
}

func TestReorderUnknownCourse(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "unknown@test.com", true)
	course := createCourse(t, s.db, "A")
	if _, _, err := s.registrations.Create(ctx, asUser(user), course.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := s.registrations.Reorder(ctx, asUser(user), 999, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRegistrationAuthz(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	user := createUser(t, s.db, "plain@test.com", true)
	course := createCourse(t, s.db, "A")

	if _, _, err := s.registrations.Create(ctx, Identity{}, course.ID); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Anonymous create: expected ErrNotAuthenticated, got %v", err)
	}
	if _, _, err := s.registrations.AdminCreate(ctx, asUser(user), user.ID, course.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Non-admin AdminCreate: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := s.registrations.AdminList(ctx, asUser(user), user.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Non-admin AdminList: expected ErrNotAuthorized, got %v", err)
	}
}
