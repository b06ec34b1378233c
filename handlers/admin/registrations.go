package admin

import (
	"fmt"

	"github.com/enrollhq/course-portal/handlers"
	"github.com/enrollhq/course-portal/model"
	"github.com/enrollhq/course-portal/services"
	"github.com/enrollhq/course-portal/utils/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminHandler serves the back-office endpoints for managing other
// users' registrations, invitations, and completions.
type AdminHandler struct {
	db            *gorm.DB
	registrations *services.RegistrationService
	enrollments   *services.EnrollmentService
	completions   *services.CompletionService
	feed          *services.ChangeFeedService
	audit         *services.AuditService
}

func NewAdminHandler(db *gorm.DB, registrations *services.RegistrationService, enrollments *services.EnrollmentService, completions *services.CompletionService, feed *services.ChangeFeedService, audit *services.AuditService) *AdminHandler {
	return &AdminHandler{
		db:            db,
		registrations: registrations,
		enrollments:   enrollments,
		completions:   completions,
		feed:          feed,
		audit:         audit,
	}
}

func (h *AdminHandler) record(c *fiber.Ctx, ident services.Identity, action string, userID, courseID uint, description string) {
	h.audit.Record(c.Context(), model.AdminAuditLog{
		AdminID:     ident.UserID,
		Action:      action,
		Resource:    "registrations",
		TargetUser:  userID,
		CourseID:    courseID,
		Description: description,
		IPAddress:   c.IP(),
	})
}

// pathIDs pulls user and course ids from the route.
func pathIDs(c *fiber.Ctx) (uint, uint, error) {
	userID, err := c.ParamsInt("user_id")
	if err != nil || userID <= 0 {
		return 0, 0, fmt.Errorf("invalid user id")
	}
	courseID, err := c.ParamsInt("course_id")
	if err != nil || courseID <= 0 {
		return 0, 0, fmt.Errorf("invalid course id")
	}
	return uint(userID), uint(courseID), nil
}

// ListUsers returns all users for the admin console.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	var users []model.User
	if err := h.db.Order("created_at DESC").Find(&users).Error; err != nil {
		return response.InternalServerError(c, "Failed to load users")
	}
	return response.Success(c, users)
}

// ListRegistrations returns one user's registrations ordered by
// priority.
func (h *AdminHandler) ListRegistrations(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	userID, err := c.ParamsInt("user_id")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user id")
	}

	regs, err := h.registrations.AdminList(c.Context(), ident, uint(userID))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, regs)
}

// CreateRegistrationRequest names the course to register the user for.
type CreateRegistrationRequest struct {
	CourseID uint `json:"course_id" validate:"required"`
}

// CreateRegistration registers a user for a course on their behalf.
// Skips the profile completeness check; the cap still applies.
func (h *AdminHandler) CreateRegistration(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	userID, err := c.ParamsInt("user_id")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user id")
	}

	var req CreateRegistrationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.CourseID == 0 {
		return response.BadRequest(c, "course_id is required")
	}

	reg, created, err := h.registrations.AdminCreate(c.Context(), ident, uint(userID), req.CourseID)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	if !created {
		return response.Success(c, reg)
	}

	h.record(c, ident, "registration_create", uint(userID), req.CourseID, "Registered user for course")
	return response.Created(c, reg)
}

// RemoveRegistration withdraws a user's registration.
func (h *AdminHandler) RemoveRegistration(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	userID, courseID, err := pathIDs(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.registrations.AdminRemove(c.Context(), ident, userID, courseID); err != nil {
		return handlers.ServiceError(c, err)
	}

	h.record(c, ident, "registration_remove", userID, courseID, "Removed registration")
	return response.NoContent(c)
}

// InviteRequest toggles the invited flag.
type InviteRequest struct {
	Invited bool `json:"invited"`
}

// Invite marks a registration as invited (or withdraws the invite).
func (h *AdminHandler) Invite(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	userID, courseID, err := pathIDs(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	var req InviteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.enrollments.Invite(c.Context(), ident, userID, courseID, req.Invited); err != nil {
		return handlers.ServiceError(c, err)
	}

	action := "registration_invite"
	if !req.Invited {
		action = "registration_uninvite"
	}
	h.record(c, ident, action, userID, courseID, "Toggled invitation")
	return response.SuccessWithMessage(c, "Invitation updated", nil)
}

// AssignSessionRequest carries the session to bind; null clears it.
type AssignSessionRequest struct {
	SessionID *uint `json:"session_id"`
}

// AssignSession binds a user's registration to a session. The binding
// overrides any selection the user made and locks further changes.
func (h *AdminHandler) AssignSession(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	userID, courseID, err := pathIDs(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	var req AssignSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.enrollments.AssignSession(c.Context(), ident, userID, courseID, req.SessionID); err != nil {
		return handlers.ServiceError(c, err)
	}

	description := "Cleared session assignment"
	if req.SessionID != nil {
		description = fmt.Sprintf("Assigned session %d", *req.SessionID)
	}
	h.record(c, ident, "registration_assign", userID, courseID, description)
	return response.SuccessWithMessage(c, "Assignment updated", nil)
}

// Complete marks a course as completed for a user, retiring the live
// registration.
func (h *AdminHandler) Complete(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	userID, courseID, err := pathIDs(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.completions.MarkCompleted(c.Context(), ident, userID, courseID); err != nil {
		return handlers.ServiceError(c, err)
	}

	h.record(c, ident, "completion_mark", userID, courseID, "Marked course completed")
	return response.SuccessWithMessage(c, "Course marked completed", nil)
}

// Uncomplete removes a completion record.
func (h *AdminHandler) Uncomplete(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	userID, courseID, err := pathIDs(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.completions.UnmarkCompleted(c.Context(), ident, userID, courseID); err != nil {
		return handlers.ServiceError(c, err)
	}

	h.record(c, ident, "completion_unmark", userID, courseID, "Removed completion")
	return response.NoContent(c)
}

// UserCompletions returns a user's completion history.
func (h *AdminHandler) UserCompletions(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	userID, err := c.ParamsInt("user_id")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user id")
	}

	list, err := h.completions.ListForUser(c.Context(), ident, uint(userID))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, list)
}

// AuditLog returns recent admin actions.
func (h *AdminHandler) AuditLog(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	entries, err := h.audit.List(c.Context(), ident, c.QueryInt("limit"))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, entries)
}
