package registration

import (
	"github.com/enrollhq/course-portal/handlers"
	"github.com/enrollhq/course-portal/services"
	"github.com/enrollhq/course-portal/utils/response"
	"github.com/gofiber/fiber/v2"
)

// RegistrationHandler serves the authenticated user's own registration
// list and its mutations.
type RegistrationHandler struct {
	registrations *services.RegistrationService
	enrollments   *services.EnrollmentService
	completions   *services.CompletionService
}

func NewRegistrationHandler(registrations *services.RegistrationService, enrollments *services.EnrollmentService, completions *services.CompletionService) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		enrollments:   enrollments,
		completions:   completions,
	}
}

// List returns the caller's registrations ordered by priority.
func (h *RegistrationHandler) List(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	regs, err := h.registrations.List(c.Context(), ident)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, fiber.Map{
		"registrations": regs,
		"max_active":    h.registrations.MaxActive(),
	})
}

// CreateRequest names the course being registered for.
type CreateRequest struct {
	CourseID uint `json:"course_id" validate:"required"`
}

// Create appends a registration at the caller's lowest priority.
// Registering twice for the same course returns the existing row with
// 200 instead of 201.
func (h *RegistrationHandler) Create(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.CourseID == 0 {
		return response.BadRequest(c, "course_id is required")
	}

	reg, created, err := h.registrations.Create(c.Context(), ident, req.CourseID)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	if !created {
		return response.Success(c, reg)
	}
	return response.Created(c, reg)
}

// Delete withdraws the caller's registration for a course.
func (h *RegistrationHandler) Delete(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("course_id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}

	if err := h.registrations.Remove(c.Context(), ident, uint(courseID)); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.NoContent(c)
}

// ReorderRequest carries the target priority slot.
type ReorderRequest struct {
	Priority int `json:"priority" validate:"required,min=1"`
}

// Reorder moves one registration to a new priority slot; the others
// shift to keep the sequence dense.
func (h *RegistrationHandler) Reorder(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("course_id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}

	var req ReorderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.registrations.Reorder(c.Context(), ident, uint(courseID), req.Priority); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Priority updated", nil)
}

// SelectSessionRequest carries the chosen session; null clears the
// current choice.
type SelectSessionRequest struct {
	SessionID *uint `json:"session_id"`
}

// SelectSession sets or clears the caller's session choice for a
// course.
func (h *RegistrationHandler) SelectSession(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("course_id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}

	var req SelectSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.enrollments.SelectSession(c.Context(), ident, uint(courseID), req.SessionID); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Session selection updated", nil)
}

// Completions returns the caller's completed courses.
func (h *RegistrationHandler) Completions(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	list, err := h.completions.ListForUser(c.Context(), ident, ident.UserID)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, list)
}
