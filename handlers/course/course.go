package course

import (
	"github.com/enrollhq/course-portal/handlers"
	"github.com/enrollhq/course-portal/model"
	"github.com/enrollhq/course-portal/services"
	"github.com/enrollhq/course-portal/utils/response"
	"github.com/enrollhq/course-portal/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// CourseHandler serves the course catalog and its admin management
// endpoints.
type CourseHandler struct {
	courses   *services.CourseService
	capacity  *services.CapacityService
	validator *validation.Validator
}

func NewCourseHandler(courses *services.CourseService, capacity *services.CapacityService) *CourseHandler {
	return &CourseHandler{
		courses:   courses,
		capacity:  capacity,
		validator: validation.NewValidator(),
	}
}

// List returns the public catalog of active courses.
func (h *CourseHandler) List(c *fiber.Ctx) error {
	courses, err := h.courses.List(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load courses")
	}
	return response.Success(c, courses)
}

// Get returns one course with all of its sessions.
func (h *CourseHandler) Get(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}

	course, err := h.courses.Get(c.Context(), uint(courseID))
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, course)
}

// SessionAvailability reports live enrollment numbers for a session.
type SessionAvailability struct {
	SessionID uint                `json:"session_id"`
	Status    model.SessionStatus `json:"status"`
	Capacity  int                 `json:"capacity"`
	Enrolled  int                 `json:"enrolled"`
	Available bool                `json:"available"`
}

// Availability returns the current headcount for a session.
func (h *CourseHandler) Availability(c *fiber.Ctx) error {
	sessionID, err := c.ParamsInt("id")
	if err != nil || sessionID <= 0 {
		return response.BadRequest(c, "Invalid session id")
	}

	session, enrolled, err := h.capacity.Snapshot(c.Context(), uint(sessionID))
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	return response.Success(c, SessionAvailability{
		SessionID: session.ID,
		Status:    session.Status,
		Capacity:  session.MaxCapacity,
		Enrolled:  enrolled,
		Available: session.IsActive() && enrolled < session.MaxCapacity,
	})
}

// Create adds a new course to the catalog. Admin only.
func (h *CourseHandler) Create(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var input services.CourseInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&input); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.courses.Create(c.Context(), ident, input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, course)
}

// Update edits a course. Admin only.
func (h *CourseHandler) Update(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}

	var input services.CourseInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&input); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.courses.Update(c.Context(), ident, uint(courseID), input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, course)
}

// CreateSession schedules a new session for a course. Admin only.
func (h *CourseHandler) CreateSession(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course id")
	}

	var input services.SessionInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&input); err != nil {
		return response.ValidationError(c, err)
	}

	session, err := h.courses.CreateSession(c.Context(), ident, uint(courseID), input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, session)
}

// UpdateSession edits a scheduled session. Admin only.
func (h *CourseHandler) UpdateSession(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	sessionID, err := c.ParamsInt("id")
	if err != nil || sessionID <= 0 {
		return response.BadRequest(c, "Invalid session id")
	}

	var input services.SessionInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&input); err != nil {
		return response.ValidationError(c, err)
	}

	session, err := h.courses.UpdateSession(c.Context(), ident, uint(sessionID), input)
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, session)
}

// ArchiveSession retires a session. Admin only.
func (h *CourseHandler) ArchiveSession(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	sessionID, err := c.ParamsInt("id")
	if err != nil || sessionID <= 0 {
		return response.BadRequest(c, "Invalid session id")
	}

	if err := h.courses.ArchiveSession(c.Context(), ident, uint(sessionID)); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Session archived", nil)
}
