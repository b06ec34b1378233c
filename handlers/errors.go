package handlers

import (
	"errors"

	"github.com/enrollhq/course-portal/services"
	"github.com/enrollhq/course-portal/utils/response"
	"github.com/gofiber/fiber/v2"
)

// ServiceError translates a service-layer error into the API envelope.
// Every handler funnels non-validation errors through here so each
// failure mode keeps a single status code and machine-readable code.
func ServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		return response.Unauthorized(c, "Authentication required")
	case errors.Is(err, services.ErrNotAuthorized):
		return response.Forbidden(c, "Admin access required")
	case errors.Is(err, services.ErrNotPermitted):
		return response.Error(c, fiber.StatusForbidden, "This registration is locked by an admin assignment", "NOT_PERMITTED")
	case errors.Is(err, services.ErrProfileIncomplete):
		return response.UnprocessableEntity(c, "Complete your profile before registering", "PROFILE_INCOMPLETE")
	case errors.Is(err, services.ErrAlreadyCompleted):
		return response.Conflict(c, "Course already completed", "ALREADY_COMPLETED")
	case errors.Is(err, services.ErrMaxRegistrationsExceeded):
		return response.Conflict(c, "Maximum number of active registrations reached", "MAX_REGISTRATIONS_EXCEEDED")
	case errors.Is(err, services.ErrSessionFull):
		return response.Conflict(c, "Session is already at capacity", "SESSION_FULL")
	case errors.Is(err, services.ErrSessionNotAvailable):
		return response.Conflict(c, "Session is not available for this course", "SESSION_NOT_AVAILABLE")
	case errors.Is(err, services.ErrInvalidPriority):
		return response.BadRequest(c, "Priority is out of range")
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, "Resource not found")
	default:
		return response.InternalServerError(c, "Something went wrong")
	}
}

// Identity builds the caller identity from the authenticated user
// stored by the auth middleware.
func Identity(c *fiber.Ctx) (services.Identity, bool) {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return services.Identity{}, false
	}
	role, _ := c.Locals("user_role").(string)
	return services.Identity{UserID: userID, IsAdmin: role == "admin"}, true
}
