package auth

import (
	"time"

	"github.com/enrollhq/course-portal/utils/middleware"
	"github.com/enrollhq/course-portal/utils/response"
	"github.com/enrollhq/course-portal/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// GetProfile returns the authenticated user's profile.
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}
	return response.Success(c, newUserResponse(user))
}

// UpdateProfileRequest carries the contact details the registration
// flow requires before a user may sign up for courses.
type UpdateProfileRequest struct {
	FirstName   string `json:"first_name" validate:"required,min=1,max=100"`
	LastName    string `json:"last_name" validate:"required,min=1,max=100"`
	Phone       string `json:"phone" validate:"required,min=6,max=30"`
	Address     string `json:"address" validate:"required,max=500"`
	Eircode     string `json:"eircode" validate:"required,max=10"`
	DateOfBirth string `json:"date_of_birth" validate:"required"` // YYYY-MM-DD
}

// UpdateProfile fills in or edits the user's contact details.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return response.BadRequest(c, "date_of_birth must be YYYY-MM-DD")
	}
	if dob.After(time.Now()) {
		return response.BadRequest(c, "date_of_birth must be in the past")
	}

	user.FirstName = validation.SanitizeString(req.FirstName)
	user.LastName = validation.SanitizeString(req.LastName)
	user.Phone = validation.SanitizeString(req.Phone)
	user.Address = validation.SanitizeString(req.Address)
	user.Eircode = validation.SanitizeString(req.Eircode)
	user.DateOfBirth = &dob

	if err := h.db.Save(user).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	return response.Success(c, newUserResponse(user))
}
