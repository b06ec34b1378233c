package admin

import (
	"github.com/enrollhq/course-portal/handlers"
	"github.com/enrollhq/course-portal/utils/response"
	"github.com/gofiber/fiber/v2"
)

// Changes returns change events recorded after the given cursor.
// Admin consoles poll this to refresh their cached views; the cursor is
// the numeric id of the last event they saw.
func (h *AdminHandler) Changes(c *fiber.Ctx) error {
	ident, ok := handlers.Identity(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}
	if !ident.IsAdmin {
		return response.Forbidden(c, "Admin access required")
	}

	since := c.QueryInt("since")
	if since < 0 {
		return response.BadRequest(c, "since must be non-negative")
	}
	limit := c.QueryInt("limit")

	events, err := h.feed.ListSince(c.Context(), uint(since), limit)
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	cursor := uint(since)
	if len(events) > 0 {
		cursor = events[len(events)-1].ID
	}

	return response.Success(c, fiber.Map{
		"events": events,
		"cursor": cursor,
	})
}
