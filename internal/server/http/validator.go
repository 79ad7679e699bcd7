package http

import (
	"arcade/internal/server/core"
	"arcade/internal/server/service"

	"github.com/gofiber/fiber/v2"
)

// RoomsQuery filters GET /rooms
type RoomsQuery struct {
	Mode core.Mode `query:"mode" validate:"omitempty,oneof=shared competitive"`
}

// RoomQuery shapes GET /rooms/:code
type RoomQuery struct {
	Records int `query:"records" validate:"min=0"`
}

// LeaderboardQuery shapes GET /leaderboard. A limit above the maximum is clamped.
type LeaderboardQuery struct {
	Mode  core.Mode `query:"mode" validate:"omitempty,oneof=shared competitive"`
	Limit int       `query:"limit" validate:"min=0"`
}

// parseQuery binds and validates query parameters into dst
func parseQuery(c *fiber.Ctx, dst any) error {
	if err := c.QueryParser(dst); err != nil {
		return core.Validation("invalid query parameters")
	}
	return core.Validate(dst)
}

func isValidRoomCode(code string) bool {
	if len(code) != service.CodeLength {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
