package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"arcade/internal/server/core"
	"arcade/internal/server/processor"
	"arcade/internal/server/reaper"
	"arcade/internal/server/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
)

const rateLimitRate = 10 // req/sec

// Sweeper runs one reaper pass on demand
type Sweeper interface {
	Sweep(ctx context.Context) (*reaper.Result, error)
}

type Config struct {
	DevMode     bool
	AdminSecret string
	// inbound websocket messages per second and burst, per connection
	MessageRate  float64
	MessageBurst int
}

// HTTPHandler serves the REST surface and hands websocket frames to the processor
type HTTPHandler struct {
	proc    *processor.Processor
	svc     *service.Service
	sweeper Sweeper
	cfg     Config
	log     zerolog.Logger
}

func NewHTTPHandler(proc *processor.Processor, svc *service.Service, sweeper Sweeper, cfg Config, logger zerolog.Logger) *HTTPHandler {
	if cfg.MessageRate <= 0 {
		cfg.MessageRate = 20
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = 40
	}
	return &HTTPHandler{
		proc:    proc,
		svc:     svc,
		sweeper: sweeper,
		cfg:     cfg,
		log:     logger.With().Str("component", "http").Logger(),
	}
}

func NewFiberApp(proc *processor.Processor, svc *service.Service, sweeper Sweeper, cfg Config, log zerolog.Logger) *fiber.App {
	h := NewHTTPHandler(proc, svc, sweeper, cfg, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
		Next: func(c *fiber.Ctx) bool {
			return !cfg.DevMode && c.Path() == "/health"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	// Websocket upgrade, throttled per connection in serveWS
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.serveWS, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}))

	api := app.Group("/api/v1")

	maxReq := rateLimitRate
	if cfg.DevMode {
		maxReq = rateLimitRate * 2
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))
	api.Use(contentTypeValidator)

	api.Get("/rooms", h.ListRooms)
	api.Get("/rooms/:code", h.GetRoom)
	api.Get("/players/:sessionId/stats", h.PlayerStats)
	api.Get("/leaderboard", h.Leaderboard)

	var validateToken TokenValidator
	if cfg.AdminSecret != "" {
		validateToken = NewTokenValidator([]byte(cfg.AdminSecret))
	}
	api.Post("/admin/cleanup", AdminRequired(validateToken), h.Cleanup)

	return app
}

// contentTypeValidator ensures POST requests with a body carry application/json
func contentTypeValidator(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		contentType := c.Get("Content-Type")
		if !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(core.ErrorResponse{
				Error:   "unsupported media type",
				Code:    core.ErrInvalidContent,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrRoomNotFound
		case fiber.StatusBadRequest, fiber.StatusUpgradeRequired:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// statusFor maps a domain error kind to an HTTP status
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return fiber.StatusBadRequest
	case core.KindNotFound:
		return fiber.StatusNotFound
	case core.KindCapacity, core.KindStateConflict:
		return fiber.StatusConflict
	case core.KindAuthorization:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *HTTPHandler) fail(c *fiber.Ctx, err error) error {
	kind := core.KindOf(err)
	if kind == core.KindInternal {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(statusFor(kind)).JSON(core.ErrorResponse{
		Error: core.PublicMessage(err),
		Code:  kind.Code(),
	})
}

// Health check endpoint with storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"time":        time.Now().Unix(),
		"storage":     h.svc.GetStorageHealth(),
		"connections": h.svc.Registry().Count(),
	})
}

// ListRooms returns active rooms, optionally filtered by mode
func (h *HTTPHandler) ListRooms(c *fiber.Ctx) error {
	var q RoomsQuery
	if err := parseQuery(c, &q); err != nil {
		return h.fail(c, err)
	}

	rooms, err := h.svc.ListRooms(q.Mode)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"rooms": rooms, "count": len(rooms)})
}

// GetRoom returns one room with its recent game records
func (h *HTTPHandler) GetRoom(c *fiber.Ctx) error {
	code := core.NormalizeCode(c.Params("code"))
	if !isValidRoomCode(code) {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid room code format",
			Code:    core.ErrInvalidRequest,
			Details: fmt.Sprintf("room code must be %d alphanumeric characters", service.CodeLength),
		})
	}

	var q RoomQuery
	if err := parseQuery(c, &q); err != nil {
		return h.fail(c, err)
	}

	detail, err := h.svc.RoomDetail(code, q.Records)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(detail)
}

// PlayerStats aggregates the game records of a session
func (h *HTTPHandler) PlayerStats(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if err := core.Validate(core.JoinSessionRequest{SessionID: sessionID}); err != nil {
		return h.fail(c, err)
	}

	stats, err := h.svc.PlayerStats(sessionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(stats)
}

// Leaderboard ranks sessions by best score
func (h *HTTPHandler) Leaderboard(c *fiber.Ctx) error {
	var q LeaderboardQuery
	if err := parseQuery(c, &q); err != nil {
		return h.fail(c, err)
	}

	entries, err := h.svc.Leaderboard(q.Mode, q.Limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}

// Cleanup runs a reaper sweep immediately
func (h *HTTPHandler) Cleanup(c *fiber.Ctx) error {
	if h.sweeper == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(core.ErrorResponse{
			Error: "cleanup is not available",
			Code:  core.ErrInternalError,
		})
	}

	res, err := h.sweeper.Sweep(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}

	subject, _ := c.Locals("userID").(string)
	h.log.Info().Str("subject", subject).Int("removed", len(res.Removed)).Msg("manual cleanup")
	return c.JSON(res)
}
