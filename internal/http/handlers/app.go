package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	applog "posbackend/internal/log"
)

const bodyLimit = 1 << 20 // 1 MiB

type AppOptions struct {
	Views        fiber.Views
	Origins      []string
	RateLimitMax int
	// LimiterStorage shares rate-limit counters across instances; nil keeps them in memory.
	LimiterStorage fiber.Storage
	AccessLog      bool
}

// NewApp builds the fiber app with the middleware chain and every route registered.
func NewApp(opts AppOptions, d *Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Views:        opts.Views,
		BodyLimit:    bodyLimit,
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{Output: log.Writer()}))
	}
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(opts.Origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,X-Request-ID",
	}))

	rate := opts.RateLimitMax
	if rate <= 0 {
		rate = 120
	}
	app.Use(limiter.New(limiter.Config{
		Max:        rate,
		Expiration: time.Minute,
		Storage:    opts.LimiterStorage,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/healthz"
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Status(fiber.StatusTooManyRequests)
			applog.Warn(c, "rate.limit.hit", nil)
			return c.JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))

	Register(app, d)
	return app
}

// ErrorHandler answers unhandled errors as JSON. 5xx bodies never carry the error text.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			msg = fe.Message
		}
	}
	c.Status(code)
	if code >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
	}
	return c.JSON(fiber.Map{"error": msg})
}
