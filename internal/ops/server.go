// Package ops serves the operational HTTP surface of satorid: liveness
// and readiness probes, a JSON status report, and Prometheus metrics.
package ops

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nightcrane/satori-go/pkg/satori"
)

// Server is the ops API Fiber application.
type Server struct {
	app    *fiber.App
	client *satori.Client
	logger zerolog.Logger
	addr   string
}

// NewServer creates and configures the ops server for the given client.
func NewServer(addr string, client *satori.Client, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		client: client,
		logger: logger.With().Str("component", "ops_server").Logger(),
		addr:   addr,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	// Request logging, skipping noisy probe paths
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		s.logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Msg("ops api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.liveness)
	s.app.Get("/readyz", s.readiness)
	s.app.Get("/status", s.status)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.client.Metrics().Handler()))
}

func (s *Server) liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) readiness(c *fiber.Ctx) error {
	if !s.client.Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"endpoints": s.client.Status()})
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("ops server starting")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("ops server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Msg("unhandled error")

		return c.Status(code).JSON(fiber.Map{
			"error":  err.Error(),
			"status": code,
		})
	}
}
