// Package api exposes the engine over HTTP: a JSON control surface for job
// management plus a WebSocket stream of engine events.
package api

import (
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mangadl/manga-downloader/internal/connector"
	"github.com/mangadl/manga-downloader/internal/event"
	"github.com/mangadl/manga-downloader/internal/task"
)

// Server wires the orchestrator, registry, and event bus into a Fiber app
type Server struct {
	orch     task.Orchestrator
	registry *connector.Registry
	bus      *event.Bus
	app      *fiber.App
}

func NewServer(orch task.Orchestrator, registry *connector.Registry, bus *event.Bus) *Server {
	s := &Server{
		orch:     orch,
		registry: registry,
		bus:      bus,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/health", s.health)

	api := app.Group("/api")
	api.Post("/jobs", s.submitJob)
	api.Post("/jobs/batch", s.submitBatch)
	api.Get("/jobs", s.listJobs)
	api.Delete("/jobs", s.clearFinished)
	api.Post("/jobs/start-all", s.startAll)
	api.Get("/jobs/:id", s.getJob)
	api.Delete("/jobs/:id", s.removeJob)
	api.Post("/jobs/:id/start", s.startJob)
	api.Post("/jobs/:id/pause", s.pauseJob)
	api.Post("/jobs/:id/resume", s.resumeJob)
	api.Post("/jobs/:id/cancel", s.cancelJob)
	api.Put("/jobs/:id/selection", s.setSelection)
	api.Put("/jobs/:id/options", s.setOptions)
	api.Get("/jobs/:id/schema", s.optionsSchema)
	api.Get("/connectors", s.listConnectors)
	api.Put("/connectors/:id", s.setConnectorEnabled)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.streamEvents))

	s.app = app
	return s
}

// Listen serves on the given port until Shutdown
func (s *Server) Listen(port string) error {
	addr := ":" + port
	log.Printf("[api] listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "ok",
		"connectors": len(s.registry.All()),
	})
}

// streamEvents forwards bus events to one WebSocket client until it
// disconnects. A slow client loses events rather than stalling the engine.
func (s *Server) streamEvents(c *websocket.Conn) {
	events, cancel := s.bus.Subscribe(event.DefaultBuffer)
	defer cancel()
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(e); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
