package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())

	s.app.Use(logger.New())

	// Dashboards read the stats API from the browser.
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}))

	s.app.Use("/stats/*", func(c fiber.Ctx) error {
		c.Set("Content-Type", "application/json")
		return c.Next()
	})
}
