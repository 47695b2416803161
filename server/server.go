// Package server exposes the event webhook and the statistics API over HTTP.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/execution"
	"github.com/NextMind-AI/repstats/records"
	"github.com/NextMind-AI/repstats/transport"
)

const requestTimeout = 30 * time.Second

// Registry is the representative unit registry.
type Registry interface {
	Dispatch(ev transport.Event) error
	Statuses(ctx context.Context) []execution.Status
	Representative(id string) (records.Representative, bool)
}

// StatsService reads summaries on demand.
type StatsService interface {
	ComputeWeekly(ctx context.Context, rep records.Representative, endDate string) (*records.WeeklySummary, error)
	ChannelBreakdown(ctx context.Context, date string) ([]records.ChannelStats, error)
}

// Recomputer writes daily rows under the periodic runner's overlap guard.
type Recomputer interface {
	RunOnce(ctx context.Context) bool
	ComputeDaily(ctx context.Context, rep records.Representative, date string) (records.DailyStats, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	app        *fiber.App
	registry   Registry
	stats      StatsService
	recomputer Recomputer
	store      Pinger
}

func New(registry Registry, stats StatsService, recomputer Recomputer, store Pinger) *Server {
	app := fiber.New()

	server := &Server{
		app:        app,
		registry:   registry,
		stats:      stats,
		recomputer: recomputer,
		store:      store,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving on port until Shutdown is called.
func (s *Server) Start(port string) error {
	log.Info().Str("port", port).Msg("Starting repstats server")

	return s.app.Listen(":"+port, fiber.ListenConfig{
		DisableStartupMessage: true,
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}
