package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/execution"
	"github.com/NextMind-AI/repstats/roster"
	"github.com/NextMind-AI/repstats/transport"
)

func (s *Server) eventWebhookHandler(c fiber.Ctx) error {
	var ev transport.Event
	if err := c.Bind().JSON(&ev); err != nil {
		log.Error().Err(err).Msg("Error parsing JSON")
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_BODY", "Error parsing JSON")
	}
	if ev.RepresentativeID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_PARAMETER", "representative_id is required")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	log.Debug().
		Str("representative_id", ev.RepresentativeID).
		Int64("sender_id", ev.SenderID).
		Int64("chat_id", ev.ChatID).
		Bool("outgoing", ev.Outgoing).
		Msg("Received message event")

	if err := s.registry.Dispatch(ev); err != nil {
		switch {
		case errors.Is(err, execution.ErrUnknownRepresentative):
			return errorJSON(c, fiber.StatusNotFound, "UNKNOWN_REPRESENTATIVE", err.Error())
		case errors.Is(err, execution.ErrUnitOffline):
			return errorJSON(c, fiber.StatusConflict, "REPRESENTATIVE_OFFLINE", err.Error())
		case errors.Is(err, execution.ErrQueueFull):
			return errorJSON(c, fiber.StatusServiceUnavailable, "QUEUE_FULL", err.Error())
		default:
			log.Error().Err(err).Msg("Error dispatching message event")
			return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to dispatch event")
		}
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) healthCheckHandler(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{Status: "degraded", Store: err.Error()})
	}
	return c.JSON(HealthResponse{Status: "ok", Store: "ok"})
}

func (s *Server) statusHandler(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	statuses := s.registry.Statuses(ctx)
	online := 0
	for _, st := range statuses {
		if st.State == execution.StateOnline {
			online++
		}
	}
	return c.JSON(StatusResponse{
		Representatives: statuses,
		Online:          online,
		GeneratedAt:     time.Now().UTC(),
	})
}

func (s *Server) rosterSchemaHandler(c fiber.Ctx) error {
	return c.JSON(roster.Schema())
}

func errorJSON(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
