package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
)

// dailyStatsHandler handles GET /stats/daily/:representativeId?date=YYYY-MM-DD.
// The row is recomputed and stored, queued behind any running stats update.
func (s *Server) dailyStatsHandler(c fiber.Ctx) error {
	rep, ok := s.lookupRepresentative(c)
	if !ok {
		return nil
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	stats, err := s.recomputer.ComputeDaily(ctx, rep, date)
	if errors.Is(err, context.DeadlineExceeded) {
		return errorJSON(c, fiber.StatusServiceUnavailable, "STATS_BUSY", "Timed out waiting for the running stats update")
	}
	if err != nil {
		log.Error().Err(err).Str("representative_id", rep.ID).Msg("Error computing daily stats")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute daily stats")
	}
	return c.JSON(stats)
}

// weeklyStatsHandler handles GET /stats/weekly/:representativeId?end=YYYY-MM-DD
func (s *Server) weeklyStatsHandler(c fiber.Ctx) error {
	rep, ok := s.lookupRepresentative(c)
	if !ok {
		return nil
	}
	endDate, ok := dateQuery(c, "end")
	if !ok {
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	summary, err := s.stats.ComputeWeekly(ctx, rep, endDate)
	if err != nil {
		log.Error().Err(err).Str("representative_id", rep.ID).Msg("Error computing weekly stats")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute weekly stats")
	}
	if summary == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(summary)
}

// channelStatsHandler handles GET /stats/channels?date=YYYY-MM-DD
func (s *Server) channelStatsHandler(c fiber.Ctx) error {
	date, ok := dateQuery(c, "date")
	if !ok {
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	channels, err := s.stats.ChannelBreakdown(ctx, date)
	if err != nil {
		log.Error().Err(err).Msg("Error computing channel breakdown")
		return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute channel breakdown")
	}
	if channels == nil {
		channels = []records.ChannelStats{}
	}
	return c.JSON(channels)
}

// recomputeHandler handles POST /stats/recompute
func (s *Server) recomputeHandler(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	if !s.recomputer.RunOnce(ctx) {
		return c.Status(fiber.StatusConflict).JSON(RecomputeResponse{Started: false})
	}
	return c.JSON(RecomputeResponse{Started: true})
}

func (s *Server) lookupRepresentative(c fiber.Ctx) (records.Representative, bool) {
	id := c.Params("representativeId")
	rep, ok := s.registry.Representative(id)
	if !ok {
		_ = errorJSON(c, fiber.StatusNotFound, "UNKNOWN_REPRESENTATIVE", "unknown representative "+id)
		return records.Representative{}, false
	}
	return rep, true
}

// dateQuery reads an optional YYYY-MM-DD query parameter.
func dateQuery(c fiber.Ctx, key string) (string, bool) {
	date := c.Query(key)
	if date == "" {
		return "", true
	}
	if _, err := time.Parse(records.DateLayout, date); err != nil {
		_ = errorJSON(c, fiber.StatusBadRequest, "INVALID_PARAMETER", key+" must be formatted YYYY-MM-DD")
		return "", false
	}
	return date, true
}
