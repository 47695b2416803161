package server

func (s *Server) setupRoutes() {
	s.app.Post("/webhooks/events", s.eventWebhookHandler)

	s.app.Get("/health", s.healthCheckHandler)
	s.app.Get("/status", s.statusHandler)
	s.app.Get("/roster/schema", s.rosterSchemaHandler)

	s.app.Get("/stats/daily/:representativeId", s.dailyStatsHandler)
	s.app.Get("/stats/weekly/:representativeId", s.weeklyStatsHandler)
	s.app.Get("/stats/channels", s.channelStatsHandler)
	s.app.Post("/stats/recompute", s.recomputeHandler)
}
