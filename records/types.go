package records

import (
	"time"
)

// Direction tells whether a message was received or sent by the representative.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// UnknownChannel is the attribution tag used when no channel source can be determined.
const UnknownChannel = "unknown"

// ExcerptLimit bounds the number of characters kept from a message body.
const ExcerptLimit = 200

// Representative is an operator account whose one-to-one traffic is tracked.
type Representative struct {
	ID       string
	Name     string
	Location *time.Location
}

// Loc returns the representative's time zone, defaulting to UTC.
func (r Representative) Loc() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// ConversationRecord is one message event. Records are append-only.
type ConversationRecord struct {
	ID                     string    `json:"id"`
	RepresentativeID       string    `json:"representative_id"`
	RepresentativeName     string    `json:"representative_name,omitempty"`
	CounterpartID          int64     `json:"counterpart_id"`
	Timestamp              time.Time `json:"timestamp"`
	Direction              Direction `json:"direction"`
	IsFirstContact         bool      `json:"is_first_contact"`
	ChannelSource          *string   `json:"channel_source,omitempty"`
	ResponseLatencyMinutes *float64  `json:"response_latency_minutes,omitempty"`
	MessageExcerpt         *string   `json:"message_excerpt,omitempty"`
}

// Channel returns the channel source or UnknownChannel when none is set.
func (r ConversationRecord) Channel() string {
	if r.ChannelSource == nil || *r.ChannelSource == "" {
		return UnknownChannel
	}
	return *r.ChannelSource
}

// FirstSeenEntry anchors a (representative, counterpart) pair to the day it was first seen.
type FirstSeenEntry struct {
	RepresentativeID string `json:"representative_id"`
	CounterpartID    int64  `json:"counterpart_id"`
	FirstContactDate string `json:"first_contact_date"`
}

// DailyStats is the per-representative summary of one local day.
type DailyStats struct {
	RepresentativeID          string    `json:"representative_id"`
	Date                      string    `json:"date"`
	NewCounterparts           int       `json:"new_counterparts"`
	ReturningCounterparts     int       `json:"returning_counterparts"`
	TotalConversations        int       `json:"total_conversations"`
	MessagesSent              int       `json:"messages_sent"`
	MessagesReceived          int       `json:"messages_received"`
	AvgResponseLatencyMinutes *float64  `json:"avg_response_latency_minutes"`
	ComputedAt                time.Time `json:"computed_at"`
}

// WeeklySummary rolls up the daily rows of a trailing seven day window.
type WeeklySummary struct {
	RepresentativeID          string   `json:"representative_id"`
	Period                    string   `json:"period"`
	StartDate                 string   `json:"start_date"`
	EndDate                   string   `json:"end_date"`
	NewCounterparts           int      `json:"total_new_counterparts"`
	ReturningCounterparts     int      `json:"total_returning_counterparts"`
	MessagesSent              int      `json:"total_messages_sent"`
	MessagesReceived          int      `json:"total_messages_received"`
	AvgResponseLatencyMinutes *float64 `json:"avg_response_latency_minutes"`
	DaysActive                int      `json:"days_active"`
}

// ChannelStats counts first contacts attributed to one channel on one day.
type ChannelStats struct {
	Channel         string `json:"channel"`
	NewCounterparts int    `json:"new_counterparts"`
	ManagersCount   int    `json:"managers_count"`
}

// Supersedes reports whether s may replace existing under the conditional upsert rule.
func (s DailyStats) Supersedes(existing DailyStats) bool {
	return !s.ComputedAt.Before(existing.ComputedAt)
}
