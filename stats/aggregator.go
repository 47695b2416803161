// Package stats rolls conversation records up into daily and weekly
// summaries and per-channel first-contact counts.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
)

// Store is the part of the record store the aggregator reads and writes.
type Store interface {
	ConversationsBetween(ctx context.Context, representativeID string, from, to time.Time) ([]records.ConversationRecord, error)
	AllConversationsBetween(ctx context.Context, from, to time.Time) ([]records.ConversationRecord, error)
	UpsertDailyStats(ctx context.Context, stats records.DailyStats) error
	DailyStatsBetween(ctx context.Context, representativeID, fromDate, toDate string) ([]records.DailyStats, error)
}

// WeekDays is the length of the trailing weekly window, end date included.
const WeekDays = 7

type Aggregator struct {
	store      Store
	defaultLoc *time.Location
	now        func() time.Time
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator returns an aggregator whose channel breakdown uses defaultLoc
// for day boundaries.
func NewAggregator(store Store, defaultLoc *time.Location, opts ...Option) *Aggregator {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	a := &Aggregator{store: store, defaultLoc: defaultLoc, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ComputeDaily recomputes and upserts the representative's row for date.
// An empty date means today in the representative's zone.
func (a *Aggregator) ComputeDaily(ctx context.Context, rep records.Representative, date string) (records.DailyStats, error) {
	loc := rep.Loc()
	if date == "" {
		date = records.DayOf(a.now(), loc)
	}
	from, to, err := records.DayBounds(date, loc)
	if err != nil {
		return records.DailyStats{}, err
	}

	convs, err := a.store.ConversationsBetween(ctx, rep.ID, from, to)
	if err != nil {
		return records.DailyStats{}, fmt.Errorf("stats: load conversations of %s on %s: %w", rep.ID, date, err)
	}

	stats := summarizeDay(rep.ID, date, convs)
	stats.ComputedAt = a.now().UTC()

	if err := a.store.UpsertDailyStats(ctx, stats); err != nil {
		return stats, fmt.Errorf("stats: upsert daily stats of %s on %s: %w", rep.ID, date, err)
	}

	log.Info().
		Str("representative_id", rep.ID).
		Str("date", date).
		Int("new", stats.NewCounterparts).
		Int("returning", stats.ReturningCounterparts).
		Int("sent", stats.MessagesSent).
		Int("received", stats.MessagesReceived).
		Msg("Daily stats computed")
	return stats, nil
}

func summarizeDay(repID, date string, convs []records.ConversationRecord) records.DailyStats {
	stats := records.DailyStats{RepresentativeID: repID, Date: date}

	seen := make(map[int64]bool) // counterpart -> flagged new in some record
	conflicting := make(map[int64]bool)
	var latencies []float64

	for _, c := range convs {
		if flagged, ok := seen[c.CounterpartID]; ok && flagged != c.IsFirstContact {
			conflicting[c.CounterpartID] = true
		}
		seen[c.CounterpartID] = seen[c.CounterpartID] || c.IsFirstContact

		switch c.Direction {
		case records.Inbound:
			stats.MessagesReceived++
		case records.Outbound:
			stats.MessagesSent++
			if c.ResponseLatencyMinutes != nil {
				latencies = append(latencies, *c.ResponseLatencyMinutes)
			}
		}
	}

	for _, isNew := range seen {
		if isNew {
			stats.NewCounterparts++
		} else {
			stats.ReturningCounterparts++
		}
	}
	stats.TotalConversations = len(seen)
	stats.AvgResponseLatencyMinutes = mean(latencies)

	if len(conflicting) > 0 {
		log.Debug().
			Str("representative_id", repID).
			Str("date", date).
			Int("counterparts", len(conflicting)).
			Msg("Conflicting first-contact flags resolved as new")
	}
	return stats
}

// ComputeWeekly sums the daily rows of the seven days ending at endDate. It
// returns nil when no row exists in the window.
func (a *Aggregator) ComputeWeekly(ctx context.Context, rep records.Representative, endDate string) (*records.WeeklySummary, error) {
	if endDate == "" {
		endDate = records.DayOf(a.now(), rep.Loc())
	}
	startDate, err := records.AddDays(endDate, -(WeekDays - 1))
	if err != nil {
		return nil, err
	}

	rows, err := a.store.DailyStatsBetween(ctx, rep.ID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("stats: load daily stats of %s: %w", rep.ID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	summary := &records.WeeklySummary{
		RepresentativeID: rep.ID,
		Period:           startDate + " - " + endDate,
		StartDate:        startDate,
		EndDate:          endDate,
		DaysActive:       len(rows),
	}
	var avgs []float64
	for _, row := range rows {
		summary.NewCounterparts += row.NewCounterparts
		summary.ReturningCounterparts += row.ReturningCounterparts
		summary.MessagesSent += row.MessagesSent
		summary.MessagesReceived += row.MessagesReceived
		if row.AvgResponseLatencyMinutes != nil {
			avgs = append(avgs, *row.AvgResponseLatencyMinutes)
		}
	}
	summary.AvgResponseLatencyMinutes = mean(avgs)
	return summary, nil
}

// ChannelBreakdown counts inbound first-contact records per channel on date in
// the default zone, busiest channel first. Replies inherit the first-contact
// label and are not counted. An empty date means today.
func (a *Aggregator) ChannelBreakdown(ctx context.Context, date string) ([]records.ChannelStats, error) {
	if date == "" {
		date = records.DayOf(a.now(), a.defaultLoc)
	}
	from, to, err := records.DayBounds(date, a.defaultLoc)
	if err != nil {
		return nil, err
	}

	convs, err := a.store.AllConversationsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("stats: load conversations on %s: %w", date, err)
	}

	var out []records.ChannelStats
	index := make(map[string]int)
	managers := make(map[string]map[string]struct{})
	for _, c := range convs {
		if !c.IsFirstContact || c.Direction != records.Inbound {
			continue
		}
		channel := c.Channel()
		i, ok := index[channel]
		if !ok {
			i = len(out)
			index[channel] = i
			out = append(out, records.ChannelStats{Channel: channel})
			managers[channel] = make(map[string]struct{})
		}
		out[i].NewCounterparts++
		managers[channel][c.RepresentativeID] = struct{}{}
	}
	for i := range out {
		out[i].ManagersCount = len(managers[out[i].Channel])
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].NewCounterparts > out[j].NewCounterparts })
	return out, nil
}

// mean returns the average rounded to one decimal, or nil for no values.
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := math.Round(sum/float64(len(values))*10) / 10
	return &avg
}
