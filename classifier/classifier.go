// Package classifier decides whether a counterpart is a first-time or
// returning contact of a representative.
//
// A pair is anchored in the first-seen ledger to the local day it was first
// observed. The pair is "new" on that day only. Pairs missing from the ledger
// are bootstrapped from the remote chat history, so counterparts who talked to
// the representative before tracking started are anchored to their oldest
// known message instead of today.
package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
	"github.com/NextMind-AI/repstats/result"
	"github.com/NextMind-AI/repstats/transport"
)

// DefaultHistoryLimit bounds the remote history lookup.
const DefaultHistoryLimit = 100

// HistoryFetcher is the remote message-history query of the chat transport.
type HistoryFetcher interface {
	MessageHistory(ctx context.Context, representativeID string, counterpartID int64, limit int) ([]transport.HistoryMessage, error)
}

type Classifier struct {
	ledger       records.Ledger
	history      HistoryFetcher
	historyLimit int
	now          func() time.Time
}

type Option func(*Classifier)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// WithHistoryLimit sets how many remote messages are inspected.
func WithHistoryLimit(limit int) Option {
	return func(c *Classifier) {
		if limit > 0 {
			c.historyLimit = limit
		}
	}
}

func New(ledger records.Ledger, history HistoryFetcher, opts ...Option) *Classifier {
	c := &Classifier{
		ledger:       ledger,
		history:      history,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify reports whether counterpartID is a first contact of rep on the day
// of observedAt and records the pair's anchor date the first time the pair is
// seen. observedAt is the timestamp of the triggering message; zero means now.
// It never fails: remote and ledger errors degrade toward "new".
func (c *Classifier) Classify(ctx context.Context, rep records.Representative, counterpartID int64, observedAt time.Time) bool {
	if observedAt.IsZero() {
		observedAt = c.now()
	}
	loc := rep.Loc()
	today := records.DayOf(observedAt, loc)

	logFields := func(e *zerolog.Event) *zerolog.Event {
		return e.Str("representative_id", rep.ID).Int64("counterpart_id", counterpartID)
	}

	entry, err := c.ledger.FirstSeen(ctx, rep.ID, counterpartID)
	if err != nil {
		if errors.Is(err, records.ErrUnavailable) {
			logFields(log.Error().Err(err)).Msg("Ledger unreachable, classifying as new without persisting")
			return true
		}
		logFields(log.Warn().Err(err)).Msg("Ledger read failed, falling back to remote history")
		entry = nil
	}
	if entry != nil {
		return entry.FirstContactDate == today
	}

	anchor := c.anchorFromHistory(ctx, rep, counterpartID, observedAt)

	won := result.Of(c.ledger.PutFirstSeen(ctx, records.FirstSeenEntry{
		RepresentativeID: rep.ID,
		CounterpartID:    counterpartID,
		FirstContactDate: anchor,
	}))
	stored := won.OrLog(records.FirstSeenEntry{FirstContactDate: anchor}, "Ledger write failed", logFields)

	isNew := stored.FirstContactDate == today
	logFields(log.Info()).
		Str("anchor", stored.FirstContactDate).
		Bool("is_new", isNew).
		Msg("Counterpart ledgered")
	return isNew
}

// anchorFromHistory picks the local date of the oldest remote message sent
// before the day of observedAt, or that day when there is none or the history
// is unavailable. The triggering message is part of the history and falls on
// that day, so it never anchors the pair earlier.
func (c *Classifier) anchorFromHistory(ctx context.Context, rep records.Representative, counterpartID int64, observedAt time.Time) string {
	loc := rep.Loc()
	today := records.DayOf(observedAt, loc)
	dayStart := records.DayStart(observedAt, loc)

	history := result.Of(c.history.MessageHistory(ctx, rep.ID, counterpartID, c.historyLimit)).
		OrLog(nil, "Remote history unavailable, classifying as new", func(e *zerolog.Event) *zerolog.Event {
			return e.Str("representative_id", rep.ID).Int64("counterpart_id", counterpartID)
		})

	var oldest time.Time
	for _, msg := range history {
		if !msg.Timestamp.Before(dayStart) {
			continue
		}
		if oldest.IsZero() || msg.Timestamp.Before(oldest) {
			oldest = msg.Timestamp
		}
	}
	if oldest.IsZero() {
		return today
	}
	return records.DayOf(oldest, loc)
}
