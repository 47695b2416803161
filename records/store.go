// Package records holds the conversation, ledger and statistics types and the
// record store contract shared by every backend.
package records

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks a backend failure where the store could not be reached at all.
var ErrUnavailable = errors.New("record store unavailable")

// ConversationStore persists append-only conversation records.
type ConversationStore interface {
	AppendConversation(ctx context.Context, rec ConversationRecord) error
	// ConversationsBetween returns a representative's records in [from, to), oldest first.
	ConversationsBetween(ctx context.Context, representativeID string, from, to time.Time) ([]ConversationRecord, error)
	// AllConversationsBetween returns records of every representative in [from, to), oldest first.
	AllConversationsBetween(ctx context.Context, from, to time.Time) ([]ConversationRecord, error)
	// LatestForPair returns the most recent record for the pair. An empty direction matches both.
	LatestForPair(ctx context.Context, representativeID string, counterpartID int64, direction Direction) (*ConversationRecord, error)
}

// Ledger is the first-seen ledger.
type Ledger interface {
	// FirstSeen returns nil when the pair has never been ledgered.
	FirstSeen(ctx context.Context, representativeID string, counterpartID int64) (*FirstSeenEntry, error)
	// PutFirstSeen writes entry unless one already exists and returns the entry that won.
	PutFirstSeen(ctx context.Context, entry FirstSeenEntry) (FirstSeenEntry, error)
}

// StatsStore keeps one DailyStats row per (representative, date).
type StatsStore interface {
	// UpsertDailyStats replaces the row unless the stored row was computed later than stats.
	UpsertDailyStats(ctx context.Context, stats DailyStats) error
	// DailyStatsBetween returns rows with fromDate <= date <= toDate ordered by date.
	DailyStatsBetween(ctx context.Context, representativeID, fromDate, toDate string) ([]DailyStats, error)
}

// Store is the full record store facade.
type Store interface {
	ConversationStore
	Ledger
	StatsStore
	Ping(ctx context.Context) error
}
