// Package memstore is an in-process record store used for local runs and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NextMind-AI/repstats/records"
	"github.com/rs/zerolog/log"
)

type pairKey struct {
	rep string
	cp  int64
}

type dailyKey struct {
	rep  string
	date string
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu            sync.RWMutex
	conversations []records.ConversationRecord
	firstSeen     map[pairKey]records.FirstSeenEntry
	daily         map[dailyKey]records.DailyStats
}

func New() *Store {
	return &Store{
		firstSeen: make(map[pairKey]records.FirstSeenEntry),
		daily:     make(map[dailyKey]records.DailyStats),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) AppendConversation(ctx context.Context, rec records.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep insertion sorted by timestamp; equal timestamps stay in arrival order.
	i := sort.Search(len(s.conversations), func(i int) bool {
		return s.conversations[i].Timestamp.After(rec.Timestamp)
	})
	s.conversations = append(s.conversations, records.ConversationRecord{})
	copy(s.conversations[i+1:], s.conversations[i:])
	s.conversations[i] = rec

	log.Debug().
		Str("representative_id", rec.RepresentativeID).
		Int64("counterpart_id", rec.CounterpartID).
		Str("direction", string(rec.Direction)).
		Msg("memstore: conversation appended")
	return nil
}

func (s *Store) ConversationsBetween(ctx context.Context, representativeID string, from, to time.Time) ([]records.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []records.ConversationRecord
	for _, rec := range s.conversations {
		if rec.RepresentativeID == representativeID && inRange(rec.Timestamp, from, to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) AllConversationsBetween(ctx context.Context, from, to time.Time) ([]records.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []records.ConversationRecord
	for _, rec := range s.conversations {
		if inRange(rec.Timestamp, from, to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) LatestForPair(ctx context.Context, representativeID string, counterpartID int64, direction records.Direction) (*records.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.conversations) - 1; i >= 0; i-- {
		rec := s.conversations[i]
		if rec.RepresentativeID != representativeID || rec.CounterpartID != counterpartID {
			continue
		}
		if direction != "" && rec.Direction != direction {
			continue
		}
		return &rec, nil
	}
	return nil, nil
}

func (s *Store) FirstSeen(ctx context.Context, representativeID string, counterpartID int64) (*records.FirstSeenEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.firstSeen[pairKey{representativeID, counterpartID}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *Store) PutFirstSeen(ctx context.Context, entry records.FirstSeenEntry) (records.FirstSeenEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{entry.RepresentativeID, entry.CounterpartID}
	if existing, ok := s.firstSeen[key]; ok {
		return existing, nil
	}
	s.firstSeen[key] = entry
	return entry, nil
}

func (s *Store) UpsertDailyStats(ctx context.Context, stats records.DailyStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dailyKey{stats.RepresentativeID, stats.Date}
	if existing, ok := s.daily[key]; ok && !stats.Supersedes(existing) {
		log.Debug().
			Str("representative_id", stats.RepresentativeID).
			Str("date", stats.Date).
			Msg("memstore: stale daily stats ignored")
		return nil
	}
	s.daily[key] = stats
	return nil
}

func (s *Store) DailyStatsBetween(ctx context.Context, representativeID, fromDate, toDate string) ([]records.DailyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []records.DailyStats
	for key, row := range s.daily {
		if key.rep == representativeID && key.date >= fromDate && key.date <= toDate {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// FirstSeenCount returns the number of ledger entries.
func (s *Store) FirstSeenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.firstSeen)
}

// Conversations returns a copy of every stored record, oldest first.
func (s *Store) Conversations() []records.ConversationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]records.ConversationRecord(nil), s.conversations...)
}

func inRange(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}
