package processor

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPendingLimit caps the number of unanswered counterparts tracked per representative.
const DefaultPendingLimit = 1000

type pendingReply struct {
	since time.Time
	seq   uint64
}

// PendingReplies tracks, per counterpart, the most recent inbound message still
// waiting for a reply. It belongs to a single representative unit and is not
// safe for concurrent mutation; Len may be read from any goroutine.
type PendingReplies struct {
	representativeID string
	limit            int
	entries          map[int64]pendingReply
	seq              uint64
	size             atomic.Int64
}

func NewPendingReplies(representativeID string, limit int) *PendingReplies {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	return &PendingReplies{
		representativeID: representativeID,
		limit:            limit,
		entries:          make(map[int64]pendingReply),
	}
}

// Start starts or restarts the timer for counterpartID at since.
func (p *PendingReplies) Start(counterpartID int64, since time.Time) {
	if _, exists := p.entries[counterpartID]; !exists && len(p.entries) >= p.limit {
		p.evictOldest()
	}
	p.seq++
	p.entries[counterpartID] = pendingReply{since: since, seq: p.seq}
	p.size.Store(int64(len(p.entries)))
}

// Take returns and clears the timer for counterpartID.
func (p *PendingReplies) Take(counterpartID int64) (time.Time, bool) {
	entry, ok := p.entries[counterpartID]
	if !ok {
		return time.Time{}, false
	}
	delete(p.entries, counterpartID)
	p.size.Store(int64(len(p.entries)))
	return entry.since, true
}

func (p *PendingReplies) Len() int {
	return int(p.size.Load())
}

func (p *PendingReplies) evictOldest() {
	var (
		oldestID  int64
		oldestSeq uint64
		found     bool
	)
	for id, entry := range p.entries {
		if !found || entry.seq < oldestSeq {
			oldestID, oldestSeq, found = id, entry.seq, true
		}
	}
	if !found {
		return
	}
	delete(p.entries, oldestID)

	log.Warn().
		Str("representative_id", p.representativeID).
		Int64("counterpart_id", oldestID).
		Int("limit", p.limit).
		Msg("Pending reply limit reached, dropping oldest latency measurement")
}
