package processor

import (
	"context"
	"time"

	"github.com/NextMind-AI/repstats/records"
)

// Classifier labels a counterpart as a first contact of the representative on
// the day the message was sent.
type Classifier interface {
	Classify(ctx context.Context, rep records.Representative, counterpartID int64, observedAt time.Time) bool
}

// ConversationStore is the part of the record store the recorder touches.
type ConversationStore interface {
	AppendConversation(ctx context.Context, rec records.ConversationRecord) error
	LatestForPair(ctx context.Context, representativeID string, counterpartID int64, direction records.Direction) (*records.ConversationRecord, error)
}
