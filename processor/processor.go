// Package processor turns live message events of one representative into
// conversation records.
package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
	"github.com/NextMind-AI/repstats/result"
	"github.com/NextMind-AI/repstats/transport"
)

// Recorder handles the events of a single representative. Its methods must be
// called from one goroutine at a time.
type Recorder struct {
	rep        records.Representative
	store      ConversationStore
	classifier Classifier
	pending    *PendingReplies
	newID      func() string
}

func NewRecorder(rep records.Representative, store ConversationStore, classifier Classifier, pendingLimit int) *Recorder {
	return &Recorder{
		rep:        rep,
		store:      store,
		classifier: classifier,
		pending:    NewPendingReplies(rep.ID, pendingLimit),
		newID:      uuid.NewString,
	}
}

// PendingCount is the number of counterparts waiting for a reply.
func (r *Recorder) PendingCount() int {
	return r.pending.Len()
}

// OnInbound records a message sent by a counterpart to the representative.
func (r *Recorder) OnInbound(ctx context.Context, ev transport.Event) {
	if !ev.OneToOne() {
		return
	}

	counterpartID := ev.SenderID
	if counterpartID == 0 {
		counterpartID = ev.ChatID
	}
	if counterpartID == 0 {
		log.Warn().Str("representative_id", r.rep.ID).Msg("Inbound event without sender or chat id, skipping")
		return
	}
	ts := eventTime(ev)

	isNew := r.classifier.Classify(ctx, r.rep, counterpartID, ts)
	channel := r.channelSource(ctx, counterpartID, ev.Text)
	r.pending.Start(counterpartID, ts)

	r.persist(ctx, records.ConversationRecord{
		ID:                 r.newID(),
		RepresentativeID:   r.rep.ID,
		RepresentativeName: r.rep.Name,
		CounterpartID:      counterpartID,
		Timestamp:          ts,
		Direction:          records.Inbound,
		IsFirstContact:     isNew,
		ChannelSource:      &channel,
		MessageExcerpt:     excerpt(ev.Text),
	})
}

// OnOutbound records a reply from the representative. The record carries the
// first-contact label of the latest inbound message of the pair. Channel
// attribution stays on inbound records.
func (r *Recorder) OnOutbound(ctx context.Context, ev transport.Event) {
	if !ev.OneToOne() || !ev.IsPrivate {
		return
	}

	counterpartID := ev.ChatID
	if counterpartID == 0 {
		log.Warn().Str("representative_id", r.rep.ID).Msg("Outbound event without chat id, skipping")
		return
	}
	ts := eventTime(ev)

	lastInbound := result.Of(r.store.LatestForPair(ctx, r.rep.ID, counterpartID, records.Inbound)).
		OrLog(nil, "Latest inbound lookup failed, outbound counted as returning", r.fields(counterpartID))

	rec := records.ConversationRecord{
		ID:                 r.newID(),
		RepresentativeID:   r.rep.ID,
		RepresentativeName: r.rep.Name,
		CounterpartID:      counterpartID,
		Timestamp:          ts,
		Direction:          records.Outbound,
		MessageExcerpt:     excerpt(ev.Text),
	}
	if lastInbound != nil {
		rec.IsFirstContact = lastInbound.IsFirstContact
	}

	if since, ok := r.pending.Take(counterpartID); ok {
		latency := ts.Sub(since).Minutes()
		if latency < 0 {
			latency = 0
		}
		rec.ResponseLatencyMinutes = &latency
	}

	r.persist(ctx, rec)
}

// channelSource attributes the counterpart to a channel: an @mention in the
// message wins, then the channel of the pair's latest inbound record.
func (r *Recorder) channelSource(ctx context.Context, counterpartID int64, text string) string {
	if channel, ok := mentionedChannel(text); ok {
		return channel
	}

	latest := result.Of(r.store.LatestForPair(ctx, r.rep.ID, counterpartID, records.Inbound)).
		OrLog(nil, "Channel history lookup failed", r.fields(counterpartID))
	if latest != nil {
		return latest.Channel()
	}
	return records.UnknownChannel
}

func (r *Recorder) persist(ctx context.Context, rec records.ConversationRecord) {
	if err := r.store.AppendConversation(ctx, rec); err != nil {
		r.fields(rec.CounterpartID)(log.Error().Err(err)).
			Str("direction", string(rec.Direction)).
			Msg("Error storing conversation record")
		return
	}

	e := r.fields(rec.CounterpartID)(log.Info()).
		Str("direction", string(rec.Direction)).
		Bool("is_first_contact", rec.IsFirstContact).
		Str("channel_source", rec.Channel())
	if rec.ResponseLatencyMinutes != nil {
		e = e.Float64("response_latency_minutes", *rec.ResponseLatencyMinutes)
	}
	e.Msg("Conversation recorded")
}

func (r *Recorder) fields(counterpartID int64) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Str("representative_id", r.rep.ID).Int64("counterpart_id", counterpartID)
	}
}

func eventTime(ev transport.Event) time.Time {
	if ev.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return ev.Timestamp.UTC()
}
