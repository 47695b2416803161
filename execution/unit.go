package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
	"github.com/NextMind-AI/repstats/transport"
)

type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
	StateError   State = "error"
)

// Status is a snapshot of one representative unit.
type Status struct {
	RepresentativeID   string     `json:"representative_id"`
	RepresentativeName string     `json:"representative_name"`
	State              State      `json:"status"`
	ActiveChats        int        `json:"active_chats"`
	PendingReplies     int        `json:"pending_replies"`
	LastActivity       *time.Time `json:"last_activity,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// unit handles one representative's events sequentially.
type unit struct {
	rep     records.Representative
	handler EventHandler
	events  chan transport.Event

	mu           sync.RWMutex
	state        State
	lastErr      error
	lastActivity atomic.Int64
}

func newUnit(rep records.Representative, handler EventHandler, queueSize int) *unit {
	return &unit{
		rep:     rep,
		handler: handler,
		events:  make(chan transport.Event, queueSize),
		state:   StateOffline,
	}
}

func (u *unit) run(ctx context.Context) {
	for ev := range u.events {
		u.lastActivity.Store(time.Now().UnixNano())
		if ev.Outgoing {
			u.handler.OnOutbound(ctx, ev)
		} else {
			u.handler.OnInbound(ctx, ev)
		}
	}
	log.Info().Str("representative_id", u.rep.ID).Msg("Representative unit stopped")
}

func (u *unit) setState(state State, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = state
	u.lastErr = err
}

func (u *unit) currentState() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

func (u *unit) status() Status {
	u.mu.RLock()
	defer u.mu.RUnlock()

	s := Status{
		RepresentativeID:   u.rep.ID,
		RepresentativeName: u.rep.Name,
		State:              u.state,
		PendingReplies:     u.handler.PendingCount(),
	}
	if u.lastErr != nil {
		s.Error = u.lastErr.Error()
	}
	if nanos := u.lastActivity.Load(); nanos != 0 {
		t := time.Unix(0, nanos).UTC()
		s.LastActivity = &t
	}
	return s
}
