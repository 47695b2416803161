// Package execution runs one processing unit per representative and routes
// transport events to them.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
	"github.com/NextMind-AI/repstats/transport"
)

const DefaultQueueSize = 256

var (
	ErrUnknownRepresentative   = errors.New("unknown representative")
	ErrUnitOffline             = errors.New("representative unit is not running")
	ErrQueueFull               = errors.New("representative event queue is full")
	ErrDuplicateRepresentative = errors.New("representative already registered")
)

// EventHandler processes the events of one representative.
type EventHandler interface {
	OnInbound(ctx context.Context, ev transport.Event)
	OnOutbound(ctx context.Context, ev transport.Event)
	PendingCount() int
}

// AccountChecker reports the bridge-side session state of a representative.
type AccountChecker interface {
	AccountStatus(ctx context.Context, representativeID string) (transport.AccountStatus, error)
}

// HandlerFactory builds the handler of a representative unit.
type HandlerFactory func(rep records.Representative) EventHandler

// Registry owns every representative unit. Units are added with Register
// before Start and removed only by Stop.
type Registry struct {
	accounts   AccountChecker
	newHandler HandlerFactory
	queueSize  int

	mu      sync.RWMutex
	units   map[string]*unit
	order   []string
	started bool
	stopped bool

	handlerCtx    context.Context
	cancelHandler context.CancelFunc
	wg            sync.WaitGroup
}

func NewRegistry(accounts AccountChecker, newHandler HandlerFactory, queueSize int) *Registry {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		accounts:      accounts,
		newHandler:    newHandler,
		queueSize:     queueSize,
		units:         make(map[string]*unit),
		handlerCtx:    ctx,
		cancelHandler: cancel,
	}
}

// Register adds a representative in the offline state.
func (r *Registry) Register(rep records.Representative) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[rep.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRepresentative, rep.ID)
	}
	r.units[rep.ID] = newUnit(rep, r.newHandler(rep), r.queueSize)
	r.order = append(r.order, rep.ID)

	log.Info().
		Str("representative_id", rep.ID).
		Str("representative_name", rep.Name).
		Msg("Representative registered")
	return nil
}

// Start checks every registered session with the bridge and runs the
// authorized ones. It returns the number of units online. Bridge calls are
// made without holding the registry lock.
func (r *Registry) Start(ctx context.Context) int {
	r.mu.Lock()
	if r.started {
		online := r.onlineLocked()
		r.mu.Unlock()
		return online
	}
	r.started = true
	units := make([]*unit, 0, len(r.order))
	for _, id := range r.order {
		units = append(units, r.units[id])
	}
	r.mu.Unlock()

	for _, u := range units {
		id := u.rep.ID
		status, err := r.accounts.AccountStatus(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("representative_id", id).Msg("Error checking representative authorization")
			u.setState(StateError, err)
			continue
		}
		if !status.Authorized {
			log.Warn().Str("representative_id", id).Msg("Representative is not authorized, unit stays offline")
			u.setState(StateOffline, nil)
			continue
		}
		if !r.launch(u) {
			continue
		}

		log.Info().
			Str("representative_id", id).
			Str("username", status.Username).
			Msg("Representative unit started")
	}

	r.mu.RLock()
	online := r.onlineLocked()
	registered := len(r.order)
	r.mu.RUnlock()

	log.Info().Int("online", online).Int("registered", registered).Msg("Representative units started")
	return online
}

// launch puts u online unless the registry was stopped meanwhile.
func (r *Registry) launch(u *unit) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return false
	}
	u.setState(StateOnline, nil)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		u.run(r.handlerCtx)
	}()
	return true
}

// Dispatch queues ev on its representative's unit without blocking.
func (r *Registry) Dispatch(ev transport.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[ev.RepresentativeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRepresentative, ev.RepresentativeID)
	}
	if r.stopped || u.currentState() != StateOnline {
		return fmt.Errorf("%w: %s", ErrUnitOffline, ev.RepresentativeID)
	}

	select {
	case u.events <- ev:
		return nil
	default:
		log.Warn().Str("representative_id", ev.RepresentativeID).Msg("Event queue full, rejecting event")
		return fmt.Errorf("%w: %s", ErrQueueFull, ev.RepresentativeID)
	}
}

// Stop closes every unit queue and waits until queued events are handled or
// ctx expires.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	for _, id := range r.order {
		u := r.units[id]
		if u.currentState() == StateOnline {
			close(u.events)
			u.setState(StateOffline, nil)
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	defer r.cancelHandler()
	select {
	case <-done:
		log.Info().Msg("Representative units drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("execution: stop: %w", ctx.Err())
	}
}

// Representatives returns every registered representative in registration order.
func (r *Registry) Representatives() []records.Representative {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reps := make([]records.Representative, 0, len(r.order))
	for _, id := range r.order {
		reps = append(reps, r.units[id].rep)
	}
	return reps
}

// Representative looks up a registered representative.
func (r *Registry) Representative(id string) (records.Representative, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[id]
	if !ok {
		return records.Representative{}, false
	}
	return u.rep, true
}

// Statuses reports every unit. Active chats are asked from the bridge for
// online units only.
func (r *Registry) Statuses(ctx context.Context) []Status {
	r.mu.RLock()
	units := make([]*unit, 0, len(r.order))
	for _, id := range r.order {
		units = append(units, r.units[id])
	}
	r.mu.RUnlock()

	statuses := make([]Status, 0, len(units))
	for _, u := range units {
		s := u.status()
		if s.State == StateOnline {
			account, err := r.accounts.AccountStatus(ctx, u.rep.ID)
			if err != nil {
				log.Warn().Err(err).Str("representative_id", u.rep.ID).Msg("Error fetching representative status")
				s.State = StateError
				s.Error = err.Error()
			} else {
				s.ActiveChats = account.ActiveChats
			}
		}
		statuses = append(statuses, s)
	}
	return statuses
}

func (r *Registry) onlineLocked() int {
	n := 0
	for _, u := range r.units {
		if u.currentState() == StateOnline {
			n++
		}
	}
	return n
}
