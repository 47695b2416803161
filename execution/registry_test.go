package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NextMind-AI/repstats/records"
	"github.com/NextMind-AI/repstats/transport"
)

type fakeAccounts struct {
	mu       sync.Mutex
	statuses map[string]transport.AccountStatus
	errs     map[string]error
}

func (f *fakeAccounts) AccountStatus(_ context.Context, id string) (transport.AccountStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return transport.AccountStatus{}, err
	}
	return f.statuses[id], nil
}

// recordingHandler notes the order of handled events and can block.
type recordingHandler struct {
	mu      sync.Mutex
	handled []string
	gate    chan struct{}
	active  int
	overlap bool
}

func (h *recordingHandler) handle(kind string, ev transport.Event) {
	h.mu.Lock()
	h.active++
	if h.active > 1 {
		h.overlap = true
	}
	h.mu.Unlock()

	if h.gate != nil {
		<-h.gate
	}

	h.mu.Lock()
	h.handled = append(h.handled, kind+":"+ev.Text)
	h.active--
	h.mu.Unlock()
}

func (h *recordingHandler) OnInbound(_ context.Context, ev transport.Event)  { h.handle("in", ev) }
func (h *recordingHandler) OnOutbound(_ context.Context, ev transport.Event) { h.handle("out", ev) }
func (h *recordingHandler) PendingCount() int                                { return 3 }

func (h *recordingHandler) events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.handled...)
}

func newTestRegistry(t *testing.T, accounts *fakeAccounts, handlers map[string]*recordingHandler, queue int) *Registry {
	t.Helper()
	reg := NewRegistry(accounts, func(rep records.Representative) EventHandler {
		h := &recordingHandler{}
		handlers[rep.ID] = h
		return h
	}, queue)
	require.NoError(t, reg.Register(records.Representative{ID: "anna", Name: "Anna"}))
	require.NoError(t, reg.Register(records.Representative{ID: "boris", Name: "Boris"}))
	require.NoError(t, reg.Register(records.Representative{ID: "clara", Name: "Clara"}))
	return reg
}

func defaultAccounts() *fakeAccounts {
	return &fakeAccounts{
		statuses: map[string]transport.AccountStatus{
			"anna":  {Authorized: true, Username: "anna_sales", ActiveChats: 12},
			"boris": {Authorized: false},
		},
		errs: map[string]error{"clara": errors.New("bridge unreachable")},
	}
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry(defaultAccounts(), func(records.Representative) EventHandler { return &recordingHandler{} }, 1)
	require.NoError(t, reg.Register(records.Representative{ID: "anna"}))
	err := reg.Register(records.Representative{ID: "anna"})
	require.ErrorIs(t, err, ErrDuplicateRepresentative)
}

func TestRegistry_StartChecksAuthorization(t *testing.T) {
	handlers := map[string]*recordingHandler{}
	reg := newTestRegistry(t, defaultAccounts(), handlers, 4)

	online := reg.Start(context.Background())
	assert.Equal(t, 1, online)
	t.Cleanup(func() { _ = reg.Stop(context.Background()) })

	statuses := reg.Statuses(context.Background())
	require.Len(t, statuses, 3)
	assert.Equal(t, StateOnline, statuses[0].State)
	assert.Equal(t, 12, statuses[0].ActiveChats)
	assert.Equal(t, 3, statuses[0].PendingReplies)
	assert.Equal(t, StateOffline, statuses[1].State)
	assert.Equal(t, StateError, statuses[2].State)
	assert.Equal(t, "bridge unreachable", statuses[2].Error)

	require.ErrorIs(t, reg.Dispatch(transport.Event{RepresentativeID: "boris"}), ErrUnitOffline)
	require.ErrorIs(t, reg.Dispatch(transport.Event{RepresentativeID: "clara"}), ErrUnitOffline)
	require.ErrorIs(t, reg.Dispatch(transport.Event{RepresentativeID: "nobody"}), ErrUnknownRepresentative)
}

func TestRegistry_DispatchRoutesInOrder(t *testing.T) {
	handlers := map[string]*recordingHandler{}
	reg := newTestRegistry(t, defaultAccounts(), handlers, 16)
	reg.Start(context.Background())

	for _, ev := range []transport.Event{
		{RepresentativeID: "anna", Text: "1"},
		{RepresentativeID: "anna", Text: "2", Outgoing: true},
		{RepresentativeID: "anna", Text: "3"},
	} {
		require.NoError(t, reg.Dispatch(ev))
	}

	require.NoError(t, reg.Stop(context.Background()))
	assert.Equal(t, []string{"in:1", "out:2", "in:3"}, handlers["anna"].events())
	assert.False(t, handlers["anna"].overlap)

	statuses := reg.Statuses(context.Background())
	require.NotNil(t, statuses[0].LastActivity)
	assert.Equal(t, StateOffline, statuses[0].State)
	require.ErrorIs(t, reg.Dispatch(transport.Event{RepresentativeID: "anna"}), ErrUnitOffline)
}

func TestRegistry_DispatchRejectsWhenQueueFull(t *testing.T) {
	handlers := map[string]*recordingHandler{}
	reg := NewRegistry(defaultAccounts(), func(rep records.Representative) EventHandler {
		h := &recordingHandler{gate: make(chan struct{})}
		handlers[rep.ID] = h
		return h
	}, 1)
	require.NoError(t, reg.Register(records.Representative{ID: "anna"}))
	reg.Start(context.Background())

	require.NoError(t, reg.Dispatch(transport.Event{RepresentativeID: "anna", Text: "1"}))
	// Wait until the unit holds the first event so the queue slot is free again.
	require.Eventually(t, func() bool {
		handlers["anna"].mu.Lock()
		defer handlers["anna"].mu.Unlock()
		return handlers["anna"].active == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, reg.Dispatch(transport.Event{RepresentativeID: "anna", Text: "2"}))
	require.ErrorIs(t, reg.Dispatch(transport.Event{RepresentativeID: "anna", Text: "3"}), ErrQueueFull)

	close(handlers["anna"].gate)
	require.NoError(t, reg.Stop(context.Background()))
	assert.Equal(t, []string{"in:1", "in:2"}, handlers["anna"].events())
}

func TestRegistry_StopHonoursDeadline(t *testing.T) {
	handlers := map[string]*recordingHandler{}
	reg := NewRegistry(defaultAccounts(), func(rep records.Representative) EventHandler {
		h := &recordingHandler{gate: make(chan struct{})}
		handlers[rep.ID] = h
		return h
	}, 1)
	require.NoError(t, reg.Register(records.Representative{ID: "anna"}))
	reg.Start(context.Background())
	require.NoError(t, reg.Dispatch(transport.Event{RepresentativeID: "anna"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := reg.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(handlers["anna"].gate)
}

func TestRegistry_Lookup(t *testing.T) {
	handlers := map[string]*recordingHandler{}
	reg := newTestRegistry(t, defaultAccounts(), handlers, 1)

	rep, ok := reg.Representative("boris")
	require.True(t, ok)
	assert.Equal(t, "Boris", rep.Name)
	_, ok = reg.Representative("nobody")
	assert.False(t, ok)

	reps := reg.Representatives()
	require.Len(t, reps, 3)
	assert.Equal(t, "anna", reps[0].ID)
	assert.Equal(t, "clara", reps[2].ID)
}

// blockingAccounts holds every status call until release is closed.
type blockingAccounts struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingAccounts) AccountStatus(ctx context.Context, _ string) (transport.AccountStatus, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return transport.AccountStatus{Authorized: true}, nil
	case <-ctx.Done():
		return transport.AccountStatus{}, ctx.Err()
	}
}

func TestRegistry_StartDoesNotBlockReaders(t *testing.T) {
	accounts := &blockingAccounts{entered: make(chan struct{}), release: make(chan struct{})}
	reg := NewRegistry(accounts, func(records.Representative) EventHandler { return &recordingHandler{} }, 4)
	require.NoError(t, reg.Register(records.Representative{ID: "anna", Name: "Anna"}))

	started := make(chan int, 1)
	go func() { started <- reg.Start(context.Background()) }()
	<-accounts.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Len(t, reg.Representatives(), 1)
		assert.ErrorIs(t, reg.Dispatch(transport.Event{RepresentativeID: "anna"}), ErrUnitOffline)
		_, ok := reg.Representative("anna")
		assert.True(t, ok)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry readers blocked while Start waits on the bridge")
	}

	close(accounts.release)
	assert.Equal(t, 1, <-started)
	require.NoError(t, reg.Stop(context.Background()))
}

func TestRegistry_StopDuringStartKeepsUnitsOffline(t *testing.T) {
	accounts := &blockingAccounts{entered: make(chan struct{}), release: make(chan struct{})}
	reg := NewRegistry(accounts, func(records.Representative) EventHandler { return &recordingHandler{} }, 4)
	require.NoError(t, reg.Register(records.Representative{ID: "anna"}))

	started := make(chan int, 1)
	go func() { started <- reg.Start(context.Background()) }()
	<-accounts.entered

	require.NoError(t, reg.Stop(context.Background()))
	close(accounts.release)

	assert.Equal(t, 0, <-started)
	assert.ErrorIs(t, reg.Dispatch(transport.Event{RepresentativeID: "anna"}), ErrUnitOffline)
}
