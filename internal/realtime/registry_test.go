package realtime_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/kiranshivaraju/aigrader/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records what it receives. Sending after Close is a violation.
type fakeConn struct {
	mu         sync.Mutex
	msgs       [][]byte
	closed     bool
	closeCalls int
	violations int
	full       bool
}

func (f *fakeConn) Send(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.violations++
		return false
	}
	if f.full {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = string(m)
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestRegistry_SubscribeAndFind(t *testing.T) {
	r := realtime.NewRegistry()
	c := &fakeConn{}

	id := r.Register(c)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, r.Len())

	_, found := r.FindConnectionForTask("task-1")
	assert.False(t, found)

	require.NoError(t, r.Subscribe(id, "task-1"))
	got, found := r.FindConnectionForTask("task-1")
	assert.True(t, found)
	assert.Equal(t, id, got)
}

func TestRegistry_RegisterReturnsDistinctIDs(t *testing.T) {
	r := realtime.NewRegistry()
	a := r.Register(&fakeConn{})
	b := r.Register(&fakeConn{})
	assert.NotEqual(t, a, b)
}

func TestRegistry_ResubscribeOverwritesPrevious(t *testing.T) {
	r := realtime.NewRegistry()
	id := r.Register(&fakeConn{})

	require.NoError(t, r.Subscribe(id, "task-1"))
	require.NoError(t, r.Subscribe(id, "task-2"))

	_, found := r.FindConnectionForTask("task-1")
	assert.False(t, found, "old subscription must be gone")
	got, found := r.FindConnectionForTask("task-2")
	assert.True(t, found)
	assert.Equal(t, id, got)
}

func TestRegistry_LaterSubscriberTakesOverTask(t *testing.T) {
	r := realtime.NewRegistry()
	first, second := &fakeConn{}, &fakeConn{}
	id1 := r.Register(first)
	id2 := r.Register(second)

	require.NoError(t, r.Subscribe(id1, "task-1"))
	require.NoError(t, r.Subscribe(id2, "task-1"))

	got, _ := r.FindConnectionForTask("task-1")
	assert.Equal(t, id2, got)

	assert.True(t, r.Deliver("task-1", []byte("done")))
	assert.Empty(t, first.messages())
	assert.Equal(t, []string{"done"}, second.messages())

	// The displaced connection holds no subscription: unregistering it must not
	// remove the new watcher.
	r.Unregister(id1)
	got, found := r.FindConnectionForTask("task-1")
	assert.True(t, found)
	assert.Equal(t, id2, got)
}

func TestRegistry_SubscribeUnknownConnection(t *testing.T) {
	r := realtime.NewRegistry()
	err := r.Subscribe("missing", "task-1")
	assert.ErrorIs(t, err, realtime.ErrUnknownConnection)
}

func TestRegistry_UnregisterRemovesConnectionAndSubscription(t *testing.T) {
	r := realtime.NewRegistry()
	c := &fakeConn{}
	id := r.Register(c)
	require.NoError(t, r.Subscribe(id, "task-1"))

	assert.True(t, r.Unregister(id))
	assert.False(t, r.Unregister(id))

	_, found := r.FindConnectionForTask("task-1")
	assert.False(t, found)
	assert.Equal(t, 0, r.Len())
	assert.True(t, c.isClosed())
	assert.False(t, r.Deliver("task-1", []byte("late")))
	assert.Equal(t, 0, c.violations)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := realtime.NewRegistry()
	id := r.Register(&fakeConn{})
	require.NoError(t, r.Subscribe(id, "task-1"))

	r.Unsubscribe(id)
	r.Unsubscribe("missing")

	_, found := r.FindConnectionForTask("task-1")
	assert.False(t, found)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DeliverReportsFullConnection(t *testing.T) {
	r := realtime.NewRegistry()
	id := r.Register(&fakeConn{full: true})
	require.NoError(t, r.Subscribe(id, "task-1"))

	assert.False(t, r.Deliver("task-1", []byte("x")))
}

func TestRegistry_CloseAll(t *testing.T) {
	r := realtime.NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	idA := r.Register(a)
	r.Register(b)
	require.NoError(t, r.Subscribe(idA, "task-1"))

	r.CloseAll()

	assert.Equal(t, 0, r.Len())
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	_, found := r.FindConnectionForTask("task-1")
	assert.False(t, found)
}

func TestRegistry_ConcurrentUnregisterNeverDeliversToClosedConn(t *testing.T) {
	r := realtime.NewRegistry()

	const n = 200
	conns := make([]*fakeConn, n)
	ids := make([]string, n)
	for i := range conns {
		conns[i] = &fakeConn{}
		ids[i] = r.Register(conns[i])
		require.NoError(t, r.Subscribe(ids[i], fmt.Sprintf("task-%d", i)))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Unregister(ids[i])
		}(i)
		go func(i int) {
			defer wg.Done()
			r.Deliver(fmt.Sprintf("task-%d", i), []byte("done"))
		}(i)
	}
	wg.Wait()

	for i, c := range conns {
		assert.Zero(t, c.violations, "conn %d received a message after close", i)
		assert.Equal(t, 1, c.closeCalls)
	}
	assert.Equal(t, 0, r.Len())
}
