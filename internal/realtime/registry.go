// Package realtime pushes task completion notifications to live WebSocket clients.
//
// The Registry is owned by the front process. Workers never touch it; they reach
// clients only through the broadcast channel and the Listener.
package realtime

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownConnection is returned when subscribing on a connection that is not registered.
var ErrUnknownConnection = errors.New("unknown connection")

// Conn is the outbound half of a client connection.
type Conn interface {
	// Send queues msg without blocking. It returns false if the message was not queued.
	Send(msg []byte) bool
	// Close releases the connection. It must be safe to call more than once.
	Close()
}

type entry struct {
	conn   Conn
	taskID string
}

// Registry maps live connections to the one task each is watching, with an inverse
// index from task to connection. All operations are atomic under one mutex.
//
// A task has at most one watcher: a later Subscribe to the same task takes it over
// and the earlier connection stops watching anything.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]*entry
	byTask map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*entry),
		byTask: make(map[string]string),
	}
}

// Register adds conn and returns its new connection id.
func (r *Registry) Register(conn Conn) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.conns[id] = &entry{conn: conn}
	r.mu.Unlock()
	return id
}

// Subscribe points connID at taskID, replacing any previous subscription of connID.
func (r *Registry) Subscribe(connID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}

	r.clearTaskLocked(connID, e)

	if prev, ok := r.byTask[taskID]; ok && prev != connID {
		if pe, ok := r.conns[prev]; ok {
			pe.taskID = ""
		}
	}

	e.taskID = taskID
	r.byTask[taskID] = connID
	return nil
}

// Unsubscribe clears connID's subscription, if any.
func (r *Registry) Unsubscribe(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[connID]; ok {
		r.clearTaskLocked(connID, e)
	}
}

// Unregister removes connID and its subscription, then closes the connection.
// It reports whether the connection was registered.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	e, ok := r.conns[connID]
	if ok {
		r.clearTaskLocked(connID, e)
		delete(r.conns, connID)
	}
	r.mu.Unlock()

	if ok {
		e.conn.Close()
	}
	return ok
}

// FindConnectionForTask returns the connection currently watching taskID.
func (r *Registry) FindConnectionForTask(taskID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byTask[taskID]
	return id, ok
}

// Deliver queues msg on the connection watching taskID. The lookup and the enqueue
// happen under the registry lock, so a concurrent Unregister cannot slip between them.
func (r *Registry) Deliver(taskID string, msg []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID, ok := r.byTask[taskID]
	if !ok {
		return false
	}
	e, ok := r.conns[connID]
	if !ok {
		return false
	}
	return e.conn.Send(msg)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll unregisters and closes every connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*entry)
	r.byTask = make(map[string]string)
	r.mu.Unlock()

	for _, e := range conns {
		e.conn.Close()
	}
}

func (r *Registry) clearTaskLocked(connID string, e *entry) {
	if e.taskID == "" {
		return
	}
	if r.byTask[e.taskID] == connID {
		delete(r.byTask, e.taskID)
	}
	e.taskID = ""
}
