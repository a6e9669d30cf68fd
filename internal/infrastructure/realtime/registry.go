package realtime

import (
	"sync"
)

// Client is anything that can receive room broadcasts. Connection satisfies
// it; tests may substitute lighter implementations.
type Client interface {
	Key() string
	Send(payload []byte) error
}

// Registry maps project rooms to their live connections. A connection
// belongs to at most one room at a time; joining a second room implicitly
// leaves the first. Joins, leaves and broadcasts against the same room are
// serialized by the registry lock so a broadcast never delivers to a
// connection mid-removal.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Client // projectID -> connKey -> client
	joins map[string]string            // connKey -> projectID
}

// NewRegistry constructs an initialized Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]Client),
		joins: make(map[string]string),
	}
}

// Join binds the client to the project room, leaving any previous room first.
func (r *Registry) Join(projectID string, c Client) {
	if projectID == "" || c == nil {
		return
	}
	r.mu.Lock()
	if prev, ok := r.joins[c.Key()]; ok && prev != projectID {
		r.leaveLocked(prev, c.Key())
	}

	room := r.rooms[projectID]
	if room == nil {
		room = make(map[string]Client)
		r.rooms[projectID] = room
	}
	room[c.Key()] = c
	r.joins[c.Key()] = projectID
	r.mu.Unlock()
}

// Leave removes the client from its current room. Idempotent.
func (r *Registry) Leave(c Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	if projectID, ok := r.joins[c.Key()]; ok {
		r.leaveLocked(projectID, c.Key())
	}
	r.mu.Unlock()
}

// Room returns the project the client is currently joined to, if any.
func (r *Registry) Room(c Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projectID, ok := r.joins[c.Key()]
	return projectID, ok
}

// Broadcast writes payload to every connection currently joined to the
// project room and returns the number of successful deliveries. Iteration
// order across connections is unspecified.
func (r *Registry) Broadcast(projectID string, payload []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, c := range r.rooms[projectID] {
		if err := c.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Close clears all registry state. Connections are not closed here; the
// gateway owns their lifecycle.
func (r *Registry) Close() {
	r.mu.Lock()
	r.rooms = make(map[string]map[string]Client)
	r.joins = make(map[string]string)
	r.mu.Unlock()
}

func (r *Registry) leaveLocked(projectID, connKey string) {
	room := r.rooms[projectID]
	if room == nil {
		delete(r.joins, connKey)
		return
	}
	delete(room, connKey)
	if len(room) == 0 {
		delete(r.rooms, projectID)
	}
	delete(r.joins, connKey)
}
