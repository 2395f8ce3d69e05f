package ws

import "sync"

// Registry is the bidirectional map between authenticated user identity and
// live channel. It retains at most one channel per user: a new Register for
// the same user silently supersedes the old mapping. The registry is pure
// bookkeeping; what happens to a superseded channel is the hub's policy.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[int]*Client
	byClient map[*Client]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[int]*Client),
		byClient: make(map[*Client]int),
	}
}

// Register binds the user to the client and returns the superseded client,
// if any. The superseded channel is forgotten here, never closed.
func (r *Registry) Register(userID int, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byUser[userID]
	if prev == c {
		return nil
	}
	if prev != nil {
		delete(r.byClient, prev)
	}
	r.byUser[userID] = c
	r.byClient[c] = userID
	return prev
}

// Unregister removes the client's mapping and returns the user it belonged
// to. Unknown clients are a no-op, and a superseded channel's late
// disconnect never evicts its successor.
func (r *Registry) Unregister(c *Client) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byClient[c]
	if !ok {
		return 0, false
	}
	delete(r.byClient, c)
	if r.byUser[userID] == c {
		delete(r.byUser, userID)
	}
	return userID, true
}

// ChannelOf returns the user's current live channel.
func (r *Registry) ChannelOf(userID int) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// UserOf returns the user bound to the channel.
func (r *Registry) UserOf(c *Client) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byClient[c]
	return userID, ok
}

// Online reports whether the user has a live channel.
func (r *Registry) Online(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// Clients returns a snapshot of all live channels.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.byClient))
	for c := range r.byClient {
		clients = append(clients, c)
	}
	return clients
}
