package ws

import (
	"sync"
	"time"

	"realtime-service/internal/models"
)

// DefaultPresenceGrace is the window a disconnected user has to reconnect
// before an offline broadcast fires.
const DefaultPresenceGrace = 5 * time.Second

type presencePayload struct {
	UserID int `json:"user_id"`
}

// Presence derives online/offline transitions from registry changes.
// Offline broadcasts are debounced: rapid reconnects cancel the pending
// timer outright, so navigation churn never flaps presence.
type Presence struct {
	hub   *Hub
	grace time.Duration

	mu      sync.Mutex
	pending map[int]*time.Timer
}

// NewPresence constructs a Presence notifier with the given grace window.
func NewPresence(hub *Hub, grace time.Duration) *Presence {
	if grace <= 0 {
		grace = DefaultPresenceGrace
	}
	return &Presence{
		hub:     hub,
		grace:   grace,
		pending: make(map[int]*time.Timer),
	}
}

// OnConnect cancels any pending offline check for the user and broadcasts
// their online transition globally; any contact anywhere may care.
func (p *Presence) OnConnect(userID int) {
	p.mu.Lock()
	if t, ok := p.pending[userID]; ok {
		t.Stop()
		delete(p.pending, userID)
	}
	p.mu.Unlock()

	p.hub.BroadcastAll(models.Event{Type: models.EvtUserOnline, Payload: presencePayload{UserID: userID}})
}

// OnDisconnect schedules the delayed offline check. If the user reconnects
// within the grace window the timer is cancelled and no offline event is
// ever emitted for this disconnect. The fired check re-reads the registry,
// which covers the race where the timer fires while a reconnect completes.
func (p *Presence) OnDisconnect(userID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.pending[userID]; ok {
		t.Stop()
	}
	p.pending[userID] = time.AfterFunc(p.grace, func() {
		p.mu.Lock()
		delete(p.pending, userID)
		p.mu.Unlock()

		if p.hub.Online(userID) {
			return
		}
		p.hub.BroadcastAll(models.Event{Type: models.EvtUserOffline, Payload: presencePayload{UserID: userID}})
	})
}

// Stop cancels all pending offline checks, used at shutdown.
func (p *Presence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, t := range p.pending {
		t.Stop()
		delete(p.pending, userID)
	}
}
