package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"realtime-service/internal/models"
)

func TestPresenceOnlineBroadcast(t *testing.T) {
	hub, _ := newTestHub(t, true)
	presence := NewPresence(hub, 20*time.Millisecond)
	defer presence.Stop()

	alice := connect(hub, "a", 1)
	connect(hub, "b", 2)

	presence.OnConnect(2)

	env := recvEvent(t, alice)
	require.Equal(t, models.EvtUserOnline, env.Type)
}

func TestPresenceOfflineAfterGrace(t *testing.T) {
	hub, _ := newTestHub(t, true)
	presence := NewPresence(hub, 20*time.Millisecond)
	defer presence.Stop()

	alice := connect(hub, "a", 1)
	bob := connect(hub, "b", 2)

	hub.Disconnect(bob)
	presence.OnDisconnect(2)

	require.Eventually(t, func() bool {
		return len(alice.send) > 0
	}, time.Second, 5*time.Millisecond)

	env := recvEvent(t, alice)
	require.Equal(t, models.EvtUserOffline, env.Type)
}

func TestPresenceReconnectWithinGraceSuppressesOffline(t *testing.T) {
	hub, _ := newTestHub(t, true)
	presence := NewPresence(hub, 50*time.Millisecond)
	defer presence.Stop()

	alice := connect(hub, "a", 1)
	bob := connect(hub, "b", 2)

	hub.Disconnect(bob)
	presence.OnDisconnect(2)

	// Reconnect inside the grace window: no offline, only online.
	connect(hub, "b2", 2)
	presence.OnConnect(2)

	require.Equal(t, models.EvtUserOnline, recvEvent(t, alice).Type)

	time.Sleep(120 * time.Millisecond)
	requireNoEvent(t, alice)
}

func TestPresenceFiredTimerRechecksRegistry(t *testing.T) {
	hub, _ := newTestHub(t, true)
	presence := NewPresence(hub, 10*time.Millisecond)
	defer presence.Stop()

	alice := connect(hub, "a", 1)
	bob := connect(hub, "b", 2)

	hub.Disconnect(bob)
	presence.OnDisconnect(2)

	// Reconnect without the notifier hearing about it; the fired check
	// still sees the live channel and stays quiet.
	connect(hub, "b2", 2)

	time.Sleep(50 * time.Millisecond)
	requireNoEvent(t, alice)
}

func TestPresenceStopCancelsPending(t *testing.T) {
	hub, _ := newTestHub(t, true)
	presence := NewPresence(hub, 10*time.Millisecond)

	alice := connect(hub, "a", 1)
	bob := connect(hub, "b", 2)

	hub.Disconnect(bob)
	presence.OnDisconnect(2)
	presence.Stop()

	time.Sleep(50 * time.Millisecond)
	requireNoEvent(t, alice)
}
