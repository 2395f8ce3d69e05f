package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"realtime-service/internal/models"
)

func newTestSignaling(t *testing.T) (*Signaling, *Hub) {
	t.Helper()
	hub, _ := newTestHub(t, true)
	return NewSignaling(hub), hub
}

func TestVideoJoinReturnsPriorSnapshot(t *testing.T) {
	sig, hub := newTestSignaling(t)
	alice := connect(hub, "a", 1)
	connect(hub, "b", 2)

	require.Empty(t, sig.Join("lesson-42", 1, models.MediaState{Camera: true}))

	existing := sig.Join("lesson-42", 2, models.MediaState{Mic: true})
	require.Len(t, existing, 1)
	require.Equal(t, 1, existing[0].UserID)
	require.True(t, existing[0].Media.Camera)

	env := recvEvent(t, alice)
	require.Equal(t, models.EvtUserJoinedVideo, env.Type)
}

func TestSignalRelayIsPointToPoint(t *testing.T) {
	sig, hub := newTestSignaling(t)
	connect(hub, "a", 1)
	bob := connect(hub, "b", 2)
	carol := connect(hub, "c", 3)

	sig.Join("lesson-42", 1, models.MediaState{})
	recvDrain(bob)
	sig.Join("lesson-42", 2, models.MediaState{})
	recvDrain(bob)
	sig.Join("lesson-42", 3, models.MediaState{})
	recvDrain(bob)
	recvDrain(carol)

	offer := json.RawMessage(`{"sdp":"v=0"}`)
	require.NoError(t, sig.RelayOffer("lesson-42", 1, 2, offer))

	env := recvEvent(t, bob)
	require.Equal(t, models.EvtVideoOffer, env.Type)

	var payload signalPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Equal(t, 1, payload.FromUserID)
	require.JSONEq(t, string(offer), string(payload.Payload))

	// Nobody else in the room hears a point-to-point signal.
	requireNoEvent(t, carol)
}

func TestSignalRelayRequiresSenderInRoom(t *testing.T) {
	sig, hub := newTestSignaling(t)
	connect(hub, "a", 1)
	connect(hub, "b", 2)

	sig.Join("lesson-42", 2, models.MediaState{})

	err := sig.RelayOffer("lesson-42", 1, 2, json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestSignalRelayUnreachableTarget(t *testing.T) {
	sig, hub := newTestSignaling(t)
	connect(hub, "a", 1)

	sig.Join("lesson-42", 1, models.MediaState{})

	// Target never joined the video room.
	err := sig.RelayAnswer("lesson-42", 1, 2, json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrTargetUnreachable)
}

func TestSignalRelayTargetWithoutChannel(t *testing.T) {
	sig, hub := newTestSignaling(t)
	connect(hub, "a", 1)
	bob := connect(hub, "b", 2)

	sig.Join("lesson-42", 1, models.MediaState{})
	sig.Join("lesson-42", 2, models.MediaState{})

	hub.Registry().Unregister(bob)

	err := sig.RelayCandidate("lesson-42", 1, 2, json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrTargetUnreachable)
}

func TestVideoLeaveNotifiesRemaining(t *testing.T) {
	sig, hub := newTestSignaling(t)
	alice := connect(hub, "a", 1)
	connect(hub, "b", 2)

	sig.Join("lesson-42", 1, models.MediaState{})
	sig.Join("lesson-42", 2, models.MediaState{})
	recvDrain(alice)

	sig.Leave("lesson-42", 2)
	require.False(t, hub.InVideoRoom("lesson-42", 2))

	env := recvEvent(t, alice)
	require.Equal(t, models.EvtUserLeftVideo, env.Type)

	// Leaving twice is silent.
	sig.Leave("lesson-42", 2)
	requireNoEvent(t, alice)
}

func TestVideoMembershipIndependentOfChatRooms(t *testing.T) {
	sig, hub := newTestSignaling(t)
	connect(hub, "a", 1)

	sig.Join("lesson-42", 1, models.MediaState{})
	require.True(t, hub.InVideoRoom("lesson-42", 1))
	require.False(t, hub.IsMember(42, 1))
}

func TestUpdateMediaStateBroadcasts(t *testing.T) {
	sig, hub := newTestSignaling(t)
	alice := connect(hub, "a", 1)
	connect(hub, "b", 2)

	sig.Join("lesson-42", 1, models.MediaState{Camera: true})
	sig.Join("lesson-42", 2, models.MediaState{})
	recvDrain(alice)

	require.NoError(t, sig.UpdateMediaState("lesson-42", 2, models.MediaState{Camera: true, Screen: true}))

	env := recvEvent(t, alice)
	require.Equal(t, models.EvtVideoStateChanged, env.Type)

	members := hub.VideoMembers("lesson-42")
	require.Len(t, members, 2)
	require.True(t, members[1].Media.Screen)
}

func TestUpdateMediaStateRequiresMembership(t *testing.T) {
	sig, hub := newTestSignaling(t)
	connect(hub, "a", 1)

	err := sig.UpdateMediaState("lesson-42", 1, models.MediaState{})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestScreenShareEvents(t *testing.T) {
	sig, hub := newTestSignaling(t)
	alice := connect(hub, "a", 1)
	connect(hub, "b", 2)

	sig.Join("lesson-42", 1, models.MediaState{})
	sig.Join("lesson-42", 2, models.MediaState{})
	recvDrain(alice)

	require.NoError(t, sig.ScreenShare("lesson-42", 2, true))
	require.Equal(t, models.EvtScreenShareStarted, recvEvent(t, alice).Type)

	require.NoError(t, sig.ScreenShare("lesson-42", 2, false))
	require.Equal(t, models.EvtScreenShareStopped, recvEvent(t, alice).Type)
}
