package room_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/room"
	"github.com/sprintroom/sprintroom-cli/internal/session"
	"github.com/sprintroom/sprintroom-cli/internal/signaling"
)

// fakeSignaler records outbound messages and lets tests inject inbound ones.
type fakeSignaler struct {
	mu         sync.Mutex
	incoming   chan *signaling.Message
	sent       []*signaling.Message
	connectErr error
	closes     int
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{incoming: make(chan *signaling.Message, 16)}
}

func (f *fakeSignaler) Connect() error { return f.connectErr }

func (f *fakeSignaler) SendMessage(msg *signaling.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeSignaler) Incoming() <-chan *signaling.Message { return f.incoming }

func (f *fakeSignaler) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeSignaler) sentOfType(kind string) []*signaling.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*signaling.Message
	for _, msg := range f.sent {
		if msg.Type == kind {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeSignaler) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeCapture struct {
	mu         sync.Mutex
	acquireErr error
	screenErr  error
	acquired   int
	released   int
	screens    []media.ShareAudioMode
	audioSet   []bool
	videoSet   []bool
}

func (f *fakeCapture) Acquire(constraints media.Constraints) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquired++
	return nil
}

func (f *fakeCapture) SetAudioEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioSet = append(f.audioSet, enabled)
}

func (f *fakeCapture) SetVideoEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoSet = append(f.videoSet, enabled)
}

func (f *fakeCapture) AcquireScreen(mode media.ShareAudioMode, loopbackDeviceID string) (*media.ScreenCapture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screenErr != nil {
		return nil, f.screenErr
	}
	f.screens = append(f.screens, mode)
	return &media.ScreenCapture{Mode: mode}, nil
}

func (f *fakeCapture) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeCapture) acquireCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired
}

func (f *fakeCapture) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func (f *fakeCapture) screenModes() []media.ShareAudioMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]media.ShareAudioMode(nil), f.screens...)
}

type fakeSessions struct {
	mu       sync.Mutex
	events   chan session.Event
	ensured  []string
	closed   []string
	closeAll int
	attached int
	detached int
	speaking []bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{events: make(chan session.Event, 16)}
}

func (f *fakeSessions) EnsureSession(peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, peerID)
	return nil
}

func (f *fakeSessions) HandleSignal(from string, payload signaling.SignalPayload) {}

func (f *fakeSessions) CloseSession(peerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, peerID)
}

func (f *fakeSessions) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeAll++
}

func (f *fakeSessions) AttachScreen(screen *media.ScreenCapture) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached++
	return nil
}

func (f *fakeSessions) DetachScreen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached++
}

func (f *fakeSessions) BroadcastSpeaking(speaking bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = append(f.speaking, speaking)
}

func (f *fakeSessions) Events() <-chan session.Event { return f.events }

func (f *fakeSessions) ensuredPeers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ensured...)
}

func (f *fakeSessions) closedPeers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

func (f *fakeSessions) closeAllCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeAll
}

func (f *fakeSessions) attachCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached
}

func (f *fakeSessions) detachCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detached
}

type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	starts   int
	stops    int
}

func (f *fakeRecorder) Start(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeRecorder) Stop(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

// rig bundles a reconciler with its fakes, connected as "alice" in
// "standup-42".
type rig struct {
	sig      *fakeSignaler
	capture  *fakeCapture
	sessions *fakeSessions
	recorder *fakeRecorder
	speaking chan bool
	rec      *room.Reconciler
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		sig:      newFakeSignaler(),
		capture:  &fakeCapture{},
		sessions: newFakeSessions(),
		recorder: &fakeRecorder{},
		speaking: make(chan bool, 8),
	}
	r.rec = room.New(r.sig, r.capture, r.sessions, r.recorder, r.speaking, room.Options{
		RoomID:  "standup-42",
		LocalID: "alice",
		Constraints: media.Constraints{
			AudioEnabled: true,
			VideoEnabled: true,
		},
	})
	return r
}

func (r *rig) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, r.rec.Connect())
	t.Cleanup(r.rec.Disconnect)
}

func (r *rig) deliver(t *testing.T, kind string, payload any) {
	t.Helper()
	msg, err := signaling.NewMessage(kind, payload)
	require.NoError(t, err)
	r.sig.incoming <- msg
}

// join delivers the room's participant list and waits for the Joined state.
func (r *rig) join(t *testing.T, users ...string) {
	t.Helper()
	r.deliver(t, signaling.MessageTypeUserList, signaling.UserListPayload{Users: users})
	r.waitFor(t, "joined", func(s room.Snapshot) bool {
		return s.Status == room.StatusJoined
	})
}

func (r *rig) waitFor(t *testing.T, desc string, cond func(room.Snapshot) bool) room.Snapshot {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case snap, ok := <-r.rec.Snapshots():
			require.True(t, ok, "snapshot channel closed while waiting for %s", desc)
			if cond(snap) {
				return snap
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

// waitClosed drains snapshots until the channel closes and returns the last
// one seen.
func (r *rig) waitClosed(t *testing.T) room.Snapshot {
	t.Helper()
	var last room.Snapshot
	timeout := time.After(3 * time.Second)
	for {
		select {
		case snap, ok := <-r.rec.Snapshots():
			if !ok {
				return last
			}
			last = snap
		case <-timeout:
			t.Fatal("timed out waiting for snapshot channel to close")
		}
	}
}

func participant(s room.Snapshot, id string) (room.Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return room.Participant{}, false
}

func TestInitialUserListCreatesSessionsWithoutStreams(t *testing.T) {
	r := newRig(t)
	r.connect(t)

	r.deliver(t, signaling.MessageTypeUserList, signaling.UserListPayload{Users: []string{"alice", "bob", "carol"}})

	snap := r.waitFor(t, "all participants present", func(s room.Snapshot) bool {
		return s.Status == room.StatusJoined && len(s.Participants) == 3
	})

	// Local participant sorts first; no one has media yet.
	assert.Equal(t, "alice", snap.Participants[0].ID)
	assert.True(t, snap.Participants[0].IsLocal)
	for _, p := range snap.Participants {
		assert.False(t, p.HasMedia, "presence alone must not imply media for %s", p.ID)
	}

	assert.ElementsMatch(t, []string{"bob", "carol"}, r.sessions.ensuredPeers())
	assert.NotEmpty(t, r.sig.sentOfType(signaling.MessageTypeStatusUpdate), "joining announces local status")
}

func TestConnectSignalingFailureIsFatal(t *testing.T) {
	r := newRig(t)
	r.sig.connectErr = errors.New("dial tcp: connection refused")

	assert.Error(t, r.rec.Connect())
}

func TestCaptureFailureDegradesSession(t *testing.T) {
	r := newRig(t)
	r.capture.acquireErr = media.ErrNoDevice
	r.connect(t)

	r.deliver(t, signaling.MessageTypeUserList, signaling.UserListPayload{Users: []string{"alice"}})

	snap := r.waitFor(t, "degraded join", func(s room.Snapshot) bool {
		return s.Status == room.StatusJoined
	})
	local, ok := participant(snap, "alice")
	require.True(t, ok)
	assert.True(t, local.IsMuted)
	assert.True(t, local.IsCameraOff)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.rec.Disconnect()
	r.rec.Disconnect()

	snap := r.waitClosed(t)
	assert.Equal(t, room.StatusIdle, snap.Status)
	assert.Equal(t, 1, r.sessions.closeAllCount())
	assert.Equal(t, 1, r.capture.releaseCount())
	assert.Equal(t, 1, r.sig.closeCount())
}

func TestPresenceLeaveClosesSessionAndClearsState(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.sessions.events <- session.TrackEvent{PeerID: "bob", Track: &pion.TrackRemote{}}
	r.waitFor(t, "bob has media", func(s room.Snapshot) bool {
		p, ok := participant(s, "bob")
		return ok && p.HasMedia
	})

	r.deliver(t, signaling.MessageTypeUserList, signaling.UserListPayload{Users: []string{"alice"}})

	snap := r.waitFor(t, "bob gone", func(s room.Snapshot) bool {
		_, ok := participant(s, "bob")
		return !ok
	})
	assert.Len(t, snap.Participants, 1)
	assert.Contains(t, r.sessions.closedPeers(), "bob")
}

func TestPeerUnreachableKeepsPresence(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.sessions.events <- session.TrackEvent{PeerID: "bob", Track: &pion.TrackRemote{}}
	r.waitFor(t, "bob has media", func(s room.Snapshot) bool {
		p, ok := participant(s, "bob")
		return ok && p.HasMedia
	})

	r.sessions.events <- session.PeerUnreachableEvent{PeerID: "bob"}

	snap := r.waitFor(t, "bob media dropped", func(s room.Snapshot) bool {
		p, ok := participant(s, "bob")
		return ok && !p.HasMedia
	})

	// Media and presence stay independent: bob is still in the room.
	_, present := participant(snap, "bob")
	assert.True(t, present)
	assert.Contains(t, r.sessions.closedPeers(), "bob")
}

func TestStatusUpdateLastWriteWins(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.deliver(t, signaling.MessageTypeStatusUpdate, signaling.StatusPayload{
		ParticipantID: "bob", IsMuted: true, IsCameraOff: false,
	})
	r.deliver(t, signaling.MessageTypeStatusUpdate, signaling.StatusPayload{
		ParticipantID: "bob", IsMuted: false, IsCameraOff: true,
	})

	snap := r.waitFor(t, "second status applied", func(s room.Snapshot) bool {
		p, ok := participant(s, "bob")
		return ok && p.IsCameraOff
	})
	p, _ := participant(snap, "bob")
	assert.False(t, p.IsMuted, "whole entry is replaced, not merged")
}

func TestStatusUpdateForLocalParticipantIgnored(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.deliver(t, signaling.MessageTypeStatusUpdate, signaling.StatusPayload{
		ParticipantID: "alice", IsMuted: true,
	})
	// A later event flushes the state so we can observe the snapshot.
	r.deliver(t, signaling.MessageTypeContentUpdate, signaling.ContentPayload{Content: "notes"})

	snap := r.waitFor(t, "content applied", func(s room.Snapshot) bool {
		return s.SharedContent == "notes"
	})
	local, _ := participant(snap, "alice")
	assert.False(t, local.IsMuted, "remote echo must not override local state")
}

func TestMuteIntentIsOptimistic(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice")

	r.rec.Dispatch(room.Intent{Kind: room.IntentMute})

	snap := r.waitFor(t, "muted", func(s room.Snapshot) bool {
		p, ok := participant(s, "alice")
		return ok && p.IsMuted
	})
	local, _ := participant(snap, "alice")
	assert.False(t, local.IsCameraOff)

	require.Eventually(t, func() bool {
		r.capture.mu.Lock()
		defer r.capture.mu.Unlock()
		return len(r.capture.audioSet) == 1 && !r.capture.audioSet[0]
	}, time.Second, 10*time.Millisecond, "capture should be disabled without renegotiation")

	// One status_update at join, one for the mute.
	assert.Len(t, r.sig.sentOfType(signaling.MessageTypeStatusUpdate), 2)

	r.rec.Dispatch(room.Intent{Kind: room.IntentMute})
	r.waitFor(t, "unmuted", func(s room.Snapshot) bool {
		p, ok := participant(s, "alice")
		return ok && !p.IsMuted
	})

	// The whole toggle cycle gates the existing tracks; devices are acquired
	// once at connect and never again.
	assert.Equal(t, 1, r.capture.acquireCount())
}

func TestChatIsAppendOnlyAndOrdered(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.rec.Dispatch(room.Intent{Kind: room.IntentSendChat, Text: "morning"})
	r.waitFor(t, "own message", func(s room.Snapshot) bool { return len(s.Chat) == 1 })

	r.deliver(t, signaling.MessageTypeChatMessage, signaling.ChatPayload{
		From: "bob", Text: "o/", Timestamp: time.Now().Format(time.RFC3339),
	})

	snap := r.waitFor(t, "both messages", func(s room.Snapshot) bool { return len(s.Chat) == 2 })
	assert.Equal(t, "alice", snap.Chat[0].SenderID)
	assert.Equal(t, "morning", snap.Chat[0].Text)
	assert.Equal(t, "bob", snap.Chat[1].SenderID)
	assert.NotEmpty(t, snap.Chat[0].ID)

	sent := r.sig.sentOfType(signaling.MessageTypeChatToServer)
	require.Len(t, sent, 1)
	var payload signaling.ChatPayload
	require.NoError(t, sent[0].DecodePayload(&payload))
	assert.Equal(t, "morning", payload.Text)
}

func TestLocalShareClaimsSlot(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.rec.Dispatch(room.Intent{Kind: room.IntentShareSystem})

	snap := r.waitFor(t, "share claimed", func(s room.Snapshot) bool {
		return s.SharingBy == "alice"
	})
	assert.Equal(t, media.ShareAudioSystem, snap.ShareMode)

	require.Eventually(t, func() bool {
		return r.sessions.attachCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestShareModeSwitchKeepsOwner(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.rec.Dispatch(room.Intent{Kind: room.IntentShareSystem})
	require.Eventually(t, func() bool {
		return r.sessions.attachCount() == 1
	}, time.Second, 10*time.Millisecond)

	r.rec.Dispatch(room.Intent{Kind: room.IntentShareMic})

	snap := r.waitFor(t, "mode switched", func(s room.Snapshot) bool {
		return s.ShareMode == media.ShareAudioMic
	})
	assert.Equal(t, "alice", snap.SharingBy, "owner is unchanged across a mode switch")

	require.Eventually(t, func() bool {
		return r.sessions.attachCount() == 2 && r.sessions.detachCount() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []media.ShareAudioMode{media.ShareAudioSystem, media.ShareAudioMic}, r.capture.screenModes())
}

func TestRemoteSharePreemptsLocal(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.rec.Dispatch(room.Intent{Kind: room.IntentShareNone})
	require.Eventually(t, func() bool {
		return r.sessions.attachCount() == 1
	}, time.Second, 10*time.Millisecond)

	r.sessions.events <- session.TrackEvent{PeerID: "bob", Track: &pion.TrackRemote{}, Screen: true}

	snap := r.waitFor(t, "remote share owns the slot", func(s room.Snapshot) bool {
		return s.SharingBy == "bob"
	})
	p, _ := participant(snap, "bob")
	assert.NotNil(t, p.Screen)
	assert.Equal(t, 1, r.sessions.detachCount(), "local share is stopped, never two shares at once")
}

func TestShareFailureRollsBack(t *testing.T) {
	r := newRig(t)
	r.capture.screenErr = media.ErrShareCancelled
	r.connect(t)
	r.join(t, "alice")

	r.rec.Dispatch(room.Intent{Kind: room.IntentShareNone})

	snap := r.waitFor(t, "rollback", func(s room.Snapshot) bool {
		return s.LastError != ""
	})
	assert.Empty(t, snap.SharingBy)
	assert.Zero(t, r.sessions.attachCount())
}

func TestRecordingToggle(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice")

	r.rec.Dispatch(room.Intent{Kind: room.IntentRecord})

	snap := r.waitFor(t, "recording on", func(s room.Snapshot) bool {
		return s.IsRecording && !s.IsRecordingLoading
	})
	assert.Equal(t, "alice", snap.RecordingBy)
	assert.Len(t, r.sig.sentOfType(signaling.MessageTypeRecordingUpdate), 1)

	r.rec.Dispatch(room.Intent{Kind: room.IntentRecord})

	r.waitFor(t, "recording off", func(s room.Snapshot) bool {
		return !s.IsRecording && !s.IsRecordingLoading
	})
	assert.Len(t, r.sig.sentOfType(signaling.MessageTypeRecordingUpdate), 2)
}

func TestRecordingFailureRevertsFlag(t *testing.T) {
	r := newRig(t)
	r.recorder.startErr = errors.New("bot failed to connect")
	r.connect(t)
	r.join(t, "alice")

	r.rec.Dispatch(room.Intent{Kind: room.IntentRecord})

	snap := r.waitFor(t, "recording error", func(s room.Snapshot) bool {
		return s.LastError != ""
	})
	assert.False(t, snap.IsRecording)
	assert.False(t, snap.IsRecordingLoading)
	assert.Empty(t, r.sig.sentOfType(signaling.MessageTypeRecordingUpdate))
}

func TestRemoteRecordingUpdate(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.deliver(t, signaling.MessageTypeRecordingUpdate, signaling.RecordingPayload{
		IsRecording: true, By: "bob",
	})

	snap := r.waitFor(t, "recording flag", func(s room.Snapshot) bool {
		return s.IsRecording
	})
	assert.Equal(t, "bob", snap.RecordingBy)
}

func TestSpeakingEvents(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	// Local voice activity broadcasts over signaling and meta channels.
	r.speaking <- true
	r.waitFor(t, "local speaking", func(s room.Snapshot) bool {
		p, ok := participant(s, "alice")
		return ok && p.Speaking
	})
	assert.Len(t, r.sig.sentOfType(signaling.MessageTypeSpeakingUpdate), 1)

	// Remote pulses arrive over the meta channel.
	r.sessions.events <- session.SpeakingPulseEvent{PeerID: "bob", Speaking: true}
	r.waitFor(t, "remote speaking", func(s room.Snapshot) bool {
		p, ok := participant(s, "bob")
		return ok && p.Speaking
	})
}

func TestConnectionLostKeepsSession(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	close(r.sig.incoming)

	snap := r.waitFor(t, "connection lost", func(s room.Snapshot) bool {
		return s.ConnectionLost
	})
	// Peer media is kept; only an explicit Disconnect tears down.
	assert.Equal(t, room.StatusJoined, snap.Status)
	assert.Zero(t, r.sessions.closeAllCount())
}

func TestEndCallFromServer(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.deliver(t, signaling.MessageTypeEndCall, signaling.EndCallPayload{Reason: "host ended the meeting"})

	snap := r.waitClosed(t)
	assert.Equal(t, room.StatusIdle, snap.Status)
	assert.Equal(t, "host ended the meeting", snap.EndReason)
	assert.Equal(t, 1, r.sessions.closeAllCount())
	assert.Equal(t, 1, r.capture.releaseCount())
}

func TestEndIntentBroadcastsAndLeaves(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.rec.Dispatch(room.Intent{Kind: room.IntentEnd})

	snap := r.waitClosed(t)
	assert.Equal(t, room.StatusIdle, snap.Status)
	assert.Len(t, r.sig.sentOfType(signaling.MessageTypeEndCall), 1)
}

func TestPinToggle(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice", "bob")

	r.rec.Dispatch(room.Intent{Kind: room.IntentPin, ParticipantID: "bob"})
	r.waitFor(t, "pinned", func(s room.Snapshot) bool { return s.Pinned == "bob" })

	r.rec.Dispatch(room.Intent{Kind: room.IntentPin, ParticipantID: "bob"})
	r.waitFor(t, "unpinned", func(s room.Snapshot) bool { return s.Pinned == "" })
}

func TestProgressAndContentUpdates(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice")

	r.deliver(t, signaling.MessageTypeProgressUpdate, signaling.ProgressPayload{
		Tasks:            []signaling.ProgressTask{{ID: "1", Title: "Review"}},
		CurrentTaskIndex: 0,
		State:            "running",
	})
	snap := r.waitFor(t, "progress", func(s room.Snapshot) bool { return s.Progress != nil })
	assert.Equal(t, "running", snap.Progress.State)

	r.deliver(t, signaling.MessageTypeContentUpdate, signaling.ContentPayload{Content: "<p>notes</p>"})
	r.waitFor(t, "content", func(s room.Snapshot) bool { return s.SharedContent == "<p>notes</p>" })
}

func TestUnknownAndMalformedMessagesAreDropped(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	r.join(t, "alice")

	r.sig.incoming <- &signaling.Message{Type: "mystery_kind"}
	r.sig.incoming <- &signaling.Message{Type: signaling.MessageTypeStatusUpdate, Payload: []byte(`{bad`)}

	// The loop survives both; a valid message afterwards still applies.
	r.deliver(t, signaling.MessageTypeContentUpdate, signaling.ContentPayload{Content: "still alive"})
	r.waitFor(t, "subsequent message applied", func(s room.Snapshot) bool {
		return s.SharedContent == "still alive"
	})
}
