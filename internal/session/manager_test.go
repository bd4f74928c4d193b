package session_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintroom/sprintroom-cli/internal/config"
	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/session"
	"github.com/sprintroom/sprintroom-cli/internal/signaling"
)

// fakeSender collects the negotiation messages the sessions emit.
type fakeSender struct {
	mu   sync.Mutex
	sent []*signaling.Message
}

func (f *fakeSender) SendMessage(msg *signaling.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeSender) messages() []*signaling.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*signaling.Message(nil), f.sent...)
}

func newTestManager(t *testing.T) (*session.Manager, *fakeSender) {
	t.Helper()

	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)

	capture, err := media.NewCapture(media.NewDetector(media.DefaultDetectorConfig()))
	require.NoError(t, err)

	sender := &fakeSender{}
	manager, err := session.NewManager(cfg, "alice", capture, sender)
	require.NoError(t, err)

	t.Cleanup(manager.CloseAll)
	return manager, sender
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	manager, _ := newTestManager(t)

	require.NoError(t, manager.EnsureSession("bob"))
	require.NoError(t, manager.EnsureSession("bob"))
}

func TestCloseSessionIsIdempotent(t *testing.T) {
	manager, _ := newTestManager(t)

	require.NoError(t, manager.EnsureSession("bob"))
	manager.CloseSession("bob")
	manager.CloseSession("bob")
	manager.CloseSession("never-existed")
}

func TestCloseAllRejectsNewSessions(t *testing.T) {
	manager, _ := newTestManager(t)

	require.NoError(t, manager.EnsureSession("bob"))
	manager.CloseAll()
	manager.CloseAll()

	err := manager.EnsureSession("carol")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrSessionClosed)
}

func TestHandleSignalUnknownPeerNonOfferIgnored(t *testing.T) {
	manager, sender := newTestManager(t)

	// Answers and candidates for unknown peers are dropped; only an offer
	// creates a session on demand.
	manager.HandleSignal("ghost", signaling.SignalPayload{
		Kind: signaling.SignalKindAnswer,
		SDP:  "v=0",
	})
	manager.HandleSignal("ghost", signaling.SignalPayload{
		Kind: signaling.SignalKindCandidate,
	})

	assert.Empty(t, sender.messages())
}

func TestHandleSignalAfterCloseAll(t *testing.T) {
	manager, _ := newTestManager(t)

	manager.CloseAll()
	manager.HandleSignal("bob", signaling.SignalPayload{
		Kind: signaling.SignalKindOffer,
		SDP:  "v=0",
	})
}

func TestBroadcastSpeakingWithoutPeers(t *testing.T) {
	manager, _ := newTestManager(t)

	// No sessions yet; the broadcast is a no-op, not a panic.
	manager.BroadcastSpeaking(true)
	manager.BroadcastSpeaking(false)
}

func TestDetachScreenWithoutShare(t *testing.T) {
	manager, _ := newTestManager(t)

	require.NoError(t, manager.EnsureSession("bob"))
	manager.DetachScreen()
}
