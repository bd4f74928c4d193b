package session

import (
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/sprintroom/sprintroom-cli/internal/config"
	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/signaling"
)

// Manager owns every peer media session in the room. All sessions share the
// single local capture by reference; the reconciler never touches a
// PeerConnection, it only consumes Events.
type Manager struct {
	api     *pion.API
	cfg     *config.Config
	localID string
	sender  Sender
	capture *media.Capture

	events chan Event

	mu     sync.Mutex
	peers  map[string]*Peer
	screen *media.ScreenCapture
	closed bool
}

// NewManager builds the pion API with the capture's codec selection so
// inbound tracks decode with the same formats the capture encodes.
func NewManager(cfg *config.Config, localID string, capture *media.Capture, sender Sender) (*Manager, error) {
	engine := &pion.MediaEngine{}
	capture.PopulateEngine(engine)

	return &Manager{
		api:     pion.NewAPI(pion.WithMediaEngine(engine)),
		cfg:     cfg,
		localID: localID,
		sender:  sender,
		capture: capture,
		events:  make(chan Event, 64),
		peers:   make(map[string]*Peer),
	}, nil
}

// Events is the manager's outbound event stream, consumed by the
// reconciler.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// EnsureSession creates the media session for a peer if it does not exist.
// Safe to call for every presence event; an established session is left
// alone.
func (m *Manager) EnsureSession(peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewError("ensure session", ErrSessionClosed)
	}
	if _, ok := m.peers[peerID]; ok {
		return nil
	}
	return m.createSessionLocked(peerID)
}

func (m *Manager) createSessionLocked(peerID string) error {
	pc, err := m.newPeerConnection()
	if err != nil {
		return NewPeerError("create peer connection", peerID, err)
	}

	peer := newPeer(pc, m.localID, peerID, m.sender, m.events)
	m.peers[peerID] = peer

	// Adding the shared local tracks triggers the initial negotiation on
	// the impolite side.
	for _, track := range m.localTracks() {
		rtpSender, err := pc.AddTrack(track)
		if err != nil {
			peer.Close()
			delete(m.peers, peerID)
			return NewPeerError("add local track", peerID, err)
		}
		go discardRTCP(rtpSender)
	}

	if screen := m.screen; screen != nil {
		if err := peer.AttachScreen(asTrackLocals(screen.Tracks())); err != nil {
			slog.Warn("attach screen to new peer", "peer", peerID, "err", err)
		}
	}

	if !peer.polite {
		if err := peer.openMetaChannel(); err != nil {
			slog.Warn("open meta channel", "peer", peerID, "err", err)
		}
	}

	slog.Debug("peer session created", "peer", peerID, "polite", peer.polite)
	return nil
}

func (m *Manager) localTracks() []pion.TrackLocal {
	var tracks []pion.TrackLocal
	if t := m.capture.AudioTrack(); t != nil {
		tracks = append(tracks, t)
	}
	if t := m.capture.VideoTrack(); t != nil {
		tracks = append(tracks, t)
	}
	return tracks
}

// newPeerConnection centralizes ICE server configuration
func (m *Manager) newPeerConnection() (*pion.PeerConnection, error) {
	iceServers := []pion.ICEServer{{URLs: m.cfg.GetSTUNServers()}}

	turnServers := m.cfg.GetTURNServers()
	if turnServers != nil {
		username, password := m.cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && m.cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	return m.api.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
}

// HandleSignal routes a negotiation message to its peer session. An offer
// from an unknown peer creates the session on demand (their presence event
// may still be in flight).
func (m *Manager) HandleSignal(from string, payload signaling.SignalPayload) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	peer, ok := m.peers[from]
	if !ok {
		if payload.Kind != signaling.SignalKindOffer {
			m.mu.Unlock()
			return
		}
		if err := m.createSessionLocked(from); err != nil {
			m.mu.Unlock()
			slog.Warn("session for inbound offer", "peer", from, "err", err)
			return
		}
		peer = m.peers[from]
	}
	m.mu.Unlock()

	if err := peer.HandleSignal(payload); err != nil {
		slog.Warn("handle signal", "peer", from, "err", err)
	}
}

// CloseSession tears down one peer's session. Idempotent: closing an
// unknown or already-closed peer is a no-op.
func (m *Manager) CloseSession(peerID string) {
	m.mu.Lock()
	peer, ok := m.peers[peerID]
	delete(m.peers, peerID)
	m.mu.Unlock()

	if ok {
		peer.Close()
	}
}

// CloseAll tears down every session and stops accepting new ones.
// Idempotent.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	peers := m.peers
	m.peers = make(map[string]*Peer)
	m.mu.Unlock()

	for _, peer := range peers {
		peer.Close()
	}
}

// AttachScreen layers the share's tracks onto every established session and
// remembers them for sessions created while the share is active.
func (m *Manager) AttachScreen(screen *media.ScreenCapture) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return NewError("attach screen", ErrSessionClosed)
	}
	m.screen = screen
	peers := m.snapshotPeersLocked()
	m.mu.Unlock()

	tracks := asTrackLocals(screen.Tracks())
	for _, peer := range peers {
		if err := peer.AttachScreen(tracks); err != nil {
			slog.Warn("attach screen", "peer", peer.id, "err", err)
		}
	}
	return nil
}

// DetachScreen removes the share's tracks from every session. No-op when no
// share is attached.
func (m *Manager) DetachScreen() {
	m.mu.Lock()
	m.screen = nil
	peers := m.snapshotPeersLocked()
	m.mu.Unlock()

	for _, peer := range peers {
		peer.DetachScreen()
	}
}

// BroadcastSpeaking pushes the local voice-activity flag to every peer over
// the meta channels.
func (m *Manager) BroadcastSpeaking(speaking bool) {
	m.mu.Lock()
	peers := m.snapshotPeersLocked()
	m.mu.Unlock()

	for _, peer := range peers {
		peer.SendSpeaking(speaking)
	}
}

func (m *Manager) snapshotPeersLocked() []*Peer {
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	return peers
}

func asTrackLocals(tracks []*pion.TrackLocalStaticRTP) []pion.TrackLocal {
	locals := make([]pion.TrackLocal, len(tracks))
	for i, t := range tracks {
		locals[i] = t
	}
	return locals
}
