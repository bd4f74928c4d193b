package session

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sprintroom/sprintroom-cli/internal/signaling"
)

const negotiationTimeout = 30 * time.Second

// Sender is the slice of the signaling client the session layer needs.
type Sender interface {
	SendMessage(msg *signaling.Message)
}

// Peer is one remote participant's media session: a dedicated
// PeerConnection negotiated over the signaling channel, plus the meta data
// channel. The lexicographically smaller participant id is the impolite
// side and drives offers; the polite side answers and rolls back on glare.
type Peer struct {
	id      string
	localID string
	polite  bool

	pc     *pion.PeerConnection
	sender Sender
	events chan<- Event

	mu                sync.Mutex
	meta              *pion.DataChannel
	screenSenders     []*pion.RTPSender
	pendingCandidates []pion.ICECandidateInit
	makingOffer       bool
	closed            bool

	watchdog *time.Timer
}

func newPeer(pc *pion.PeerConnection, localID, peerID string, sender Sender, events chan<- Event) *Peer {
	p := &Peer{
		id:      peerID,
		localID: localID,
		polite:  localID > peerID,
		pc:      pc,
		sender:  sender,
		events:  events,
	}

	p.watchdog = time.AfterFunc(negotiationTimeout, func() {
		slog.Warn("peer negotiation timed out", "peer", p.id)
		p.emit(PeerUnreachableEvent{PeerID: p.id})
		p.Close()
	})

	p.setupHandlers()
	return p
}

func (p *Peer) setupHandlers() {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		candidate, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		p.sendSignal(signaling.SignalPayload{
			Kind:      signaling.SignalKindCandidate,
			Candidate: candidate,
		})
	})

	p.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("peer connection state", "peer", p.id, "state", state)
		switch state {
		case pion.PeerConnectionStateConnected:
			p.watchdog.Stop()
			p.emit(PeerConnectedEvent{PeerID: p.id})
		case pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed:
			p.emit(PeerUnreachableEvent{PeerID: p.id})
		}
	})

	p.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		p.emit(TrackEvent{
			PeerID: p.id,
			Track:  track,
			Screen: strings.HasPrefix(track.StreamID(), "screen-"),
		})
	})

	p.pc.OnNegotiationNeeded(func() {
		if err := p.negotiate(); err != nil {
			slog.Warn("renegotiation failed", "peer", p.id, "err", err)
		}
	})

	p.pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != metaChannelLabel {
			return
		}
		p.mu.Lock()
		p.meta = dc
		p.mu.Unlock()
		p.setupMetaHandlers(dc)
	})
}

// openMetaChannel is called on the impolite side only; the polite side
// receives the channel via OnDataChannel.
func (p *Peer) openMetaChannel() error {
	ordered := true
	dc, err := p.pc.CreateDataChannel(metaChannelLabel, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return NewPeerError("create meta channel", p.id, err)
	}
	p.mu.Lock()
	p.meta = dc
	p.mu.Unlock()
	p.setupMetaHandlers(dc)
	return nil
}

func (p *Peer) setupMetaHandlers(dc *pion.DataChannel) {
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		var meta MetaMessage
		if err := msgpack.Unmarshal(msg.Data, &meta); err != nil {
			return
		}

		switch meta.Type {
		case MetaTypeSpeaking:
			var payload SpeakingPayload
			if meta.DecodePayload(&payload) == nil {
				p.emit(SpeakingPulseEvent{PeerID: p.id, Speaking: payload.Speaking})
			}

		case MetaTypePing:
			var payload PingPayload
			if meta.DecodePayload(&payload) == nil {
				p.sendMeta(MetaTypePong, PingPayload{SentAt: payload.SentAt})
			}

		default:
			// Unknown meta kinds are dropped like unknown signaling kinds.
		}
	})
}

// SendSpeaking pushes the local voice-activity flag over the meta channel.
// Best effort: a closed or not-yet-open channel drops the pulse, the next
// transition will correct the remote view.
func (p *Peer) SendSpeaking(speaking bool) {
	p.sendMeta(MetaTypeSpeaking, SpeakingPayload{Speaking: speaking})
}

func (p *Peer) sendMeta(t string, payload any) {
	p.mu.Lock()
	dc := p.meta
	p.mu.Unlock()

	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return
	}

	meta, err := NewMetaMessage(t, payload)
	if err != nil {
		return
	}
	b, err := msgpack.Marshal(meta)
	if err != nil {
		return
	}
	if err := dc.Send(b); err != nil {
		slog.Debug("meta send", "peer", p.id, "err", err)
	}
}

// negotiate creates and sends an offer. Only runs when signaling is stable
// so renegotiations queue naturally behind the current exchange.
func (p *Peer) negotiate() error {
	p.mu.Lock()
	if p.closed || p.pc.SignalingState() != pion.SignalingStateStable {
		p.mu.Unlock()
		return nil
	}
	p.makingOffer = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.makingOffer = false
		p.mu.Unlock()
	}()

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return NewPeerError("create offer", p.id, err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return NewPeerError("set local description", p.id, err)
	}

	p.sendSignal(signaling.SignalPayload{
		Kind: signaling.SignalKindOffer,
		SDP:  p.pc.LocalDescription().SDP,
	})
	return nil
}

// HandleSignal applies a negotiation message from this peer.
func (p *Peer) HandleSignal(payload signaling.SignalPayload) error {
	switch payload.Kind {
	case signaling.SignalKindOffer:
		return p.handleOffer(payload.SDP)
	case signaling.SignalKindAnswer:
		return p.handleAnswer(payload.SDP)
	case signaling.SignalKindCandidate:
		return p.handleCandidate(payload.Candidate)
	default:
		return WrapError("handle signal", ErrUnexpectedSignal, payload.Kind)
	}
}

func (p *Peer) handleOffer(sdp string) error {
	p.mu.Lock()
	collision := p.makingOffer || p.pc.SignalingState() != pion.SignalingStateStable
	polite := p.polite
	p.mu.Unlock()

	if collision {
		if !polite {
			// Impolite side ignores the colliding offer; its own offer
			// wins and the peer will answer it.
			return nil
		}
		rollback := pion.SessionDescription{Type: pion.SDPTypeRollback}
		if err := p.pc.SetLocalDescription(rollback); err != nil {
			return NewPeerError("rollback", p.id, err)
		}
	}

	offer := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return NewPeerError("set remote description", p.id, err)
	}
	p.drainCandidates()

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return NewPeerError("create answer", p.id, err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return NewPeerError("set local description", p.id, err)
	}

	p.sendSignal(signaling.SignalPayload{
		Kind: signaling.SignalKindAnswer,
		SDP:  p.pc.LocalDescription().SDP,
	})
	return nil
}

func (p *Peer) handleAnswer(sdp string) error {
	answer := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return NewPeerError("set remote description", p.id, err)
	}
	p.drainCandidates()
	return nil
}

func (p *Peer) handleCandidate(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}

	var ice pion.ICECandidateInit
	if err := json.Unmarshal(raw, &ice); err != nil {
		return NewPeerError("parse ICE candidate", p.id, err)
	}

	// Candidates arriving before the remote description are buffered and
	// drained once it lands; transport order does not guarantee the SDP
	// comes first.
	p.mu.Lock()
	if p.pc.RemoteDescription() == nil {
		p.pendingCandidates = append(p.pendingCandidates, ice)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.pc.AddICECandidate(ice); err != nil {
		return NewPeerError("add ICE candidate", p.id, err)
	}
	return nil
}

func (p *Peer) drainCandidates() {
	p.mu.Lock()
	pending := p.pendingCandidates
	p.pendingCandidates = nil
	p.mu.Unlock()

	for _, ice := range pending {
		if err := p.pc.AddICECandidate(ice); err != nil {
			slog.Debug("buffered candidate", "peer", p.id, "err", err)
		}
	}
}

// AttachScreen layers the screen-share tracks onto the existing session.
// The resulting renegotiation leaves the camera/mic senders untouched.
func (p *Peer) AttachScreen(tracks []pion.TrackLocal) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return NewPeerError("attach screen", p.id, ErrSessionClosed)
	}
	p.mu.Unlock()

	for _, track := range tracks {
		rtpSender, err := p.pc.AddTrack(track)
		if err != nil {
			return NewPeerError("attach screen", p.id, err)
		}
		go discardRTCP(rtpSender)

		p.mu.Lock()
		p.screenSenders = append(p.screenSenders, rtpSender)
		p.mu.Unlock()
	}
	return nil
}

// DetachScreen removes the screen-share senders added by AttachScreen.
// No-op when nothing is attached.
func (p *Peer) DetachScreen() {
	p.mu.Lock()
	senders := p.screenSenders
	p.screenSenders = nil
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return
	}
	for _, s := range senders {
		if err := p.pc.RemoveTrack(s); err != nil {
			slog.Debug("detach screen", "peer", p.id, "err", err)
		}
	}
}

// Close tears down the session. Idempotent: closing an already-closed peer
// is a no-op.
func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.watchdog.Stop()
	if err := p.pc.Close(); err != nil {
		slog.Debug("close peer connection", "peer", p.id, "err", err)
	}
}

func (p *Peer) sendSignal(payload signaling.SignalPayload) {
	msg, err := signaling.NewMessage(signaling.MessageTypeSignal, payload)
	if err != nil {
		return
	}
	msg.From = p.localID
	msg.To = p.id
	p.sender.SendMessage(msg)
}

func (p *Peer) emit(ev Event) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		if _, ok := ev.(PeerUnreachableEvent); !ok {
			return
		}
	}

	select {
	case p.events <- ev:
	default:
		slog.Warn("session event dropped", "peer", p.id)
	}
}

// discardRTCP drains RTCP for a sender so interceptors keep working.
func discardRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
