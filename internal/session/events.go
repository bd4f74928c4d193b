package session

import pion "github.com/pion/webrtc/v4"

// Event is the closed set of peer-session events reported to the room
// reconciler. The manager owns all peer state; the reconciler only ever
// sees these derived events.
type Event interface {
	isEvent()
}

// TrackEvent reports an inbound media track from a peer. Screen is true for
// screen-share tracks (classified by stream ID).
type TrackEvent struct {
	PeerID string
	Track  *pion.TrackRemote
	Screen bool
}

// PeerConnectedEvent reports that a peer's media session reached the
// connected state.
type PeerConnectedEvent struct {
	PeerID string
}

// PeerUnreachableEvent reports a terminal per-peer failure (ICE failure or
// negotiation timeout). It removes the peer's streams but not its presence;
// only an explicit leave does that.
type PeerUnreachableEvent struct {
	PeerID string
}

// SpeakingPulseEvent is a peer's voice-activity flag received over the meta
// data channel.
type SpeakingPulseEvent struct {
	PeerID   string
	Speaking bool
}

func (TrackEvent) isEvent()           {}
func (PeerConnectedEvent) isEvent()   {}
func (PeerUnreachableEvent) isEvent() {}
func (SpeakingPulseEvent) isEvent()   {}
