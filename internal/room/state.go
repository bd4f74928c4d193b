package room

import (
	"sort"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/signaling"
)

// Status is the local session lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusJoined     Status = "joined"
	StatusLeaving    Status = "leaving"
)

// PeerStatus is a participant's broadcast mute/camera state. The zero value
// is the default for any participant that has not reported yet.
type PeerStatus struct {
	IsMuted     bool
	IsCameraOff bool
}

// RemoteStream groups the inbound tracks of one logical stream (camera+mic,
// or screen contents+audio) from a peer.
type RemoteStream struct {
	Audio *pion.TrackRemote
	Video *pion.TrackRemote
}

// ChatMessage is one entry of the append-only chat log.
type ChatMessage struct {
	ID        string
	SenderID  string
	Text      string
	Timestamp time.Time
}

// Participant is one row of the rendered participant list.
type Participant struct {
	ID          string
	IsLocal     bool
	IsMuted     bool
	IsCameraOff bool
	Speaking    bool
	HasMedia    bool
	Stream      *RemoteStream
	Screen      *RemoteStream
}

// Snapshot is the immutable room view model published after every state
// change. UI surfaces render strictly from snapshots and never share
// mutable state with the reconciler.
type Snapshot struct {
	Status         Status
	ConnectionLost bool

	LocalID      string
	Participants []Participant

	SharingBy     string
	ShareMode     media.ShareAudioMode
	SharedContent string

	Chat []ChatMessage

	IsRecording        bool
	IsRecordingLoading bool
	RecordingBy        string

	Progress *signaling.ProgressPayload

	Pinned      string
	SidebarOpen bool

	EndReason string
	LastError string
}

// roomState is the reconciler's canonical mutable state. It is owned by the
// reconciler goroutine exclusively; everything outside sees Snapshots.
type roomState struct {
	status         Status
	connectionLost bool

	localID      string
	participants map[string]struct{}
	peerStatus   map[string]PeerStatus
	remoteStream map[string]*RemoteStream
	remoteScreen map[string]*RemoteStream
	speakers     map[string]bool

	localMuted     bool
	localCameraOff bool

	sharingBy     string
	shareMode     media.ShareAudioMode
	sharedContent string

	chat []ChatMessage

	isRecording        bool
	isRecordingLoading bool
	recordingBy        string

	progress *signaling.ProgressPayload

	pinned      string
	sidebarOpen bool

	endReason string
	lastError string
}

func newRoomState(localID string) *roomState {
	return &roomState{
		status:       StatusIdle,
		localID:      localID,
		participants: map[string]struct{}{},
		peerStatus:   map[string]PeerStatus{},
		remoteStream: map[string]*RemoteStream{},
		remoteScreen: map[string]*RemoteStream{},
		speakers:     map[string]bool{},
	}
}

// statusFor returns a participant's broadcast status, defaulting to
// unmuted/camera-on for anyone who has not reported yet.
func (s *roomState) statusFor(id string) PeerStatus {
	if id == s.localID {
		return PeerStatus{IsMuted: s.localMuted, IsCameraOff: s.localCameraOff}
	}
	return s.peerStatus[id]
}

// replaceParticipants applies a full-replacement presence list. The local
// participant is always a member while connected, whatever the server list
// says mid-churn. Returns the ids that joined and left.
func (s *roomState) replaceParticipants(list []string) (joined, left []string) {
	next := make(map[string]struct{}, len(list)+1)
	for _, id := range list {
		next[id] = struct{}{}
	}
	next[s.localID] = struct{}{}

	for id := range next {
		if _, ok := s.participants[id]; !ok && id != s.localID {
			joined = append(joined, id)
		}
	}
	for id := range s.participants {
		if _, ok := next[id]; !ok {
			left = append(left, id)
		}
	}

	s.participants = next
	return joined, left
}

// dropPeer removes every per-peer entry for a departed participant.
// Presence itself is handled by replaceParticipants; this clears the
// derived state.
func (s *roomState) dropPeer(id string) {
	delete(s.peerStatus, id)
	delete(s.remoteStream, id)
	delete(s.remoteScreen, id)
	delete(s.speakers, id)
	if s.sharingBy == id {
		s.sharingBy = ""
		s.shareMode = ""
	}
	if s.pinned == id {
		s.pinned = ""
	}
}

// dropPeerMedia clears a peer's streams but keeps it in the presence list,
// distinguishing "media failed" from "participant left".
func (s *roomState) dropPeerMedia(id string) {
	delete(s.remoteStream, id)
	delete(s.remoteScreen, id)
	delete(s.speakers, id)
	if s.sharingBy == id {
		s.sharingBy = ""
		s.shareMode = ""
	}
}

// snapshot builds an immutable copy for publication. Maps and slices are
// copied; remote stream structs are shared read-only references by design
// (the tracks themselves are owned by pion).
func (s *roomState) snapshot() Snapshot {
	ids := make([]string, 0, len(s.participants))
	for id := range s.participants {
		ids = append(ids, id)
	}
	// Local participant first, then stable order by id.
	sort.Slice(ids, func(i, j int) bool {
		if ids[i] == s.localID {
			return true
		}
		if ids[j] == s.localID {
			return false
		}
		return ids[i] < ids[j]
	})

	participants := make([]Participant, 0, len(ids))
	for _, id := range ids {
		st := s.statusFor(id)
		stream := s.remoteStream[id]
		participants = append(participants, Participant{
			ID:          id,
			IsLocal:     id == s.localID,
			IsMuted:     st.IsMuted,
			IsCameraOff: st.IsCameraOff,
			Speaking:    s.speakers[id],
			HasMedia:    stream != nil,
			Stream:      stream,
			Screen:      s.remoteScreen[id],
		})
	}

	chat := make([]ChatMessage, len(s.chat))
	copy(chat, s.chat)

	return Snapshot{
		Status:             s.status,
		ConnectionLost:     s.connectionLost,
		LocalID:            s.localID,
		Participants:       participants,
		SharingBy:          s.sharingBy,
		ShareMode:          s.shareMode,
		SharedContent:      s.sharedContent,
		Chat:               chat,
		IsRecording:        s.isRecording,
		IsRecordingLoading: s.isRecordingLoading,
		RecordingBy:        s.recordingBy,
		Progress:           s.progress,
		Pinned:             s.pinned,
		SidebarOpen:        s.sidebarOpen,
		EndReason:          s.endReason,
		LastError:          s.lastError,
	}
}
