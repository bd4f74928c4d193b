package signaling

import "encoding/json"

// Message is the envelope for all WebSocket messages between the client and
// the meeting server. Peer-addressed messages carry To; the server relays
// them to that participant only and broadcasts everything else to the room.
type Message struct {
	Type    string          `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	MessageTypeInitialState    = "initial_state"
	MessageTypeUserList        = "user_list"
	MessageTypeStatusUpdate    = "status_update"
	MessageTypeSpeakingUpdate  = "speaking_update"
	MessageTypeChatToServer    = "chat_message_to_server"
	MessageTypeChatMessage     = "chat_message"
	MessageTypeContentUpdate   = "content_update"
	MessageTypeProgressUpdate  = "progress_update"
	MessageTypeRecordingUpdate = "recording_update"
	MessageTypeSignal          = "signal"
	MessageTypeEndCall         = "end_call"
)

// InitialStatePayload is sent once to a newly joined participant.
type InitialStatePayload struct {
	Participants  []string `json:"participants"`
	SharedContent string   `json:"shared_content,omitempty"`
}

// UserListPayload carries the full replacement participant list.
type UserListPayload struct {
	Users []string `json:"users"`
}

// StatusPayload broadcasts a participant's mute/camera state.
type StatusPayload struct {
	ParticipantID string `json:"participant_id"`
	IsMuted       bool   `json:"is_muted"`
	IsCameraOff   bool   `json:"is_camera_off"`
}

// SpeakingPayload broadcasts a participant's voice-activity flag.
type SpeakingPayload struct {
	ParticipantID string `json:"participant_id"`
	Speaking      bool   `json:"speaking"`
}

// ChatPayload is a single chat message.
type ChatPayload struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// ContentPayload carries a raw shareable text/HTML payload.
type ContentPayload struct {
	Content string `json:"content"`
}

// ProgressTask is one agenda item of the meeting progress board.
type ProgressTask struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Owner  string `json:"owner"`
	Status string `json:"status"`
}

// ProgressPayload is pushed by the meeting facilitator and relayed verbatim.
type ProgressPayload struct {
	Tasks            []ProgressTask `json:"tasks"`
	CurrentTaskIndex int            `json:"current_task_index"`
	State            string         `json:"state"`
	StartTime        string         `json:"start_time,omitempty"`
	EndTime          string         `json:"end_time,omitempty"`
}

// RecordingPayload announces the room-wide recording flag.
type RecordingPayload struct {
	IsRecording bool   `json:"is_recording"`
	By          string `json:"by,omitempty"`
}

// EndCallPayload announces the end of the meeting.
type EndCallPayload struct {
	Reason string `json:"reason,omitempty"`
}

// SignalPayload represents the WebRTC negotiation data (SDP offer/answer or
// ICE candidate). It is opaque to everything except the peer session that
// it is addressed to.
type SignalPayload struct {
	Kind      string          `json:"kind"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Signal kinds.
const (
	SignalKindOffer     = "offer"
	SignalKindAnswer    = "answer"
	SignalKindCandidate = "candidate"
)

// NewMessage creates a Message with the given type and JSON-encoded payload.
func NewMessage(t string, payload any) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}
