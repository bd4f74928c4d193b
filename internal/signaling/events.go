package signaling

import (
	"fmt"
	"time"
)

// Event is the closed set of decoded signaling events. Every inbound message
// kind maps to exactly one Event type; unknown kinds map to nil so the
// dispatcher can drop them without failing.
type Event interface {
	isEvent()
}

// InitialStateEvent is the room snapshot delivered once after joining.
type InitialStateEvent struct {
	Participants  []string
	SharedContent string
}

// PresenceEvent replaces the full participant list (join and leave both
// arrive as a new list, not a delta).
type PresenceEvent struct {
	Participants []string
}

// StatusEvent is a peer's mute/camera broadcast.
type StatusEvent struct {
	ParticipantID string
	IsMuted       bool
	IsCameraOff   bool
}

// SpeakingEvent is a peer's voice-activity broadcast.
type SpeakingEvent struct {
	ParticipantID string
	Speaking      bool
}

// ChatEvent is one chat message.
type ChatEvent struct {
	From      string
	Text      string
	Timestamp time.Time
}

// ContentEvent replaces the shared text/HTML content.
type ContentEvent struct {
	Content string
}

// ProgressEvent relays the meeting progress board.
type ProgressEvent struct {
	Progress ProgressPayload
}

// RecordingEvent announces the room recording flag.
type RecordingEvent struct {
	IsRecording bool
	By          string
}

// EndCallEvent ends the meeting for everyone.
type EndCallEvent struct {
	Reason string
}

// NegotiationEvent is peer-addressed offer/answer/candidate data.
type NegotiationEvent struct {
	From    string
	Payload SignalPayload
}

func (InitialStateEvent) isEvent() {}
func (PresenceEvent) isEvent()     {}
func (StatusEvent) isEvent()       {}
func (SpeakingEvent) isEvent()     {}
func (ChatEvent) isEvent()         {}
func (ContentEvent) isEvent()      {}
func (ProgressEvent) isEvent()     {}
func (RecordingEvent) isEvent()    {}
func (EndCallEvent) isEvent()      {}
func (NegotiationEvent) isEvent()  {}

// DecodeEvent turns a wire message into a typed event. A nil event with a
// nil error means the message kind is unknown and should be ignored.
func DecodeEvent(msg *Message) (Event, error) {
	switch msg.Type {

	case MessageTypeInitialState:
		var p InitialStatePayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode initial_state: %w", err)
		}
		return InitialStateEvent{Participants: p.Participants, SharedContent: p.SharedContent}, nil

	case MessageTypeUserList:
		var p UserListPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode user_list: %w", err)
		}
		return PresenceEvent{Participants: p.Users}, nil

	case MessageTypeStatusUpdate:
		var p StatusPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode status_update: %w", err)
		}
		return StatusEvent{ParticipantID: p.ParticipantID, IsMuted: p.IsMuted, IsCameraOff: p.IsCameraOff}, nil

	case MessageTypeSpeakingUpdate:
		var p SpeakingPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode speaking_update: %w", err)
		}
		return SpeakingEvent{ParticipantID: p.ParticipantID, Speaking: p.Speaking}, nil

	case MessageTypeChatMessage:
		var p ChatPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode chat_message: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			ts = time.Now()
		}
		return ChatEvent{From: p.From, Text: p.Text, Timestamp: ts}, nil

	case MessageTypeContentUpdate:
		var p ContentPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode content_update: %w", err)
		}
		return ContentEvent{Content: p.Content}, nil

	case MessageTypeProgressUpdate:
		var p ProgressPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode progress_update: %w", err)
		}
		return ProgressEvent{Progress: p}, nil

	case MessageTypeRecordingUpdate:
		var p RecordingPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode recording_update: %w", err)
		}
		return RecordingEvent{IsRecording: p.IsRecording, By: p.By}, nil

	case MessageTypeEndCall:
		var p EndCallPayload
		if len(msg.Payload) > 0 {
			if err := msg.DecodePayload(&p); err != nil {
				return nil, fmt.Errorf("decode end_call: %w", err)
			}
		}
		return EndCallEvent{Reason: p.Reason}, nil

	case MessageTypeSignal:
		var p SignalPayload
		if err := msg.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("decode signal: %w", err)
		}
		return NegotiationEvent{From: msg.From, Payload: p}, nil

	default:
		// Unknown kinds are dropped, forward compatible with future
		// server message types.
		return nil, nil
	}
}
