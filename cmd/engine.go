package cmd

import (
	"fmt"

	"github.com/sprintroom/sprintroom-cli/internal/config"
	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/recording"
	"github.com/sprintroom/sprintroom-cli/internal/room"
	"github.com/sprintroom/sprintroom-cli/internal/session"
	"github.com/sprintroom/sprintroom-cli/internal/signaling"
)

// MeetingEngine bundles the wired session components behind the reconciler.
type MeetingEngine struct {
	Reconciler *room.Reconciler
}

// NewMeetingEngine wires signaling, capture, peer sessions, and the recording
// backend into a reconciler for one room.
func NewMeetingEngine(cfg *config.Config, roomID, participantID string, constraints media.Constraints) (*MeetingEngine, error) {
	detector := media.NewDetector(media.DefaultDetectorConfig())

	capture, err := media.NewCapture(detector)
	if err != nil {
		return nil, err
	}

	client := signaling.NewClient(cfg.WebSocketURL(roomID, participantID))

	sessions, err := session.NewManager(cfg, participantID, capture, client)
	if err != nil {
		return nil, err
	}

	recorder := recording.NewClient(cfg.RecordingURL)

	reconciler := room.New(client, capture, sessions, recorder, detector.Events(), room.Options{
		RoomID:         roomID,
		LocalID:        participantID,
		Constraints:    constraints,
		LoopbackDevice: cfg.LoopbackDevice,
	})

	return &MeetingEngine{Reconciler: reconciler}, nil
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}
