package cmd

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sprintroom/sprintroom-cli/internal/config"
	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/ui"
)

var (
	flagDomain       string
	flagInsecure     bool
	flagRecordingURL string
	flagSTUN         string
	flagTURN         string
	flagTURNUser     string
	flagTURNPass     string
	flagRelay        bool
	flagLoopback     string

	flagName        string
	flagNoAudio     bool
	flagNoVideo     bool
	flagAudioDevice string
	flagVideoDevice string
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join a meeting room",
	Long: `Join a SprintRoom meeting from the terminal.

Examples:
  sprintroom join standup-42
  sprintroom join --name alice --no-video standup-42
  sprintroom join --domain meet.example.com --relay standup-42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(roomID string) error {
	cfg, err := LoadConfig(config.Options{
		Domain:         flagDomain,
		Insecure:       flagInsecure,
		RecordingURL:   flagRecordingURL,
		STUNServer:     flagSTUN,
		TURNServer:     flagTURN,
		TURNUser:       flagTURNUser,
		TURNPass:       flagTURNPass,
		ForceRelay:     flagRelay,
		LoopbackDevice: flagLoopback,
	})
	if err != nil {
		return err
	}

	participantID := strings.TrimSpace(flagName)
	if participantID == "" {
		participantID = "guest-" + uuid.NewString()[:8]
	}

	ui.RenderRoomInfo(roomID, cfg.GetRoomLink(roomID))

	engine, err := NewMeetingEngine(cfg, roomID, participantID, media.Constraints{
		AudioEnabled:  !flagNoAudio,
		VideoEnabled:  !flagNoVideo,
		AudioDeviceID: flagAudioDevice,
		VideoDeviceID: flagVideoDevice,
	})
	if err != nil {
		return err
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to room...")
	if err := engine.Reconciler.Connect(); err != nil {
		stopSpinner()
		return fmt.Errorf("connect to room: %w", err)
	}
	stopSpinner()

	model := ui.NewMeetingModel(engine.Reconciler, roomID, cfg.GetRoomLink(roomID))
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		engine.Reconciler.Disconnect()
		return fmt.Errorf("run meeting UI: %w", err)
	}

	engine.Reconciler.Disconnect()

	fmt.Println()
	ui.RenderMeetingSummary(model.Summary())
	return nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom meeting server domain")
	joinCmd.Flags().BoolVar(&flagInsecure, "insecure", false, "Use ws/http instead of wss/https")
	joinCmd.Flags().StringVar(&flagRecordingURL, "recording-url", "", "Custom recording service URL")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	joinCmd.Flags().StringVar(&flagLoopback, "loopback-device", "", "Audio input device for system-audio screen share")

	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (defaults to a generated guest name)")
	joinCmd.Flags().BoolVar(&flagNoAudio, "no-audio", false, "Join without microphone capture")
	joinCmd.Flags().BoolVar(&flagNoVideo, "no-video", false, "Join without camera capture")
	joinCmd.Flags().StringVar(&flagAudioDevice, "audio-device", "", "Microphone device ID (see 'sprintroom devices')")
	joinCmd.Flags().StringVar(&flagVideoDevice, "video-device", "", "Camera device ID (see 'sprintroom devices')")
}
