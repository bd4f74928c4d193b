package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/room"
)

const tilesPerRow = 3

// Engine is the slice of the room reconciler the meeting UI drives. The UI
// renders snapshots and dispatches intents; it never touches engine state.
type Engine interface {
	Dispatch(intent room.Intent)
	Snapshots() <-chan room.Snapshot
}

// snapshotMsg carries the next room view model into the update loop.
type snapshotMsg room.Snapshot

// snapshotsClosedMsg signals that the session reached Idle and the channel
// closed.
type snapshotsClosedMsg struct{}

// MeetingModel is the Bubble Tea model for an active meeting.
type MeetingModel struct {
	engine   Engine
	roomID   string
	roomLink string

	snap      room.Snapshot
	haveSnap  bool
	startTime time.Time

	spinner   spinner.Model
	chatInput textinput.Model
	chatView  viewport.Model

	chatFocused bool
	width       int
	height      int
	quitting    bool
}

// NewMeetingModel builds the meeting UI bound to a reconciler.
func NewMeetingModel(engine Engine, roomID, roomLink string) *MeetingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 500
	input.Width = 38

	vp := viewport.New(40, 12)

	return &MeetingModel{
		engine:    engine,
		roomID:    roomID,
		roomLink:  roomLink,
		spinner:   s,
		chatInput: input,
		chatView:  vp,
		startTime: time.Now(),
		width:     100,
		height:    30,
	}
}

// Summary returns the end-of-session recap built from the last snapshot.
func (m *MeetingModel) Summary() MeetingSummary {
	return MeetingSummary{
		Room:         m.roomID,
		Duration:     formatDuration(time.Since(m.startTime).Seconds()),
		Participants: len(m.snap.Participants),
		Messages:     len(m.snap.Chat),
		Recorded:     m.snap.IsRecording,
		EndReason:    m.snap.EndReason,
	}
}

func (m *MeetingModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForSnapshots(),
	)
}

// listenForSnapshots blocks on the reconciler's latest-wins channel and
// resubscribes after every delivery.
func (m *MeetingModel) listenForSnapshots() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.engine.Snapshots()
		if !ok {
			return snapshotsClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m *MeetingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
		if m.chatFocused {
			var cmd tea.Cmd
			m.chatInput, cmd = m.chatInput.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatView.Height = max(6, msg.Height-14)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case snapshotMsg:
		m.snap = room.Snapshot(msg)
		m.haveSnap = true
		m.chatView.SetContent(m.chatContent())
		m.chatView.GotoBottom()
		cmds = append(cmds, m.listenForSnapshots())

	case snapshotsClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

// handleKey maps key presses to intents. While the chat input is focused
// only enter/esc are intercepted, everything else types into the box.
func (m *MeetingModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.chatFocused {
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.chatInput.Value())
			if text != "" {
				m.engine.Dispatch(room.Intent{Kind: room.IntentSendChat, Text: text})
			}
			m.chatInput.Reset()
			return nil, true
		case "esc":
			m.chatFocused = false
			m.chatInput.Blur()
			return nil, true
		case "ctrl+c":
			m.quitting = true
			return tea.Quit, true
		}
		return nil, false
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit, true

	case "e":
		m.engine.Dispatch(room.Intent{Kind: room.IntentEnd})
		return nil, true

	case "m":
		m.engine.Dispatch(room.Intent{Kind: room.IntentMute})
		return nil, true

	case "c":
		m.engine.Dispatch(room.Intent{Kind: room.IntentCamera})
		return nil, true

	case "s":
		if m.snap.SharingBy == m.snap.LocalID {
			m.engine.Dispatch(room.Intent{Kind: room.IntentShareStop})
		} else {
			m.engine.Dispatch(room.Intent{Kind: room.IntentShareNone})
		}
		return nil, true

	case "a":
		m.engine.Dispatch(room.Intent{Kind: room.IntentShareMic})
		return nil, true

	case "y":
		m.engine.Dispatch(room.Intent{Kind: room.IntentShareSystem})
		return nil, true

	case "r":
		m.engine.Dispatch(room.Intent{Kind: room.IntentRecord})
		return nil, true

	case "t":
		m.engine.Dispatch(room.Intent{Kind: room.IntentSidebarToggle})
		if !m.snap.SidebarOpen {
			m.chatFocused = true
			m.chatInput.Focus()
		} else {
			m.chatFocused = false
			m.chatInput.Blur()
		}
		return nil, true

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.String()[0] - '1')
		if idx < len(m.snap.Participants) {
			m.engine.Dispatch(room.Intent{
				Kind:          room.IntentPin,
				ParticipantID: m.snap.Participants[idx].ID,
			})
		}
		return nil, true
	}

	return nil, false
}

func (m *MeetingModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := HeaderStyle.Render(fmt.Sprintf("%s SprintRoom - %s", IconRoom, m.roomID))
	b.WriteString(header + "\n")

	switch {
	case !m.haveSnap || m.snap.Status == room.StatusConnecting:
		b.WriteString(fmt.Sprintf("\n%s Connecting to room...\n", m.spinner.View()))

	case m.snap.Status == room.StatusLeaving:
		b.WriteString(fmt.Sprintf("\n%s Leaving room...\n", m.spinner.View()))

	default:
		b.WriteString(m.viewMeeting())
	}

	b.WriteString("\n" + m.viewFooter())
	return ContainerStyle.Render(b.String())
}

func (m *MeetingModel) viewMeeting() string {
	var b strings.Builder

	b.WriteString(m.viewStatusLine())
	b.WriteString("\n")

	main := m.viewTiles()
	if m.snap.SidebarOpen {
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, "  ", m.viewChat())
	}
	b.WriteString(main)
	b.WriteString("\n")

	if m.snap.SharedContent != "" {
		b.WriteString("\n" + InfoBoxStyle.Render(fmt.Sprintf("%s %s", IconChat, m.snap.SharedContent)) + "\n")
	}

	if m.snap.Progress != nil {
		b.WriteString("\n" + m.viewProgress() + "\n")
	}

	if m.snap.LastError != "" {
		b.WriteString("\n" + WarningStyle.Render(fmt.Sprintf("%s %s", IconWarning, m.snap.LastError)) + "\n")
	}

	return b.String()
}

func (m *MeetingModel) viewStatusLine() string {
	var parts []string

	if m.snap.ConnectionLost {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%s Connection lost", IconWarning)))
	}

	if m.snap.IsRecordingLoading {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%s Recording...", m.spinner.View())))
	} else if m.snap.IsRecording {
		by := m.snap.RecordingBy
		if by == m.snap.LocalID {
			by = "you"
		}
		parts = append(parts, RecordingStyle.Render(fmt.Sprintf("%s REC (%s)", IconRecord, by)))
	}

	if m.snap.SharingBy != "" {
		who := m.snap.SharingBy
		if who == m.snap.LocalID {
			who = "you"
		}
		share := fmt.Sprintf("%s Sharing: %s", IconScreen, who)
		if m.snap.ShareMode == media.ShareAudioMic {
			share += " (mic audio)"
		} else if m.snap.ShareMode == media.ShareAudioSystem {
			share += " (system audio)"
		}
		parts = append(parts, SubtitleStyle.Render(share))
	}

	if len(parts) == 0 {
		return MutedStyle.Render(fmt.Sprintf("%s %d participant(s)", IconPeer, len(m.snap.Participants)))
	}
	return strings.Join(parts, "  ")
}

// viewTiles renders the participant grid. The pinned participant, if any, is
// always in the first slot.
func (m *MeetingModel) viewTiles() string {
	participants := m.snap.Participants
	if m.snap.Pinned != "" {
		ordered := make([]room.Participant, 0, len(participants))
		for _, p := range participants {
			if p.ID == m.snap.Pinned {
				ordered = append(ordered, p)
			}
		}
		for _, p := range participants {
			if p.ID != m.snap.Pinned {
				ordered = append(ordered, p)
			}
		}
		participants = ordered
	}

	var rows []string
	for i := 0; i < len(participants); i += tilesPerRow {
		end := min(i+tilesPerRow, len(participants))
		tiles := make([]string, 0, tilesPerRow)
		for _, p := range participants[i:end] {
			tiles = append(tiles, m.viewTile(p))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *MeetingModel) viewTile(p room.Participant) string {
	name := truncateString(p.ID, 16)
	if p.IsLocal {
		name += " (you)"
	}

	mic := IconMic
	if p.IsMuted {
		mic = IconMicOff
	}
	cam := IconCamera
	if p.IsCameraOff {
		cam = IconCameraOff
	}

	var badges []string
	if p.Speaking {
		badges = append(badges, IconSpeaking)
	}
	if p.ID == m.snap.Pinned {
		badges = append(badges, IconPin)
	}
	if p.ID == m.snap.SharingBy {
		badges = append(badges, IconScreen)
	}

	feed := MutedStyle.Render("no media")
	if p.IsLocal {
		feed = MutedStyle.Render("local capture")
	} else if p.HasMedia {
		feed = SuccessStyle.Render("live")
	}

	content := fmt.Sprintf("%s %s\n%s %s  %s\n%s",
		IconPeer, BoldStyle.Render(name),
		mic, cam, strings.Join(badges, " "),
		feed,
	)

	style := TileStyle
	if p.Speaking {
		style = TileSpeakingStyle
	} else if p.ID == m.snap.Pinned {
		style = TilePinnedStyle
	}
	return style.Render(content)
}

func (m *MeetingModel) viewChat() string {
	var b strings.Builder
	b.WriteString(BoldStyle.Render(fmt.Sprintf("%s Chat", IconChat)) + "\n")
	b.WriteString(m.chatView.View())
	b.WriteString("\n" + m.chatInput.View())
	return SidebarStyle.Render(b.String())
}

func (m *MeetingModel) chatContent() string {
	if len(m.snap.Chat) == 0 {
		return MutedStyle.Render("No messages yet")
	}

	var b strings.Builder
	for _, msg := range m.snap.Chat {
		sender := msg.SenderID
		if sender == m.snap.LocalID {
			sender = "you"
		}
		b.WriteString(fmt.Sprintf("%s %s\n%s\n",
			BoldStyle.Render(truncateString(sender, 14)),
			MutedStyle.Render(msg.Timestamp.Format("15:04")),
			msg.Text,
		))
	}
	return b.String()
}

func (m *MeetingModel) viewProgress() string {
	prog := m.snap.Progress

	var b strings.Builder
	b.WriteString(BoldStyle.Render(fmt.Sprintf("%s Agenda (%s)", IconTask, prog.State)) + "\n")
	for i, task := range prog.Tasks {
		marker := "  "
		style := MutedStyle
		if i == prog.CurrentTaskIndex {
			marker = "▶ "
			style = SuccessStyle
		}
		line := fmt.Sprintf("%s%s", marker, truncateString(task.Title, 40))
		if task.Owner != "" {
			line += MutedStyle.Render(fmt.Sprintf(" (%s)", task.Owner))
		}
		b.WriteString(style.Render(line) + "\n")
	}
	return InfoBoxStyle.Render(b.String())
}

func (m *MeetingModel) viewFooter() string {
	if m.chatFocused {
		return FooterStyle.Render("enter send · esc close chat")
	}
	return FooterStyle.Render("m mic · c camera · s share · a +mic · y +system · r record · t chat · 1-9 pin · e end · q leave")
}

func formatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	if seconds < 3600 {
		mins := int(seconds) / 60
		secs := int(seconds) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(seconds) / 3600
	mins := (int(seconds) % 3600) / 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
