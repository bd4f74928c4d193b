package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	gptable "github.com/jedib0t/go-pretty/v6/table"
)

// DeviceTableItem represents a capture device in the table
type DeviceTableItem struct {
	Index int
	ID    string
	Label string
	Kind  string
}

// DeviceTable renders the available capture devices using lipgloss/table
type DeviceTable struct {
	items []DeviceTableItem
}

// NewDeviceTable creates a new device table
func NewDeviceTable(items []DeviceTableItem) *DeviceTable {
	return &DeviceTable{items: items}
}

// View renders the table as a string
func (t *DeviceTable) View() string {
	if len(t.items) == 0 {
		return MutedStyle.Render("No capture devices found")
	}

	headers := []string{"#", "ID", "Label", "Kind"}

	var rows [][]string
	for _, item := range t.items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Index),
			truncateString(item.ID, 30),
			truncateString(item.Label, 40),
			item.Kind,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderDeviceTable(items []DeviceTableItem) {
	fmt.Println(NewDeviceTable(items).View())
}

// MeetingSummary is the end-of-session recap printed after leaving a room.
type MeetingSummary struct {
	Room         string
	Duration     string
	Participants int
	Messages     int
	Recorded     bool
	EndReason    string
}

func MeetingSummaryView(summary MeetingSummary) string {
	recorded := "No"
	if summary.Recorded {
		recorded = "Yes"
	}

	t := gptable.NewWriter()
	t.SetTitle("📊 Meeting Summary")
	t.AppendHeader(gptable.Row{"Metric", "Value"})
	t.AppendRows([]gptable.Row{
		{"Room", summary.Room},
		{"Duration", summary.Duration},
		{"Participants", summary.Participants},
		{"Chat Messages", summary.Messages},
		{"Recorded", recorded},
	})
	if summary.EndReason != "" {
		t.AppendRow(gptable.Row{"Ended", summary.EndReason})
	}
	t.SetStyle(gptable.StyleRounded)

	return t.Render()
}

func RenderMeetingSummary(summary MeetingSummary) {
	fmt.Println(MeetingSummaryView(summary))
}

type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Joining Room\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconRoom,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}

func RenderRoomInfo(roomID, roomLink string) {
	fmt.Println(NewRoomInfo(roomID, roomLink).View())
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
