package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sprintroom/sprintroom-cli/internal/media"
	"github.com/sprintroom/sprintroom-cli/internal/ui"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"dev"},
	Short:   "List available capture devices",
	Long:    `List the microphones and cameras available for capture. Pass a device ID to 'join' via --audio-device or --video-device to select one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDevices()
	},
}

func listDevices() error {
	stopSpinner := ui.RunSpinner("Scanning capture devices...")
	devices := media.EnumerateDevices()
	stopSpinner()

	items := make([]ui.DeviceTableItem, len(devices))
	for i, d := range devices {
		items[i] = ui.DeviceTableItem{
			Index: i + 1,
			ID:    d.ID,
			Label: d.Label,
			Kind:  d.Kind,
		}
	}
	ui.RenderDeviceTable(items)
	return nil
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
