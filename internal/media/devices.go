package media

import "github.com/pion/mediadevices"

// DeviceInfo describes one capture device for display purposes.
type DeviceInfo struct {
	ID    string
	Label string
	Kind  string
}

// EnumerateDevices lists the available audio and video inputs. Importing
// this package registers the camera/microphone/screen drivers, so callers
// go through here rather than mediadevices directly.
func EnumerateDevices() []DeviceInfo {
	var devices []DeviceInfo
	for _, info := range mediadevices.EnumerateDevices() {
		var kind string
		switch info.Kind {
		case mediadevices.AudioInput:
			kind = "audio"
		case mediadevices.VideoInput:
			kind = "video"
		default:
			continue
		}
		devices = append(devices, DeviceInfo{
			ID:    info.DeviceID,
			Label: info.Label,
			Kind:  kind,
		})
	}
	return devices
}
