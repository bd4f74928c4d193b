package config

import (
	"fmt"
	"os"
)

// Default configuration values (production)
const (
	DefaultDomain       = "meet.sprintroom.io"
	DefaultSTUN         = "stun:stun.l.google.com:19302"
	DefaultTURN         = "" // Optional, empty by default
	DefaultTURNUser     = ""
	DefaultTURNPass     = ""
	DefaultRecordingURL = "https://recordings.sprintroom.io"
)

// Config holds application configuration
type Config struct {
	// Domain is the meeting server domain
	Domain string

	// Insecure switches ws/http instead of wss/https (local development)
	Insecure bool

	// RecordingURL is the base URL of the recording service
	RecordingURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// LoopbackDevice is an optional audio input device ID used for
	// system-audio screen share ("system" mode)
	LoopbackDevice string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain         string
	Insecure       bool
	RecordingURL   string
	STUNServer     string
	TURNServer     string
	TURNUser       string
	TURNPass       string
	ForceRelay     bool
	LoopbackDevice string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("SPRINTROOM_DOMAIN"), DefaultDomain)
	recordingURL := firstNonEmpty(opts.RecordingURL, os.Getenv("SPRINTROOM_RECORDING_URL"), DefaultRecordingURL)
	stunServer := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser)
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass)
	loopback := firstNonEmpty(opts.LoopbackDevice, os.Getenv("SPRINTROOM_LOOPBACK_DEVICE"), "")

	insecure := opts.Insecure
	if !insecure && os.Getenv("SPRINTROOM_INSECURE") == "1" {
		insecure = true
	}

	return &Config{
		Domain:         domain,
		Insecure:       insecure,
		RecordingURL:   recordingURL,
		STUNServer:     stunServer,
		TURNServer:     turnServer,
		TURNUser:       turnUser,
		TURNPass:       turnPass,
		ForceRelay:     opts.ForceRelay,
		LoopbackDevice: loopback,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// WebSocketURL returns the signaling endpoint for a room and participant
func (c *Config) WebSocketURL(roomID, participantID string) string {
	scheme := "wss"
	if c.Insecure {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/ws/%s/%s", scheme, c.Domain, roomID, participantID)
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/meeting/%s", scheme, c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
