package media

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/screen" // This is required to register screen adapter - DON'T REMOVE
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// ShareAudioMode selects what audio accompanies a screen share.
type ShareAudioMode string

const (
	// ShareAudioNone shares screen contents only.
	ShareAudioNone ShareAudioMode = "none"
	// ShareAudioMic relies on the already-flowing microphone track; the
	// share itself adds no audio.
	ShareAudioMic ShareAudioMode = "mic"
	// ShareAudioSystem captures system/tab audio through a loopback
	// device. Degrades to a video-only share when no loopback device is
	// available.
	ShareAudioSystem ShareAudioMode = "system"
)

// ScreenCapture is one screen-share acquisition. Switching audio modes is
// stop-then-start: the reconciler releases the current capture and acquires
// a new one rather than transitioning in place.
type ScreenCapture struct {
	Mode ShareAudioMode

	mu       sync.Mutex
	stream   mediadevices.MediaStream
	sysAudio mediadevices.MediaStream
	pumps    []*trackPump
	released bool

	videoOut *webrtc.TrackLocalStaticRTP
	audioOut *webrtc.TrackLocalStaticRTP

	enabled atomic.Bool
}

// AcquireScreen captures the display, optionally with system audio, reusing
// the session's codec selection so the new tracks renegotiate cleanly onto
// existing peer sessions.
func (c *Capture) AcquireScreen(mode ShareAudioMode, loopbackDeviceID string) (*ScreenCapture, error) {
	sc := &ScreenCapture{Mode: mode}
	sc.enabled.Store(true)

	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(p *mediadevices.MediaTrackConstraints) {
			p.FrameRate = prop.Float(15)
		},
		Codec: c.codecSelector,
	})
	if err != nil {
		return nil, NewError("acquire screen", err)
	}
	sc.stream = stream

	for _, track := range stream.GetVideoTracks() {
		out, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"screen", "screen-"+track.StreamID(),
		)
		if err != nil {
			sc.Release()
			return nil, NewError("create screen track", err)
		}
		sc.videoOut = out
		sc.startPump(track, out)
	}

	if mode == ShareAudioSystem {
		if loopbackDeviceID == "" {
			slog.Warn("system audio share requested but no loopback device configured, sharing video only")
		} else if err := sc.acquireSystemAudio(c.codecSelector, loopbackDeviceID); err != nil {
			slog.Warn("system audio capture failed, sharing video only", "err", err)
		}
	}

	return sc, nil
}

func (sc *ScreenCapture) acquireSystemAudio(selector *mediadevices.CodecSelector, deviceID string) error {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(p *mediadevices.MediaTrackConstraints) {
			p.DeviceID = prop.String(deviceID)
			p.SampleRate = prop.Int(48000)
			p.ChannelCount = prop.Int(2)
		},
		Codec: selector,
	})
	if err != nil {
		return NewError("acquire system audio", err)
	}
	sc.sysAudio = stream

	for _, track := range stream.GetAudioTracks() {
		out, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"screen-audio", "screen-"+track.StreamID(),
		)
		if err != nil {
			return NewError("create screen audio track", err)
		}
		sc.audioOut = out
		sc.startPump(track, out)
	}
	return nil
}

func (sc *ScreenCapture) startPump(src mediadevices.Track, out *webrtc.TrackLocalStaticRTP) {
	p := &trackPump{src: src, out: out, enabled: &sc.enabled, done: make(chan struct{})}
	sc.pumps = append(sc.pumps, p)
	go p.run()
}

// VideoTrack returns the outbound screen-contents track.
func (sc *ScreenCapture) VideoTrack() *webrtc.TrackLocalStaticRTP {
	return sc.videoOut
}

// AudioTrack returns the outbound system-audio track, nil unless the share
// is in system mode with a working loopback device.
func (sc *ScreenCapture) AudioTrack() *webrtc.TrackLocalStaticRTP {
	return sc.audioOut
}

// Tracks returns every outbound track of this share.
func (sc *ScreenCapture) Tracks() []*webrtc.TrackLocalStaticRTP {
	var tracks []*webrtc.TrackLocalStaticRTP
	if sc.videoOut != nil {
		tracks = append(tracks, sc.videoOut)
	}
	if sc.audioOut != nil {
		tracks = append(tracks, sc.audioOut)
	}
	return tracks
}

// Release stops the display (and loopback) capture. Idempotent; must run on
// every share-stop, mode-switch and session exit path.
func (sc *ScreenCapture) Release() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.released {
		return
	}
	sc.released = true
	sc.enabled.Store(false)

	for _, p := range sc.pumps {
		p.stop()
	}
	sc.pumps = nil

	if sc.stream != nil {
		for _, track := range sc.stream.GetTracks() {
			track.Stop()
		}
		sc.stream = nil
	}
	if sc.sysAudio != nil {
		for _, track := range sc.sysAudio.GetTracks() {
			track.Stop()
		}
		sc.sysAudio = nil
	}
}
