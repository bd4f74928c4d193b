package media

import (
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // This is required to register camera adapter - DON'T REMOVE
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // This is required to register microphone adapter - DON'T REMOVE
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

const rtpOutboundMTU = 1200

// Constraints describes which local devices to acquire. Device IDs are
// optional; empty means "any".
type Constraints struct {
	AudioEnabled  bool
	VideoEnabled  bool
	AudioDeviceID string
	VideoDeviceID string
}

// Capture owns the local microphone/camera acquisition. One Capture exists
// per joined session regardless of peer count: the outbound tracks are
// shared by reference across every peer session, so toggling a track
// affects all of them at once without renegotiation.
type Capture struct {
	codecSelector *mediadevices.CodecSelector

	mu     sync.Mutex
	stream mediadevices.MediaStream
	pumps  []*trackPump

	audioOut *webrtc.TrackLocalStaticRTP
	videoOut *webrtc.TrackLocalStaticRTP

	audioEnabled atomic.Bool
	videoEnabled atomic.Bool

	detector *Detector

	released bool
}

// NewCapture builds a capture manager with a VP8+Opus codec selector. The
// detector is optional; when set, local microphone audio is sampled for
// voice activity.
func NewCapture(detector *Detector) (*Capture, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	c := &Capture{
		codecSelector: selector,
		detector:      detector,
	}
	c.audioEnabled.Store(true)
	c.videoEnabled.Store(true)
	return c, nil
}

// PopulateEngine registers the selected codecs with a pion MediaEngine so
// peer connections negotiate the same formats the capture produces.
func (c *Capture) PopulateEngine(engine *webrtc.MediaEngine) {
	c.codecSelector.Populate(engine)
}

// Acquire opens the requested devices and starts the outbound RTP pumps.
// Acquisition happens once per join (and again only when device selection
// changes); mute/camera toggles never re-acquire. Failure of one media kind
// degrades rather than aborts: an error is returned only when nothing at
// all could be acquired while something was requested.
func (c *Capture) Acquire(constraints Constraints) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !constraints.AudioEnabled && !constraints.VideoEnabled {
		return nil
	}

	streamConstraints := mediadevices.MediaStreamConstraints{Codec: c.codecSelector}
	if constraints.VideoEnabled {
		streamConstraints.Video = func(p *mediadevices.MediaTrackConstraints) {
			if constraints.VideoDeviceID != "" {
				p.DeviceID = prop.String(constraints.VideoDeviceID)
			}
			p.Width = prop.Int(640)
			p.Height = prop.Int(480)
			p.FrameRate = prop.Float(30)
		}
	}
	if constraints.AudioEnabled {
		streamConstraints.Audio = func(p *mediadevices.MediaTrackConstraints) {
			if constraints.AudioDeviceID != "" {
				p.DeviceID = prop.String(constraints.AudioDeviceID)
			}
			p.SampleRate = prop.Int(48000)
			p.ChannelCount = prop.Int(1)
		}
	}

	stream, err := mediadevices.GetUserMedia(streamConstraints)
	if err != nil {
		// Video often fails while audio is fine (no camera, permission
		// denied). Retry audio-only before giving up so the session can
		// degrade instead of aborting.
		if constraints.AudioEnabled && constraints.VideoEnabled {
			streamConstraints.Video = nil
			stream, err = mediadevices.GetUserMedia(streamConstraints)
		}
		if err != nil {
			return NewError("acquire media", err)
		}
		slog.Warn("video capture unavailable, continuing audio-only")
	}

	c.stream = stream

	for _, track := range stream.GetAudioTracks() {
		out, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
			"audio", "camera-"+track.StreamID(),
		)
		if err != nil {
			return NewError("create audio track", err)
		}
		c.audioOut = out
		c.startPump(track, out, &c.audioEnabled)

		if c.detector != nil {
			if at, ok := track.(*mediadevices.AudioTrack); ok {
				go c.detector.Sample(at.NewReader(false))
			}
		}
	}

	for _, track := range stream.GetVideoTracks() {
		out, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", "camera-"+track.StreamID(),
		)
		if err != nil {
			return NewError("create video track", err)
		}
		c.videoOut = out
		c.startPump(track, out, &c.videoEnabled)
	}

	return nil
}

// AudioTrack returns the outbound microphone track, nil when audio capture
// is not running.
func (c *Capture) AudioTrack() *webrtc.TrackLocalStaticRTP {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioOut
}

// VideoTrack returns the outbound camera track, nil when video capture is
// not running.
func (c *Capture) VideoTrack() *webrtc.TrackLocalStaticRTP {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoOut
}

// SetAudioEnabled gates the outbound microphone packets. The underlying
// track reference never changes, so no peer session renegotiates.
func (c *Capture) SetAudioEnabled(enabled bool) {
	c.audioEnabled.Store(enabled)
}

// SetVideoEnabled gates the outbound camera packets without renegotiation.
func (c *Capture) SetVideoEnabled(enabled bool) {
	c.videoEnabled.Store(enabled)
}

func (c *Capture) AudioEnabled() bool { return c.audioEnabled.Load() }
func (c *Capture) VideoEnabled() bool { return c.videoEnabled.Load() }

// Release stops all pumps and device tracks. It must run on every exit path
// so camera/microphone hardware locks are not leaked. Idempotent.
func (c *Capture) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	for _, p := range c.pumps {
		p.stop()
	}
	c.pumps = nil

	if c.stream != nil {
		for _, track := range c.stream.GetTracks() {
			track.Stop()
		}
		c.stream = nil
	}
}

func (c *Capture) startPump(src mediadevices.Track, out *webrtc.TrackLocalStaticRTP, enabled *atomic.Bool) {
	p := &trackPump{src: src, out: out, enabled: enabled, done: make(chan struct{})}
	c.pumps = append(c.pumps, p)
	go p.run()
}

// trackPump forwards encoded RTP packets from a device track to the shared
// outbound track. A disabled pump keeps reading (the encoder must drain)
// but drops packets, which is what makes mute/camera-off free of
// renegotiation.
type trackPump struct {
	src     mediadevices.Track
	out     *webrtc.TrackLocalStaticRTP
	enabled *atomic.Bool

	once sync.Once
	done chan struct{}
}

func (p *trackPump) run() {
	codecName := rtpCodecName(p.out.Codec().MimeType)

	reader, err := p.src.NewRTPReader(codecName, rand.Uint32(), rtpOutboundMTU)
	if err != nil {
		slog.Error("rtp reader", "track", p.src.ID(), "err", err)
		return
	}
	defer reader.Close()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		pkts, release, err := reader.Read()
		if err != nil {
			return
		}

		if p.enabled.Load() {
			for _, pkt := range pkts {
				if err := p.out.WriteRTP(pkt); err != nil {
					slog.Debug("write rtp", "err", err)
				}
			}
		}

		if release != nil {
			release()
		}
	}
}

func (p *trackPump) stop() {
	p.once.Do(func() { close(p.done) })
}

func rtpCodecName(mimeType string) string {
	parts := strings.SplitN(mimeType, "/", 2)
	if len(parts) != 2 {
		return mimeType
	}
	return parts[1]
}
