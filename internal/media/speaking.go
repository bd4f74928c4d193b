package media

import (
	"math"

	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/wave"
)

// DetectorConfig holds the voice-activity tuning knobs.
type DetectorConfig struct {
	// Threshold is the normalized RMS energy above which one window
	// counts as active.
	Threshold float64
	// ActivateWindows is how many consecutive active windows raise the
	// speaking flag.
	ActivateWindows int
	// ReleaseWindows is how many consecutive quiet windows lower it.
	// Larger than ActivateWindows so the flag does not flicker between
	// words.
	ReleaseWindows int
}

// DefaultDetectorConfig returns the tuning used by the meeting client.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:       0.02,
		ActivateWindows: 3,
		ReleaseWindows:  15,
	}
}

// Detector is a continuous voice-activity classifier with hysteresis. Feed
// it one energy level per audio window (via Push, or Sample for a whole
// device track) and read speaking transitions from Events.
//
// Push and Sample must not be called concurrently; the detector is owned by
// a single sampling goroutine.
type Detector struct {
	cfg    DetectorConfig
	events chan bool

	speaking  bool
	activeRun int
	quietRun  int
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.ActivateWindows < 1 {
		cfg.ActivateWindows = 1
	}
	if cfg.ReleaseWindows < 1 {
		cfg.ReleaseWindows = 1
	}
	return &Detector{
		cfg:    cfg,
		events: make(chan bool, 8),
	}
}

// Events emits true/false on speaking transitions. The channel is buffered
// and sends are non-blocking; a slow consumer misses intermediate
// transitions, not the latest state, because transitions alternate.
func (d *Detector) Events() <-chan bool {
	return d.events
}

// Speaking reports the current classification.
func (d *Detector) Speaking() bool {
	return d.speaking
}

// Push classifies one window of normalized RMS energy in [0, 1].
func (d *Detector) Push(level float64) {
	if level >= d.cfg.Threshold {
		d.activeRun++
		d.quietRun = 0
	} else {
		d.quietRun++
		d.activeRun = 0
	}

	switch {
	case !d.speaking && d.activeRun >= d.cfg.ActivateWindows:
		d.speaking = true
		d.emit(true)
	case d.speaking && d.quietRun >= d.cfg.ReleaseWindows:
		d.speaking = false
		d.emit(false)
	}
}

// Sample drains an audio reader, pushing one energy level per chunk. It
// returns when the reader ends (device stopped or released).
func (d *Detector) Sample(reader audio.Reader) {
	for {
		chunk, release, err := reader.Read()
		if err != nil {
			return
		}

		d.Push(chunkRMS(chunk))

		if release != nil {
			release()
		}
	}
}

// chunkRMS computes the normalized root-mean-square energy of one audio
// chunk. Unrecognized sample formats count as silence rather than failing
// the session.
func chunkRMS(chunk wave.Audio) float64 {
	switch c := chunk.(type) {
	case *wave.Int16Interleaved:
		if len(c.Data) == 0 {
			return 0
		}
		var sum float64
		for _, s := range c.Data {
			v := float64(s) / 32768.0
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(c.Data)))

	case *wave.Float32Interleaved:
		if len(c.Data) == 0 {
			return 0
		}
		var sum float64
		for _, s := range c.Data {
			v := float64(s)
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(c.Data)))

	default:
		return 0
	}
}
