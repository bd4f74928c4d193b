package media

import (
	"testing"

	"github.com/pion/mediadevices/pkg/wave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainEvents(d *Detector) []bool {
	var events []bool
	for {
		select {
		case ev := <-d.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestDetectorActivation(t *testing.T) {
	d := NewDetector(DetectorConfig{Threshold: 0.1, ActivateWindows: 3, ReleaseWindows: 5})

	// Below the activation run length nothing happens.
	d.Push(0.5)
	d.Push(0.5)
	assert.False(t, d.Speaking())
	assert.Empty(t, drainEvents(d))

	d.Push(0.5)
	assert.True(t, d.Speaking())
	assert.Equal(t, []bool{true}, drainEvents(d))
}

func TestDetectorReleaseHysteresis(t *testing.T) {
	d := NewDetector(DetectorConfig{Threshold: 0.1, ActivateWindows: 2, ReleaseWindows: 4})

	d.Push(0.5)
	d.Push(0.5)
	require.True(t, d.Speaking())

	// Short pauses inside speech do not lower the flag.
	d.Push(0.0)
	d.Push(0.0)
	d.Push(0.0)
	assert.True(t, d.Speaking())

	// A loud window resets the quiet run.
	d.Push(0.5)
	d.Push(0.0)
	d.Push(0.0)
	d.Push(0.0)
	assert.True(t, d.Speaking())

	d.Push(0.0)
	assert.False(t, d.Speaking())
	assert.Equal(t, []bool{true, false}, drainEvents(d))
}

func TestDetectorTransitionsAlternate(t *testing.T) {
	d := NewDetector(DetectorConfig{Threshold: 0.1, ActivateWindows: 1, ReleaseWindows: 1})

	d.Push(0.5)
	d.Push(0.0)
	d.Push(0.5)
	d.Push(0.0)

	assert.Equal(t, []bool{true, false, true, false}, drainEvents(d))
}

// Louder input must never be classified below quieter input with the same
// history. The exact threshold is tuning, not contract.
func TestDetectorMonotonicity(t *testing.T) {
	speaksAt := func(level float64) bool {
		d := NewDetector(DetectorConfig{Threshold: 0.1, ActivateWindows: 1, ReleaseWindows: 1})
		d.Push(level)
		return d.Speaking()
	}

	quiet := speaksAt(0.01)
	loud := speaksAt(0.9)
	assert.False(t, quiet && !loud, "louder input classified as less speaking")
	assert.True(t, loud)
}

func TestChunkRMS(t *testing.T) {
	t.Run("SilenceInt16", func(t *testing.T) {
		chunk := &wave.Int16Interleaved{
			Size: wave.ChunkInfo{Len: 4, Channels: 1, SamplingRate: 48000},
			Data: []int16{0, 0, 0, 0},
		}
		assert.Zero(t, chunkRMS(chunk))
	})

	t.Run("FullScaleLouderThanHalfScale", func(t *testing.T) {
		full := &wave.Int16Interleaved{
			Size: wave.ChunkInfo{Len: 4, Channels: 1, SamplingRate: 48000},
			Data: []int16{32000, -32000, 32000, -32000},
		}
		half := &wave.Int16Interleaved{
			Size: wave.ChunkInfo{Len: 4, Channels: 1, SamplingRate: 48000},
			Data: []int16{16000, -16000, 16000, -16000},
		}
		assert.Greater(t, chunkRMS(full), chunkRMS(half))
	})

	t.Run("Float32", func(t *testing.T) {
		chunk := &wave.Float32Interleaved{
			Size: wave.ChunkInfo{Len: 2, Channels: 1, SamplingRate: 48000},
			Data: []float32{0.5, -0.5},
		}
		assert.InDelta(t, 0.5, chunkRMS(chunk), 0.001)
	})

	t.Run("EmptyChunk", func(t *testing.T) {
		assert.Zero(t, chunkRMS(&wave.Int16Interleaved{}))
	})
}
