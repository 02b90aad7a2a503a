// Package audio provides the audio-capture capability interface and
// per-frame feature extraction for lip-sync classification.
package audio

import (
	"errors"
)

// Common errors
var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrSourceClosed   = errors.New("audio source closed")
	ErrInvalidFrame   = errors.New("invalid audio frame")
)

// Frame is one fixed-size block of normalized time-domain samples in
// [-1, 1], delivered by the capture capability at its own cadence.
type Frame struct {
	Samples    []float64
	SampleRate int
}

// Analysis holds the features derived from a single frame. Not retained
// across frames.
type Analysis struct {
	MagnitudeSpectrum []float64
	Amplitude         float64 // mean normalized sample magnitude
	SpectralCentroid  float64 // magnitude-weighted bin average, 0-1
	ZeroCrossingRate  float64
	Cepstra           [13]float64
}

// Source abstracts the live audio-capture capability. Implementations
// deliver frames to the callback until Stop. A Source that failed to
// initialize returns ErrNotInitialized from Start; callers treat the
// pipeline as inert for the session rather than retrying.
type Source interface {
	// Start begins delivering frames to fn. Non-blocking.
	Start(fn func(Frame)) error

	// Stop halts frame delivery. Idempotent.
	Stop()

	// SampleRate returns the capture sample rate in Hz.
	SampleRate() int
}

// PCM16ToFrame converts 16-bit little-endian PCM bytes to a normalized
// Frame. Odd trailing bytes are dropped.
func PCM16ToFrame(data []byte, sampleRate int) Frame {
	samples := make([]float64, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(data[i]) | int16(data[i+1])<<8
		samples = append(samples, float64(s)/32768.0)
	}
	return Frame{Samples: samples, SampleRate: sampleRate}
}
