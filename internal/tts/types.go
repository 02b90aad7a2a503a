// Package tts provides the text-to-speech provider capability consumed
// by the lip-sync pipeline.
package tts

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable  = errors.New("tts provider unavailable")
	ErrUnsupportedOperation = errors.New("operation not supported by provider")
	ErrEmptyText            = errors.New("empty synthesis text")
)

// Phoneme is one timestamped speech sound for lip-sync replay.
type Phoneme struct {
	Symbol     string        `json:"symbol"`     // ARPABET symbol or "sil"
	Onset      time.Duration `json:"onset"`      // offset from utterance start
	Confidence float64       `json:"confidence"` // 0-1
}

// SynthesizeRequest describes one synthesis call.
type SynthesizeRequest struct {
	Text         string  `json:"text"`
	VoiceID      string  `json:"voice_id,omitempty"`
	Speed        float64 `json:"speed,omitempty"`         // 0.5 to 2.0
	WithPhonemes bool    `json:"with_phonemes,omitempty"` // request phoneme timing for lip-sync
}

// SynthesizeResponse is the synthesis result. Phonemes is only set when
// the provider supports phoneme timing.
type SynthesizeResponse struct {
	Audio      []byte        `json:"audio"`
	Format     string        `json:"format"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	Phonemes   []Phoneme     `json:"phonemes,omitempty"`
}

// Capabilities describes a provider's feature set.
type Capabilities struct {
	SupportsPhonemes  bool `json:"supports_phonemes"`
	SupportsStreaming bool `json:"supports_streaming"`
	MaxTextLength     int  `json:"max_text_length"`
}

// Provider is the interface all TTS providers implement.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio. Requesting phonemes from a
	// provider without phoneme support returns ErrUnsupportedOperation;
	// the caller recovers by estimating a timeline from the text.
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// Capabilities returns the provider's feature set.
	Capabilities() Capabilities
}
