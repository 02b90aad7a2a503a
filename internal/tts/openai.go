package tts

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI PCM output is 24 kHz mono 16-bit.
const openaiPCMSampleRate = 24000

// OpenAIProvider synthesizes speech through the OpenAI audio API. It
// returns raw PCM suitable for feeding the live feature extractor; it
// has no phoneme timing, so lip-sync falls back to estimated timelines.
type OpenAIProvider struct {
	client *openai.Client
	voice  openai.SpeechVoice
	logger zerolog.Logger
}

// NewOpenAIProvider creates an OpenAI TTS provider.
func NewOpenAIProvider(apiKey, voiceID string, logger zerolog.Logger) *OpenAIProvider {
	voice := openai.SpeechVoice(voiceID)
	if voiceID == "" {
		voice = openai.VoiceNova
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		voice:  voice,
		logger: logger.With().Str("component", "tts-openai").Logger(),
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

// Capabilities returns the provider's feature set.
func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{
		SupportsPhonemes:  false,
		SupportsStreaming: false,
		MaxTextLength:     4096,
	}
}

// Synthesize converts text to 24 kHz PCM audio.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if req == nil || req.Text == "" {
		return nil, ErrEmptyText
	}
	if req.WithPhonemes {
		return nil, fmt.Errorf("%w: phoneme timing", ErrUnsupportedOperation)
	}

	voice := p.voice
	if req.VoiceID != "" {
		voice = openai.SpeechVoice(req.VoiceID)
	}
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}

	start := time.Now()
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read synthesis audio: %w", err)
	}

	// 16-bit mono: two bytes per sample.
	duration := time.Duration(len(audio)/2) * time.Second / openaiPCMSampleRate

	p.logger.Debug().
		Int("bytes", len(audio)).
		Dur("duration", duration).
		Dur("latency", time.Since(start)).
		Msg("Synthesis complete")

	return &SynthesizeResponse{
		Audio:      audio,
		Format:     "pcm",
		SampleRate: openaiPCMSampleRate,
		Duration:   duration,
	}, nil
}
