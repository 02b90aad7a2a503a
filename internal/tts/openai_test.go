package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestOpenAIProvider_Name(t *testing.T) {
	p := NewOpenAIProvider("key", "", zerolog.Nop())
	if p.Name() != "openai" {
		t.Errorf("unexpected provider name %q", p.Name())
	}
}

func TestOpenAIProvider_Capabilities(t *testing.T) {
	p := NewOpenAIProvider("key", "", zerolog.Nop())
	caps := p.Capabilities()
	if caps.SupportsPhonemes {
		t.Error("openai provider has no phoneme timing")
	}
	if caps.MaxTextLength != 4096 {
		t.Errorf("expected 4096 max text length, got %d", caps.MaxTextLength)
	}
}

func TestOpenAIProvider_RejectsEmptyText(t *testing.T) {
	p := NewOpenAIProvider("key", "", zerolog.Nop())

	_, err := p.Synthesize(context.Background(), &SynthesizeRequest{})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	_, err = p.Synthesize(context.Background(), nil)
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText for nil request, got %v", err)
	}
}

func TestOpenAIProvider_RejectsPhonemeRequest(t *testing.T) {
	p := NewOpenAIProvider("key", "", zerolog.Nop())

	_, err := p.Synthesize(context.Background(), &SynthesizeRequest{
		Text:         "hello",
		WithPhonemes: true,
	})
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
}
