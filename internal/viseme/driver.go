package viseme

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TAKIS21345/techsteps-sub004/internal/audio"
	"github.com/TAKIS21345/techsteps-sub004/internal/bus"
	"github.com/TAKIS21345/techsteps-sub004/internal/morph"
	"github.com/TAKIS21345/techsteps-sub004/internal/perf"
	"github.com/TAKIS21345/techsteps-sub004/internal/tts"
)

// UpdateFunc receives each classified viseme as it is applied.
type UpdateFunc func(Viseme)

// Driver runs the lip-sync side of the pipeline: live audio frames or a
// replayed phoneme timeline, classified into visemes and written to the
// shared morph buffer under the viseme key namespace.
type Driver struct {
	extractor  *Extractor
	classifier *Classifier
	source     audio.Source
	buffer     *morph.Buffer
	governor   perf.Advisor
	events     *bus.EventBus
	vad        *audio.VAD
	logger     zerolog.Logger

	mu        sync.Mutex
	stop      chan struct{}
	streaming bool
	inert     bool // audio capture failed to initialize; session no-ops

	frameCounter int
	wasSpeaking  bool
}

// Extractor aliases the audio feature extractor so the driver's
// constructor reads naturally at call sites.
type Extractor = audio.Extractor

// NewDriver creates a lip-sync driver. source may be nil when only
// phoneme replay is used; events and vad may be nil.
func NewDriver(extractor *Extractor, classifier *Classifier, source audio.Source,
	buffer *morph.Buffer, governor perf.Advisor, events *bus.EventBus,
	vad *audio.VAD, logger zerolog.Logger) *Driver {
	return &Driver{
		extractor:  extractor,
		classifier: classifier,
		source:     source,
		buffer:     buffer,
		governor:   governor,
		events:     events,
		vad:        vad,
		logger:     logger.With().Str("component", "lipsync").Logger(),
	}
}

// StartStreamingLipSync synthesizes text through the provider and drives
// viseme animation while it plays. With a provider that supplies phoneme
// timing the timeline is replayed directly; otherwise live audio frames
// are classified, falling back to a text-estimated timeline when no
// capture capability exists. A new call supersedes any running session.
func (d *Driver) StartStreamingLipSync(ctx context.Context, text string, provider tts.Provider, onViseme UpdateFunc) error {
	d.mu.Lock()
	if d.inert {
		d.mu.Unlock()
		d.logger.Warn().Msg("Audio capture unavailable, lip-sync is inert for this session")
		return nil
	}
	d.mu.Unlock()

	d.StopStreamingLipSync()

	req := &tts.SynthesizeRequest{Text: text}
	if provider.Capabilities().SupportsPhonemes {
		req.WithPhonemes = true
	}

	resp, err := provider.Synthesize(ctx, req)
	if err != nil {
		if errors.Is(err, tts.ErrUnsupportedOperation) {
			// Recover from a provider that rejects the request shape:
			// replay a timeline estimated from the text alone.
			d.logger.Warn().Err(err).Msg("Provider rejected synthesis request, replaying estimated timeline")
			d.ProcessPhonemeData(tts.EstimateTimeline(text, 0), 0, onViseme)
			return nil
		}
		return err
	}

	if len(resp.Phonemes) > 0 {
		d.ProcessPhonemeData(resp.Phonemes, resp.Duration, onViseme)
		return nil
	}

	if d.source != nil {
		if err := d.startLiveSession(onViseme); err == nil {
			return nil
		} else if errors.Is(err, audio.ErrNotInitialized) {
			d.mu.Lock()
			d.inert = true
			d.mu.Unlock()
			d.logger.Warn().Msg("Audio capture failed to initialize, falling back to estimated timelines")
		} else {
			d.logger.Warn().Err(err).Msg("Live capture unavailable, falling back to estimated timeline")
		}
	}

	// No live audio: replay a timeline estimated from the text itself.
	d.ProcessPhonemeData(tts.EstimateTimeline(text, resp.Duration), resp.Duration, onViseme)
	return nil
}

// startLiveSession begins the audio-callback-driven classification loop.
func (d *Driver) startLiveSession(onViseme UpdateFunc) error {
	d.mu.Lock()
	stop := make(chan struct{})
	d.stop = stop
	d.streaming = true
	d.frameCounter = 0
	d.mu.Unlock()

	err := d.source.Start(func(frame audio.Frame) {
		select {
		case <-stop:
			return
		default:
		}
		d.processFrame(frame, onViseme)
	})
	if err != nil {
		d.mu.Lock()
		d.streaming = false
		d.stop = nil
		d.mu.Unlock()
		return err
	}

	d.publish(bus.EventTypeLipSyncStarted, nil)
	return nil
}

// processFrame classifies one live frame. A frame that fails feature
// extraction is skipped; the loop continues.
func (d *Driver) processFrame(frame audio.Frame, onViseme UpdateFunc) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug().Interface("panic", r).Msg("Frame skipped after processing panic")
		}
	}()

	switch d.governorMode() {
	case perf.ModeOff:
		return
	case perf.ModeLow:
		// Halve the cadence under pressure.
		d.mu.Lock()
		d.frameCounter++
		skip := d.frameCounter%2 == 1
		d.mu.Unlock()
		if skip {
			return
		}
	}

	analysis, err := d.extractor.Analyze(frame)
	if err != nil {
		d.logger.Debug().Err(err).Msg("Frame skipped")
		return
	}

	primary, secondary := d.classifier.Classify(analysis)
	d.classifier.ApplyToBuffer(d.buffer, primary, secondary)

	if onViseme != nil {
		onViseme(primary)
	}
	d.trackSpeech(frame)
}

// trackSpeech publishes speech boundary events from the VAD.
func (d *Driver) trackSpeech(frame audio.Frame) {
	if d.vad == nil {
		return
	}
	speaking := d.vad.Process(frame)

	d.mu.Lock()
	changed := speaking != d.wasSpeaking
	d.wasSpeaking = speaking
	d.mu.Unlock()

	if !changed {
		return
	}
	if speaking {
		d.publish(bus.EventTypeSpeechStart, nil)
	} else {
		d.publish(bus.EventTypeSpeechEnd, nil)
	}
}

// ProcessPhonemeData replays a timestamped phoneme sequence against the
// wall clock, writing visemes into the morph buffer as each onset
// passes. total bounds the replay; zero means run to the last onset.
// A new call supersedes any running session.
func (d *Driver) ProcessPhonemeData(phonemes []tts.Phoneme, total time.Duration, onViseme UpdateFunc) {
	d.StopStreamingLipSync()

	d.mu.Lock()
	stop := make(chan struct{})
	d.stop = stop
	d.streaming = true
	d.mu.Unlock()

	d.publish(bus.EventTypeLipSyncStarted, map[string]any{"phonemes": len(phonemes)})

	go func() {
		start := time.Now()
		for _, p := range phonemes {
			wait := p.Onset - time.Since(start)
			if wait > 0 {
				select {
				case <-stop:
					return
				case <-time.After(wait):
				}
			} else {
				select {
				case <-stop:
					return
				default:
				}
			}
			if total > 0 && p.Onset > total {
				break
			}

			if d.governorMode() == perf.ModeOff {
				continue
			}

			v := replayViseme(p)
			d.classifier.ApplyToBuffer(d.buffer, v, nil)
			if onViseme != nil {
				onViseme(v)
			}
			d.publish(bus.EventTypeVisemeUpdated, map[string]any{
				"viseme":    string(v.Name),
				"intensity": v.Intensity,
			})
		}

		// Close the mouth at the end of the utterance.
		d.classifier.ApplyToBuffer(d.buffer, New(Sil, 1.0), nil)
		if onViseme != nil {
			onViseme(New(Sil, 1.0))
		}
		d.finishSession(stop)
	}()
}

// StopStreamingLipSync cancels any running session and synchronously
// zeroes all viseme weights. Idempotent.
func (d *Driver) StopStreamingLipSync() {
	d.mu.Lock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	wasStreaming := d.streaming
	d.streaming = false
	d.wasSpeaking = false
	d.mu.Unlock()

	if d.source != nil {
		d.source.Stop()
	}
	if d.vad != nil {
		d.vad.Reset()
	}
	d.buffer.ZeroPrefix(morph.VisemePrefix)

	if wasStreaming {
		d.publish(bus.EventTypeLipSyncStopped, nil)
	}
}

// IsStreaming reports whether a lip-sync session is running.
func (d *Driver) IsStreaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// finishSession clears session state after a replay runs to completion.
// stop identifies the finishing session; if another session has started
// in the meantime its state is left alone.
func (d *Driver) finishSession(stop chan struct{}) {
	d.mu.Lock()
	if d.stop != stop {
		d.mu.Unlock()
		return
	}
	d.streaming = false
	d.stop = nil
	d.mu.Unlock()
	d.publish(bus.EventTypeLipSyncStopped, nil)
}

// replayViseme maps a timeline phoneme to its viseme. Silence carries
// full intensity; voiced entries use a fixed replay weight scaled by the
// timeline's confidence.
func replayViseme(p tts.Phoneme) Viseme {
	name := FromPhoneme(p.Symbol)
	if name == Sil {
		return New(Sil, 1.0)
	}
	conf := p.Confidence
	if conf <= 0 {
		conf = 1
	}
	return New(name, 0.8*conf)
}

// governorMode resolves the advisory quality tier, defaulting to high
// when no governor is wired.
func (d *Driver) governorMode() perf.Mode {
	if d.governor == nil {
		return perf.ModeHigh
	}
	return d.governor.RecommendedMode()
}

// publish sends a bus event when a bus is wired.
func (d *Driver) publish(t bus.EventType, data map[string]any) {
	if d.events != nil {
		d.events.Publish(bus.Event{Type: t, Data: data})
	}
}
