package viseme

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TAKIS21345/techsteps-sub004/internal/audio"
	"github.com/TAKIS21345/techsteps-sub004/internal/bus"
	"github.com/TAKIS21345/techsteps-sub004/internal/morph"
	"github.com/TAKIS21345/techsteps-sub004/internal/tts"
)

// fakeProvider returns canned synthesis results.
type fakeProvider struct {
	phonemes []tts.Phoneme
	duration time.Duration
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Capabilities() tts.Capabilities {
	return tts.Capabilities{SupportsPhonemes: len(f.phonemes) > 0}
}

func (f *fakeProvider) Synthesize(ctx context.Context, req *tts.SynthesizeRequest) (*tts.SynthesizeResponse, error) {
	return &tts.SynthesizeResponse{
		Audio:    make([]byte, 64),
		Format:   "pcm",
		Duration: f.duration,
		Phonemes: f.phonemes,
	}, nil
}

// unsupportedProvider advertises phoneme timing but rejects every
// synthesis request.
type unsupportedProvider struct{}

func (unsupportedProvider) Name() string { return "unsupported" }

func (unsupportedProvider) Capabilities() tts.Capabilities {
	return tts.Capabilities{SupportsPhonemes: true}
}

func (unsupportedProvider) Synthesize(context.Context, *tts.SynthesizeRequest) (*tts.SynthesizeResponse, error) {
	return nil, fmt.Errorf("%w: phoneme timing", tts.ErrUnsupportedOperation)
}

// brokenSource always fails to initialize.
type brokenSource struct{}

func (brokenSource) Start(func(audio.Frame)) error { return audio.ErrNotInitialized }
func (brokenSource) Stop()                         {}
func (brokenSource) SampleRate() int               { return 48000 }

func newTestDriver(source audio.Source) (*Driver, *morph.Buffer) {
	buffer := morph.NewBuffer()
	d := NewDriver(audio.NewExtractor(nil), NewClassifier(nil), source,
		buffer, nil, nil, nil, zerolog.Nop())
	return d, buffer
}

func waitUntilIdle(t *testing.T, d *Driver) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for d.IsStreaming() {
		select {
		case <-deadline:
			t.Fatal("replay did not finish in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestProcessPhonemeData_ReplaysTimeline(t *testing.T) {
	d, buffer := newTestDriver(nil)

	var mu sync.Mutex
	var seen []Name
	d.ProcessPhonemeData([]tts.Phoneme{
		{Symbol: "sil", Onset: 0, Confidence: 1},
		{Symbol: "S", Onset: 5 * time.Millisecond, Confidence: 1},
		{Symbol: "AA", Onset: 10 * time.Millisecond, Confidence: 1},
	}, 0, func(v Viseme) {
		mu.Lock()
		seen = append(seen, v.Name)
		mu.Unlock()
	})

	waitUntilIdle(t, d)

	mu.Lock()
	defer mu.Unlock()
	// The three timeline entries plus the closing silence.
	if len(seen) != 4 {
		t.Fatalf("expected 4 viseme updates, got %d: %v", len(seen), seen)
	}
	if seen[1] != SS || seen[2] != AA || seen[3] != Sil {
		t.Errorf("unexpected sequence %v", seen)
	}
	// The utterance ends mouth-closed at full weight.
	if got := buffer.Get("viseme_sil"); got != 1.0 {
		t.Errorf("expected closing silence weight 1.0, got %f", got)
	}
}

func TestProcessPhonemeData_ReplayConfidenceScales(t *testing.T) {
	d, _ := newTestDriver(nil)

	var mu sync.Mutex
	var intensities []float64
	d.ProcessPhonemeData([]tts.Phoneme{
		{Symbol: "AA", Onset: 0, Confidence: 0.5},
	}, 0, func(v Viseme) {
		mu.Lock()
		intensities = append(intensities, v.Intensity)
		mu.Unlock()
	})
	waitUntilIdle(t, d)

	mu.Lock()
	defer mu.Unlock()
	// Voiced replay weight is 0.8 scaled by timeline confidence.
	if len(intensities) == 0 || intensities[0] != 0.4 {
		t.Errorf("expected first intensity 0.4, got %v", intensities)
	}
}

func TestProcessPhonemeData_SupersedesRunningReplay(t *testing.T) {
	d, _ := newTestDriver(nil)

	var mu sync.Mutex
	firstSeen, secondSeen := 0, 0
	d.ProcessPhonemeData([]tts.Phoneme{
		{Symbol: "S", Onset: 300 * time.Millisecond, Confidence: 1},
	}, 0, func(Viseme) {
		mu.Lock()
		firstSeen++
		mu.Unlock()
	})

	d.ProcessPhonemeData([]tts.Phoneme{
		{Symbol: "AA", Onset: 0, Confidence: 1},
	}, 0, func(Viseme) {
		mu.Lock()
		secondSeen++
		mu.Unlock()
	})
	waitUntilIdle(t, d)

	// Past the first replay's onset; a leaked goroutine would fire now.
	time.Sleep(350 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if firstSeen != 0 {
		t.Errorf("superseded replay kept running, %d updates", firstSeen)
	}
	if secondSeen == 0 {
		t.Error("expected the superseding replay to run")
	}
}

func TestFinishSession_IgnoresSupersededSession(t *testing.T) {
	d, _ := newTestDriver(nil)

	d.ProcessPhonemeData([]tts.Phoneme{
		{Symbol: "S", Onset: 10 * time.Second, Confidence: 1},
	}, 0, nil)

	// A completion racing in from an earlier replay must not clobber the
	// running session's cancellation handle.
	d.finishSession(make(chan struct{}))

	if !d.IsStreaming() {
		t.Fatal("running session cleared by a stale completion")
	}

	d.StopStreamingLipSync()
	if d.IsStreaming() {
		t.Error("expected stop to cancel the session")
	}
}

func TestProcessPhonemeData_PublishesVisemeIntensity(t *testing.T) {
	events := bus.NewEventBus()
	buffer := morph.NewBuffer()
	d := NewDriver(audio.NewExtractor(nil), NewClassifier(nil), nil,
		buffer, nil, events, nil, zerolog.Nop())

	var mu sync.Mutex
	var intensities []float64
	events.Subscribe(bus.EventTypeVisemeUpdated, func(e bus.Event) {
		mu.Lock()
		defer mu.Unlock()
		if v, ok := e.Data["intensity"].(float64); ok {
			intensities = append(intensities, v)
		}
	})

	d.ProcessPhonemeData([]tts.Phoneme{
		{Symbol: "AA", Onset: 0, Confidence: 1},
	}, 0, nil)
	waitUntilIdle(t, d)

	// Bus handlers run asynchronously.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(intensities) == 0 || intensities[0] != 0.8 {
		t.Errorf("expected viseme event intensity 0.8, got %v", intensities)
	}
}

func TestStopStreamingLipSync_Idempotent(t *testing.T) {
	d, buffer := newTestDriver(nil)

	d.ProcessPhonemeData([]tts.Phoneme{
		{Symbol: "AA", Onset: 0, Confidence: 1},
		{Symbol: "S", Onset: 10 * time.Second, Confidence: 1},
	}, 0, nil)

	time.Sleep(20 * time.Millisecond)
	d.StopStreamingLipSync()
	d.StopStreamingLipSync()

	if d.IsStreaming() {
		t.Error("expected streaming stopped")
	}
	// Cancellation synchronously zeroes every viseme weight.
	if got := buffer.Get("viseme_aa"); got != 0 {
		t.Errorf("expected viseme weights zeroed, got %f", got)
	}
}

func TestStartStreamingLipSync_PhonemeProvider(t *testing.T) {
	d, _ := newTestDriver(nil)

	var mu sync.Mutex
	var seen []Name
	err := d.StartStreamingLipSync(context.Background(), "sa", &fakeProvider{
		phonemes: []tts.Phoneme{
			{Symbol: "S", Onset: 0, Confidence: 1},
			{Symbol: "AA", Onset: 5 * time.Millisecond, Confidence: 1},
		},
		duration: 10 * time.Millisecond,
	}, func(v Viseme) {
		mu.Lock()
		seen = append(seen, v.Name)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	waitUntilIdle(t, d)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 {
		t.Fatalf("expected provider phonemes replayed, got %v", seen)
	}
}

func TestStartStreamingLipSync_FallsBackToEstimate(t *testing.T) {
	// No phonemes and no capture source: the driver estimates a timeline
	// from the text itself.
	d, buffer := newTestDriver(nil)

	err := d.StartStreamingLipSync(context.Background(), "hi",
		&fakeProvider{duration: 30 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	waitUntilIdle(t, d)

	if got := buffer.Get("viseme_sil"); got != 1.0 {
		t.Errorf("expected estimated replay to close with silence, got %f", got)
	}
}

func TestStartStreamingLipSync_RecoversFromUnsupportedRequest(t *testing.T) {
	// A provider error that means "this request shape is unsupported" is
	// recovered with a text-estimated timeline, not surfaced.
	d, buffer := newTestDriver(nil)

	err := d.StartStreamingLipSync(context.Background(), "hi", unsupportedProvider{}, nil)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	waitUntilIdle(t, d)

	if got := buffer.Get("viseme_sil"); got != 1.0 {
		t.Errorf("expected estimated replay to close with silence, got %f", got)
	}
}

func TestStartStreamingLipSync_InertAfterCaptureFailure(t *testing.T) {
	d, _ := newTestDriver(brokenSource{})

	// First call marks the pipeline inert and falls back to the estimated
	// timeline.
	err := d.StartStreamingLipSync(context.Background(), "hi",
		&fakeProvider{duration: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	waitUntilIdle(t, d)

	// Subsequent sessions no-op with a warning instead of retrying.
	err = d.StartStreamingLipSync(context.Background(), "hi again",
		&fakeProvider{duration: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.IsStreaming() {
		t.Error("inert driver must not start sessions")
	}
}
