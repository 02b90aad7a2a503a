package behavior

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TAKIS21345/techsteps-sub004/internal/expression"
	"github.com/TAKIS21345/techsteps-sub004/internal/morph"
)

type harness struct {
	coordinator *Coordinator
	engine      *expression.Engine
	clock       *time.Time
}

func newHarness(config *CoordinatorConfig) *harness {
	clock := time.Unix(1000, 0)
	now := func() time.Time { return clock }

	engine := expression.NewEngine(nil, nil, morph.NewBuffer(), nil, nil, zerolog.Nop(), now)
	selector := expression.NewSelector(nil, engine, zerolog.Nop(),
		func() float64 { return 0.5 })
	return &harness{
		coordinator: NewCoordinator(config, engine, selector, nil, zerolog.Nop(), now),
		engine:      engine,
		clock:       &clock,
	}
}

func celebration(confidence float64) AIAnalysis {
	return AIAnalysis{
		Sentiment:          "positive",
		EmotionalIntensity: 0.8,
		ContentType:        "celebration",
		Confidence:         confidence,
	}
}

func TestProcess_ConfidenceGate(t *testing.T) {
	h := newHarness(nil)

	if h.coordinator.ProcessAIContentAnalysis(celebration(0.5), Context{}, "well done") {
		t.Error("analysis below the 0.6 threshold must be dropped")
	}
	if h.coordinator.HistorySize() != 0 {
		t.Error("dropped analysis must not enter history")
	}

	if !h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "well done") {
		t.Error("confident analysis should apply")
	}
}

func TestProcess_Cooldown(t *testing.T) {
	h := newHarness(&CoordinatorConfig{
		SentimentThreshold: 0.6,
		Cooldown:           1000 * time.Millisecond,
		RepetitionWindow:   10 * time.Second,
		RepetitionLimit:    2,
		HistoryWindow:      30 * time.Second,
	})

	applied := 0
	if h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "go") {
		applied++
	}
	*h.clock = h.clock.Add(500 * time.Millisecond)
	if h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "go") {
		applied++
	}
	*h.clock = h.clock.Add(1000 * time.Millisecond)
	if h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "go") {
		applied++
	}

	// Calls at 0, 500 and 1500 ms against a 1000 ms cooldown: the middle
	// one is suppressed.
	if applied != 2 {
		t.Errorf("expected 2 applied expressions, got %d", applied)
	}
}

func TestProcess_RepetitionSubstitutesNeutral(t *testing.T) {
	h := newHarness(&CoordinatorConfig{
		SentimentThreshold: 0.6,
		Cooldown:           time.Millisecond,
		RepetitionWindow:   10 * time.Second,
		RepetitionLimit:    2,
		HistoryWindow:      30 * time.Second,
	})

	for i := 0; i < 2; i++ {
		*h.clock = h.clock.Add(time.Second)
		if !h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "hooray") {
			t.Fatalf("call %d should apply", i)
		}
	}
	if got := h.engine.State().Target.Type; got != expression.TypeExcitement {
		t.Fatalf("expected excitement before saturation, got %s", got)
	}

	// Third identical expression inside the window: neutral substitutes.
	*h.clock = h.clock.Add(time.Second)
	if !h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "hooray") {
		t.Fatal("substituted expression still counts as applied")
	}
	if got := h.engine.State().Target.Type; got != expression.TypeNeutral {
		t.Errorf("expected neutral substitute, got %s", got)
	}
}

func TestProcess_CulturalAndFormalityModifiers(t *testing.T) {
	// Eastern excitement 0.7 times formal 0.7, applied to the excitement
	// template (0.9) and analysis intensity (0.8).
	h := newHarness(&CoordinatorConfig{SentimentThreshold: 0.6})

	ok := h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{
		CulturalRegion: "eastern",
		FormalityLevel: "formal",
	}, "")
	if !ok {
		t.Fatal("expected expression to apply")
	}

	want := 0.9 * 0.8 * (0.7 * 0.7)
	if got := h.engine.State().Target.Intensity; math.Abs(got-want) > 1e-9 {
		t.Errorf("expected intensity %f, got %f", want, got)
	}
}

func TestProcess_MediterraneanAmplifies(t *testing.T) {
	h := newHarness(&CoordinatorConfig{SentimentThreshold: 0.6})

	h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{
		CulturalRegion: "mediterranean",
		FormalityLevel: "informal",
	}, "")

	// 0.9 * 0.8 * 1.3 = 0.936, still under the clamp.
	want := 0.9 * 0.8 * 1.3
	if got := h.engine.State().Target.Intensity; math.Abs(got-want) > 1e-9 {
		t.Errorf("expected intensity %f, got %f", want, got)
	}
}

func TestFormalityModifier_FocusFloor(t *testing.T) {
	// Formal register flattens most emotions to 0.7 but attentiveness
	// keeps a 0.9 floor.
	if got := formalityModifier("formal", expression.EmotionJoy); got != 0.7 {
		t.Errorf("expected 0.7 for formal joy, got %f", got)
	}
	if got := formalityModifier("formal", expression.EmotionFocus); got != 0.9 {
		t.Errorf("expected 0.9 floor for formal focus, got %f", got)
	}
	if got := formalityModifier("formal", expression.EmotionNeutral); got != 0.9 {
		t.Errorf("expected 0.9 floor for formal neutral, got %f", got)
	}
	if got := formalityModifier("casual", expression.EmotionJoy); got != 1.2 {
		t.Errorf("expected 1.2 for casual, got %f", got)
	}
	if got := formalityModifier("unknown", expression.EmotionJoy); got != 1.0 {
		t.Errorf("unknown register should be 1.0, got %f", got)
	}
}

func TestCulturalModifier_UnknownRegionIsBaseline(t *testing.T) {
	if got := culturalModifier("western", expression.EmotionJoy); got != 1.0 {
		t.Errorf("western baseline should be 1.0, got %f", got)
	}
	if got := culturalModifier("atlantis", expression.EmotionJoy); got != 1.0 {
		t.Errorf("unknown region should inherit baseline, got %f", got)
	}
}

func TestProcess_SpeechBlendingRetimes(t *testing.T) {
	h := newHarness(&CoordinatorConfig{
		SentimentThreshold: 0.6,
		SpeechBlending:     true,
		WordsPerMinute:     150,
		RepetitionWindow:   10 * time.Second,
		RepetitionLimit:    2,
		HistoryWindow:      30 * time.Second,
	})

	// Five words at 150 wpm speak in 2s; the hold stretches 1.2x.
	h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{},
		"you solved the whole thing")

	got := h.engine.State().Target.Duration
	want := time.Duration(2.4 * float64(time.Second))
	if got < want-time.Millisecond || got > want+time.Millisecond {
		t.Errorf("expected duration near %v, got %v", want, got)
	}
}

func TestEstimateSpeechDuration(t *testing.T) {
	near := func(got, want time.Duration) bool {
		d := got - want
		return d > -time.Millisecond && d < time.Millisecond
	}
	if got := estimateSpeechDuration("one two three", 60); !near(got, 3*time.Second) {
		t.Errorf("expected ~3s for three words at 60wpm, got %v", got)
	}
	if got := estimateSpeechDuration("", 150); got != 0 {
		t.Errorf("empty text should estimate 0, got %v", got)
	}
	if got := estimateSpeechDuration("  spaced   out  ", 60); !near(got, 2*time.Second) {
		t.Errorf("expected ~2s for two words, got %v", got)
	}
}

func TestCoordinateWithAIBehaviors(t *testing.T) {
	h := newHarness(nil)
	h.engine.Apply(h.engine.Library().Template(expression.TypeSmile))

	// Under the overload threshold nothing changes.
	h.coordinator.CoordinateWithAIBehaviors(0.5, 0.5, 0.5)
	if got := h.engine.State().Target.Intensity; got != 0.8 {
		t.Errorf("expected untouched intensity 0.8, got %f", got)
	}

	// Over it the active expression damps by 0.7.
	h.coordinator.CoordinateWithAIBehaviors(0.9, 0.9, 0.9)
	if got := h.engine.State().Target.Intensity; math.Abs(got-0.56) > 1e-9 {
		t.Errorf("expected damped intensity 0.56, got %f", got)
	}
}

func TestReset(t *testing.T) {
	h := newHarness(nil)
	h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "go")
	if h.coordinator.HistorySize() != 1 {
		t.Fatal("expected one history entry")
	}

	h.coordinator.Reset()
	if h.coordinator.HistorySize() != 0 {
		t.Error("reset should clear history")
	}
}

func TestHistory_EvictsAfterWindow(t *testing.T) {
	h := newHarness(&CoordinatorConfig{
		SentimentThreshold: 0.6,
		Cooldown:           time.Millisecond,
		RepetitionWindow:   10 * time.Second,
		RepetitionLimit:    2,
		HistoryWindow:      30 * time.Second,
	})

	h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "go")
	if h.coordinator.HistorySize() != 1 {
		t.Fatal("expected one history entry")
	}

	// Eviction is lazy and strictly time based.
	*h.clock = h.clock.Add(31 * time.Second)
	if h.coordinator.HistorySize() != 0 {
		t.Error("expected history evicted past the window")
	}
}

func TestUpdateConfig(t *testing.T) {
	h := newHarness(nil)

	h.coordinator.UpdateConfig(&CoordinatorConfig{SentimentThreshold: 0.95})
	if h.coordinator.ProcessAIContentAnalysis(celebration(0.9), Context{}, "go") {
		t.Error("raised threshold should now reject 0.9 confidence")
	}
}
