package expression

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TAKIS21345/techsteps-sub004/internal/bus"
	"github.com/TAKIS21345/techsteps-sub004/internal/morph"
	"github.com/TAKIS21345/techsteps-sub004/internal/perf"
)

// EngineConfig holds blend engine configuration.
type EngineConfig struct {
	TickRate        int           `json:"tick_rate" mapstructure:"tick_rate"`               // Hz, default 60
	TransitionSpeed float64       `json:"transition_speed" mapstructure:"transition_speed"` // default 1.0
	DefaultEasing   Easing        `json:"default_easing" mapstructure:"default_easing"`     // default ease-in-out
	MemoryWindow    time.Duration `json:"memory_window" mapstructure:"memory_window"`       // history retention, default 5s
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		TickRate:        60,
		TransitionSpeed: 1.0,
		DefaultEasing:   EasingEaseInOut,
		MemoryWindow:    5000 * time.Millisecond,
	}
}

// Engine owns the expression state: the current and target expressions,
// at most one in-flight transition, and a time-bounded history. A fixed
// rate tick advances transitions and writes the interpolated morph
// weights into the shared buffer's expression namespace.
type Engine struct {
	config   *EngineConfig
	library  *Library
	buffer   *morph.Buffer
	governor perf.Monitor
	events   *bus.EventBus
	logger   zerolog.Logger
	now      func() time.Time

	mu         sync.Mutex
	current    *FacialExpression
	target     *FacialExpression
	transition *Transition
	history    []HistoryEntry
	lowToggle  bool

	stopChan chan struct{}
	disposed bool
}

// NewEngine creates a blend engine. governor, events may be nil; now
// may be nil (time.Now).
func NewEngine(config *EngineConfig, library *Library, buffer *morph.Buffer,
	governor perf.Monitor, events *bus.EventBus, logger zerolog.Logger,
	now func() time.Time) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if config.TickRate <= 0 {
		config.TickRate = 60
	}
	if config.TransitionSpeed <= 0 {
		config.TransitionSpeed = 1.0
	}
	if config.DefaultEasing == "" {
		config.DefaultEasing = EasingEaseInOut
	}
	if config.MemoryWindow <= 0 {
		config.MemoryWindow = 5000 * time.Millisecond
	}
	if library == nil {
		library = NewLibrary()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		config:   config,
		library:  library,
		buffer:   buffer,
		governor: governor,
		events:   events,
		logger:   logger.With().Str("component", "blend-engine").Logger(),
		now:      now,
		stopChan: make(chan struct{}),
	}
}

// Start launches the animation tick.
func (e *Engine) Start() {
	interval := time.Second / time.Duration(e.config.TickRate)
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-e.stopChan:
				return
			case <-ticker.C:
				e.tick()
			}
		}
	}()
}

// tick runs one animation step, feeding its cost back to the governor.
func (e *Engine) tick() {
	mode := perf.ModeHigh
	if e.governor != nil {
		mode = e.governor.RecommendedMode()
	}
	if mode == perf.ModeLow {
		// Halve the effective tick rate under pressure.
		e.mu.Lock()
		e.lowToggle = !e.lowToggle
		skip := e.lowToggle
		e.mu.Unlock()
		if skip {
			return
		}
	}

	start := time.Now()
	e.Step(mode == perf.ModeOff)
	if e.governor != nil {
		e.governor.RecordFrame(time.Since(start))
	}
}

// Step advances the active transition and purges expired history. snap
// forces any transition to complete immediately, the degraded-quality
// path when the governor recommends off.
func (e *Engine) Step(snap bool) {
	e.mu.Lock()

	e.purgeHistoryLocked()

	tr := e.transition
	if tr == nil {
		e.mu.Unlock()
		return
	}

	elapsed := e.now().Sub(tr.StartTime)
	progress := float64(elapsed) / float64(tr.Duration)
	if progress > 1 || snap {
		progress = 1
	}
	tr.Progress = progress

	if progress >= 1 {
		final := tr.To.Clone()
		e.current = &final
		e.transition = nil

		// Zero keys the outgoing expression held that the target does
		// not, so nothing stale lingers in the buffer.
		weights := make(map[string]float64, len(final.MorphWeights)+len(tr.From.MorphWeights))
		for k := range tr.From.MorphWeights {
			weights[k] = 0
		}
		for k, w := range final.MorphWeights {
			weights[k] = w
		}
		e.mu.Unlock()

		e.buffer.SetAll(weights)
		e.publish(bus.EventTypeTransitionComplete, map[string]any{"type": string(final.Type)})
		return
	}

	eased := Ease(tr.Easing, progress)
	mixed := interpolate(tr.From, tr.To, eased)
	e.current = &mixed
	weights := mixed.MorphWeights
	e.mu.Unlock()

	e.buffer.SetAll(weights)
}

// Apply sets the target expression. With no current expression it takes
// effect immediately; otherwise a transition starts, superseding any
// transition already in flight.
func (e *Engine) Apply(expr FacialExpression) {
	e.mu.Lock()
	applied := expr.Clone()
	e.recordHistoryLocked(applied, "apply")

	if e.current == nil {
		e.current = &applied
		tgt := applied.Clone()
		e.target = &tgt
		weights := applied.MorphWeights
		e.mu.Unlock()

		e.buffer.SetAll(weights)
		e.publish(bus.EventTypeExpressionApplied, map[string]any{
			"type":      string(applied.Type),
			"intensity": applied.Intensity,
		})
		return
	}
	e.transitionToLocked(applied, 0)
	e.mu.Unlock()

	e.publish(bus.EventTypeExpressionApplied, map[string]any{
		"type":      string(applied.Type),
		"intensity": applied.Intensity,
	})
}

// TransitionTo starts a transition to the target expression. A zero
// duration uses the configured default (1s scaled by transition speed).
func (e *Engine) TransitionTo(target FacialExpression, duration time.Duration) {
	e.mu.Lock()
	e.transitionToLocked(target.Clone(), duration)
	e.mu.Unlock()
}

// transitionToLocked installs the single active transition. Caller
// holds the lock.
func (e *Engine) transitionToLocked(target FacialExpression, duration time.Duration) {
	if duration <= 0 {
		duration = time.Duration(float64(time.Second) / e.config.TransitionSpeed)
	}

	from := e.library.Template(TypeNeutral)
	if e.current != nil {
		from = e.current.Clone()
	}

	tgt := target.Clone()
	e.target = &tgt
	e.transition = &Transition{
		From:      from,
		To:        target,
		Progress:  0,
		Duration:  duration,
		Easing:    e.config.DefaultEasing,
		StartTime: e.now(),
	}
}

// BlendExpressions combines expressions with equal weight: no inputs
// yield neutral, a single input passes through, two or more average
// every morph key, vector field and intensity.
func (e *Engine) BlendExpressions(exprs []FacialExpression) FacialExpression {
	switch len(exprs) {
	case 0:
		return e.library.Template(TypeNeutral)
	case 1:
		return exprs[0].Clone()
	}

	w := 1.0 / float64(len(exprs))
	out := exprs[0].Clone()
	out.MorphWeights = make(map[string]float64)
	out.Intensity = 0
	out.Eyes = EyeMovement{}
	out.Brows = EyebrowPosition{}
	var totalDur time.Duration

	for _, expr := range exprs {
		for k, v := range expr.MorphWeights {
			out.MorphWeights[k] += v * w
		}
		out.Intensity += expr.Intensity * w
		out.Eyes.LookDir = out.Eyes.LookDir.Add(expr.Eyes.LookDir.Mul(w))
		out.Eyes.BlinkRate += expr.Eyes.BlinkRate * w
		out.Eyes.Widen += expr.Eyes.Widen * w
		out.Eyes.Squint += expr.Eyes.Squint * w
		out.Brows.LeftRaise += expr.Brows.LeftRaise * w
		out.Brows.RightRaise += expr.Brows.RightRaise * w
		out.Brows.Furrow += expr.Brows.Furrow * w
		totalDur += expr.Duration
	}
	out.Intensity = clamp01(out.Intensity)
	out.Duration = totalDur / time.Duration(len(exprs))
	return out
}

// EmotionalExpression resolves the base template for the context's
// primary emotion and scales it: final intensity is the product of the
// template's intensity, the context intensity and the cultural
// modifier, clamped to [0, 1], with every morph weight scaled to match.
func (e *Engine) EmotionalExpression(ctx EmotionalContext) FacialExpression {
	base := e.library.TemplateForEmotion(ctx.Primary)

	final := clamp01(base.Intensity * ctx.Intensity * ctx.CulturalModifier)
	for k, w := range base.MorphWeights {
		base.MorphWeights[k] = w * final
	}
	base.Intensity = final
	if ctx.Duration > 0 {
		base.Duration = ctx.Duration
	}
	return base
}

// ResetToNeutral transitions back to the neutral template over one
// second.
func (e *Engine) ResetToNeutral() {
	e.TransitionTo(e.library.Template(TypeNeutral), time.Second)
}

// State returns a snapshot of engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := State{}
	if e.current != nil {
		s.Current = e.current.Clone()
	} else {
		s.Current = e.library.Template(TypeNeutral)
	}
	if e.target != nil {
		s.Target = e.target.Clone()
	} else {
		s.Target = s.Current.Clone()
	}
	if e.transition != nil {
		s.Transitioning = true
		s.Progress = e.transition.Progress
	}
	return s
}

// History returns the retained history entries, oldest first.
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.purgeHistoryLocked()

	out := make([]HistoryEntry, len(e.history))
	copy(out, e.history)
	return out
}

// Library exposes the engine's template catalog.
func (e *Engine) Library() *Library {
	return e.library
}

// Dispose stops the tick and clears the transition and history.
// Idempotent.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	close(e.stopChan)
	e.transition = nil
	e.history = nil
	e.mu.Unlock()

	e.logger.Debug().Msg("Blend engine disposed")
}

// recordHistoryLocked appends an entry; eviction is time-based, done on
// the next tick or read. Caller holds the lock.
func (e *Engine) recordHistoryLocked(expr FacialExpression, context string) {
	e.history = append(e.history, HistoryEntry{
		Expression: expr,
		Timestamp:  e.now(),
		Duration:   expr.Duration,
		Context:    context,
	})
}

// purgeHistoryLocked drops entries older than the memory window.
// Eviction is strictly by elapsed time, never by count. Caller holds
// the lock.
func (e *Engine) purgeHistoryLocked() {
	cutoff := e.now().Add(-e.config.MemoryWindow)
	i := 0
	for i < len(e.history) && e.history[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		e.history = e.history[i:]
	}
}

// interpolate recomputes every scalar field as a lerp over the union of
// morph keys in either expression; a key absent on one side counts as
// zero.
func interpolate(from, to FacialExpression, t float64) FacialExpression {
	out := to.Clone()
	out.MorphWeights = make(map[string]float64, len(to.MorphWeights))

	for k, v := range from.MorphWeights {
		out.MorphWeights[k] = lerp(v, to.MorphWeights[k], t)
	}
	for k, v := range to.MorphWeights {
		if _, seen := from.MorphWeights[k]; !seen {
			out.MorphWeights[k] = lerp(0, v, t)
		}
	}

	out.Intensity = lerp(from.Intensity, to.Intensity, t)
	out.Eyes.LookDir = lerpVec3(from.Eyes.LookDir, to.Eyes.LookDir, t)
	out.Eyes.BlinkRate = lerp(from.Eyes.BlinkRate, to.Eyes.BlinkRate, t)
	out.Eyes.Widen = lerp(from.Eyes.Widen, to.Eyes.Widen, t)
	out.Eyes.Squint = lerp(from.Eyes.Squint, to.Eyes.Squint, t)
	out.Brows.LeftRaise = lerp(from.Brows.LeftRaise, to.Brows.LeftRaise, t)
	out.Brows.RightRaise = lerp(from.Brows.RightRaise, to.Brows.RightRaise, t)
	out.Brows.Furrow = lerp(from.Brows.Furrow, to.Brows.Furrow, t)
	return out
}

// publish sends a bus event when a bus is wired.
func (e *Engine) publish(t bus.EventType, data map[string]any) {
	if e.events != nil {
		e.events.Publish(bus.Event{Type: t, Data: data})
	}
}
