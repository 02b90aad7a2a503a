// Package behavior arbitrates between AI-supplied sentiment, cultural
// and formality adjustment, repetition avoidance and other concurrent
// avatar behaviors before anything reaches the blend engine.
package behavior

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TAKIS21345/techsteps-sub004/internal/bus"
	"github.com/TAKIS21345/techsteps-sub004/internal/expression"
)

// AIAnalysis is the content analysis supplied by the external AI
// response pipeline.
type AIAnalysis struct {
	Sentiment          string   `json:"sentiment"`
	EmotionalIntensity float64  `json:"emotional_intensity"`
	ContentType        string   `json:"content_type"`
	KeyPhrases         []string `json:"key_phrases,omitempty"`
	Confidence         float64  `json:"confidence"`
}

// Context carries the conversational situation supplied per call.
type Context struct {
	CulturalRegion    string   `json:"cultural_region"`
	Language          string   `json:"language"`
	FormalityLevel    string   `json:"formality_level"`
	ConversationState string   `json:"conversation_state"`
	PriorExpressions  []string `json:"prior_expressions,omitempty"`
}

// culturalMultipliers damps or amplifies expression intensity per
// region and emotion. Western is the 1.0 baseline; regions without an
// entry inherit it.
var culturalMultipliers = map[string]map[expression.Emotion]float64{
	"eastern": {
		expression.EmotionJoy:        0.8,
		expression.EmotionExcitement: 0.7,
		expression.EmotionSurprise:   0.8,
		expression.EmotionConcern:    0.9,
		expression.EmotionSadness:    0.8,
		expression.EmotionAnger:      0.7,
		expression.EmotionFear:       0.8,
		expression.EmotionDisgust:    0.8,
		expression.EmotionContempt:   0.8,
		expression.EmotionFocus:      0.9,
	},
	"mediterranean": {
		expression.EmotionJoy:        1.2,
		expression.EmotionExcitement: 1.3,
		expression.EmotionSurprise:   1.2,
		expression.EmotionConcern:    1.1,
		expression.EmotionSadness:    1.1,
		expression.EmotionAnger:      1.2,
		expression.EmotionFear:       1.1,
		expression.EmotionDisgust:    1.1,
		expression.EmotionContempt:   1.1,
		expression.EmotionFocus:      1.1,
	},
	"nordic": {
		expression.EmotionJoy:        0.9,
		expression.EmotionExcitement: 0.8,
		expression.EmotionSurprise:   0.85,
		expression.EmotionConcern:    0.9,
		expression.EmotionSadness:    0.9,
		expression.EmotionAnger:      0.8,
		expression.EmotionFear:       0.9,
		expression.EmotionDisgust:    0.9,
		expression.EmotionContempt:   0.9,
		expression.EmotionFocus:      0.9,
	},
}

// formalityMultipliers scales intensity by register. Focus and neutral
// keep a 0.9 floor so formal settings never flatten attentiveness.
var formalityMultipliers = map[string]float64{
	"formal":   0.7,
	"informal": 1.0,
	"casual":   1.2,
}

// CoordinatorConfig holds coordinator configuration.
type CoordinatorConfig struct {
	SentimentThreshold float64       `json:"sentiment_threshold" mapstructure:"sentiment_threshold"` // default 0.6
	Cooldown           time.Duration `json:"cooldown" mapstructure:"cooldown"`                       // default 2s
	RepetitionWindow   time.Duration `json:"repetition_window" mapstructure:"repetition_window"`     // default 10s
	RepetitionLimit    int           `json:"repetition_limit" mapstructure:"repetition_limit"`       // default 2
	HistoryWindow      time.Duration `json:"history_window" mapstructure:"history_window"`           // default 30s
	SpeechBlending     bool          `json:"speech_blending" mapstructure:"speech_blending"`
	WordsPerMinute     float64       `json:"words_per_minute" mapstructure:"words_per_minute"` // default 150
}

// DefaultCoordinatorConfig returns sensible defaults.
func DefaultCoordinatorConfig() *CoordinatorConfig {
	return &CoordinatorConfig{
		SentimentThreshold: 0.6,
		Cooldown:           2000 * time.Millisecond,
		RepetitionWindow:   10 * time.Second,
		RepetitionLimit:    2,
		HistoryWindow:      30 * time.Second,
		SpeechBlending:     true,
		WordsPerMinute:     150,
	}
}

// applied records one coordinator-approved expression for the trailing
// history window.
type applied struct {
	expressionType expression.Type
	timestamp      time.Time
}

// Coordinator gates AI-driven expressions through confidence, cooldown,
// cultural adjustment and repetition avoidance.
type Coordinator struct {
	config   *CoordinatorConfig
	engine   *expression.Engine
	selector *expression.Selector
	events   *bus.EventBus
	logger   zerolog.Logger
	now      func() time.Time

	mu                 sync.Mutex
	lastExpressionTime time.Time
	history            []applied
}

// NewCoordinator creates a coordinator. events may be nil; now may be
// nil (time.Now).
func NewCoordinator(config *CoordinatorConfig, engine *expression.Engine,
	selector *expression.Selector, events *bus.EventBus, logger zerolog.Logger,
	now func() time.Time) *Coordinator {
	config = normalizeConfig(config)
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		config:   config,
		engine:   engine,
		selector: selector,
		events:   events,
		logger:   logger.With().Str("component", "behavior-coordinator").Logger(),
		now:      now,
	}
}

// normalizeConfig replaces nil or degenerate settings with defaults. A
// zero cooldown stays zero, meaning no cooldown.
func normalizeConfig(config *CoordinatorConfig) *CoordinatorConfig {
	if config == nil {
		return DefaultCoordinatorConfig()
	}
	if config.RepetitionWindow <= 0 {
		config.RepetitionWindow = 10 * time.Second
	}
	if config.RepetitionLimit <= 0 {
		config.RepetitionLimit = 2
	}
	if config.HistoryWindow <= 0 {
		config.HistoryWindow = 30 * time.Second
	}
	if config.WordsPerMinute <= 0 {
		config.WordsPerMinute = 150
	}
	return config
}

// UpdateConfig swaps in fresh arbitration settings, used by config hot
// reload. Nil or invalid fields fall back to defaults.
func (c *Coordinator) UpdateConfig(config *CoordinatorConfig) {
	config = normalizeConfig(config)
	c.mu.Lock()
	c.config = config
	c.mu.Unlock()
	c.logger.Info().Msg("Coordinator config updated")
}

// ProcessAIContentAnalysis arbitrates one AI analysis result into at
// most one expression mutation. Returns whether an expression was
// applied.
func (c *Coordinator) ProcessAIContentAnalysis(analysis AIAnalysis, bctx Context, text string) bool {
	c.mu.Lock()
	cfg := c.config
	c.mu.Unlock()

	if analysis.Confidence < cfg.SentimentThreshold {
		c.logger.Debug().
			Float64("confidence", analysis.Confidence).
			Float64("threshold", cfg.SentimentThreshold).
			Msg("Analysis below sentiment threshold, skipped")
		return false
	}

	now := c.now()
	c.mu.Lock()
	if !c.lastExpressionTime.IsZero() && now.Sub(c.lastExpressionTime) < cfg.Cooldown {
		c.mu.Unlock()
		c.logger.Debug().Msg("Expression cooldown active, skipped")
		return false
	}
	c.mu.Unlock()

	ctx := c.selector.MapContentToEmotion(expression.ContentAnalysis{
		Sentiment:          expression.Sentiment(analysis.Sentiment),
		EmotionalIntensity: analysis.EmotionalIntensity,
		ContentType:        expression.ContentType(analysis.ContentType),
		KeyPhrases:         analysis.KeyPhrases,
		Confidence:         analysis.Confidence,
	})
	ctx.CulturalModifier = culturalModifier(bctx.CulturalRegion, ctx.Primary) *
		formalityModifier(bctx.FormalityLevel, ctx.Primary)

	expr := c.engine.EmotionalExpression(ctx)

	if c.isOverused(expr.Type, now) {
		c.logger.Debug().
			Str("type", string(expr.Type)).
			Msg("Expression repeated too recently, substituting neutral")
		c.publish(bus.EventTypeExpressionSuppressed, map[string]any{"type": string(expr.Type)})
		expr = c.engine.Library().Template(expression.TypeNeutral)
	} else if cfg.SpeechBlending {
		if d := estimateSpeechDuration(text, cfg.WordsPerMinute); d > 0 {
			// Hold the expression slightly past the estimated speech.
			expr.Duration = time.Duration(float64(d) * 1.2)
		}
	}

	c.engine.Apply(expr)

	c.mu.Lock()
	c.history = append(c.history, applied{expressionType: expr.Type, timestamp: now})
	c.evictHistoryLocked(now)
	c.lastExpressionTime = now
	c.mu.Unlock()
	return true
}

// CoordinateWithAIBehaviors scales back the active expression when
// gesture, movement and speech channels together would overload the
// avatar visually.
func (c *Coordinator) CoordinateWithAIBehaviors(gestureIntensity, movementIntensity, speechIntensity float64) {
	if gestureIntensity+movementIntensity+speechIntensity <= 2.0 {
		return
	}

	state := c.engine.State()
	if !state.Transitioning && state.Current.Type == expression.TypeNeutral {
		return
	}

	expr := state.Target
	expr.Intensity = clampUnit(expr.Intensity * 0.7)
	for k, w := range expr.MorphWeights {
		expr.MorphWeights[k] = w * 0.7
	}
	c.engine.Apply(expr)

	c.logger.Debug().
		Str("type", string(expr.Type)).
		Float64("intensity", expr.Intensity).
		Msg("Expression damped to avoid visual overload")
}

// Reset neutralizes the blend engine and selector and clears the
// coordinator's own history and timestamps.
func (c *Coordinator) Reset() {
	c.engine.ResetToNeutral()
	c.selector.Reset()

	c.mu.Lock()
	c.history = nil
	c.lastExpressionTime = time.Time{}
	c.mu.Unlock()
}

// HistorySize reports the retained history length after eviction.
func (c *Coordinator) HistorySize() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictHistoryLocked(now)
	return len(c.history)
}

// isOverused reports whether the expression type already ran at the
// repetition limit inside the trailing window.
func (c *Coordinator) isOverused(t expression.Type, now time.Time) bool {
	cutoff := now.Add(-c.config.RepetitionWindow)
	count := 0

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.history {
		if h.expressionType == t && h.timestamp.After(cutoff) {
			count++
		}
	}
	return count >= c.config.RepetitionLimit
}

// evictHistoryLocked drops entries older than the history window.
// Strictly time-based; caller holds the lock.
func (c *Coordinator) evictHistoryLocked(now time.Time) {
	cutoff := now.Add(-c.config.HistoryWindow)
	i := 0
	for i < len(c.history) && c.history[i].timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.history = c.history[i:]
	}
}

// culturalModifier looks up the per-region per-emotion multiplier.
func culturalModifier(region string, emotion expression.Emotion) float64 {
	if table, ok := culturalMultipliers[region]; ok {
		if m, ok := table[emotion]; ok {
			return m
		}
	}
	return 1.0
}

// formalityModifier scales by register with the focus/neutral floor.
func formalityModifier(level string, emotion expression.Emotion) float64 {
	m, ok := formalityMultipliers[level]
	if !ok {
		m = 1.0
	}
	if (emotion == expression.EmotionFocus || emotion == expression.EmotionNeutral) && m < 0.9 {
		m = 0.9
	}
	return m
}

// estimateSpeechDuration estimates how long text takes to speak.
func estimateSpeechDuration(text string, wpm float64) time.Duration {
	words := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
		} else if !inWord {
			inWord = true
			words++
		}
	}
	if words == 0 {
		return 0
	}
	return time.Duration(float64(words) / wpm * float64(time.Minute))
}

// publish sends a bus event when a bus is wired.
func (c *Coordinator) publish(t bus.EventType, data map[string]any) {
	if c.events != nil {
		c.events.Publish(bus.Event{Type: t, Data: data})
	}
}

// clampUnit clamps to [0, 1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
