package expression

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sentiment is the coarse polarity of analyzed text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ContentType categorizes what a piece of tutor dialogue is doing.
type ContentType string

const (
	ContentQuestion    ContentType = "question"
	ContentGreeting    ContentType = "greeting"
	ContentFarewell    ContentType = "farewell"
	ContentCelebration ContentType = "celebration"
	ContentExcitement  ContentType = "excitement"
	ContentConcern     ContentType = "concern"
	ContentInstruction ContentType = "instruction"
	ContentExplanation ContentType = "explanation"
)

// ContentAnalysis is the rule-based approximation of text sentiment and
// intent. It stands on its own; this is not a placeholder for a model.
type ContentAnalysis struct {
	Sentiment          Sentiment   `json:"sentiment"`
	EmotionalIntensity float64     `json:"emotional_intensity"` // 0-1
	ContentType        ContentType `json:"content_type"`
	KeyPhrases         []string    `json:"key_phrases,omitempty"`
	Confidence         float64     `json:"confidence"` // 0-1
}

// Static keyword sets for scoring.
var (
	positiveKeywords = []string{
		"great", "good", "excellent", "wonderful", "awesome", "perfect",
		"nice", "well done", "correct", "right", "helpful",
	}
	negativeKeywords = []string{
		"wrong", "bad", "error", "problem", "difficult", "hard",
		"confused", "stuck", "fail", "sorry",
	}
	excitementKeywords = []string{
		"congratulations", "amazing", "fantastic", "celebrate", "hooray",
		"achievement", "brilliant", "incredible",
	}
	concernKeywords = []string{
		"worried", "careful", "caution", "warning", "trouble", "risk",
		"danger", "mistake",
	}
	greetingKeywords = []string{
		"hello", "hi ", "welcome", "good morning", "good afternoon",
		"good evening", "hey",
	}
	farewellKeywords = []string{
		"goodbye", "bye", "see you", "farewell", "take care", "good night",
	}
	instructionKeywords = []string{
		"learn", "understand", "explain", "show you", "step", "practice",
		"try", "remember", "follow",
	}
)

// Base expression durations per content type, jittered ±20% and clamped
// to the configured range.
var contentDurations = map[ContentType]time.Duration{
	ContentCelebration: 3000 * time.Millisecond,
	ContentExcitement:  2500 * time.Millisecond,
	ContentConcern:     4000 * time.Millisecond,
	ContentGreeting:    2000 * time.Millisecond,
	ContentFarewell:    2500 * time.Millisecond,
	ContentInstruction: 3500 * time.Millisecond,
	ContentQuestion:    2000 * time.Millisecond,
	ContentExplanation: 3000 * time.Millisecond,
}

// SelectorConfig holds contextual selector configuration.
type SelectorConfig struct {
	MinDuration time.Duration `json:"min_duration" mapstructure:"min_duration"` // default 1s
	MaxDuration time.Duration `json:"max_duration" mapstructure:"max_duration"` // default 5s
}

// DefaultSelectorConfig returns sensible defaults.
func DefaultSelectorConfig() *SelectorConfig {
	return &SelectorConfig{
		MinDuration: 1000 * time.Millisecond,
		MaxDuration: 5000 * time.Millisecond,
	}
}

// Selector derives an emotional context from arbitrary tutor text and
// drives the blend engine with it. Cooldown and arbitration live one
// layer up in the behavior coordinator.
type Selector struct {
	config *SelectorConfig
	engine *Engine
	logger zerolog.Logger
	rng    func() float64

	mu   sync.Mutex
	last *ContentAnalysis
}

// NewSelector creates a selector. rng may be nil (math/rand).
func NewSelector(config *SelectorConfig, engine *Engine, logger zerolog.Logger, rng func() float64) *Selector {
	if config == nil {
		config = DefaultSelectorConfig()
	}
	if rng == nil {
		rng = rand.Float64
	}
	return &Selector{
		config: config,
		engine: engine,
		logger: logger.With().Str("component", "contextual-selector").Logger(),
		rng:    rng,
	}
}

// Analyze scores text against the static keyword sets.
func (s *Selector) Analyze(text string) ContentAnalysis {
	lower := strings.ToLower(text)

	positive, posHits := countMatches(lower, positiveKeywords)
	negative, negHits := countMatches(lower, negativeKeywords)
	excitement, excHits := countMatches(lower, excitementKeywords)
	concern, conHits := countMatches(lower, concernKeywords)

	a := ContentAnalysis{Sentiment: SentimentNeutral}

	switch {
	case excitement > 0 || positive > negative:
		a.Sentiment = SentimentPositive
	case negative > positive || concern > 0:
		a.Sentiment = SentimentNegative
	}

	matched := positive + negative + excitement + concern
	a.EmotionalIntensity = clamp01(0.5 + 0.1*float64(matched))

	greeting, _ := countMatches(lower, greetingKeywords)
	farewell, _ := countMatches(lower, farewellKeywords)
	instruction, _ := countMatches(lower, instructionKeywords)

	// Checked in priority order.
	switch {
	case strings.Contains(text, "?"):
		a.ContentType = ContentQuestion
	case greeting > 0:
		a.ContentType = ContentGreeting
	case farewell > 0:
		a.ContentType = ContentFarewell
	case excitement > 0:
		a.ContentType = ContentCelebration
	case instruction > 0:
		a.ContentType = ContentInstruction
	default:
		a.ContentType = ContentExplanation
	}

	total := matched + greeting + farewell + instruction
	a.Confidence = clamp01(0.3 + 0.2*float64(total))

	a.KeyPhrases = append(a.KeyPhrases, posHits...)
	a.KeyPhrases = append(a.KeyPhrases, negHits...)
	a.KeyPhrases = append(a.KeyPhrases, excHits...)
	a.KeyPhrases = append(a.KeyPhrases, conHits...)

	s.mu.Lock()
	s.last = &a
	s.mu.Unlock()
	return a
}

// MapContentToEmotion converts an analysis into the emotional context
// fed to the blend engine. The cultural modifier defaults to 1.0; the
// coordinator overrides it per region and formality.
func (s *Selector) MapContentToEmotion(a ContentAnalysis) EmotionalContext {
	ctx := EmotionalContext{
		Intensity:        a.EmotionalIntensity,
		CulturalModifier: 1.0,
	}

	switch a.ContentType {
	case ContentCelebration:
		ctx.Primary = EmotionExcitement
		if a.Sentiment == SentimentPositive {
			ctx.Secondary = EmotionJoy
		}
	case ContentConcern:
		ctx.Primary = EmotionConcern
	case ContentGreeting:
		ctx.Primary = EmotionJoy
	case ContentFarewell:
		ctx.Primary = EmotionNeutral
		if a.Sentiment == SentimentPositive {
			ctx.Secondary = EmotionJoy
		}
	case ContentInstruction, ContentQuestion:
		ctx.Primary = EmotionFocus
		if a.Sentiment == SentimentPositive && a.ContentType == ContentQuestion {
			ctx.Secondary = EmotionJoy
		}
	default:
		switch a.Sentiment {
		case SentimentPositive:
			ctx.Primary = EmotionJoy
		case SentimentNegative:
			ctx.Primary = EmotionConcern
		default:
			ctx.Primary = EmotionNeutral
		}
	}

	ctx.Duration = s.durationFor(a.ContentType)
	return ctx
}

// durationFor applies the per-content-type base with ±20% jitter,
// clamped to the configured range.
func (s *Selector) durationFor(ct ContentType) time.Duration {
	base, ok := contentDurations[ct]
	if !ok {
		base = contentDurations[ContentExplanation]
	}
	jitter := 1 + (s.rng()*0.4 - 0.2)
	d := time.Duration(float64(base) * jitter)
	if d < s.config.MinDuration {
		d = s.config.MinDuration
	}
	if d > s.config.MaxDuration {
		d = s.config.MaxDuration
	}
	return d
}

// ProcessContent analyzes text and drives the blend engine directly.
func (s *Selector) ProcessContent(text string, culturalModifier float64) ContentAnalysis {
	a := s.Analyze(text)
	ctx := s.MapContentToEmotion(a)
	if culturalModifier > 0 {
		ctx.CulturalModifier = culturalModifier
	}

	expr := s.engine.EmotionalExpression(ctx)
	s.engine.Apply(expr)

	s.logger.Debug().
		Str("sentiment", string(a.Sentiment)).
		Str("content_type", string(a.ContentType)).
		Float64("confidence", a.Confidence).
		Str("expression", string(expr.Type)).
		Msg("Content processed")
	return a
}

// Manual triggers below bypass analysis entirely.

// ApplyPositiveExpression applies the smile template directly.
func (s *Selector) ApplyPositiveExpression() {
	s.engine.Apply(s.engine.Library().Template(TypeSmile))
}

// ApplyConcernExpression applies the concern template directly.
func (s *Selector) ApplyConcernExpression() {
	s.engine.Apply(s.engine.Library().Template(TypeConcern))
}

// ApplyExcitementExpression applies the excitement template directly.
func (s *Selector) ApplyExcitementExpression() {
	s.engine.Apply(s.engine.Library().Template(TypeExcitement))
}

// ApplyFocusExpression applies the focus template directly.
func (s *Selector) ApplyFocusExpression() {
	s.engine.Apply(s.engine.Library().Template(TypeFocus))
}

// LastAnalysis returns the most recent analysis, nil if none.
func (s *Selector) LastAnalysis() *ContentAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	out := *s.last
	return &out
}

// Reset clears selector state.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
}

// countMatches counts keyword occurrences and collects which keywords
// hit.
func countMatches(lower string, keywords []string) (int, []string) {
	var count int
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
			hits = append(hits, strings.TrimSpace(kw))
		}
	}
	return count, hits
}
