// Package expression owns the facial expression catalog, the blend and
// transition engine, and the contextual selector that derives emotional
// context from text.
package expression

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Type is the closed set of facial expression variants. Dispatch is by
// table lookup, never by hierarchy.
type Type string

const (
	TypeNeutral    Type = "neutral"
	TypeSmile      Type = "smile"
	TypeConcern    Type = "concern"
	TypeExcitement Type = "excitement"
	TypeFocus      Type = "focus"
	TypeSurprise   Type = "surprise"
	TypeJoy        Type = "joy"
	TypeSadness    Type = "sadness"
	TypeAnger      Type = "anger"
	TypeFear       Type = "fear"
	TypeDisgust    Type = "disgust"
	TypeContempt   Type = "contempt"
)

// Emotion is the emotional vocabulary accepted by EmotionalExpression.
type Emotion string

const (
	EmotionNeutral    Emotion = "neutral"
	EmotionJoy        Emotion = "joy"
	EmotionConcern    Emotion = "concern"
	EmotionSadness    Emotion = "sadness"
	EmotionAnger      Emotion = "anger"
	EmotionFear       Emotion = "fear"
	EmotionDisgust    Emotion = "disgust"
	EmotionContempt   Emotion = "contempt"
	EmotionExcitement Emotion = "excitement"
	EmotionFocus      Emotion = "focus"
	EmotionSurprise   Emotion = "surprise"
)

// BlendMode controls how an expression combines with the buffer.
type BlendMode string

const (
	BlendReplace  BlendMode = "replace"
	BlendAdditive BlendMode = "additive"
)

// EyeMovement describes gaze and lid state for an expression.
type EyeMovement struct {
	LookDir   mgl64.Vec3 `json:"look_dir"`
	BlinkRate float64    `json:"blink_rate"`
	Widen     float64    `json:"widen"`
	Squint    float64    `json:"squint"`
}

// EyebrowPosition describes brow pose for an expression.
type EyebrowPosition struct {
	LeftRaise  float64 `json:"left_raise"`
	RightRaise float64 `json:"right_raise"`
	Furrow     float64 `json:"furrow"`
}

// FacialExpression is an immutable expression value. Engine operations
// return fresh copies; callers never mutate a stored one.
type FacialExpression struct {
	Type         Type               `json:"type"`
	Intensity    float64            `json:"intensity"` // 0-1
	Duration     time.Duration      `json:"duration"`
	MorphWeights map[string]float64 `json:"morph_weights"`
	Eyes         EyeMovement        `json:"eyes"`
	Brows        EyebrowPosition    `json:"brows"`
	BlendMode    BlendMode          `json:"blend_mode"`
}

// Clone deep-copies the expression.
func (e FacialExpression) Clone() FacialExpression {
	out := e
	out.MorphWeights = make(map[string]float64, len(e.MorphWeights))
	for k, w := range e.MorphWeights {
		out.MorphWeights[k] = w
	}
	return out
}

// EmotionalContext is the transient input to EmotionalExpression.
type EmotionalContext struct {
	Primary          Emotion       `json:"primary"`
	Secondary        Emotion       `json:"secondary,omitempty"`
	Intensity        float64       `json:"intensity"` // 0-1
	CulturalModifier float64       `json:"cultural_modifier"`
	Duration         time.Duration `json:"duration,omitempty"` // 0 keeps the template duration
}

// Transition is the single in-flight interpolation between expressions.
// A new Apply supersedes it; transitions are never queued.
type Transition struct {
	From      FacialExpression
	To        FacialExpression
	Progress  float64 // 0-1
	Duration  time.Duration
	Easing    Easing
	StartTime time.Time
}

// HistoryEntry records an applied expression for the engine's
// time-bounded memory.
type HistoryEntry struct {
	Expression FacialExpression
	Timestamp  time.Time
	Duration   time.Duration
	Context    string
}

// State is a snapshot of the engine's current condition.
type State struct {
	Current       FacialExpression
	Target        FacialExpression
	Transitioning bool
	Progress      float64
}

// clamp01 clamps to the unit interval.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// lerp linearly interpolates between a and b.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerpVec3 interpolates gaze vectors componentwise.
func lerpVec3(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
