package expression

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Library holds the fixed catalog of expression templates. Templates are
// immutable; lookups return deep copies.
type Library struct {
	templates map[Type]FacialExpression
}

// NewLibrary builds the six-template catalog.
func NewLibrary() *Library {
	return &Library{templates: map[Type]FacialExpression{
		TypeNeutral: {
			Type:         TypeNeutral,
			Intensity:    1.0,
			Duration:     1000 * time.Millisecond,
			MorphWeights: map[string]float64{},
			Eyes: EyeMovement{
				LookDir:   mgl64.Vec3{0, 0, 1},
				BlinkRate: 0.2,
			},
			BlendMode: BlendReplace,
		},
		TypeSmile: {
			Type:      TypeSmile,
			Intensity: 0.8,
			Duration:  2000 * time.Millisecond,
			MorphWeights: map[string]float64{
				"mouthSmile":       0.8,
				"cheekSquintLeft":  0.3,
				"cheekSquintRight": 0.3,
				"eyeSquintLeft":    0.2,
				"eyeSquintRight":   0.2,
			},
			Eyes: EyeMovement{
				LookDir:   mgl64.Vec3{0, 0, 1},
				BlinkRate: 0.25,
				Squint:    0.2,
			},
			Brows:     EyebrowPosition{LeftRaise: 0.2, RightRaise: 0.2},
			BlendMode: BlendReplace,
		},
		TypeConcern: {
			Type:      TypeConcern,
			Intensity: 0.7,
			Duration:  3000 * time.Millisecond,
			MorphWeights: map[string]float64{
				"browDownLeft":    0.6,
				"browDownRight":   0.6,
				"browInnerUp":     0.3,
				"mouthFrownLeft":  0.4,
				"mouthFrownRight": 0.4,
			},
			Eyes: EyeMovement{
				LookDir:   mgl64.Vec3{0, -0.1, 1},
				BlinkRate: 0.15,
			},
			Brows:     EyebrowPosition{Furrow: 0.5},
			BlendMode: BlendReplace,
		},
		TypeExcitement: {
			Type:      TypeExcitement,
			Intensity: 0.9,
			Duration:  2500 * time.Millisecond,
			MorphWeights: map[string]float64{
				"mouthSmile":       0.9,
				"jawOpen":          0.3,
				"eyeWideLeft":      0.6,
				"eyeWideRight":     0.6,
				"browOuterUpLeft":  0.5,
				"browOuterUpRight": 0.5,
			},
			Eyes: EyeMovement{
				LookDir:   mgl64.Vec3{0, 0.1, 1},
				BlinkRate: 0.3,
				Widen:     0.6,
			},
			Brows:     EyebrowPosition{LeftRaise: 0.5, RightRaise: 0.5},
			BlendMode: BlendReplace,
		},
		TypeFocus: {
			Type:      TypeFocus,
			Intensity: 0.6,
			Duration:  3500 * time.Millisecond,
			MorphWeights: map[string]float64{
				"browDownLeft":   0.3,
				"browDownRight":  0.3,
				"eyeSquintLeft":  0.4,
				"eyeSquintRight": 0.4,
			},
			Eyes: EyeMovement{
				LookDir:   mgl64.Vec3{0, 0, 1},
				BlinkRate: 0.1,
				Squint:    0.4,
			},
			Brows:     EyebrowPosition{Furrow: 0.3},
			BlendMode: BlendReplace,
		},
		TypeSurprise: {
			Type:      TypeSurprise,
			Intensity: 0.8,
			Duration:  1500 * time.Millisecond,
			MorphWeights: map[string]float64{
				"eyeWideLeft":      0.8,
				"eyeWideRight":     0.8,
				"jawOpen":          0.5,
				"browInnerUp":      0.7,
				"browOuterUpLeft":  0.6,
				"browOuterUpRight": 0.6,
			},
			Eyes: EyeMovement{
				LookDir:   mgl64.Vec3{0, 0.2, 1},
				BlinkRate: 0.05,
				Widen:     0.8,
			},
			Brows:     EyebrowPosition{LeftRaise: 0.7, RightRaise: 0.7},
			BlendMode: BlendReplace,
		},
	}}
}

// Template returns a copy of the template for the given type. Types
// without a template of their own fall back to neutral.
func (l *Library) Template(t Type) FacialExpression {
	if tpl, ok := l.templates[t]; ok {
		return tpl.Clone()
	}
	return l.templates[TypeNeutral].Clone()
}

// Types lists the expression types with a dedicated template.
func (l *Library) Types() []Type {
	return []Type{TypeNeutral, TypeSmile, TypeConcern, TypeExcitement, TypeFocus, TypeSurprise}
}

// emotionToTemplate maps the 11-emotion vocabulary onto the 6 templates.
var emotionToTemplate = map[Emotion]Type{
	EmotionJoy:        TypeSmile,
	EmotionConcern:    TypeConcern,
	EmotionSadness:    TypeConcern,
	EmotionAnger:      TypeConcern,
	EmotionFear:       TypeConcern,
	EmotionDisgust:    TypeConcern,
	EmotionContempt:   TypeConcern,
	EmotionExcitement: TypeExcitement,
	EmotionFocus:      TypeFocus,
	EmotionSurprise:   TypeSurprise,
	EmotionNeutral:    TypeNeutral,
}

// TemplateForEmotion resolves the base template for an emotion. Unknown
// emotions map to neutral.
func (l *Library) TemplateForEmotion(e Emotion) FacialExpression {
	if t, ok := emotionToTemplate[e]; ok {
		return l.Template(t)
	}
	return l.Template(TypeNeutral)
}
