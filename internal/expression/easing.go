package expression

import "math"

// Easing names a monotonic remapping of linear progress.
type Easing string

const (
	EasingLinear    Easing = "linear"
	EasingEaseIn    Easing = "ease-in"
	EasingEaseOut   Easing = "ease-out"
	EasingEaseInOut Easing = "ease-in-out"
	EasingBounce    Easing = "bounce"
	EasingElastic   Easing = "elastic"
)

// Bounce segment constants and the elastic period.
const (
	bounceN1  = 7.5625
	bounceD1  = 2.75
	elasticC4 = 2 * math.Pi / 3
)

// Ease applies the named easing to t in [0, 1]. Unknown names fall back
// to linear.
func Ease(e Easing, t float64) float64 {
	switch e {
	case EasingEaseIn:
		return t * t
	case EasingEaseOut:
		return 1 - (1-t)*(1-t)
	case EasingEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		v := -2*t + 2
		return 1 - v*v/2
	case EasingBounce:
		switch {
		case t < 1/bounceD1:
			return bounceN1 * t * t
		case t < 2/bounceD1:
			t -= 1.5 / bounceD1
			return bounceN1*t*t + 0.75
		case t < 2.5/bounceD1:
			t -= 2.25 / bounceD1
			return bounceN1*t*t + 0.9375
		default:
			t -= 2.625 / bounceD1
			return bounceN1*t*t + 0.984375
		}
	case EasingElastic:
		if t == 0 {
			return 0
		}
		if t == 1 {
			return 1
		}
		return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*elasticC4) + 1
	default:
		return t
	}
}
