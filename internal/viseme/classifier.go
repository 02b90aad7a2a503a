package viseme

import (
	"github.com/TAKIS21345/techsteps-sub004/internal/audio"
	"github.com/TAKIS21345/techsteps-sub004/internal/morph"
)

// ClassifierConfig holds the deterministic classification thresholds.
// Out-of-range values are a documented caller responsibility; only the
// resulting intensities are clamped.
type ClassifierConfig struct {
	SilenceAmplitude   float64 `json:"silence_amplitude"`   // default 0.01
	SibilantCentroid   float64 `json:"sibilant_centroid"`   // default 0.7
	SibilantZCR        float64 `json:"sibilant_zcr"`        // default 0.1
	FricativeCentroid  float64 `json:"fricative_centroid"`  // default 0.6
	FricativeAmplitude float64 `json:"fricative_amplitude"` // default 0.05
	VowelCentroid      float64 `json:"vowel_centroid"`      // default 0.4
	VowelAmplitude     float64 `json:"vowel_amplitude"`     // default 0.1
	NasalZCR           float64 `json:"nasal_zcr"`           // default 0.05
	SecondaryAmplitude float64 `json:"secondary_amplitude"` // default 0.05
	SecondaryScale     float64 `json:"secondary_scale"`     // default 0.3
	WeightDecay        float64 `json:"weight_decay"`        // default 0.9
}

// DefaultClassifierConfig returns sensible defaults.
func DefaultClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		SilenceAmplitude:   0.01,
		SibilantCentroid:   0.7,
		SibilantZCR:        0.1,
		FricativeCentroid:  0.6,
		FricativeAmplitude: 0.05,
		VowelCentroid:      0.4,
		VowelAmplitude:     0.1,
		NasalZCR:           0.05,
		SecondaryAmplitude: 0.05,
		SecondaryScale:     0.3,
		WeightDecay:        0.9,
	}
}

// Classifier maps per-frame audio features to visemes with fixed
// thresholds, applied in order. The whole path is deterministic: the
// sibilant sub-class is disambiguated by zero-crossing rate rather than
// a random draw.
type Classifier struct {
	config *ClassifierConfig
}

// NewClassifier creates a classifier.
func NewClassifier(config *ClassifierConfig) *Classifier {
	if config == nil {
		config = DefaultClassifierConfig()
	}
	return &Classifier{config: config}
}

// Classify derives the primary viseme for a frame plus, for audible
// non-silent frames, a secondary mouth-opening viseme that smooths the
// visual motion.
func (c *Classifier) Classify(a *audio.Analysis) (Viseme, *Viseme) {
	cfg := c.config
	phoneme := c.classifyPhoneme(a)
	if phoneme == "sil" {
		return New(Sil, 1.0), nil
	}

	primary := New(FromPhoneme(phoneme), intensityFor(a.Amplitude))

	if a.Amplitude > cfg.SecondaryAmplitude {
		secondary := New(AA, cfg.SecondaryScale*a.Amplitude)
		return primary, &secondary
	}
	return primary, nil
}

// classifyPhoneme applies the threshold cascade and returns a phoneme
// symbol from the 39-symbol taxonomy.
func (c *Classifier) classifyPhoneme(a *audio.Analysis) string {
	cfg := c.config

	switch {
	case a.Amplitude < cfg.SilenceAmplitude:
		return "sil"

	case a.SpectralCentroid > cfg.SibilantCentroid && a.ZeroCrossingRate > cfg.SibilantZCR:
		// Sub-class split on noisiness: alveolar sibilants carry a
		// higher zero-crossing rate than post-alveolars.
		if a.ZeroCrossingRate > cfg.SibilantZCR*1.5 {
			return "S"
		}
		return "SH"

	case a.SpectralCentroid > cfg.FricativeCentroid && a.Amplitude > cfg.FricativeAmplitude:
		return "F"

	case a.SpectralCentroid < cfg.VowelCentroid && a.Amplitude > cfg.VowelAmplitude:
		// Vowel openness from the first two cepstral coefficients.
		diff := a.Cepstra[0] - a.Cepstra[1]
		switch {
		case diff > 0.5:
			return "AA" // open
		case diff < -0.5:
			return "UW" // close
		default:
			return "AH" // mid
		}

	case a.SpectralCentroid >= cfg.VowelCentroid && a.SpectralCentroid <= cfg.FricativeCentroid &&
		a.ZeroCrossingRate < cfg.NasalZCR:
		return "N"

	case a.SpectralCentroid < cfg.VowelCentroid:
		return "D"

	default:
		return "AH" // neutral vowel fallback
	}
}

// ApplyToBuffer performs the per-frame morph-buffer side effect: decay
// every viseme key, then additively apply the frame's viseme weights.
// Expression-owned keys are outside the viseme namespace and stay
// untouched.
func (c *Classifier) ApplyToBuffer(buffer *morph.Buffer, primary Viseme, secondary *Viseme) {
	weights := map[string]float64{primary.MorphKey(): primary.Intensity}
	if secondary != nil {
		weights[secondary.MorphKey()] += secondary.Intensity
	}
	buffer.DecayAndAdd(morph.VisemePrefix, c.config.WeightDecay, weights)
}

// intensityFor scales amplitude into a viseme intensity.
func intensityFor(amplitude float64) float64 {
	i := amplitude * 10
	if i > 1 {
		return 1
	}
	return i
}
