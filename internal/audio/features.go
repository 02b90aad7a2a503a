package audio

import (
	"fmt"
	"math"
	"math/bits"
)

// ExtractorConfig holds feature extraction configuration.
type ExtractorConfig struct {
	FrameSize  int `json:"frame_size"`  // samples per frame, power of two, default 1024
	SampleRate int `json:"sample_rate"` // default 48000
	MelBands   int `json:"mel_bands"`   // triangular filterbank size, default 26
	NumCepstra int `json:"num_cepstra"` // cepstral coefficients, default 13
}

// DefaultExtractorConfig returns sensible defaults.
func DefaultExtractorConfig() *ExtractorConfig {
	return &ExtractorConfig{
		FrameSize:  1024,
		SampleRate: 48000,
		MelBands:   26,
		NumCepstra: 13,
	}
}

// Extractor computes per-frame features: amplitude, spectral centroid,
// zero-crossing rate and simplified mel cepstra. All work is bounded by
// the frame size, so it is safe to run on every audio callback.
type Extractor struct {
	config *ExtractorConfig

	// Precomputed mel filterbank: for each band, the bin range and
	// triangular weights.
	filterbank [][]float64
}

// NewExtractor creates a feature extractor.
func NewExtractor(config *ExtractorConfig) *Extractor {
	if config == nil {
		config = DefaultExtractorConfig()
	}
	e := &Extractor{config: config}
	e.filterbank = buildMelFilterbank(config.MelBands, config.FrameSize/2, config.SampleRate)
	return e
}

// Analyze computes features for a single frame. A frame whose length is
// not the configured power-of-two size is rejected; the caller skips it
// and continues with the next frame.
func (e *Extractor) Analyze(frame Frame) (*Analysis, error) {
	n := len(frame.Samples)
	if n != e.config.FrameSize {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrInvalidFrame, n, e.config.FrameSize)
	}

	a := &Analysis{}

	// Amplitude: mean normalized magnitude.
	var sum float64
	for _, s := range frame.Samples {
		sum += math.Abs(s)
	}
	a.Amplitude = sum / float64(n)

	// Zero-crossing rate.
	var crossings int
	for i := 1; i < n; i++ {
		if (frame.Samples[i-1] >= 0) != (frame.Samples[i] >= 0) {
			crossings++
		}
	}
	a.ZeroCrossingRate = float64(crossings) / float64(n-1)

	// Magnitude spectrum (first half of the FFT).
	a.MagnitudeSpectrum = magnitudeSpectrum(frame.Samples)

	// Spectral centroid: magnitude-weighted bin average, normalized to
	// [0, 1] by the bin count.
	var weighted, total float64
	for i, m := range a.MagnitudeSpectrum {
		weighted += float64(i) * m
		total += m
	}
	if total > 0 {
		a.SpectralCentroid = weighted / total / float64(len(a.MagnitudeSpectrum))
	}

	// Simplified cepstra: log mel filterbank energies, DCT-II.
	energies := make([]float64, len(e.filterbank))
	for b, filter := range e.filterbank {
		var energy float64
		for i, w := range filter {
			if i < len(a.MagnitudeSpectrum) {
				energy += a.MagnitudeSpectrum[i] * w
			}
		}
		energies[b] = math.Log(energy + 1e-10)
	}
	nb := float64(len(energies))
	for c := 0; c < len(a.Cepstra) && c < len(energies); c++ {
		var acc float64
		for b, en := range energies {
			acc += en * math.Cos(math.Pi*float64(c)*(float64(b)+0.5)/nb)
		}
		a.Cepstra[c] = acc / nb
	}

	return a, nil
}

// magnitudeSpectrum returns |FFT(x)| for the first n/2 bins using an
// in-place iterative radix-2 FFT.
func magnitudeSpectrum(samples []float64) []float64 {
	n := len(samples)
	if n&(n-1) != 0 || n == 0 {
		return nil
	}

	re := make([]float64, n)
	im := make([]float64, n)
	copy(re, samples)

	// Bit-reversal permutation.
	shift := 64 - uint(bits.Len(uint(n-1)))
	for i := 0; i < n; i++ {
		j := int(bits.Reverse64(uint64(i)) >> shift)
		if j > i {
			re[i], re[j] = re[j], re[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				angle := step * float64(k)
				wr, wi := math.Cos(angle), math.Sin(angle)
				i, j := start+k, start+k+half
				tr := wr*re[j] - wi*im[j]
				ti := wr*im[j] + wi*re[j]
				re[j] = re[i] - tr
				im[j] = im[i] - ti
				re[i] += tr
				im[i] += ti
			}
		}
	}

	mags := make([]float64, n/2)
	for i := range mags {
		mags[i] = math.Hypot(re[i], im[i])
	}
	return mags
}

// buildMelFilterbank precomputes triangular filters spaced on a mel-like
// scale over numBins spectrum bins.
func buildMelFilterbank(numBands, numBins, sampleRate int) [][]float64 {
	hzToMel := func(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }
	melToHz := func(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

	nyquist := float64(sampleRate) / 2
	maxMel := hzToMel(nyquist)

	// Band edge frequencies: numBands+2 points from 0 to Nyquist.
	edges := make([]int, numBands+2)
	for i := range edges {
		hz := melToHz(maxMel * float64(i) / float64(numBands+1))
		bin := int(hz / nyquist * float64(numBins))
		if bin >= numBins {
			bin = numBins - 1
		}
		edges[i] = bin
	}

	filters := make([][]float64, numBands)
	for b := 0; b < numBands; b++ {
		lo, mid, hi := edges[b], edges[b+1], edges[b+2]
		filter := make([]float64, hi+1)
		for i := lo; i <= hi; i++ {
			switch {
			case i < mid && mid > lo:
				filter[i] = float64(i-lo) / float64(mid-lo)
			case i == mid:
				filter[i] = 1
			case i > mid && hi > mid:
				filter[i] = float64(hi-i) / float64(hi-mid)
			}
		}
		filters[b] = filter
	}
	return filters
}
