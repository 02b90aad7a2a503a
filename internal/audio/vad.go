package audio

import (
	"math"
	"sync"
	"time"
)

// VAD detects voice activity from frame energy. The lip-sync driver uses
// it to publish speech start/end events; classification itself runs on
// every frame regardless.
type VAD struct {
	config *VADConfig
	now    func() time.Time
	mu     sync.RWMutex

	isActive   bool
	lastActive time.Time

	energyHistory []float64
	historyIndex  int
}

// VADConfig holds voice activity detection configuration.
type VADConfig struct {
	Threshold       float64 `json:"threshold"`        // RMS threshold, default 0.01
	SmoothingFrames int     `json:"smoothing_frames"` // frames to smooth over, default 5
	MaxSilenceMs    int     `json:"max_silence_ms"`   // silence tolerated inside speech, default 500
}

// DefaultVADConfig returns sensible defaults.
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		Threshold:       0.01,
		SmoothingFrames: 5,
		MaxSilenceMs:    500,
	}
}

// NewVAD creates a VAD. now may be nil, in which case time.Now is used.
func NewVAD(config *VADConfig, now func() time.Time) *VAD {
	if config == nil {
		config = DefaultVADConfig()
	}
	if now == nil {
		now = time.Now
	}
	return &VAD{
		config:        config,
		now:           now,
		energyHistory: make([]float64, config.SmoothingFrames),
	}
}

// Process updates the detector with one frame and reports whether the
// frame falls inside a speech segment.
func (v *VAD) Process(frame Frame) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	var sum float64
	for _, s := range frame.Samples {
		sum += s * s
	}
	rms := 0.0
	if len(frame.Samples) > 0 {
		rms = math.Sqrt(sum / float64(len(frame.Samples)))
	}

	v.energyHistory[v.historyIndex] = rms
	v.historyIndex = (v.historyIndex + 1) % len(v.energyHistory)

	var total float64
	for _, e := range v.energyHistory {
		total += e
	}
	smoothed := total / float64(len(v.energyHistory))

	if smoothed >= v.config.Threshold {
		v.isActive = true
		v.lastActive = v.now()
		return true
	}

	if v.isActive {
		silence := v.now().Sub(v.lastActive)
		if silence > time.Duration(v.config.MaxSilenceMs)*time.Millisecond {
			v.isActive = false
			return false
		}
		// Still inside the silence tolerance window.
		return true
	}
	return false
}

// IsActive returns whether speech is currently detected.
func (v *VAD) IsActive() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.isActive
}

// Reset clears detector state.
func (v *VAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.isActive = false
	v.historyIndex = 0
	for i := range v.energyHistory {
		v.energyHistory[i] = 0
	}
}
