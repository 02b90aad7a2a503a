// Package perf samples animation timing and recommends a quality tier
// the animation components poll and respect.
package perf

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mode is the advisory quality tier.
type Mode string

const (
	ModeOff    Mode = "off"
	ModeLow    Mode = "low"
	ModeMedium Mode = "medium"
	ModeHigh   Mode = "high"
)

// Metrics is the once-per-second snapshot of pipeline health.
type Metrics struct {
	FPS            float64 `json:"fps"`
	CPUUsagePct    float64 `json:"cpu_usage_pct"`
	MemoryUsagePct float64 `json:"memory_usage_pct"`
	RenderTimeMs   float64 `json:"render_time_ms"`
	AudioLatencyMs float64 `json:"audio_latency_ms"`
}

// Advisor is the read side the animation components depend on.
type Advisor interface {
	RecommendedMode() Mode
}

// Monitor extends Advisor with frame accounting for components that
// both respect and feed the governor.
type Monitor interface {
	Advisor
	RecordFrame(renderTime time.Duration)
}

// DeviceCaps describes static device capability. Any zero field is
// treated as unconstrained.
type DeviceCaps struct {
	CPUCount       int `json:"cpu_count" mapstructure:"cpu_count"`
	MemoryGB       int `json:"memory_gb" mapstructure:"memory_gb"`
	MaxTextureSize int `json:"max_texture_size" mapstructure:"max_texture_size"`
}

// GovernorConfig holds governor configuration.
type GovernorConfig struct {
	SampleInterval time.Duration `json:"sample_interval" mapstructure:"sample_interval"` // default 1s
	TargetFrameMs  float64       `json:"target_frame_ms" mapstructure:"target_frame_ms"` // default 16.67 (60fps)
	WindowSize     int           `json:"window_size" mapstructure:"window_size"`         // render-time samples, default 60
	HeapLimitBytes uint64        `json:"heap_limit_bytes" mapstructure:"heap_limit_bytes"`
	Caps           DeviceCaps    `json:"caps" mapstructure:"caps"`
}

// DefaultGovernorConfig returns sensible defaults. Device concurrency
// comes from the runtime; memory and texture caps stay unconstrained
// unless the host supplies them.
func DefaultGovernorConfig() *GovernorConfig {
	return &GovernorConfig{
		SampleInterval: time.Second,
		TargetFrameMs:  1000.0 / 60.0,
		WindowSize:     60,
		Caps:           DeviceCaps{CPUCount: runtime.NumCPU()},
	}
}

// Governor aggregates frame timings and derives the recommended mode.
// Sampling is lazy: metrics recompute at most once per SampleInterval,
// on read. The recommendation is advisory; callers coarsen or skip work
// themselves.
type Governor struct {
	config *GovernorConfig
	logger zerolog.Logger
	now    func() time.Time
	mu     sync.Mutex

	frameCount  int
	renderTimes []float64 // ring of recent render times in ms
	renderIdx   int
	renderLen   int
	audioLatMs  float64

	lastSample time.Time
	metrics    Metrics
}

// NewGovernor creates a governor. now may be nil (time.Now).
func NewGovernor(config *GovernorConfig, logger zerolog.Logger, now func() time.Time) *Governor {
	if config == nil {
		config = DefaultGovernorConfig()
	}
	if config.WindowSize <= 0 {
		config.WindowSize = 60
	}
	if config.SampleInterval <= 0 {
		config.SampleInterval = time.Second
	}
	if config.TargetFrameMs <= 0 {
		config.TargetFrameMs = 1000.0 / 60.0
	}
	if now == nil {
		now = time.Now
	}
	g := &Governor{
		config:      config,
		logger:      logger.With().Str("component", "perf-governor").Logger(),
		now:         now,
		renderTimes: make([]float64, config.WindowSize),
	}
	g.lastSample = now()
	// Assume a healthy pipeline until the first real sample lands.
	g.metrics = Metrics{FPS: 60}
	return g
}

// RecordFrame registers one completed frame and its render time.
func (g *Governor) RecordFrame(renderTime time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frameCount++
	g.renderTimes[g.renderIdx] = float64(renderTime.Microseconds()) / 1000.0
	g.renderIdx = (g.renderIdx + 1) % len(g.renderTimes)
	if g.renderLen < len(g.renderTimes) {
		g.renderLen++
	}
}

// SetAudioLatency feeds the externally measured audio latency.
func (g *Governor) SetAudioLatency(latency time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.audioLatMs = float64(latency.Microseconds()) / 1000.0
}

// Metrics returns the current snapshot, resampling if the interval has
// elapsed.
func (g *Governor) Metrics() Metrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sampleLocked()
	return g.metrics
}

// RecommendedMode maps the current metrics and device caps to a quality
// tier.
func (g *Governor) RecommendedMode() Mode {
	m := g.Metrics()

	switch {
	case m.FPS < 15 || m.CPUUsagePct > 90 || m.MemoryUsagePct > 85:
		return ModeOff
	case m.FPS < 25 || m.CPUUsagePct > 70 || m.MemoryUsagePct > 70:
		return ModeLow
	case m.FPS < 45 || m.CPUUsagePct > 50 || m.MemoryUsagePct > 50:
		return ModeMedium
	}

	if g.capsConstrained() {
		return ModeMedium
	}
	return ModeHigh
}

// capsConstrained reports whether static device capability caps the
// tier at medium.
func (g *Governor) capsConstrained() bool {
	c := g.config.Caps
	if c.CPUCount > 0 && c.CPUCount < 4 {
		return true
	}
	if c.MemoryGB > 0 && c.MemoryGB < 4 {
		return true
	}
	if c.MaxTextureSize > 0 && c.MaxTextureSize < 2048 {
		return true
	}
	return false
}

// sampleLocked recomputes metrics if the sample interval elapsed.
// Caller holds the lock.
func (g *Governor) sampleLocked() {
	now := g.now()
	elapsed := now.Sub(g.lastSample)
	if elapsed < g.config.SampleInterval {
		return
	}

	avgRender := g.avgRenderLocked()

	m := Metrics{
		FPS:            float64(g.frameCount) / elapsed.Seconds(),
		RenderTimeMs:   avgRender,
		AudioLatencyMs: g.audioLatMs,
	}
	m.CPUUsagePct = avgRender / g.config.TargetFrameMs * 100
	if m.CPUUsagePct > 100 {
		m.CPUUsagePct = 100
	}

	if g.config.HeapLimitBytes > 0 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		m.MemoryUsagePct = float64(ms.HeapAlloc) / float64(g.config.HeapLimitBytes) * 100
	} else {
		// No heap introspection target configured: use render-load as
		// a frame-complexity proxy.
		m.MemoryUsagePct = avgRender / (g.config.TargetFrameMs * 2) * 100
	}
	if m.MemoryUsagePct > 100 {
		m.MemoryUsagePct = 100
	}

	g.metrics = m
	g.frameCount = 0
	g.lastSample = now

	g.logger.Debug().
		Float64("fps", m.FPS).
		Float64("cpu_pct", m.CPUUsagePct).
		Float64("mem_pct", m.MemoryUsagePct).
		Float64("render_ms", m.RenderTimeMs).
		Msg("Performance sample")
}

// avgRenderLocked averages the render-time window. Caller holds the lock.
func (g *Governor) avgRenderLocked() float64 {
	if g.renderLen == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < g.renderLen; i++ {
		sum += g.renderTimes[i]
	}
	return sum / float64(g.renderLen)
}
