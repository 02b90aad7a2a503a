package perf

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testGovernor(caps DeviceCaps) (*Governor, *time.Time) {
	clock := time.Unix(1000, 0)
	g := NewGovernor(&GovernorConfig{
		SampleInterval: time.Second,
		TargetFrameMs:  1000.0 / 60.0,
		WindowSize:     60,
		Caps:           caps,
	}, zerolog.Nop(), func() time.Time { return clock })
	return g, &clock
}

// record registers n frames of the given render cost and advances the
// clock past the sample interval so the next read resamples.
func record(g *Governor, clock *time.Time, n int, renderTime time.Duration) {
	for i := 0; i < n; i++ {
		g.RecordFrame(renderTime)
	}
	*clock = clock.Add(time.Second)
}

func TestRecommendedMode_HealthyStart(t *testing.T) {
	g, _ := testGovernor(DeviceCaps{CPUCount: 8})

	// Before the first sample the pipeline is assumed healthy.
	if got := g.RecommendedMode(); got != ModeHigh {
		t.Errorf("expected high, got %s", got)
	}
}

func TestRecommendedMode_Tiers(t *testing.T) {
	tests := []struct {
		name       string
		frames     int
		renderTime time.Duration
		want       Mode
	}{
		// 10 fps is below the 15 fps floor.
		{"starved", 10, 2 * time.Millisecond, ModeOff},
		// 20 fps lands in the low band.
		{"struggling", 20, 2 * time.Millisecond, ModeLow},
		// 30 fps lands in the medium band.
		{"mediocre", 30, 2 * time.Millisecond, ModeMedium},
		// 60 fps with cheap frames is fully healthy.
		{"healthy", 60, 2 * time.Millisecond, ModeHigh},
		// 60 fps but frames eat most of the 16.67 ms budget: cpu tier.
		{"cpu bound", 60, 13 * time.Millisecond, ModeLow},
		// Frames over budget entirely: off.
		{"overloaded", 60, 20 * time.Millisecond, ModeOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, clock := testGovernor(DeviceCaps{CPUCount: 8})
			record(g, clock, tt.frames, tt.renderTime)
			if got := g.RecommendedMode(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRecommendedMode_DeviceCapsCeiling(t *testing.T) {
	// A weak device caps the tier at medium even with perfect metrics.
	g, clock := testGovernor(DeviceCaps{CPUCount: 2})
	record(g, clock, 60, 2*time.Millisecond)
	if got := g.RecommendedMode(); got != ModeMedium {
		t.Errorf("expected medium on a 2-core device, got %s", got)
	}

	g, clock = testGovernor(DeviceCaps{CPUCount: 8, MemoryGB: 2})
	record(g, clock, 60, 2*time.Millisecond)
	if got := g.RecommendedMode(); got != ModeMedium {
		t.Errorf("expected medium on a 2GB device, got %s", got)
	}

	g, clock = testGovernor(DeviceCaps{CPUCount: 8, MaxTextureSize: 1024})
	record(g, clock, 60, 2*time.Millisecond)
	if got := g.RecommendedMode(); got != ModeMedium {
		t.Errorf("expected medium on a small-texture device, got %s", got)
	}
}

func TestMetrics_LazySampling(t *testing.T) {
	g, clock := testGovernor(DeviceCaps{CPUCount: 8})

	g.RecordFrame(2 * time.Millisecond)
	// Inside the sample interval the initial snapshot persists.
	if m := g.Metrics(); m.FPS != 60 {
		t.Errorf("expected initial FPS 60, got %f", m.FPS)
	}

	*clock = clock.Add(time.Second)
	m := g.Metrics()
	if m.FPS != 1 {
		t.Errorf("expected 1 frame over 1s, got FPS %f", m.FPS)
	}

	// The counter resets after each sample.
	*clock = clock.Add(time.Second)
	if m := g.Metrics(); m.FPS != 0 {
		t.Errorf("expected FPS 0 with no new frames, got %f", m.FPS)
	}
}

func TestMetrics_CPUFromRenderBudget(t *testing.T) {
	g, clock := testGovernor(DeviceCaps{CPUCount: 8})
	record(g, clock, 60, 8*time.Millisecond)

	m := g.Metrics()
	// 8ms of a 16.67ms budget is about 48%.
	if m.CPUUsagePct < 45 || m.CPUUsagePct > 51 {
		t.Errorf("expected CPU near 48%%, got %f", m.CPUUsagePct)
	}
	if m.RenderTimeMs < 7.9 || m.RenderTimeMs > 8.1 {
		t.Errorf("expected render time near 8ms, got %f", m.RenderTimeMs)
	}
}

func TestMetrics_CPUCapsAt100(t *testing.T) {
	g, clock := testGovernor(DeviceCaps{CPUCount: 8})
	record(g, clock, 60, 50*time.Millisecond)

	if m := g.Metrics(); m.CPUUsagePct != 100 {
		t.Errorf("expected CPU capped at 100, got %f", m.CPUUsagePct)
	}
}

func TestMetrics_HeapLimitPath(t *testing.T) {
	clock := time.Unix(1000, 0)
	g := NewGovernor(&GovernorConfig{
		SampleInterval: time.Second,
		TargetFrameMs:  1000.0 / 60.0,
		WindowSize:     60,
		HeapLimitBytes: 1 << 40, // 1 TiB, never approached
		Caps:           DeviceCaps{CPUCount: 8},
	}, zerolog.Nop(), func() time.Time { return clock })

	record(g, &clock, 60, 2*time.Millisecond)
	if m := g.Metrics(); m.MemoryUsagePct > 1 {
		t.Errorf("heap usage against 1TiB should be negligible, got %f", m.MemoryUsagePct)
	}
}

func TestSetAudioLatency(t *testing.T) {
	g, clock := testGovernor(DeviceCaps{CPUCount: 8})
	g.SetAudioLatency(12 * time.Millisecond)
	record(g, clock, 60, 2*time.Millisecond)

	if m := g.Metrics(); m.AudioLatencyMs != 12 {
		t.Errorf("expected audio latency 12ms, got %f", m.AudioLatencyMs)
	}
}
