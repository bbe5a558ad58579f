package benchmark

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/inference"
)

// Scenario defines a specific test configuration
type Scenario struct {
	Name       string `json:"name" yaml:"name"`
	BatchSize  int    `json:"batch_size" yaml:"batch_size"`
	Iterations int    `json:"iterations" yaml:"iterations"`
	WarmupRuns int    `json:"warmup_runs" yaml:"warmup_runs"`
}

// Validate checks the scenario limits.
func (s Scenario) Validate() error {
	if s.BatchSize <= 0 {
		return common.Configuration("batch_size must be positive, got %d", s.BatchSize)
	}
	if s.Iterations <= 0 {
		return common.Configuration("iterations must be positive, got %d", s.Iterations)
	}
	if s.WarmupRuns < 0 {
		return common.Configuration("warmup_runs must not be negative, got %d", s.WarmupRuns)
	}
	return nil
}

// Run executes a scenario against an engine.
//
// Each iteration predicts one batch of BatchSize frames taken round-robin from frames. Warmup
// runs are not measured.
//
// Arguments:
//   - ctx: Cancels the run.
//   - engine: The engine under test.
//   - frames: The input pool.
//   - scenario: Batch size and iteration counts.
//
// Returns:
//   - *PerformanceMetrics: Latency, throughput and memory figures.
//   - error: common.ErrConfiguration for an invalid scenario or empty pool, or the first
//     call-level prediction error.
func Run(ctx context.Context, engine inference.Engine, frames []images.Frame, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, common.Configuration("no frames to benchmark")
	}

	next := 0
	batch := func() []images.Frame {
		out := make([]images.Frame, scenario.BatchSize)
		for i := range out {
			out[i] = frames[next%len(frames)]
			next++
		}
		return out
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := engine.Predict(ctx, batch()); err != nil {
			return nil, err
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	latencies := make([]time.Duration, 0, scenario.Iterations)
	failed := 0
	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		t := time.Now()
		results, err := engine.Predict(ctx, batch())
		if err != nil {
			return nil, err
		}
		latencies = append(latencies, time.Since(t))

		for _, r := range results {
			if r.Err != nil {
				failed++
				continue
			}
			metrics.DetectionCount += len(r.Detections)
		}
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	total := scenario.Iterations * scenario.BatchSize
	if secs := metrics.TotalDuration.Seconds(); secs > 0 {
		metrics.FramesPerSecond = float64(total) / secs
	}
	metrics.ErrorRate = float64(failed) / float64(total)
	metrics.MeanLatency = metrics.TotalDuration / time.Duration(scenario.Iterations)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	metrics.P50Latency = percentile(latencies, 0.50)
	metrics.P95Latency = percentile(latencies, 0.95)

	metrics.MemoryStats = MemoryMetrics{
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		HeapAllocBytes:  endMem.HeapAlloc,
		NumGC:           endMem.NumGC - startMem.NumGC,
	}

	return metrics, nil
}

// percentile picks the nearest-rank value of a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
