// Package benchmark - Functionality for running benchmarks.
package benchmark

import "time"

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario" yaml:"scenario"`
	Timestamp       time.Time     `json:"timestamp" yaml:"timestamp"`
	TotalDuration   time.Duration `json:"total_duration" yaml:"total_duration"`
	MeanLatency     time.Duration `json:"mean_latency" yaml:"mean_latency"`
	P50Latency      time.Duration `json:"p50_latency" yaml:"p50_latency"`
	P95Latency      time.Duration `json:"p95_latency" yaml:"p95_latency"`
	FramesPerSecond float64       `json:"frames_per_second" yaml:"frames_per_second"`
	MemoryStats     MemoryMetrics `json:"memory_stats" yaml:"memory_stats"`
	DetectionCount  int           `json:"detection_count" yaml:"detection_count"`
	// ErrorRate is the share of frames that produced no result.
	ErrorRate float64 `json:"error_rate" yaml:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	TotalAllocBytes uint64 `json:"total_alloc_bytes" yaml:"total_alloc_bytes"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes" yaml:"heap_alloc_bytes"`
	NumGC           uint32 `json:"num_gc" yaml:"num_gc"`
}
