package images

import (
	"math/rand"
	"testing"
)

// BenchmarkIoU_NonOverlapping takes the early return when the intersection is empty.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	rect1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	rect2 := Rect{X1: 200, Y1: 200, X2: 300, Y2: 300}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rect1, rect2)
	}
}

// BenchmarkIoU_PartialOverlap is the common detection case of two overlapping candidates.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	rect1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	rect2 := Rect{X1: 50, Y1: 50, X2: 150, Y2: 150}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rect1, rect2)
	}
}

// BenchmarkIoU_RandomPairs simulates a mixed workload of boxes on a 1080p frame.
func BenchmarkIoU_RandomPairs(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	pairs := make([]struct{ r1, r2 Rect }, 1000)
	for i := range pairs {
		x1, y1 := float32(rng.Intn(1920)), float32(rng.Intn(1080))
		w1, h1 := float32(rng.Intn(300)+20), float32(rng.Intn(300)+20)
		x2, y2 := float32(rng.Intn(1920)), float32(rng.Intn(1080))
		w2, h2 := float32(rng.Intn(300)+20), float32(rng.Intn(300)+20)

		pairs[i].r1 = Rect{X1: x1, Y1: y1, X2: x1 + w1, Y2: y1 + h1}
		pairs[i].r2 = Rect{X1: x2, Y1: y2, X2: x2 + w2, Y2: y2 + h2}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		pair := pairs[i%len(pairs)]
		_ = CalculateIoU(pair.r1, pair.r2)
	}
}
