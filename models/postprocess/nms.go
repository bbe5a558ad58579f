// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-yolov5/images"
)

// Suppressor runs greedy Non-Maximum Suppression over index arenas that are reused between
// calls. A Suppressor is not safe for concurrent use; give each worker its own.
type Suppressor struct {
	order      []int
	suppressed []bool
	keep       []int
}

// Run filters boxes so that no two kept boxes overlap by more than iouThreshold.
//
// Candidates are visited in descending score order. Equal scores keep their input order, so
// the box that appears first wins a tie. Each visited box that is not yet suppressed is kept
// and suppresses every later box whose IoU with it exceeds the threshold.
//
// Arguments:
//   - boxes: Corner-form candidate boxes.
//   - scores: One score per box. Extra entries on either slice are ignored.
//   - iouThreshold: IoU above which the lower scoring box is removed.
//
// Returns:
//   - []int: Indices of kept boxes in descending score order. The slice is owned by the
//     Suppressor and is overwritten by the next call.
func (s *Suppressor) Run(boxes []images.Rect, scores []float32, iouThreshold float32) []int {
	n := len(boxes)
	if len(scores) < n {
		n = len(scores)
	}
	if n == 0 {
		s.keep = s.keep[:0]
		return s.keep
	}

	s.order = growInts(s.order, n)
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		return scores[s.order[a]] > scores[s.order[b]]
	})

	if cap(s.suppressed) < n {
		s.suppressed = make([]bool, n)
	} else {
		s.suppressed = s.suppressed[:n]
		for i := range s.suppressed {
			s.suppressed[i] = false
		}
	}
	s.keep = s.keep[:0]

	for a, i := range s.order {
		if s.suppressed[i] {
			continue
		}
		s.keep = append(s.keep, i)
		anchor := boxes[i]

		for _, j := range s.order[a+1:] {
			if s.suppressed[j] {
				continue
			}
			if images.CalculateIoU(anchor, boxes[j]) > iouThreshold {
				s.suppressed[j] = true
			}
		}
	}

	return s.keep
}

// NMS performs standard greedy Non-Maximum Suppression and returns the indices of the kept
// boxes in descending score order.
//
// Arguments:
//   - boxes: Corner-form candidate boxes.
//   - scores: One score per box.
//   - iouThreshold: IoU above which overlapping boxes are suppressed.
//
// Returns:
//   - []int: Indices into boxes.
//
// @example
// keep := NMS(boxes, scores, 0.45)
func NMS(boxes []images.Rect, scores []float32, iouThreshold float32) []int {
	var s Suppressor
	keep := s.Run(boxes, scores, iouThreshold)
	out := make([]int, len(keep))
	copy(out, keep)
	return out
}

// ApplyClassNMS suppresses overlapping detections within each class, or across all classes when
// agnostic is set.
//
// The merged result is ordered by descending score. Ties are broken by ascending class and then
// by position in dets, so identical input always yields an identical ordering.
//
// Arguments:
//   - dets: Candidate detections in any order.
//   - iouThreshold: IoU above which overlapping boxes are suppressed.
//   - agnostic: If true, boxes of different classes suppress each other.
//
// Returns:
//   - []Detection: The kept detections. If no detections are provided, returns nil.
func ApplyClassNMS(dets []Detection, iouThreshold float32, agnostic bool) []Detection {
	if len(dets) == 0 {
		return nil
	}

	// Group candidate indices by class, preserving input order within each group.
	groups := make(map[int][]int)
	classes := make([]int, 0)
	for i, d := range dets {
		key := d.Class
		if agnostic {
			key = 0
		}
		if _, ok := groups[key]; !ok {
			classes = append(classes, key)
		}
		groups[key] = append(groups[key], i)
	}
	sort.Ints(classes)

	var (
		s      Suppressor
		boxes  []images.Rect
		scores []float32
	)
	kept := make([]int, 0, len(dets))
	for _, c := range classes {
		idx := groups[c]
		boxes, scores = boxes[:0], scores[:0]
		for _, i := range idx {
			boxes = append(boxes, dets[i].Box)
			scores = append(scores, dets[i].Score)
		}
		for _, k := range s.Run(boxes, scores, iouThreshold) {
			kept = append(kept, idx[k])
		}
	}

	sort.Slice(kept, func(a, b int) bool {
		da, db := dets[kept[a]], dets[kept[b]]
		if da.Score != db.Score {
			return da.Score > db.Score
		}
		if da.Class != db.Class {
			return da.Class < db.Class
		}
		return kept[a] < kept[b]
	})

	out := make([]Detection, len(kept))
	for i, k := range kept {
		out[i] = dets[k]
	}
	return out
}

func growInts(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	return s[:n]
}
