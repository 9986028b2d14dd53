package segmentation

import (
	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// Boundary is one voiced segment as sample indices, Onset < Offset
type Boundary struct {
	Onset  int `json:"onset"`
	Offset int `json:"offset"`
}

// Duration returns the segment length in seconds
func (b Boundary) Duration(sampleRate int) float64 {
	return float64(b.Offset-b.Onset) / float64(sampleRate)
}

// BoundaryList is a sequence of segments sorted by onset
type BoundaryList []Boundary

// NewBoundaryList pairs parallel onset and offset lists and checks the
// ordering invariants.
func NewBoundaryList(onsets, offsets []int) (BoundaryList, error) {
	if len(onsets) != len(offsets) {
		return nil, common.Errorf(common.KindDetection, "boundaries",
			"%d onsets but %d offsets", len(onsets), len(offsets))
	}

	list := make(BoundaryList, len(onsets))
	for i := range onsets {
		list[i] = Boundary{Onset: onsets[i], Offset: offsets[i]}
	}
	if err := list.Validate(-1); err != nil {
		return nil, err
	}
	return list, nil
}

// Validate checks 0 <= onset < offset, sorted onsets, and offset <= n when
// n is non-negative.
func (l BoundaryList) Validate(n int) error {
	for i, b := range l {
		if b.Onset < 0 || b.Onset >= b.Offset {
			return common.Errorf(common.KindDetection, "boundaries",
				"segment %d has onset %d and offset %d", i, b.Onset, b.Offset)
		}
		if n >= 0 && b.Offset > n {
			return common.Errorf(common.KindDetection, "boundaries",
				"segment %d ends at %d beyond signal length %d", i, b.Offset, n)
		}
		if i > 0 && b.Onset < l[i-1].Onset {
			return common.Errorf(common.KindDetection, "boundaries", "segment %d is out of order", i)
		}
	}
	return nil
}

// Onsets returns the onset indices
func (l BoundaryList) Onsets() []int {
	out := make([]int, len(l))
	for i, b := range l {
		out[i] = b.Onset
	}
	return out
}

// Offsets returns the offset indices
func (l BoundaryList) Offsets() []int {
	out := make([]int, len(l))
	for i, b := range l {
		out[i] = b.Offset
	}
	return out
}

// LongerThan keeps the segments whose duration exceeds minSeconds
func (l BoundaryList) LongerThan(minSeconds float64, sampleRate int) BoundaryList {
	out := make(BoundaryList, 0, len(l))
	for _, b := range l {
		if b.Duration(sampleRate) > minSeconds {
			out = append(out, b)
		}
	}
	return out
}

// TrimEdges drops an offset that precedes the first onset and an onset that
// follows the last offset. Both lists must be non-empty for either rule to
// apply.
func TrimEdges(onsets, offsets []int) ([]int, []int) {
	if len(onsets) > 0 && len(offsets) > 0 && offsets[0] < onsets[0] {
		offsets = offsets[1:]
	}
	if len(onsets) > 0 && len(offsets) > 0 && onsets[len(onsets)-1] > offsets[len(offsets)-1] {
		onsets = onsets[:len(onsets)-1]
	}
	return onsets, offsets
}

// PairEdges walks onsets and offsets with two pointers. When the current
// onset precedes the current offset the pair is consumed, and kept if it is
// the first pair or starts more than minGap samples after the previously
// kept offset. Otherwise the offset is stale and skipped.
func PairEdges(onsets, offsets []int, minGap int) BoundaryList {
	list := BoundaryList{}
	i, j := 0, 0
	for i < len(onsets) && j < len(offsets) {
		if onsets[i] < offsets[j] {
			if len(list) == 0 || onsets[i]-list[len(list)-1].Offset > minGap {
				list = append(list, Boundary{Onset: onsets[i], Offset: offsets[j]})
			}
			i++
			j++
		} else {
			j++
		}
	}
	return list
}
