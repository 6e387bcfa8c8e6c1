package domain

import "fmt"

// Segment is an inclusive byte range [Start, End] of one download
type Segment struct {
	Index int   `json:"index"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Size returns the number of bytes covered by the segment
func (s Segment) Size() int64 {
	return s.End - s.Start + 1
}

// Valid reports whether the segment covers at least one byte
func (s Segment) Valid() bool {
	return s.Start >= 0 && s.Start <= s.End
}

// RangeHeader returns the HTTP Range header value for the segment
func (s Segment) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", s.Start, s.End)
}

// ComputeSegments partitions [0, total-1] into at most n segments.
// The last segment absorbs the remainder of total/n. When total < n the
// leading segments are empty and are dropped.
func ComputeSegments(total int64, n int) ([]Segment, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, total)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: %d connections", ErrInvalidSize, n)
	}

	segSize := total / int64(n)
	segments := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		start := int64(i) * segSize
		end := start + segSize - 1
		if i == n-1 {
			end = total - 1
		}
		seg := Segment{Index: i, Start: start, End: end}
		if !seg.Valid() {
			continue
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: total=%d connections=%d", ErrNoValidSegments, total, n)
	}
	return segments, nil
}
