package scope

import "github.com/itohio/pmscollect/pkg/collect"

// downsample decimates points to at most maxPoints for display.
// Reuses dst when it has sufficient capacity. The last point is always kept so
// the trace ends at the most recent sample.
func downsample(dst, points []collect.Point, maxPoints int) []collect.Point {
	if len(points) <= maxPoints {
		if cap(dst) >= len(points) {
			dst = dst[:len(points)]
			copy(dst, points)
			return dst
		}
		result := make([]collect.Point, len(points))
		copy(result, points)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]collect.Point, 0, maxPoints)
	}

	step := float64(len(points)-1) / float64(maxPoints-1)
	for i := 0; i < maxPoints; i++ {
		dst = append(dst, points[int(float64(i)*step)])
	}
	dst[len(dst)-1] = points[len(points)-1]

	return dst
}
