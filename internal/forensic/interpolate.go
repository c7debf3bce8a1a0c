package forensic

import (
	"math"
	"sort"
	"time"

	"github.com/mrcode/promille/internal/models"
)

// ExactMatchTolerance is how close a grid point must be to be used as is
const ExactMatchTolerance = 30 * time.Second

// InterpolateAt estimates the BAC of a series at t. Before the first point the
// value is 0; after the last point it is extrapolated from the last two points
// and clamped at 0. It reports false when the series holds no usable data.
func InterpolateAt(series []models.BACPoint, t time.Time) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}

	pts := series
	if !sort.SliceIsSorted(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) }) {
		pts = append([]models.BACPoint(nil), series...)
		sort.Slice(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })
	}

	for _, p := range pts {
		if absDuration(t.Sub(p.Time)) < ExactMatchTolerance {
			return p.BAC, true
		}
	}

	first, last := pts[0], pts[len(pts)-1]
	switch {
	case t.Before(first.Time):
		return 0, true
	case t.After(last.Time):
		if len(pts) < 2 {
			return 0, false
		}
		prev := pts[len(pts)-2]
		span := last.Time.Sub(prev.Time).Seconds()
		if span <= 0 {
			return last.BAC, true
		}
		rate := (last.BAC - prev.BAC) / span
		return math.Max(0, last.BAC+rate*t.Sub(last.Time).Seconds()), true
	}

	// first index whose time is not before t
	i := sort.Search(len(pts), func(i int) bool { return !pts[i].Time.Before(t) })
	hi, lo := pts[i], pts[i-1]

	span := hi.Time.Sub(lo.Time).Seconds()
	if span == 0 {
		return lo.BAC, true
	}
	weight := t.Sub(lo.Time).Seconds() / span
	return lo.BAC + weight*(hi.BAC-lo.BAC), true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
