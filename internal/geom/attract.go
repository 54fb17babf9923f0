package geom

import "math"

// Tolerances used by segment attraction.
const (
	// AngleTolerance bounds the orientation change allowed when rotation is
	// disallowed, in radians.
	AngleTolerance = 1e-6

	// DeviationTolerance2 is the squared distance an extended endpoint may
	// move during re-attraction and still count as attached.
	DeviationTolerance2 = 1e-6 * 1e-6
)

// DefaultThreshold returns the attraction threshold used when none is
// given: 0.02 of the axis span for graph-relative attraction, 0.5 units
// otherwise.
func DefaultThreshold(relativeToGraphScales bool) float64 {
	if relativeToGraphScales {
		return 0.02
	}
	return 0.5
}

// NearestPointFunc returns the point of a shape closest to p under the given
// axis scales. ok is false when the shape declines, for example on a
// dimension mismatch or an undefined shape.
type NearestPointFunc func(p []float64, scales []float64) (q []float64, ok bool)

// Attraction is a successful FindAttractedPoint result.
type Attraction struct {
	Point     []float64
	Distance2 float64
	Candidate int
}

// ScaledDistance2 is sum(((a_i - b_i) / scale_i)^2). Missing or
// non-positive scales count as 1.
func ScaledDistance2(a, b, scales []float64) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var d2 float64
	for i := range a {
		d := (a[i] - b[i]) / scaleAt(scales, i)
		d2 += d * d
	}
	return d2
}

func scaleAt(scales []float64, i int) float64 {
	if i < len(scales) && scales[i] > 0 && !math.IsInf(scales[i], 0) {
		return scales[i]
	}
	return 1
}

// FindAttractedPoint evaluates every candidate against point and returns the
// closest result if its scaled squared distance is at most threshold2.
// Ties keep the earliest candidate. NaN distances never win.
func FindAttractedPoint(point []float64, candidates []NearestPointFunc, scales []float64, threshold2 float64) (Attraction, bool) {
	best := Attraction{Candidate: -1, Distance2: math.Inf(1)}
	for i, fn := range candidates {
		if fn == nil {
			continue
		}
		q, ok := fn(point, scales)
		if !ok || len(q) != len(point) || !finite(q) {
			continue
		}
		d2 := ScaledDistance2(point, q, scales)
		if d2 < best.Distance2 {
			best = Attraction{Point: q, Distance2: d2, Candidate: i}
		}
	}
	if best.Candidate < 0 || !(best.Distance2 <= threshold2) {
		return Attraction{}, false
	}
	return best, true
}

// Constrain is FindAttractedPoint with no threshold: the point always moves
// to the nearest candidate, if any candidate accepts it.
func Constrain(point []float64, candidates []NearestPointFunc, scales []float64) ([]float64, bool) {
	a, ok := FindAttractedPoint(point, candidates, scales, math.Inf(1))
	if !ok {
		return nil, false
	}
	return a.Point, true
}

// SegmentOptions controls AttractSegmentEndpoints.
type SegmentOptions struct {
	AllowRotation bool
	EnforceRigid  bool
	Scales        []float64
	Threshold2    float64
}

// AttractSegmentEndpoints attracts both endpoints of a segment and returns
// new endpoints whose length matches the original, or ok=false when the
// segment is not attracted. Attraction never lengthens a segment: when the
// attracted endpoints are closer together, they are pushed back apart along
// the attractor in proportion to how far each one moved.
func AttractSegmentEndpoints(p1, p2 []float64, opts SegmentOptions, candidates []NearestPointFunc) (q1, q2 []float64, ok bool) {
	if len(p1) != len(p2) || len(p1) == 0 {
		return nil, nil, false
	}

	a1, ok1 := FindAttractedPoint(p1, candidates, opts.Scales, opts.Threshold2)
	a2, ok2 := FindAttractedPoint(p2, candidates, opts.Scales, opts.Threshold2)
	if !ok1 || !ok2 {
		return nil, nil, false
	}
	q1, q2 = a1.Point, a2.Point

	if !opts.AllowRotation && len(p1) >= 2 {
		diff := NormalizeAngle(angleOf(sub(q2, q1)) - angleOf(sub(p2, p1)))
		if math.Abs(diff) > AngleTolerance {
			return nil, nil, false
		}
	}

	origLen2 := norm2(sub(p2, p1))
	newLen2 := norm2(sub(q2, q1))

	if math.Abs(newLen2-origLen2) < DeviationTolerance2 {
		return q1, q2, true
	}
	if newLen2 > origLen2 || newLen2 == 0 {
		return nil, nil, false
	}

	expand := math.Sqrt(origLen2 / newLen2)

	// Moves are weighed in scaled units, the distances the threshold
	// tested. Against one straight attractor both moves are parallel, so
	// the split matches the raw distances.
	dev1 := math.Sqrt(a1.Distance2)
	dev2 := math.Sqrt(a2.Distance2)
	share1 := 0.5
	if dev1+dev2 > 0 {
		share1 = dev1 / (dev1 + dev2)
	}
	share2 := 1 - share1

	e1 := add(q1, scale(sub(q1, q2), share1*(expand-1)))
	e2 := add(q2, scale(sub(q2, q1), share2*(expand-1)))
	if staysAttached(e1, candidates, opts.Scales) && staysAttached(e2, candidates, opts.Scales) {
		return e1, e2, true
	}

	if !opts.EnforceRigid {
		return nil, nil, false
	}

	// One-sided extension, first endpoint then second.
	e1 = add(q1, scale(sub(q1, q2), expand-1))
	if staysAttached(e1, candidates, opts.Scales) {
		return e1, q2, true
	}
	e2 = add(q2, scale(sub(q2, q1), expand-1))
	if staysAttached(e2, candidates, opts.Scales) {
		return q1, e2, true
	}
	return nil, nil, false
}

func staysAttached(p []float64, candidates []NearestPointFunc, scales []float64) bool {
	_, ok := FindAttractedPoint(p, candidates, scales, DeviationTolerance2)
	return ok
}

// NormalizeAngle maps an angle onto [-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func angleOf(v []float64) float64 {
	return math.Atan2(v[1], v[0])
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func add(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func scale(a []float64, k float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * k
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm2(a []float64) float64 {
	return dot(a, a)
}
