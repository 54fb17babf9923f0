package geom

import "math"

// Point attracts to a single fixed location.
func Point(at []float64) NearestPointFunc {
	at = append([]float64(nil), at...)
	return func(p, _ []float64) ([]float64, bool) {
		if len(p) != len(at) || !finite(at) {
			return nil, false
		}
		return append([]float64(nil), at...), true
	}
}

// Line attracts to the infinite line through a and b.
func Line(a, b []float64) NearestPointFunc {
	return projector(a, b, math.Inf(-1), math.Inf(1))
}

// Ray attracts to the ray starting at endpoint and passing through through.
func Ray(endpoint, through []float64) NearestPointFunc {
	return projector(endpoint, through, 0, math.Inf(1))
}

// Segment attracts to the closed segment between a and b.
func Segment(a, b []float64) NearestPointFunc {
	return projector(a, b, 0, 1)
}

// projector projects onto a + t(b-a) with t clamped to [tmin, tmax].
// Projection happens in scaled coordinates so that distances agree with
// FindAttractedPoint.
func projector(a, b []float64, tmin, tmax float64) NearestPointFunc {
	a = append([]float64(nil), a...)
	b = append([]float64(nil), b...)
	return func(p, scales []float64) ([]float64, bool) {
		n := len(p)
		if len(a) != n || len(b) != n || !finite(a) || !finite(b) {
			return nil, false
		}
		sa := toScaled(a, scales)
		sb := toScaled(b, scales)
		sp := toScaled(p, scales)

		d := sub(sb, sa)
		dd := norm2(d)
		if dd == 0 {
			return append([]float64(nil), a...), true
		}
		t := dot(sub(sp, sa), d) / dd
		t = math.Max(tmin, math.Min(tmax, t))
		return fromScaled(add(sa, scale(d, t)), scales), true
	}
}

// Circle attracts to the circumference of a circle in the plane.
func Circle(center []float64, radius float64) NearestPointFunc {
	center = append([]float64(nil), center...)
	return func(p, _ []float64) ([]float64, bool) {
		if len(p) != 2 || len(center) != 2 || !finite(center) || !(radius >= 0) {
			return nil, false
		}
		v := sub(p, center)
		r := math.Sqrt(norm2(v))
		if r == 0 {
			return []float64{center[0] + radius, center[1]}, true
		}
		return add(center, scale(v, radius/r)), true
	}
}

// Grid attracts to the lattice offset + k*spacing, one spacing and offset
// per dimension. A zero spacing leaves that coordinate free.
func Grid(spacing, offset []float64) NearestPointFunc {
	spacing = append([]float64(nil), spacing...)
	offset = append([]float64(nil), offset...)
	return func(p, _ []float64) ([]float64, bool) {
		if len(p) != len(spacing) {
			return nil, false
		}
		out := make([]float64, len(p))
		for i, x := range p {
			off := 0.0
			if i < len(offset) {
				off = offset[i]
			}
			dx := spacing[i]
			if dx == 0 || math.IsNaN(dx) {
				out[i] = x
				continue
			}
			out[i] = math.Round((x-off)/dx)*dx + off
		}
		return out, true
	}
}

func toScaled(p, scales []float64) []float64 {
	out := make([]float64, len(p))
	for i, x := range p {
		out[i] = x / scaleAt(scales, i)
	}
	return out
}

func fromScaled(p, scales []float64) []float64 {
	out := make([]float64, len(p))
	for i, x := range p {
		out[i] = x * scaleAt(scales, i)
	}
	return out
}
