package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

func segment(p1, p2 []any, attrs map[string]any, children ...engine.NodeSpec) engine.NodeSpec {
	all := map[string]any{"endpoint1": p1, "endpoint2": p2}
	for k, v := range attrs {
		all[k] = v
	}
	return node("lineSegment", "s", all, children...)
}

func attractToXAxis() engine.NodeSpec {
	return node("attractTo", "", nil, node("line", "", nil))
}

func moveSegment(t *testing.T, e *engine.Engine, p1, p2 []float64) {
	t.Helper()
	dispatch(t, e, "s", "moveLineSegment", ir.IRObject{
		"endpoint1": ir.Vec(p1...),
		"endpoint2": ir.Vec(p2...),
	})
}

func TestSegment_RigidDragAlongLine(t *testing.T) {
	e := newDocument(t, document(segment(xy(0, 0.1), xy(1, 0.1), nil, attractToXAxis())))
	assertVec(t, []float64{0, 0}, vecOf(t, e, "s.endpoint1"))
	assertVec(t, []float64{1, 0}, vecOf(t, e, "s.endpoint2"))

	moveSegment(t, e, []float64{3, 0.2}, []float64{4, 0.2})

	assertVec(t, []float64{3, 0}, vecOf(t, e, "s.endpoint1"))
	assertVec(t, []float64{4, 0}, vecOf(t, e, "s.endpoint2"))
	assert.InDelta(t, 1, floatOf(t, e, "s.length"), 1e-9)
}

func TestSegment_FarDragIsNotAttracted(t *testing.T) {
	e := newDocument(t, document(segment(xy(0, 0), xy(1, 0), nil, attractToXAxis())))

	moveSegment(t, e, []float64{3, 2}, []float64{4, 2})

	assertVec(t, []float64{3, 2}, vecOf(t, e, "s.endpoint1"))
	assertVec(t, []float64{4, 2}, vecOf(t, e, "s.endpoint2"))
}

func TestSegment_Rotation(t *testing.T) {
	e := newDocument(t, document(segment(xy(0, 0.1), xy(1, 0.4), nil, attractToXAxis())))
	assertVec(t, []float64{0, 0.1}, vecOf(t, e, "s.endpoint1"), "attraction would rotate the segment")
	assertVec(t, []float64{1, 0.4}, vecOf(t, e, "s.endpoint2"))

	e = newDocument(t, document(segment(xy(0, 0.1), xy(1, 0.4), map[string]any{"allowRotation": true}, attractToXAxis())))
	p1 := vecOf(t, e, "s.endpoint1")
	p2 := vecOf(t, e, "s.endpoint2")
	assert.InDelta(t, 0, p1[1], 1e-12)
	assert.InDelta(t, 0, p2[1], 1e-12)
	assert.InDelta(t, math.Sqrt(1.09), floatOf(t, e, "s.length"), 1e-9, "attraction keeps the length")
}

func TestSegment_ShorterAttractor(t *testing.T) {
	attractor := node("attractTo", "", nil,
		node("lineSegment", "", map[string]any{"endpoint1": xy(-5, 0), "endpoint2": xy(1.9, 0)}))

	e := newDocument(t, document(segment(xy(0, 0.1), xy(2, 0.1), nil, attractor)))
	assertVec(t, []float64{-0.1, 0}, vecOf(t, e, "s.endpoint1"))
	assertVec(t, []float64{1.9, 0}, vecOf(t, e, "s.endpoint2"))
	assert.InDelta(t, 2, floatOf(t, e, "s.length"), 1e-9)

	e = newDocument(t, document(segment(xy(0, 0.1), xy(2, 0.1), map[string]any{"enforceRigid": false}, attractor)))
	assertVec(t, []float64{0, 0.1}, vecOf(t, e, "s.endpoint1"))
	assertVec(t, []float64{2, 0.1}, vecOf(t, e, "s.endpoint2"))
}

func TestSegment_ConstrainTo(t *testing.T) {
	e := newDocument(t, document(segment(xy(0, 3), xy(1, 3), nil,
		node("constrainTo", "", nil, node("line", "", nil)))))

	assertVec(t, []float64{0, 0}, vecOf(t, e, "s.endpoint1"), "constrainTo has no threshold")
	assertVec(t, []float64{1, 0}, vecOf(t, e, "s.endpoint2"))
}

func TestSegment_MoveOneEndpoint(t *testing.T) {
	e := newDocument(t, document(segment(xy(0, 0), xy(1, 0), nil)))

	dispatch(t, e, "s", "moveLineSegment", ir.IRObject{"endpoint2": ir.Vec(3, 4)})

	assertVec(t, []float64{0, 0}, vecOf(t, e, "s.endpoint1"))
	assertVec(t, []float64{3, 4}, vecOf(t, e, "s.endpoint2"))
	assert.InDelta(t, 5, floatOf(t, e, "s.length"), 1e-12)
}
