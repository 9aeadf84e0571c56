package obstacle

import (
	"testing"

	"fieldline.dev/internal/sim/geom"
)

func TestCircleContainsPoint(t *testing.T) {
	c := Circle("pillar", geom.Vec{X: 2, Y: 2}, 1)
	if !c.ContainsPoint(geom.Vec{X: 2.5, Y: 2}) {
		t.Fatalf("point inside circle rejected")
	}
	if c.ContainsPoint(geom.Vec{X: 4, Y: 2}) {
		t.Fatalf("point outside circle accepted")
	}
	b := c.Buffered(0.5)
	if !b.ContainsPoint(geom.Vec{X: 3.4, Y: 2}) {
		t.Fatalf("buffered circle should contain point within margin")
	}
	// Buffering returns a copy.
	if c.Buffer != 0 {
		t.Fatalf("Buffered mutated receiver")
	}
}

func TestRectanglePredicates(t *testing.T) {
	r := Rectangle("wall", geom.NewRect(0, 0, 2, 1))
	if !r.ContainsPoint(geom.Vec{X: 1, Y: 0.5}) {
		t.Fatalf("interior point rejected")
	}
	if r.ContainsPoint(geom.Vec{X: 1, Y: 2}) {
		t.Fatalf("exterior point accepted")
	}
	if !r.IntersectsSegment(geom.Vec{X: -1, Y: 0.5}, geom.Vec{X: 3, Y: 0.5}) {
		t.Fatalf("crossing segment not detected")
	}
	if r.IntersectsSegment(geom.Vec{X: -1, Y: 3}, geom.Vec{X: 3, Y: 3}) {
		t.Fatalf("distant segment detected")
	}
	b := r.Buffered(0.5)
	if !b.ContainsPoint(geom.Vec{X: 1, Y: 1.4}) {
		t.Fatalf("buffered rect should contain point within margin")
	}
}

func TestPolygonPredicates(t *testing.T) {
	p := Polygon("ramp", []geom.Vec{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 4}})
	if !p.ContainsPoint(geom.Vec{X: 1, Y: 1}) {
		t.Fatalf("interior point rejected")
	}
	if p.ContainsPoint(geom.Vec{X: 3, Y: 3}) {
		t.Fatalf("exterior point accepted")
	}
	if !p.IntersectsSegment(geom.Vec{X: 2, Y: -1}, geom.Vec{X: 2, Y: 5}) {
		t.Fatalf("crossing segment not detected")
	}
	if !p.Buffered(0.5).ContainsPoint(geom.Vec{X: -0.3, Y: 1}) {
		t.Fatalf("buffered polygon should contain nearby point")
	}
}

func TestBoundingRect(t *testing.T) {
	c := Circle("c", geom.Vec{X: 1, Y: 1}, 1).Buffered(0.5)
	r := c.BoundingRect()
	if r.MinX != -0.5 || r.MaxX != 2.5 || r.MinY != -0.5 || r.MaxY != 2.5 {
		t.Fatalf("bounding rect = %+v", r)
	}
}

func TestIntersectsRect(t *testing.T) {
	c := Circle("c", geom.Vec{X: 5, Y: 5}, 1)
	if !c.IntersectsRect(geom.NewRect(5.5, 5.5, 7, 7)) {
		t.Fatalf("overlapping rect not detected")
	}
	if c.IntersectsRect(geom.NewRect(8, 8, 9, 9)) {
		t.Fatalf("distant rect detected")
	}
}

func TestExpandAll(t *testing.T) {
	obs := []Obstacle{
		Circle("a", geom.Vec{X: 0, Y: 0}, 1),
		Rectangle("b", geom.NewRect(3, 3, 4, 4)),
	}
	out := ExpandAll(obs, 0.25)
	if len(out) != 2 {
		t.Fatalf("ExpandAll returned %d obstacles", len(out))
	}
	for i, o := range out {
		if o.Buffer != 0.25 {
			t.Fatalf("obstacle %d buffer = %v", i, o.Buffer)
		}
	}
	if obs[0].Buffer != 0 {
		t.Fatalf("ExpandAll mutated input")
	}
}

func TestAnyPredicates(t *testing.T) {
	obs := []Obstacle{
		Circle("a", geom.Vec{X: 0, Y: 0}, 1),
		Rectangle("b", geom.NewRect(3, 3, 4, 4)),
	}
	if !AnyContains(obs, geom.Vec{X: 3.5, Y: 3.5}) {
		t.Fatalf("AnyContains missed rect interior")
	}
	if AnyContains(obs, geom.Vec{X: 2, Y: 0}) {
		t.Fatalf("AnyContains false positive")
	}
	if !AnyIntersectsSegment(obs, geom.Vec{X: -2, Y: 0}, geom.Vec{X: 2, Y: 0}) {
		t.Fatalf("AnyIntersectsSegment missed circle crossing")
	}
	if !AnyIntersectsRect(obs, geom.NewRect(-0.5, -0.5, 0.5, 0.5)) {
		t.Fatalf("AnyIntersectsRect missed circle overlap")
	}
}
