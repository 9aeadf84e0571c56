package geom

import (
	"math"
	"testing"
)

func TestVecOps(t *testing.T) {
	a := Vec{X: 3, Y: 4}
	if got := a.Len(); got != 5 {
		t.Fatalf("Len = %v, want 5", got)
	}
	if got := a.Dist(Vec{X: 3, Y: 0}); got != 4 {
		t.Fatalf("Dist = %v, want 4", got)
	}
	if got := a.Add(Vec{X: 1, Y: -1}); got != (Vec{X: 4, Y: 3}) {
		t.Fatalf("Add = %v", got)
	}
	if got := a.Scale(2); got != (Vec{X: 6, Y: 8}) {
		t.Fatalf("Scale = %v", got)
	}
	if got := a.Dot(Vec{X: -4, Y: 3}); got != 0 {
		t.Fatalf("Dot = %v, want 0", got)
	}
}

func TestAngleBetween(t *testing.T) {
	got := AngleBetween(Vec{X: 1, Y: 0}, Vec{X: 0, Y: 1})
	if math.Abs(got-math.Pi/2) > 1e-9 {
		t.Fatalf("AngleBetween = %v, want pi/2", got)
	}
	// Parallel vectors must not produce NaN from acos rounding.
	if got := AngleBetween(Vec{X: 1e-8, Y: 1}, Vec{X: 1e-8, Y: 1}); math.IsNaN(got) {
		t.Fatalf("AngleBetween returned NaN for parallel vectors")
	}
}

func TestRectNormalizeAndContains(t *testing.T) {
	r := NewRect(5, 6, 1, 2)
	if r.MinX != 1 || r.MinY != 2 || r.MaxX != 5 || r.MaxY != 6 {
		t.Fatalf("NewRect did not normalize: %+v", r)
	}
	if !r.ContainsPoint(Vec{X: 3, Y: 4}) {
		t.Fatalf("expected interior point contained")
	}
	if r.ContainsPoint(Vec{X: 0, Y: 0}) {
		t.Fatalf("expected exterior point rejected")
	}
}

func TestRectClampAndDist(t *testing.T) {
	r := NewRect(0, 0, 2, 2)
	if got := r.ClampPoint(Vec{X: 5, Y: 1}); got != (Vec{X: 2, Y: 1}) {
		t.Fatalf("ClampPoint = %v", got)
	}
	if got := r.DistToPoint(Vec{X: 5, Y: 1}); got != 3 {
		t.Fatalf("DistToPoint = %v, want 3", got)
	}
	if got := r.DistToPoint(Vec{X: 1, Y: 1}); got != 0 {
		t.Fatalf("DistToPoint inside = %v, want 0", got)
	}
}

func TestRectOverlapsUnion(t *testing.T) {
	a := NewRect(0, 0, 2, 2)
	b := NewRect(1, 1, 3, 3)
	c := NewRect(5, 5, 6, 6)
	if !a.Overlaps(b) {
		t.Fatalf("expected overlap")
	}
	if a.Overlaps(c) {
		t.Fatalf("expected no overlap")
	}
	u := a.Union(b)
	if u.MinX != 0 || u.MaxX != 3 || u.MinY != 0 || u.MaxY != 3 {
		t.Fatalf("Union = %+v", u)
	}
}

func TestSegmentsIntersect(t *testing.T) {
	if !SegmentsIntersect(Vec{0, 0}, Vec{2, 2}, Vec{0, 2}, Vec{2, 0}) {
		t.Fatalf("crossing segments should intersect")
	}
	if SegmentsIntersect(Vec{0, 0}, Vec{1, 0}, Vec{0, 1}, Vec{1, 1}) {
		t.Fatalf("parallel separated segments should not intersect")
	}
	// Collinear overlap.
	if !SegmentsIntersect(Vec{0, 0}, Vec{2, 0}, Vec{1, 0}, Vec{3, 0}) {
		t.Fatalf("collinear overlapping segments should intersect")
	}
}

func TestDistPointSegment(t *testing.T) {
	d := DistPointSegment(Vec{X: 1, Y: 1}, Vec{0, 0}, Vec{2, 0})
	if math.Abs(d-1) > 1e-9 {
		t.Fatalf("DistPointSegment = %v, want 1", d)
	}
	// Beyond the endpoint, distance is to the endpoint.
	d = DistPointSegment(Vec{X: 3, Y: 0}, Vec{0, 0}, Vec{2, 0})
	if math.Abs(d-1) > 1e-9 {
		t.Fatalf("DistPointSegment past end = %v, want 1", d)
	}
}

func TestPointInPolygon(t *testing.T) {
	tri := []Vec{{0, 0}, {4, 0}, {0, 4}}
	if !PointInPolygon(Vec{X: 1, Y: 1}, tri) {
		t.Fatalf("interior point should be inside")
	}
	if PointInPolygon(Vec{X: 3, Y: 3}, tri) {
		t.Fatalf("exterior point should be outside")
	}
}

func TestLerp(t *testing.T) {
	got := Lerp(Vec{0, 0}, Vec{10, 20}, 0.5)
	if got != (Vec{X: 5, Y: 10}) {
		t.Fatalf("Lerp = %v", got)
	}
}
