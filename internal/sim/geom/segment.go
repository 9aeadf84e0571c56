package geom

// SegmentsIntersect reports whether segments a1-a2 and b1-b2 intersect,
// including touching endpoints and collinear overlap.
func SegmentsIntersect(a1, a2, b1, b2 Vec) bool {
	d1 := b2.Sub(b1).Cross(a1.Sub(b1))
	d2 := b2.Sub(b1).Cross(a2.Sub(b1))
	d3 := a2.Sub(a1).Cross(b1.Sub(a1))
	d4 := a2.Sub(a1).Cross(b2.Sub(a1))

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if d2 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	if d3 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if d4 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	return false
}

// onSegment assumes p is collinear with a-b.
func onSegment(a, b, p Vec) bool {
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

// DistPointSegment returns the distance from p to segment a-b.
func DistPointSegment(p, a, b Vec) float64 {
	ab := b.Sub(a)
	l2 := ab.LenSq()
	if l2 == 0 {
		return p.Dist(a)
	}
	t := Clamp(p.Sub(a).Dot(ab)/l2, 0, 1)
	return p.Dist(a.Add(ab.Scale(t)))
}

// DistSegments returns the minimum distance between two segments; zero when
// they intersect.
func DistSegments(a1, a2, b1, b2 Vec) float64 {
	if SegmentsIntersect(a1, a2, b1, b2) {
		return 0
	}
	d := DistPointSegment(a1, b1, b2)
	if v := DistPointSegment(a2, b1, b2); v < d {
		d = v
	}
	if v := DistPointSegment(b1, a1, a2); v < d {
		d = v
	}
	if v := DistPointSegment(b2, a1, a2); v < d {
		d = v
	}
	return d
}

// SegmentIntersectsRect reports whether segment p-q touches rectangle r.
func SegmentIntersectsRect(p, q Vec, r Rect) bool {
	if r.ContainsPoint(p) || r.ContainsPoint(q) {
		return true
	}
	vs := r.Vertices()
	for i := range vs {
		if SegmentsIntersect(p, q, vs[i], vs[(i+1)%len(vs)]) {
			return true
		}
	}
	return false
}

// PointInPolygon reports whether p lies inside the simple polygon poly
// (ray casting; boundary points count as inside for planning purposes).
func PointInPolygon(p Vec, poly []Vec) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		a, b := poly[i], poly[j]
		if DistPointSegment(p, a, b) == 0 {
			return true
		}
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// DistPointPolygon returns the distance from p to the polygon boundary or
// zero when p is inside.
func DistPointPolygon(p Vec, poly []Vec) float64 {
	if PointInPolygon(p, poly) {
		return 0
	}
	d := -1.0
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		v := DistPointSegment(p, poly[i], poly[j])
		if d < 0 || v < d {
			d = v
		}
		j = i
	}
	if d < 0 {
		d = 0
	}
	return d
}

// DistSegmentPolygon returns the minimum distance from segment a-b to the
// polygon; zero when the segment crosses or is inside it.
func DistSegmentPolygon(a, b Vec, poly []Vec) float64 {
	if PointInPolygon(a, poly) || PointInPolygon(b, poly) {
		return 0
	}
	d := -1.0
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		v := DistSegments(a, b, poly[i], poly[j])
		if d < 0 || v < d {
			d = v
		}
		j = i
	}
	if d < 0 {
		d = 0
	}
	return d
}

// DistRectPolygon returns the minimum distance between a rectangle and a
// polygon; zero when they overlap.
func DistRectPolygon(r Rect, poly []Vec) float64 {
	for _, v := range poly {
		if r.ContainsPoint(v) {
			return 0
		}
	}
	if len(poly) >= 3 && PointInPolygon(r.Center(), poly) {
		return 0
	}
	vs := r.Vertices()
	d := -1.0
	for i := range vs {
		v := DistSegmentPolygon(vs[i], vs[(i+1)%len(vs)], poly)
		if d < 0 || v < d {
			d = v
		}
	}
	if d < 0 {
		d = 0
	}
	return d
}
