package geom

// Rect is an axis-aligned rectangle. Min <= Max on both axes for a valid
// rect; callers construct via NewRect to normalize.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func NewRect(x1, y1, x2, y2 float64) Rect {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Rect{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

func (r Rect) Center() Vec {
	return Vec{(r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2}
}

func (r Rect) ContainsPoint(p Vec) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Overlaps reports whether the two rectangles share any area or edge.
func (r Rect) Overlaps(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

// Union returns the bounding box of both rectangles.
func (r Rect) Union(o Rect) Rect {
	out := r
	if o.MinX < out.MinX {
		out.MinX = o.MinX
	}
	if o.MinY < out.MinY {
		out.MinY = o.MinY
	}
	if o.MaxX > out.MaxX {
		out.MaxX = o.MaxX
	}
	if o.MaxY > out.MaxY {
		out.MaxY = o.MaxY
	}
	return out
}

// Expand grows the rectangle outward by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{MinX: r.MinX - d, MinY: r.MinY - d, MaxX: r.MaxX + d, MaxY: r.MaxY + d}
}

// ClampPoint returns the closest point to p inside the rectangle.
func (r Rect) ClampPoint(p Vec) Vec {
	return Vec{Clamp(p.X, r.MinX, r.MaxX), Clamp(p.Y, r.MinY, r.MaxY)}
}

// Vertices returns the four corners in counter-clockwise order.
func (r Rect) Vertices() []Vec {
	return []Vec{
		{r.MinX, r.MinY},
		{r.MaxX, r.MinY},
		{r.MaxX, r.MaxY},
		{r.MinX, r.MaxY},
	}
}

// DistToPoint returns the distance from the rectangle to p, zero when p is
// inside.
func (r Rect) DistToPoint(p Vec) float64 {
	return p.Dist(r.ClampPoint(p))
}
