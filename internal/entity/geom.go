package entity

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(f float32) Vec2 { return Vec2{v.X * f, v.Y * f} }
func (v Vec2) IsZero() bool         { return v.X == 0 && v.Y == 0 }

// Rect is an axis-aligned rectangle size. Boxes are centred on a point.
type Rect struct {
	Width  float32
	Height float32
}

// DefaultHitBox is the collision footprint of every entity.
var DefaultHitBox = Rect{Width: 1.0, Height: 1.0}

// At places the rectangle centred on c.
func (r Rect) At(c Vec2) Box {
	hw, hh := r.Width/2, r.Height/2
	return Box{
		Min: Vec2{c.X - hw, c.Y - hh},
		Max: Vec2{c.X + hw, c.Y + hh},
	}
}

// Box is a placed rectangle.
type Box struct {
	Min Vec2
	Max Vec2
}

// Intersects reports whether the interiors overlap. Touching edges do not count.
func (b Box) Intersects(o Box) bool {
	return b.Min.X < o.Max.X && o.Min.X < b.Max.X &&
		b.Min.Y < o.Max.Y && o.Min.Y < b.Max.Y
}
