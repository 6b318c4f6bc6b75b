package vec3

// Vec2 holds a 2-D texture coordinate or screen-space offset.
type Vec2 struct {
	X, Y float64
}

func Add2(a, b Vec2) Vec2           { return Vec2{a.X + b.X, a.Y + b.Y} }
func Scale2(v Vec2, s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func Lerp2(a, b Vec2, t float64) Vec2 {
	return Vec2{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}
