package math

type Vec2 struct {
	X, Y float32
}

type Vec3 struct {
	X, Y, Z float32
}

type Vec4 struct {
	X, Y, Z, W float32
}

// Mat4 is stored column by column, so the translation lives in
// Data[12..14] and the array can be copied into a std140 block as is.
type Mat4 struct {
	Data [16]float32
}
