package native

import "cogentcore.org/core/math32"

// Matrix element indices of the view transform (column-major).
const (
	originX  = 12
	originY  = 13
	originZ  = 14
	forwardX = 8
	forwardY = 9
	forwardZ = 10
)

// ViewTransform describes the virtual camera of a viewport. Only the origin
// and the scale are written by this tool.
type ViewTransform struct {
	Matrix math32.Matrix4
	Scale  float32
}

// IdentityView returns a view looking along +Z with unit scale.
func IdentityView() ViewTransform {
	return ViewTransform{
		Matrix: math32.Matrix4{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
		Scale: 1,
	}
}

// Forward returns the (unnormalized) forward axis column of the transform.
func (t ViewTransform) Forward() math32.Vector3 {
	return math32.Vec3(t.Matrix[forwardX], t.Matrix[forwardY], t.Matrix[forwardZ])
}

// Origin returns the translation components of the transform.
func (t ViewTransform) Origin() math32.Vector3 {
	return math32.Vec3(t.Matrix[originX], t.Matrix[originY], t.Matrix[originZ])
}

// SetOrigin overwrites the translation components only.
func (t *ViewTransform) SetOrigin(v math32.Vector3) {
	t.Matrix[originX] = v.X
	t.Matrix[originY] = v.Y
	t.Matrix[originZ] = v.Z
}
