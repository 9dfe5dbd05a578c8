package game

import (
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
)

// AABBFromDimensions returns a bounding box from the given dimensions, centered on
// the X/Z axes with its feet at Y=0.
func AABBFromDimensions(width, height float32) cube.BBox {
	h := width / 2
	return cube.Box(
		-h, 0, -h,
		h, height, h,
	)
}

// AABBVectorDistance calculates the distance between an AABB and a vector.
func AABBVectorDistance(a cube.BBox, v mgl32.Vec3) float32 {
	return ClosestPointToBBox(v, a).Sub(v).Len()
}

// ClosestPointToBBox clamps the given point into the bounds of the box, returning
// the point on or inside the box closest to it.
func ClosestPointToBBox(v mgl32.Vec3, b cube.BBox) mgl32.Vec3 {
	return mgl32.Vec3{
		mgl32.Clamp(v.X(), b.Min().X(), b.Max().X()),
		mgl32.Clamp(v.Y(), b.Min().Y(), b.Max().Y()),
		mgl32.Clamp(v.Z(), b.Min().Z(), b.Max().Z()),
	}
}

// FaceNormal returns the outward unit normal of the given box face.
func FaceNormal(f cube.Face) mgl32.Vec3 {
	switch f {
	case cube.FaceDown:
		return mgl32.Vec3{0, -1, 0}
	case cube.FaceUp:
		return mgl32.Vec3{0, 1, 0}
	case cube.FaceNorth:
		return mgl32.Vec3{0, 0, -1}
	case cube.FaceSouth:
		return mgl32.Vec3{0, 0, 1}
	case cube.FaceWest:
		return mgl32.Vec3{-1, 0, 0}
	case cube.FaceEast:
		return mgl32.Vec3{1, 0, 0}
	}

	return mgl32.Vec3{}
}
