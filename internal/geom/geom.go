// Package geom holds the small spatial value types shared by the facility
// layout, the resource registry and the movement executor.
package geom

import (
	"fmt"
	"math"
)

// Point is a position on the facility floor plan. Y is height and is carried
// through unchanged by the walker.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y, p.Z + q.Z} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y, p.Z - q.Z} }

// Scale returns p*k.
func (p Point) Scale(k float64) Point { return Point{p.X * k, p.Y * k, p.Z * k} }

// Len returns the length of p on the floor plane.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Z) }

// Dist returns the floor-plane distance between p and q.
func (p Point) Dist(q Point) float64 { return q.Sub(p).Len() }

// Pose is a position plus a facing angle in degrees.
type Pose struct {
	Position Point   `json:"position" yaml:"position"`
	Yaw      float64 `json:"yaw" yaml:"yaw"`
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Min Point `json:"min" yaml:"min"`
	Max Point `json:"max" yaml:"max"`
}

// Contains reports whether p lies inside b on the floor plane.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Center returns the middle of b.
func (b Bounds) Center() Point {
	return Point{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2, (b.Min.Z + b.Max.Z) / 2}
}

// Size returns the extent of b along each axis.
func (b Bounds) Size() Point { return b.Max.Sub(b.Min) }

// Valid reports whether Min <= Max on the floor plane.
func (b Bounds) Valid() bool { return b.Min.X <= b.Max.X && b.Min.Z <= b.Max.Z }

// Lerp picks the point inside b at fractions (u, v) along X and Z. Callers
// pass uniform random values to sample a random point.
func (b Bounds) Lerp(u, v float64) Point {
	return Point{
		X: b.Min.X + (b.Max.X-b.Min.X)*u,
		Y: b.Min.Y,
		Z: b.Min.Z + (b.Max.Z-b.Min.Z)*v,
	}
}

// Signature derives a stable identity for a box from its center and size,
// rounded to decimetres, so that re-placing the same physical object yields
// the same signature.
func (b Bounds) Signature() string {
	c, s := b.Center(), b.Size()
	r := func(f float64) int64 { return int64(math.Round(f * 10)) }
	return fmt.Sprintf("%d_%d_%d_%d_%d_%d", r(c.X), r(c.Y), r(c.Z), r(s.X), r(s.Y), r(s.Z))
}
