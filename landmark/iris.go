package landmark

import (
	"fmt"
	"math"
)

type IrisCircle struct {
	Center Point2
	Radius float64
}

// LocateIris returns the minimal enclosing circle of the iris landmarks in pixel
// space.
func LocateIris(f Frame, indices []int, t Topology) (IrisCircle, error) {
	if len(indices) < 3 {
		return IrisCircle{}, fmt.Errorf("iris needs at least 3 points, got %d: %w", len(indices), ErrInsufficientPoints)
	}
	if err := f.Check(t); err != nil {
		return IrisCircle{}, err
	}
	return MinEnclosingCircle(f.pixels(indices)), nil
}

// GazeOffset is the displacement of the iris center from the midpoint of the eye
// corners, in pixels.
type GazeOffset struct {
	DX, DY float64
}

func Gaze(f Frame, eye []int, iris IrisCircle) GazeOffset {
	a, b := f.Pixel(eye[0]), f.Pixel(eye[3])
	return GazeOffset{
		DX: iris.Center.X - (a.X+b.X)/2,
		DY: iris.Center.Y - (a.Y+b.Y)/2,
	}
}

// MinEnclosingCircle runs the iterative form of Welzl's algorithm. Input order is
// kept as given so identical inputs always produce identical circles.
func MinEnclosingCircle(pts []Point2) IrisCircle {
	switch len(pts) {
	case 0:
		return IrisCircle{}
	case 1:
		return IrisCircle{Center: pts[0]}
	}
	c := circle2(pts[0], pts[1])
	for i := 2; i < len(pts); i++ {
		if c.contains(pts[i]) {
			continue
		}
		c = IrisCircle{Center: pts[i]}
		for j := 0; j < i; j++ {
			if c.contains(pts[j]) {
				continue
			}
			c = circle2(pts[i], pts[j])
			for k := 0; k < j; k++ {
				if !c.contains(pts[k]) {
					c = circle3(pts[i], pts[j], pts[k])
				}
			}
		}
	}
	return c
}

func (c IrisCircle) contains(p Point2) bool {
	return math.Hypot(p.X-c.Center.X, p.Y-c.Center.Y) <= c.Radius*(1+1e-12)+1e-9
}

func circle2(a, b Point2) IrisCircle {
	center := Point2{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	return IrisCircle{Center: center, Radius: math.Hypot(a.X-center.X, a.Y-center.Y)}
}

// circle3 is the circumcircle of a, b, c. Colinear triples fall back to the
// circle over the two farthest points.
func circle3(a, b, c Point2) IrisCircle {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if math.Abs(d) < 1e-12 {
		best := circle2(a, b)
		for _, cand := range []IrisCircle{circle2(a, c), circle2(b, c)} {
			if cand.Radius > best.Radius {
				best = cand
			}
		}
		return best
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	return IrisCircle{
		Center: Point2{X: a.X + ux, Y: a.Y + uy},
		Radius: math.Hypot(ux, uy),
	}
}
