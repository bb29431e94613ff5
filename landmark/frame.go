package landmark

import (
	"fmt"
	"math"
	"time"
)

// Point is a landmark in provider coordinates: x and y normalized to the image,
// z a relative depth on roughly the same scale as x.
type Point struct {
	X, Y, Z float64
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

func (p Point) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

func Distance(a, b Point) float64 {
	return a.Sub(b).Norm()
}

// Point2 is a pixel-space position.
type Point2 struct {
	X, Y float64
}

// Frame is the landmark set of a single face in a single video frame.
type Frame struct {
	Points    []Point
	Width     int
	Height    int
	Sequence  uint64
	Timestamp time.Time
}

// MaxCoordinate bounds the magnitude of a landmark coordinate. Providers report
// points slightly outside [0, 1] when the face leaves the image, never this far.
const MaxCoordinate = 10.0

// Check verifies the frame against a topology before any index is dereferenced.
func (f Frame) Check(t Topology) error {
	if len(f.Points) != t.PointCount {
		return fmt.Errorf("%s expects %d points, got %d: %w", t.Version, t.PointCount, len(f.Points), ErrInvalidLandmarkCount)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame is %dx%d: %w", f.Width, f.Height, ErrInvalidFrameSize)
	}
	for i, p := range f.Points {
		if !inRange(p.X) || !inRange(p.Y) || !inRange(p.Z) {
			return fmt.Errorf("point %d is (%v, %v, %v): %w", i, p.X, p.Y, p.Z, ErrInvalidCoordinate)
		}
	}
	return nil
}

func inRange(v float64) bool {
	return finite(v) && math.Abs(v) <= MaxCoordinate
}

// Pixel returns landmark i scaled to image pixels.
func (f Frame) Pixel(i int) Point2 {
	p := f.Points[i]
	return Point2{X: p.X * float64(f.Width), Y: p.Y * float64(f.Height)}
}

func (f Frame) pixels(indices []int) []Point2 {
	out := make([]Point2, len(indices))
	for k, i := range indices {
		out[k] = f.Pixel(i)
	}
	return out
}
