package landmark

import (
	"fmt"
	"math"
)

const degenerateEpsilon = 1e-9

// EyeMetrics holds the per-frame eye aspect ratios. Combined is the mean of both
// eyes and is what the blink debouncer thresholds.
type EyeMetrics struct {
	Left     float64
	Right    float64
	Combined float64
}

// EyeAspectRatio computes the six point eye aspect ratio of both eyes using 3D
// distances between normalized landmarks.
func EyeAspectRatio(f Frame, ix Index) (EyeMetrics, error) {
	if err := f.Check(ix.Topology); err != nil {
		return EyeMetrics{}, err
	}
	left, err := eyeRatio(f, ix.LeftEye)
	if err != nil {
		return EyeMetrics{}, fmt.Errorf("left eye: %w", err)
	}
	right, err := eyeRatio(f, ix.RightEye)
	if err != nil {
		return EyeMetrics{}, fmt.Errorf("right eye: %w", err)
	}
	return EyeMetrics{
		Left:     left,
		Right:    right,
		Combined: (left + right) / 2,
	}, nil
}

func eyeRatio(f Frame, eye []int) (float64, error) {
	if len(eye) != 6 {
		return 0, fmt.Errorf("eye contour has %d points: %w", len(eye), ErrInsufficientPoints)
	}
	p := func(k int) Point { return f.Points[eye[k]] }
	horizontal := Distance(p(0), p(3))
	if horizontal < degenerateEpsilon || math.IsNaN(horizontal) {
		return 0, ErrDegenerateGeometry
	}
	vertical := Distance(p(1), p(5)) + Distance(p(2), p(4))
	return vertical / (2 * horizontal), nil
}
