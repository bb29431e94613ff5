package landmark_test

import (
	"math"
	"testing"

	"EyeTrackServer/landmark"
	"EyeTrackServer/landmark/landmarktest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateIris(t *testing.T) {
	ix := landmark.DefaultIndex()

	t.Run("Perfect circle", func(t *testing.T) {
		for _, r := range []float64{2, 6, 11.5} {
			fc := landmarktest.Open()
			fc.IrisRadius = r
			f := fc.Frame()
			for _, iris := range [][]int{ix.LeftIris, ix.RightIris} {
				c, err := landmark.LocateIris(f, iris, ix.Topology)
				require.NoError(t, err)
				want := f.Pixel(iris[0])
				assert.InDelta(t, r, c.Radius, 1e-6)
				assert.InDelta(t, want.X, c.Center.X, 1e-6)
				assert.InDelta(t, want.Y, c.Center.Y, 1e-6)
			}
		}
	})

	t.Run("Ring only", func(t *testing.T) {
		f := landmarktest.Open().Frame()
		c, err := landmark.LocateIris(f, ix.LeftIris[1:], ix.Topology)
		require.NoError(t, err)
		assert.InDelta(t, 6.0, c.Radius, 1e-6)
	})

	t.Run("Insufficient points", func(t *testing.T) {
		f := landmarktest.Open().Frame()
		_, err := landmark.LocateIris(f, ix.LeftIris[:2], ix.Topology)
		assert.ErrorIs(t, err, landmark.ErrInsufficientPoints)
	})

	t.Run("Wrong landmark count", func(t *testing.T) {
		f := landmarktest.Open().Frame()
		f.Points = f.Points[:468]
		_, err := landmark.LocateIris(f, []int{1, 2, 3}, ix.Topology)
		assert.ErrorIs(t, err, landmark.ErrInvalidLandmarkCount)
	})

	t.Run("Deterministic", func(t *testing.T) {
		f := landmarktest.Open().Frame()
		a, err := landmark.LocateIris(f, ix.RightIris, ix.Topology)
		require.NoError(t, err)
		b, err := landmark.LocateIris(f, ix.RightIris, ix.Topology)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestMinEnclosingCircle(t *testing.T) {
	t.Run("Encloses every point", func(t *testing.T) {
		pts := []landmark.Point2{{X: 3, Y: 1}, {X: 9, Y: 4}, {X: 5, Y: 8}, {X: 6, Y: 5}, {X: 1, Y: 6}, {X: 7, Y: 2}}
		c := landmark.MinEnclosingCircle(pts)
		onBoundary := 0
		for _, p := range pts {
			d := math.Hypot(p.X-c.Center.X, p.Y-c.Center.Y)
			assert.LessOrEqual(t, d, c.Radius+1e-9)
			if math.Abs(d-c.Radius) < 1e-6 {
				onBoundary++
			}
		}
		assert.GreaterOrEqual(t, onBoundary, 2)
	})

	t.Run("Colinear points", func(t *testing.T) {
		c := landmark.MinEnclosingCircle([]landmark.Point2{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 10, Y: 0}})
		assert.InDelta(t, 5.0, c.Center.X, 1e-12)
		assert.InDelta(t, 0.0, c.Center.Y, 1e-12)
		assert.InDelta(t, 5.0, c.Radius, 1e-12)
	})

	t.Run("Single point", func(t *testing.T) {
		c := landmark.MinEnclosingCircle([]landmark.Point2{{X: 4, Y: 2}})
		assert.Equal(t, landmark.IrisCircle{Center: landmark.Point2{X: 4, Y: 2}}, c)
	})
}

func TestGaze(t *testing.T) {
	ix := landmark.DefaultIndex()
	f := landmarktest.Open().Frame()

	c, err := landmark.LocateIris(f, ix.LeftIris, ix.Topology)
	require.NoError(t, err)
	g := landmark.Gaze(f, ix.LeftEye, c)
	assert.InDelta(t, 0.0, g.DX, 1e-6)
	assert.InDelta(t, 0.0, g.DY, 1e-6)

	for _, i := range ix.LeftIris {
		f.Points[i].X += 3.0 / landmarktest.Width
		f.Points[i].Y -= 1.0 / landmarktest.Height
	}
	c, err = landmark.LocateIris(f, ix.LeftIris, ix.Topology)
	require.NoError(t, err)
	g = landmark.Gaze(f, ix.LeftEye, c)
	assert.InDelta(t, 3.0, g.DX, 1e-6)
	assert.InDelta(t, -1.0, g.DY, 1e-6)
}
