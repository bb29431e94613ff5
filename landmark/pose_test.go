package landmark_test

import (
	"testing"

	"EyeTrackServer/landmark"
	"EyeTrackServer/landmark/landmarktest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateHeadPose(t *testing.T) {
	ix := landmark.DefaultIndex()

	t.Run("Frontal upright face", func(t *testing.T) {
		pose, err := landmark.EstimateHeadPose(landmarktest.Open().Frame(), ix)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, pose.Pitch, 0.01)
		assert.InDelta(t, 0.0, pose.Yaw, 0.01)
		assert.InDelta(t, 0.0, pose.Roll, 0.01)
	})

	cases := []landmark.HeadPose{
		{Yaw: 20},
		{Yaw: -25},
		{Pitch: 12},
		{Pitch: -15},
		{Roll: 10},
		{Pitch: 8, Yaw: -12, Roll: 5},
	}
	for _, want := range cases {
		fc := landmarktest.Open()
		fc.Pose = want
		got, err := landmark.EstimateHeadPose(fc.Frame(), ix)
		require.NoError(t, err, "%+v", want)
		assert.InDelta(t, want.Pitch, got.Pitch, 0.05, "pitch for %+v", want)
		assert.InDelta(t, want.Yaw, got.Yaw, 0.05, "yaw for %+v", want)
		assert.InDelta(t, want.Roll, got.Roll, 0.05, "roll for %+v", want)
	}

	t.Run("Deterministic", func(t *testing.T) {
		fc := landmarktest.Open()
		fc.Pose = landmark.HeadPose{Pitch: 4, Yaw: 9, Roll: -3}
		f := fc.Frame()
		a, err := landmark.EstimateHeadPose(f, ix)
		require.NoError(t, err)
		b, err := landmark.EstimateHeadPose(f, ix)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Wrong landmark count", func(t *testing.T) {
		f := landmarktest.Open().Frame()
		f.Points = append(f.Points, landmark.Point{})
		_, err := landmark.EstimateHeadPose(f, ix)
		assert.ErrorIs(t, err, landmark.ErrInvalidLandmarkCount)
	})
}

func TestSolveHeadPose(t *testing.T) {
	t.Run("Colinear points", func(t *testing.T) {
		pts := make([]landmark.Point2, 6)
		for i := range pts {
			pts[i] = landmark.Point2{X: 100 + float64(i)*20, Y: 200 + float64(i)*10}
		}
		_, err := landmark.SolveHeadPose(pts, 640, 480)
		assert.ErrorIs(t, err, landmark.ErrPoseEstimationFailed)
	})

	t.Run("Coincident points", func(t *testing.T) {
		pts := make([]landmark.Point2, 6)
		for i := range pts {
			pts[i] = landmark.Point2{X: 320, Y: 240}
		}
		_, err := landmark.SolveHeadPose(pts, 640, 480)
		assert.ErrorIs(t, err, landmark.ErrPoseEstimationFailed)
	})

	t.Run("Wrong point count", func(t *testing.T) {
		_, err := landmark.SolveHeadPose(make([]landmark.Point2, 4), 640, 480)
		assert.ErrorIs(t, err, landmark.ErrInsufficientPoints)
	})

	t.Run("Bad image size", func(t *testing.T) {
		pts := landmark.Project(landmark.HeadPose{}, [3]float64{0, 0, 1000}, 640, 480)
		_, err := landmark.SolveHeadPose(pts, 0, 480)
		assert.ErrorIs(t, err, landmark.ErrInvalidFrameSize)
	})

	t.Run("Off-center face", func(t *testing.T) {
		want := landmark.HeadPose{Yaw: 10, Pitch: -5}
		pts := landmark.Project(want, [3]float64{150, -80, 1400}, 1280, 720)
		got, err := landmark.SolveHeadPose(pts, 1280, 720)
		require.NoError(t, err)
		assert.InDelta(t, want.Yaw, got.Yaw, 0.05)
		assert.InDelta(t, want.Pitch, got.Pitch, 0.05)
		assert.InDelta(t, 0.0, got.Roll, 0.05)
	})
}
