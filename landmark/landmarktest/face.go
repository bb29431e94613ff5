// Package landmarktest builds synthetic landmark frames with known geometry.
package landmarktest

import (
	"math"
	"time"

	"EyeTrackServer/landmark"
)

const (
	Width  = 640
	Height = 480
	// Distance is the camera-space depth of the nose tip.
	Distance = 1000.0
)

// Face describes a synthetic subject. Openness is the eye aspect ratio measured
// in normalized landmark space; IrisRadius is in pixels.
type Face struct {
	Pose       landmark.HeadPose
	Openness   float64
	IrisRadius float64
	Sequence   uint64
}

func Open() Face   { return Face{Openness: 0.5, IrisRadius: 6} }
func Closed() Face { return Face{Openness: 0.1, IrisRadius: 6} }

// Frame lays the face out on the default MediaPipe index. Unused landmarks sit
// at the image center.
func (fc Face) Frame() landmark.Frame {
	ix := landmark.DefaultIndex()
	pts := make([]landmark.Point, ix.Topology.PointCount)
	for i := range pts {
		pts[i] = landmark.Point{X: 0.5, Y: 0.5}
	}
	norm := func(p landmark.Point2) landmark.Point {
		return landmark.Point{X: p.X / Width, Y: p.Y / Height}
	}

	proj := landmark.Project(fc.Pose, [3]float64{0, 0, Distance}, Width, Height)
	pose := ix.Pose
	pts[pose.NoseTip] = norm(proj[0])
	pts[pose.Chin] = norm(proj[1])
	pts[pose.RightEyeOuter] = norm(proj[2])
	pts[pose.LeftEyeOuter] = norm(proj[3])
	pts[pose.RightMouth] = norm(proj[4])
	pts[pose.LeftMouth] = norm(proj[5])

	// Right eye runs outer(33) -> inner(133), left eye inner(362) -> outer(263).
	rightOuter := proj[2]
	leftOuter := proj[3]
	rightInner := landmark.Point2{X: rightOuter.X + 60, Y: rightOuter.Y}
	leftInner := landmark.Point2{X: leftOuter.X - 60, Y: leftOuter.Y}
	fc.placeEye(pts, ix.RightEye, norm(rightOuter), norm(rightInner))
	fc.placeEye(pts, ix.LeftEye, norm(leftInner), norm(leftOuter))

	fc.placeIris(pts, ix.RightIris, mid(rightOuter, rightInner))
	fc.placeIris(pts, ix.LeftIris, mid(leftInner, leftOuter))

	return landmark.Frame{
		Points:    pts,
		Width:     Width,
		Height:    Height,
		Sequence:  fc.Sequence,
		Timestamp: time.Unix(0, 0).Add(time.Duration(fc.Sequence) * 33 * time.Millisecond),
	}
}

// placeEye keeps the corners where they are and puts the lids a third and two
// thirds of the way along, offset so the aspect ratio equals Openness.
func (fc Face) placeEye(pts []landmark.Point, eye []int, p1, p4 landmark.Point) {
	w := landmark.Distance(p1, p4)
	half := fc.Openness * w / 2
	along := func(t float64) landmark.Point {
		return landmark.Point{X: p1.X + (p4.X-p1.X)*t, Y: p1.Y + (p4.Y-p1.Y)*t}
	}
	a, b := along(1.0/3), along(2.0/3)
	pts[eye[0]] = p1
	pts[eye[1]] = landmark.Point{X: a.X, Y: a.Y - half}
	pts[eye[2]] = landmark.Point{X: b.X, Y: b.Y - half}
	pts[eye[3]] = p4
	pts[eye[4]] = landmark.Point{X: b.X, Y: b.Y + half}
	pts[eye[5]] = landmark.Point{X: a.X, Y: a.Y + half}
}

// placeIris puts the first index at the center and the rest evenly on the ring.
func (fc Face) placeIris(pts []landmark.Point, iris []int, center landmark.Point2) {
	pts[iris[0]] = landmark.Point{X: center.X / Width, Y: center.Y / Height}
	ring := iris[1:]
	for k, i := range ring {
		angle := 2 * math.Pi * float64(k) / float64(len(ring))
		p := landmark.Point2{
			X: center.X + fc.IrisRadius*math.Cos(angle),
			Y: center.Y + fc.IrisRadius*math.Sin(angle),
		}
		pts[i] = landmark.Point{X: p.X / Width, Y: p.Y / Height}
	}
}

func mid(a, b landmark.Point2) landmark.Point2 {
	return landmark.Point2{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
