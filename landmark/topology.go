package landmark

import "fmt"

// Topology pins the landmark provider contract: which model version produced the
// points and how many points every frame carries.
type Topology struct {
	Version    string
	PointCount int
}

var MediaPipeRefined = Topology{
	Version:    "mediapipe-face-mesh-refined/v1",
	PointCount: 478,
}

// PoseIndex names the landmarks used as PnP correspondences. Left/Right are from
// the subject's point of view.
type PoseIndex struct {
	NoseTip       int
	Chin          int
	LeftEyeOuter  int
	RightEyeOuter int
	LeftMouth     int
	RightMouth    int
}

// Index maps semantic face regions onto positions of a topology.
// Eye contours are ordered p1..p6: corner, upper lid, upper lid, opposite corner,
// lower lid, lower lid.
type Index struct {
	Topology  Topology
	LeftEye   []int
	RightEye  []int
	LeftIris  []int
	RightIris []int
	Pose      PoseIndex
}

func DefaultIndex() Index {
	return Index{
		Topology:  MediaPipeRefined,
		LeftEye:   []int{362, 385, 387, 263, 373, 380},
		RightEye:  []int{33, 160, 158, 133, 153, 144},
		LeftIris:  []int{473, 474, 475, 476, 477},
		RightIris: []int{468, 469, 470, 471, 472},
		Pose: PoseIndex{
			NoseTip:       1,
			Chin:          152,
			LeftEyeOuter:  263,
			RightEyeOuter: 33,
			LeftMouth:     291,
			RightMouth:    61,
		},
	}
}

func (p PoseIndex) ordered() [6]int {
	return [6]int{p.NoseTip, p.Chin, p.RightEyeOuter, p.LeftEyeOuter, p.RightMouth, p.LeftMouth}
}

// Validate reports configuration errors in the index. It is meant to run once,
// when a session is created.
func (ix Index) Validate() error {
	if ix.Topology.PointCount <= 0 {
		return fmt.Errorf("topology %q has no points: %w", ix.Topology.Version, ErrInsufficientPoints)
	}
	if len(ix.LeftEye) != 6 || len(ix.RightEye) != 6 {
		return fmt.Errorf("eye contours need 6 points, got %d/%d: %w", len(ix.LeftEye), len(ix.RightEye), ErrInsufficientPoints)
	}
	if len(ix.LeftIris) < 3 || len(ix.RightIris) < 3 {
		return fmt.Errorf("iris sets need at least 3 points, got %d/%d: %w", len(ix.LeftIris), len(ix.RightIris), ErrInsufficientPoints)
	}
	pose := ix.Pose.ordered()
	sets := map[string][]int{
		"left eye":   ix.LeftEye,
		"right eye":  ix.RightEye,
		"left iris":  ix.LeftIris,
		"right iris": ix.RightIris,
		"pose":       pose[:],
	}
	for name, set := range sets {
		for _, i := range set {
			if i < 0 || i >= ix.Topology.PointCount {
				return fmt.Errorf("%s index %d outside %s (%d points): %w", name, i, ix.Topology.Version, ix.Topology.PointCount, ErrIndexOutOfRange)
			}
		}
	}
	return nil
}
