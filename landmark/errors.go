package landmark

import "errors"

var (
	ErrInvalidLandmarkCount = errors.New("invalid landmark count")
	ErrInvalidFrameSize     = errors.New("invalid frame size")
	ErrInvalidCoordinate    = errors.New("invalid landmark coordinate")
	ErrDegenerateGeometry   = errors.New("degenerate geometry")
	ErrInsufficientPoints   = errors.New("insufficient points")
	ErrIndexOutOfRange      = errors.New("landmark index out of range")
	ErrPoseEstimationFailed = errors.New("pose estimation failed")
)
