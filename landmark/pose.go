package landmark

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// HeadPose angles are in degrees with R = Rz(roll)·Ry(yaw)·Rx(pitch) in camera
// axes (x right, y down, z forward). Positive pitch looks down, positive yaw turns
// the face toward the left edge of the image, positive roll is clockwise on screen.
type HeadPose struct {
	Pitch float64
	Yaw   float64
	Roll  float64
}

// faceModel is an average face in arbitrary units, nose tip at the origin, in the
// same camera-aligned axes as HeadPose. Order matches PoseIndex.ordered.
var faceModel = [6][3]float64{
	{0, 0, 0},         // nose tip
	{0, 330, 65},      // chin
	{-225, -170, 135}, // right eye outer corner
	{225, -170, 135},  // left eye outer corner
	{-150, 150, 125},  // right mouth corner
	{150, 150, 125},   // left mouth corner
}

const (
	poseMaxIterations = 100
	poseMaxRMSRatio   = 0.05
	poseModelEyeSpan  = 450.0
)

// EstimateHeadPose picks the pose reference landmarks out of the frame and solves
// for the head rotation.
func EstimateHeadPose(f Frame, ix Index) (HeadPose, error) {
	if err := f.Check(ix.Topology); err != nil {
		return HeadPose{}, err
	}
	order := ix.Pose.ordered()
	image := make([]Point2, len(order))
	for k, i := range order {
		image[k] = f.Pixel(i)
	}
	return SolveHeadPose(image, f.Width, f.Height)
}

// SolveHeadPose fits the face model to six pixel positions (nose tip, chin, right
// eye outer, left eye outer, right mouth, left mouth) with a pinhole camera whose
// focal length is the image width.
func SolveHeadPose(image []Point2, width, height int) (HeadPose, error) {
	if len(image) != len(faceModel) {
		return HeadPose{}, fmt.Errorf("need %d pose points, got %d: %w", len(faceModel), len(image), ErrInsufficientPoints)
	}
	if width <= 0 || height <= 0 {
		return HeadPose{}, fmt.Errorf("image is %dx%d: %w", width, height, ErrInvalidFrameSize)
	}
	for _, p := range image {
		if !finite(p.X) || !finite(p.Y) {
			return HeadPose{}, fmt.Errorf("non-finite image point: %w", ErrPoseEstimationFailed)
		}
	}
	if degenerate2D(image) {
		return HeadPose{}, fmt.Errorf("pose points are colinear: %w", ErrPoseEstimationFailed)
	}

	cam := camera{f: float64(width), cx: float64(width) / 2, cy: float64(height) / 2}
	params, ok := cam.initialGuess(image)
	if !ok {
		return HeadPose{}, fmt.Errorf("eye corners coincide: %w", ErrPoseEstimationFailed)
	}
	params, cost, err := cam.refine(params, image)
	if err != nil {
		return HeadPose{}, err
	}
	if params[5] <= 0 {
		return HeadPose{}, fmt.Errorf("face solved behind the camera: %w", ErrPoseEstimationFailed)
	}
	rms := math.Sqrt(cost / float64(len(image)))
	if rms > poseMaxRMSRatio*cam.f {
		return HeadPose{}, fmt.Errorf("reprojection error %.1fpx too large: %w", rms, ErrPoseEstimationFailed)
	}
	pose := eulerAngles(rodrigues(params[0], params[1], params[2]))
	if !finite(pose.Pitch) || !finite(pose.Yaw) || !finite(pose.Roll) {
		return HeadPose{}, fmt.Errorf("non-finite angles: %w", ErrPoseEstimationFailed)
	}
	return pose, nil
}

type camera struct {
	f, cx, cy float64
}

// params layout: rotation vector (3) then translation (3).
type poseParams [6]float64

func (c camera) initialGuess(image []Point2) (poseParams, bool) {
	span := math.Hypot(image[3].X-image[2].X, image[3].Y-image[2].Y)
	if span < degenerateEpsilon {
		return poseParams{}, false
	}
	tz := c.f * poseModelEyeSpan / span
	return poseParams{
		0, 0, 0,
		(image[0].X - c.cx) * tz / c.f,
		(image[0].Y - c.cy) * tz / c.f,
		tz,
	}, true
}

func (c camera) residuals(p poseParams, image []Point2, out []float64) float64 {
	r := rodrigues(p[0], p[1], p[2])
	cost := 0.0
	for i, m := range faceModel {
		x := r[0][0]*m[0] + r[0][1]*m[1] + r[0][2]*m[2] + p[3]
		y := r[1][0]*m[0] + r[1][1]*m[1] + r[1][2]*m[2] + p[4]
		z := r[2][0]*m[0] + r[2][1]*m[1] + r[2][2]*m[2] + p[5]
		du := c.f*x/z + c.cx - image[i].X
		dv := c.f*y/z + c.cy - image[i].Y
		out[2*i] = du
		out[2*i+1] = dv
		cost += du*du + dv*dv
	}
	return cost
}

// refine is a Levenberg–Marquardt loop with a central difference Jacobian.
func (c camera) refine(p poseParams, image []Point2) (poseParams, float64, error) {
	n := 2 * len(faceModel)
	res := make([]float64, n)
	plus := make([]float64, n)
	minus := make([]float64, n)
	cost := c.residuals(p, image, res)
	lambda := 1e-3

	jac := mat.NewDense(n, 6, nil)
	jtj := mat.NewDense(6, 6, nil)
	damped := mat.NewDense(6, 6, nil)
	grad := mat.NewVecDense(6, nil)
	var delta mat.VecDense

	for iter := 0; iter < poseMaxIterations; iter++ {
		for k := 0; k < 6; k++ {
			h := 1e-6
			if k >= 3 {
				h = 1e-6 * math.Max(1, math.Abs(p[k]))
			}
			pp, pm := p, p
			pp[k] += h
			pm[k] -= h
			c.residuals(pp, image, plus)
			c.residuals(pm, image, minus)
			for i := 0; i < n; i++ {
				jac.Set(i, k, (plus[i]-minus[i])/(2*h))
			}
		}
		jtj.Mul(jac.T(), jac)
		grad.MulVec(jac.T(), mat.NewVecDense(n, res))

		improved := false
		var next poseParams
		var nextCost float64
		for lambda < 1e12 {
			damped.Copy(jtj)
			for k := 0; k < 6; k++ {
				damped.Set(k, k, jtj.At(k, k)*(1+lambda)+1e-12)
			}
			if err := delta.SolveVec(damped, grad); err != nil {
				lambda *= 10
				continue
			}
			for k := 0; k < 6; k++ {
				next[k] = p[k] - delta.AtVec(k)
			}
			nextCost = c.residuals(next, image, plus)
			if finite(nextCost) && nextCost < cost {
				improved = true
				break
			}
			lambda *= 10
		}
		if !improved {
			break
		}
		step := mat.Norm(&delta, 2)
		gain := cost - nextCost
		p, cost = next, nextCost
		copy(res, plus)
		lambda = math.Max(lambda/10, 1e-12)
		if step < 1e-10 || gain < 1e-12*(1+cost) {
			break
		}
	}
	for _, v := range p {
		if !finite(v) {
			return p, cost, fmt.Errorf("solver diverged: %w", ErrPoseEstimationFailed)
		}
	}
	return p, cost, nil
}

type rotation [3][3]float64

func rodrigues(rx, ry, rz float64) rotation {
	theta := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if theta < 1e-12 {
		return rotation{
			{1, -rz, ry},
			{rz, 1, -rx},
			{-ry, rx, 1},
		}
	}
	kx, ky, kz := rx/theta, ry/theta, rz/theta
	s, c := math.Sincos(theta)
	v := 1 - c
	return rotation{
		{c + kx*kx*v, kx*ky*v - kz*s, kx*kz*v + ky*s},
		{ky*kx*v + kz*s, c + ky*ky*v, ky*kz*v - kx*s},
		{kz*kx*v - ky*s, kz*ky*v + kx*s, c + kz*kz*v},
	}
}

func eulerAngles(r rotation) HeadPose {
	var pitch, yaw, roll float64
	cy := math.Hypot(r[0][0], r[1][0])
	if cy > 1e-6 {
		pitch = math.Atan2(r[2][1], r[2][2])
		yaw = math.Atan2(-r[2][0], cy)
		roll = math.Atan2(r[1][0], r[0][0])
	} else {
		pitch = math.Atan2(-r[1][2], r[1][1])
		yaw = math.Atan2(-r[2][0], cy)
	}
	return HeadPose{Pitch: degrees(pitch), Yaw: degrees(yaw), Roll: degrees(roll)}
}

// degenerate2D reports whether the points collapse onto a line or a single spot.
func degenerate2D(pts []Point2) bool {
	var mx, my float64
	for _, p := range pts {
		mx += p.X
		my += p.Y
	}
	n := float64(len(pts))
	mx, my = mx/n, my/n
	var sxx, syy, sxy float64
	for _, p := range pts {
		dx, dy := p.X-mx, p.Y-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	half := (sxx + syy) / 2
	disc := math.Sqrt((sxx-syy)*(sxx-syy)/4 + sxy*sxy)
	large, small := half+disc, half-disc
	return large < 1e-9 || small/large < 1e-6
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Project renders the reference face model at the given pose and camera-space
// translation through the same approximate camera SolveHeadPose assumes.
func Project(pose HeadPose, translation [3]float64, width, height int) []Point2 {
	cam := camera{f: float64(width), cx: float64(width) / 2, cy: float64(height) / 2}
	r := fromEuler(pose)
	out := make([]Point2, len(faceModel))
	for i, m := range faceModel {
		x := r[0][0]*m[0] + r[0][1]*m[1] + r[0][2]*m[2] + translation[0]
		y := r[1][0]*m[0] + r[1][1]*m[1] + r[1][2]*m[2] + translation[1]
		z := r[2][0]*m[0] + r[2][1]*m[1] + r[2][2]*m[2] + translation[2]
		out[i] = Point2{X: cam.f*x/z + cam.cx, Y: cam.f*y/z + cam.cy}
	}
	return out
}

func fromEuler(p HeadPose) rotation {
	sa, ca := math.Sincos(p.Pitch * math.Pi / 180)
	sb, cb := math.Sincos(p.Yaw * math.Pi / 180)
	sg, cg := math.Sincos(p.Roll * math.Pi / 180)
	return rotation{
		{cg * cb, cg*sb*sa - sg*ca, cg*sb*ca + sg*sa},
		{sg * cb, sg*sb*sa + cg*ca, sg*sb*ca - cg*sa},
		{-sb, cb * sa, cb * ca},
	}
}
