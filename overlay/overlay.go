package overlay

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"EyeTrackServer/engine"
	"EyeTrackServer/landmark"

	"gocv.io/x/gocv"
)

var (
	dotColor  = color.RGBA{G: 255}
	irisColor = color.RGBA{R: 255, B: 255}
	textColor = color.RGBA{G: 255}
)

// DecodeBase64 turns a base64 image, optionally a data: URL, into a Mat. The
// caller closes the Mat.
func DecodeBase64(b64 string) (gocv.Mat, error) {
	if i := strings.Index(b64, ","); i != -1 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return gocv.NewMat(), err
	}
	return Decode(data)
}

func Decode(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), err
	}
	if mat.Empty() {
		_ = mat.Close()
		return gocv.NewMat(), errors.New("decoded image is empty or unsupported format")
	}
	return mat, nil
}

// Draw annotates img in place with the landmarks, both iris circles, the blink
// count and, when available, the head pose. Landmarks are scaled to the image
// size; iris circles are rescaled from the frame size they were measured at.
func Draw(img *gocv.Mat, f landmark.Frame, m engine.FrameMetrics) {
	w, h := float64(img.Cols()), float64(img.Rows())
	for _, p := range f.Points {
		gocv.Circle(img, image.Pt(int(p.X*w), int(p.Y*h)), 1, dotColor, -1)
	}
	sx, sy := 1.0, 1.0
	if f.Width > 0 && f.Height > 0 {
		sx, sy = w/float64(f.Width), h/float64(f.Height)
	}
	for _, iris := range []landmark.IrisCircle{m.LeftIris, m.RightIris} {
		center := image.Pt(int(iris.Center.X*sx), int(iris.Center.Y*sy))
		gocv.Circle(img, center, int(iris.Radius*sx), irisColor, 2)
	}
	gocv.PutText(img, fmt.Sprintf("Blinks: %d", m.TotalBlinks), image.Pt(30, 80), gocv.FontHersheyDuplex, 0.8, textColor, 2)
	if m.PoseAvailable {
		text := fmt.Sprintf("Head Pose - Pitch: %.1f, Yaw: %.1f, Roll: %.1f", m.Pose.Pitch, m.Pose.Yaw, m.Pose.Roll)
		gocv.PutText(img, text, image.Pt(30, 120), gocv.FontHersheyDuplex, 0.8, textColor, 2)
	}
}

// Render decodes an encoded image, draws the overlay and returns it as JPEG.
func Render(encoded []byte, f landmark.Frame, m engine.FrameMetrics) ([]byte, error) {
	img, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return Annotate(&img, f, m)
}

func RenderBase64(b64 string, f landmark.Frame, m engine.FrameMetrics) ([]byte, error) {
	img, err := DecodeBase64(b64)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return Annotate(&img, f, m)
}

// Annotate draws on img and returns it as JPEG bytes.
func Annotate(img *gocv.Mat, f landmark.Frame, m engine.FrameMetrics) ([]byte, error) {
	Draw(img, f, m)
	buf, err := gocv.IMEncode(".jpg", *img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
