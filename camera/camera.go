// Package camera captures frames from a webcam or a video file through
// OpenCV.
package camera

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Source reads frames from a capture device. Not safe for concurrent use;
// the monitoring loop is the single reader.
type Source struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// OpenDevice opens a camera by device ID.
func OpenDevice(deviceID int) (*Source, error) {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open capture device %d", deviceID)
	}
	return &Source{capture: capture, mat: gocv.NewMat()}, nil
}

// OpenFile opens a video file as the frame source, useful for replaying
// recorded sessions.
func OpenFile(path string) (*Source, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open video file %s", path)
	}
	return &Source{capture: capture, mat: gocv.NewMat()}, nil
}

// Sample grabs the next frame. An end-of-stream or device hiccup returns an
// error; callers decide whether to retry or stop.
func (s *Source) Sample() (image.Image, error) {
	if ok := s.capture.Read(&s.mat); !ok {
		return nil, errors.New("capture device returned no frame")
	}
	if s.mat.Empty() {
		return nil, errors.New("capture device returned an empty frame")
	}

	frame, err := s.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert frame")
	}
	return frame, nil
}

// Close releases the capture device.
func (s *Source) Close() error {
	if err := s.mat.Close(); err != nil {
		return err
	}
	return s.capture.Close()
}
