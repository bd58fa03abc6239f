package utils

import (
	"fmt"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// CameraCapture grabs single webcam frames by shelling out to ffmpeg. Each
// call opens and releases the device, so a paused tracker that stops calling
// leaves the hardware free for other subsystems.
type CameraCapture struct {
	DeviceID int
	logger   *zap.Logger
}

func NewCameraCapture(deviceID int, logger *zap.Logger) *CameraCapture {
	return &CameraCapture{
		DeviceID: deviceID,
		logger:   logger,
	}
}

// CaptureImage captures one JPEG frame from the webcam.
func (c *CameraCapture) CaptureImage() ([]byte, error) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("ffmpeg",
			"-f", "avfoundation",
			"-video_size", "640x480",
			"-framerate", "30",
			"-i", fmt.Sprintf("%d", c.DeviceID),
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "2",
			"-")
	case "linux":
		cmd = exec.Command("ffmpeg",
			"-f", "v4l2",
			"-video_size", "640x480",
			"-i", fmt.Sprintf("/dev/video%d", c.DeviceID),
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "2",
			"-")
	case "windows":
		cmd = exec.Command("ffmpeg",
			"-f", "dshow",
			"-video_size", "640x480",
			"-i", "video=\"USB Camera\"",
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "2",
			"-")
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no frame data captured")
	}
	return output, nil
}

// captureImageMacOS uses imagesnap as a fallback when ffmpeg cannot open the
// avfoundation device.
func (c *CameraCapture) captureImageMacOS() ([]byte, error) {
	cmd := exec.Command("imagesnap", "-d", fmt.Sprintf("%d", c.DeviceID), "-f", "jpeg", "-")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to capture frame with imagesnap: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no frame data captured")
	}
	return output, nil
}

// CaptureFrame attempts a capture using the best available method. This is
// the entry point the eye tracker's sampling loop uses.
func (c *CameraCapture) CaptureFrame() ([]byte, error) {
	data, err := c.CaptureImage()
	if err == nil {
		return data, nil
	}

	if runtime.GOOS == "darwin" {
		c.logger.Warn("ffmpeg capture failed, trying imagesnap", zap.Error(err))
		if data, altErr := c.captureImageMacOS(); altErr == nil {
			return data, nil
		}
	}

	return nil, err
}
