package utils

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/models"
)

// Landmarker talks to a face-landmark helper process over a line protocol:
// one base64 JPEG frame in on stdin, one JSON result out on stdout. The
// helper owns the mediapipe-style face mesh; this side only frames requests
// and validates responses.
type Landmarker struct {
	command string
	args    []string
	logger  *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
}

type landmarkResult struct {
	Face      bool                  `json:"face"`
	Landmarks []models.FaceLandmark `json:"landmarks"`
	Width     int                   `json:"width"`
	Height    int                   `json:"height"`
	Error     string                `json:"error"`
}

func NewLandmarker(command string, args []string, logger *zap.Logger) *Landmarker {
	return &Landmarker{
		command: command,
		args:    args,
		logger:  logger,
	}
}

// Detect sends a JPEG frame to the helper and returns whether a face was
// found plus the six reference landmarks. Safe for a single caller at a time;
// the tracker's sampling loop is the only client.
func (l *Landmarker) Detect(frame []byte) (bool, []models.FaceLandmark, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureStarted(); err != nil {
		return false, nil, err
	}

	line := base64.StdEncoding.EncodeToString(frame) + "\n"
	if _, err := io.WriteString(l.stdin, line); err != nil {
		l.teardown()
		return false, nil, fmt.Errorf("failed to write frame to landmarker: %w", err)
	}

	for l.stdout.Scan() {
		text := strings.TrimSpace(l.stdout.Text())
		if text == "" || !strings.HasPrefix(text, "{") {
			continue
		}
		var res landmarkResult
		if err := json.Unmarshal([]byte(text), &res); err != nil {
			l.logger.Debug("Skipping unparseable landmarker line", zap.String("line", text))
			continue
		}
		if res.Error != "" {
			return false, nil, fmt.Errorf("landmarker: %s", res.Error)
		}
		if !res.Face {
			return false, nil, nil
		}
		if len(res.Landmarks) < landmarkCount {
			return false, nil, fmt.Errorf("landmarker returned %d landmarks, want %d", len(res.Landmarks), landmarkCount)
		}
		return true, res.Landmarks, nil
	}

	err := l.stdout.Err()
	l.teardown()
	if err != nil {
		return false, nil, fmt.Errorf("landmarker read error: %w", err)
	}
	return false, nil, fmt.Errorf("landmarker process exited")
}

func (l *Landmarker) ensureStarted() error {
	if l.cmd != nil {
		return nil
	}

	cmd := exec.Command(l.command, l.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start landmarker %q: %w", l.command, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	go l.logStderr(stderr)

	l.cmd = cmd
	l.stdin = stdin
	l.stdout = scanner
	l.logger.Info("Landmarker process started", zap.String("command", l.command))
	return nil
}

func (l *Landmarker) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			l.logger.Debug("landmarker: " + line)
		}
	}
}

func (l *Landmarker) teardown() {
	if l.stdin != nil {
		l.stdin.Close()
	}
	if l.cmd != nil && l.cmd.Process != nil {
		cmd := l.cmd
		_ = cmd.Process.Kill()
		go func() { _ = cmd.Wait() }()
	}
	l.cmd = nil
	l.stdin = nil
	l.stdout = nil
}

// Close terminates the helper process. Safe to call multiple times.
func (l *Landmarker) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teardown()
}

// HeadPoseEstimator combines the landmark helper with the pose solve to
// produce pose samples from raw camera frames.
type HeadPoseEstimator struct {
	landmarker *Landmarker
}

func NewHeadPoseEstimator(landmarker *Landmarker) *HeadPoseEstimator {
	return &HeadPoseEstimator{landmarker: landmarker}
}

func (e *HeadPoseEstimator) EstimatePose(frame []byte) (models.PoseSample, error) {
	face, landmarks, err := e.landmarker.Detect(frame)
	if err != nil {
		return models.PoseSample{}, err
	}
	if !face {
		return models.PoseSample{FacePresent: false}, nil
	}
	yaw, pitch, ok := SolveHeadPose(landmarks)
	if !ok {
		return models.PoseSample{}, fmt.Errorf("degenerate landmarks, pose solve failed")
	}
	return models.PoseSample{Yaw: yaw, Pitch: pitch, FacePresent: true}, nil
}

func (e *HeadPoseEstimator) Close() {
	e.landmarker.Close()
}
