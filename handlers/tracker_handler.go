package handlers

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/models"
	"github.com/Random121/nwhacks-2026/utils"
)

// FrameSource produces single webcam frames. Each call opens and releases
// the device, so not calling it leaves the hardware free.
type FrameSource interface {
	CaptureFrame() ([]byte, error)
}

// PoseEstimator turns a raw frame into a head-pose sample.
type PoseEstimator interface {
	EstimatePose(frame []byte) (models.PoseSample, error)
}

// TrackerHandler is the continuous eye tracker. It owns exclusive access to
// the camera, samples head pose on a fixed period and exposes only the most
// recent verdict and frame. While paused the sampling loop never touches the
// camera; it sleeps and polls the flag, freeing the device for the apology
// recorder.
type TrackerHandler struct {
	camera FrameSource
	pose   PoseEstimator
	cfg    *models.Config
	logger *zap.Logger

	mu          sync.Mutex
	lastVerdict models.Verdict
	lastSample  models.PoseSample
	lastFrame   []byte

	paused   atomic.Bool
	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewTrackerHandler(camera FrameSource, pose PoseEstimator, cfg *models.Config, logger *zap.Logger) *TrackerHandler {
	return &TrackerHandler{
		camera: camera,
		pose:   pose,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the sampling loop on its own goroutine. Must be called at
// most once.
func (t *TrackerHandler) Start() {
	t.running.Store(true)
	t.wg.Add(1)
	go t.run()
	t.logger.Info("Eye tracker started", zap.Duration("sample_period", t.cfg.SamplePeriod))
}

// Stop terminates the sampling loop. Safe to call multiple times.
func (t *TrackerHandler) Stop() {
	t.stopOnce.Do(func() {
		t.running.Store(false)
		close(t.stopCh)
	})
	t.wg.Wait()
}

// SetPaused controls whether the sampling loop may touch the camera.
func (t *TrackerHandler) SetPaused(paused bool) {
	t.paused.Store(paused)
	if paused {
		t.logger.Debug("Eye tracker paused")
	} else {
		t.logger.Debug("Eye tracker resumed")
	}
}

func (t *TrackerHandler) Paused() bool {
	return t.paused.Load()
}

// LatestVerdict is a non-blocking read of the most recent classification.
// Before the first sample arrives it reports on-track.
func (t *TrackerHandler) LatestVerdict() models.Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastVerdict
}

// LatestSample returns the most recent raw pose reading.
func (t *TrackerHandler) LatestSample() models.PoseSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSample
}

// LatestFrame is a non-blocking read of the most recent camera frame, for
// live preview. While paused it keeps returning the frame captured just
// before pausing; nil before the first sample.
func (t *TrackerHandler) LatestFrame() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastFrame
}

func (t *TrackerHandler) run() {
	defer t.wg.Done()

	consecutiveFailures := 0

	for {
		select {
		case <-t.stopCh:
			t.logger.Info("Eye tracker stopped")
			return
		default:
		}

		if t.paused.Load() {
			t.sleep(t.cfg.SamplePeriod)
			continue
		}

		frame, err := t.camera.CaptureFrame()
		if err != nil {
			consecutiveFailures++
			if consecutiveFailures >= 2 {
				// Device likely unavailable; back off instead of hammering it.
				t.logger.Warn("Camera unavailable, backing off", zap.Error(err))
				t.sleep(t.cfg.CameraBackoff)
			} else {
				t.sleep(t.cfg.SamplePeriod)
			}
			continue
		}
		consecutiveFailures = 0

		sample, err := t.pose.EstimatePose(frame)
		if err != nil {
			// A single bad frame is skipped, not fatal.
			t.logger.Debug("Pose estimation failed, skipping frame", zap.Error(err))
			t.sleep(t.cfg.SamplePeriod)
			continue
		}
		sample.Timestamp = time.Now()

		verdict := utils.ClassifyPose(sample, t.cfg.YawLimitDeg, t.cfg.PitchDownLimitDeg, t.cfg.PitchUpLimitDeg)

		t.mu.Lock()
		t.lastSample = sample
		t.lastVerdict = verdict
		t.lastFrame = frame
		t.mu.Unlock()

		t.sleep(t.cfg.SamplePeriod)
	}
}

func (t *TrackerHandler) sleep(d time.Duration) {
	select {
	case <-t.stopCh:
	case <-time.After(d):
	}
}
