package handlers

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/models"
)

type countingCamera struct {
	captures atomic.Int32
	fail     bool

	mu    sync.Mutex
	frame []byte
}

func (c *countingCamera) CaptureFrame() ([]byte, error) {
	n := c.captures.Add(1)
	if c.fail {
		return nil, errors.New("device busy")
	}
	frame := []byte{byte(n)}
	c.mu.Lock()
	c.frame = frame
	c.mu.Unlock()
	return frame, nil
}

type fixedEstimator struct {
	sample models.PoseSample
	err    error
	calls  atomic.Int32
}

func (e *fixedEstimator) EstimatePose(frame []byte) (models.PoseSample, error) {
	e.calls.Add(1)
	return e.sample, e.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestLatestVerdictBeforeFirstSample(t *testing.T) {
	tr := NewTrackerHandler(&countingCamera{}, &fixedEstimator{}, testConfig(), zap.NewNop())
	assert.False(t, tr.LatestVerdict().Distracted)
	assert.Nil(t, tr.LatestFrame())
}

func TestPauseReleasesCamera(t *testing.T) {
	camera := &countingCamera{}
	estimator := &fixedEstimator{sample: models.PoseSample{FacePresent: true}}
	tr := NewTrackerHandler(camera, estimator, testConfig(), zap.NewNop())

	tr.Start()
	defer tr.Stop()

	waitFor(t, func() bool { return tr.LatestFrame() != nil })

	tr.SetPaused(true)
	require.True(t, tr.Paused())

	// Let any in-flight iteration drain, then verify the device is left
	// alone for many sampling periods.
	time.Sleep(25 * time.Millisecond)
	before := camera.captures.Load()
	pausedFrame := tr.LatestFrame()
	require.NotNil(t, pausedFrame)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, camera.captures.Load(), "paused tracker must not touch the camera")
	assert.Equal(t, pausedFrame, tr.LatestFrame(), "paused preview shows the pre-pause frame")

	tr.SetPaused(false)
	waitFor(t, func() bool { return camera.captures.Load() > before })
}

func TestTrackerClassifiesSamples(t *testing.T) {
	camera := &countingCamera{}
	estimator := &fixedEstimator{sample: models.PoseSample{Yaw: 30, FacePresent: true}}
	tr := NewTrackerHandler(camera, estimator, testConfig(), zap.NewNop())

	tr.Start()
	defer tr.Stop()

	waitFor(t, func() bool { return tr.LatestVerdict().Distracted })
	verdict := tr.LatestVerdict()
	assert.Equal(t, "looking right", verdict.Reason)
	assert.Equal(t, models.SourceEyes, verdict.Source)
}

func TestCaptureFailureSkipsSample(t *testing.T) {
	camera := &countingCamera{fail: true}
	estimator := &fixedEstimator{}
	tr := NewTrackerHandler(camera, estimator, testConfig(), zap.NewNop())

	tr.Start()
	time.Sleep(60 * time.Millisecond)
	tr.Stop()

	assert.False(t, tr.LatestVerdict().Distracted)
	assert.Nil(t, tr.LatestFrame())
	assert.Equal(t, int32(0), estimator.calls.Load(), "no pose estimation without a frame")
	assert.Greater(t, camera.captures.Load(), int32(1), "capture is retried on backoff, not abandoned")
}

func TestEstimatorFailureSkipsSample(t *testing.T) {
	camera := &countingCamera{}
	estimator := &fixedEstimator{err: errors.New("no landmarks")}
	tr := NewTrackerHandler(camera, estimator, testConfig(), zap.NewNop())

	tr.Start()
	time.Sleep(40 * time.Millisecond)
	tr.Stop()

	assert.False(t, tr.LatestVerdict().Distracted)
	assert.Greater(t, estimator.calls.Load(), int32(0))
}

func TestStopIsIdempotent(t *testing.T) {
	tr := NewTrackerHandler(&countingCamera{}, &fixedEstimator{}, testConfig(), zap.NewNop())
	tr.Start()
	tr.Stop()
	tr.Stop()
}
