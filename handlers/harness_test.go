package handlers

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Random121/nwhacks-2026/models"
)

func testConfig() *models.Config {
	cfg := models.DefaultConfig()
	cfg.SamplePeriod = 5 * time.Millisecond
	cfg.CameraBackoff = 20 * time.Millisecond
	cfg.Cooldown = 50 * time.Millisecond
	cfg.PoseWindow = 20 * time.Millisecond
	cfg.PosePollPeriod = 2 * time.Millisecond
	cfg.CooldownIdle = 2 * time.Millisecond
	cfg.ApologyWindow = 10 * time.Millisecond
	return cfg
}

func pcmWithPeak(peak int16) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint16(out[2:], uint16(peak))
	return out
}

// fakeTracker satisfies both PauseControl and EyeTracker.
type fakeTracker struct {
	mu         sync.Mutex
	paused     bool
	pauseCalls []bool
	started    int
	stopped    int
	verdict    models.Verdict
}

func (f *fakeTracker) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeTracker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeTracker) SetPaused(paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
	f.pauseCalls = append(f.pauseCalls, paused)
}

func (f *fakeTracker) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeTracker) LatestVerdict() models.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verdict
}

func (f *fakeTracker) setVerdict(v models.Verdict) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdict = v
}

func (f *fakeTracker) snapshotPauseCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.pauseCalls...)
}

type fakeSpeaker struct {
	spoken atomic.Int32
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.spoken.Add(1)
	return nil
}

type fakeHaptic struct {
	pulses atomic.Int32
}

func (f *fakeHaptic) Pulse() {
	f.pulses.Add(1)
}

// fakePresenter acknowledges every alert prompt immediately (unless the stop
// channel fires first) and records everything it was told to render.
type fakePresenter struct {
	mu       sync.Mutex
	logs     []string
	alerts   []models.AlertEvent
	complete bool
}

func (f *fakePresenter) Log(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, message)
}

func (f *fakePresenter) PromptAlert(event models.AlertEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, event)
}

func (f *fakePresenter) AwaitAcknowledge(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	default:
		return true
	}
}

func (f *fakePresenter) SessionComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
}

func (f *fakePresenter) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func (f *fakePresenter) completed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

// scriptedVerifier returns its scripted results in order, then repeats the
// last one.
type scriptedVerifier struct {
	mu      sync.Mutex
	script  []verifierStep
	idx     int
	callers atomic.Int32
}

type verifierStep struct {
	ok  bool
	err error
}

func (s *scriptedVerifier) RecordAndCheck(ctx context.Context, duration time.Duration, silenceThreshold int) (bool, error) {
	s.callers.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.script[s.idx]
	if s.idx < len(s.script)-1 {
		s.idx++
	}
	return step.ok, step.err
}
