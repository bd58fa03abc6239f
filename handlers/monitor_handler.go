package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/models"
	"github.com/Random121/nwhacks-2026/utils"
)

// ScreenJudge is the AI-judged screen classifier.
type ScreenJudge interface {
	DeriveCriteria(ctx context.Context, goal string) (string, error)
	JudgeScreen(ctx context.Context, goal, criteria string) (models.Verdict, error)
}

// EyeTracker is the monitor's view of the continuous tracker.
type EyeTracker interface {
	Start()
	Stop()
	Paused() bool
	LatestVerdict() models.Verdict
}

// Alerter hands distraction verdicts to the alert coordinator.
type Alerter interface {
	CooldownActive() bool
	TryAlert(ctx context.Context, verdict models.Verdict, stop <-chan struct{}) bool
}

// MonitorHandler is the top-level session scheduler. It alternates
// low-frequency screen checks with a high-frequency pose polling sub-window
// for the session's duration, handing any distraction verdict to the alert
// coordinator. Either sensor firing first wins; verdicts are never merged.
type MonitorHandler struct {
	judge       ScreenJudge
	tracker     EyeTracker
	coordinator Alerter
	presenter   Presenter
	cfg         *models.Config
	logger      *zap.Logger
}

func NewMonitorHandler(
	judge ScreenJudge,
	tracker EyeTracker,
	coordinator Alerter,
	presenter Presenter,
	cfg *models.Config,
	logger *zap.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		judge:       judge,
		tracker:     tracker,
		coordinator: coordinator,
		presenter:   presenter,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run executes one focus session until the wall-clock deadline or the stop
// channel fires. The stop flag is polled at every loop boundary; in-flight
// judge calls complete naturally and their results are discarded.
func (m *MonitorHandler) Run(ctx context.Context, goal string, duration time.Duration, stop <-chan struct{}) error {
	m.presenter.Log(fmt.Sprintf("Consulting the judge about goal: '%s'...", goal))

	criteria, err := m.judge.DeriveCriteria(ctx, goal)
	if err != nil {
		// No monitoring without a policy.
		m.logger.Error("Failed to derive distraction criteria", zap.Error(err))
		m.presenter.Log("Failed to generate criteria. Stopping.")
		return err
	}
	m.presenter.Log("Identified distractions: " + criteria)

	m.tracker.Start()
	defer m.tracker.Stop()

	deadline := time.Now().Add(duration)
	m.presenter.Log(fmt.Sprintf("Session started for %s. Stay focused.", duration))

	for {
		if stopped(stop) {
			m.logger.Info("Session stopped by user")
			return nil
		}
		if time.Now().After(deadline) {
			m.logger.Info("Session duration reached")
			m.presenter.Log("Time is up! Great work.")
			m.presenter.SessionComplete()
			return nil
		}

		if m.coordinator.CooldownActive() {
			m.idle(stop, m.cfg.CooldownIdle)
			continue
		}

		verdict, err := m.judge.JudgeScreen(ctx, goal, criteria)
		if stopped(stop) {
			return nil
		}
		if err != nil {
			if errors.Is(err, utils.ErrAmbiguousJudgement) {
				m.logger.Warn("Ambiguous judge response, treating as on-track", zap.Error(err))
			} else {
				// Transient failure: skip this check, wait for the next
				// natural cycle rather than hammering the API.
				m.logger.Error("Screen check failed, skipping cycle", zap.Error(err))
			}
		} else if verdict.Distracted {
			m.coordinator.TryAlert(ctx, verdict, stop)
			continue
		} else {
			m.presenter.Log("On track.")
		}

		m.pollPoseWindow(ctx, deadline, stop)
	}
}

// pollPoseWindow reads the tracker's latest verdict at high frequency for a
// bounded sub-window between screen checks.
func (m *MonitorHandler) pollPoseWindow(ctx context.Context, deadline time.Time, stop <-chan struct{}) {
	windowEnd := time.Now().Add(m.cfg.PoseWindow)
	if windowEnd.After(deadline) {
		windowEnd = deadline
	}

	for time.Now().Before(windowEnd) {
		if stopped(stop) {
			return
		}

		verdict := m.tracker.LatestVerdict()
		if verdict.Distracted && !m.tracker.Paused() {
			if m.coordinator.TryAlert(ctx, verdict, stop) {
				// Break out so cooldown and the screen are re-checked.
				return
			}
		}

		m.idle(stop, m.cfg.PosePollPeriod)
	}
}

func (m *MonitorHandler) idle(stop <-chan struct{}, d time.Duration) {
	select {
	case <-stop:
	case <-time.After(d):
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
