package handlers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/models"
)

// PauseControl is the slice of the eye tracker the coordinator needs: the
// pause/resume protocol is the sole mutual-exclusion mechanism between the
// camera and the microphone.
type PauseControl interface {
	SetPaused(paused bool)
}

// Speaker voices a line of text to the user.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Haptic fires a single physical pulse, best-effort.
type Haptic interface {
	Pulse()
}

// ApologyChecker is the verification step of the alert cycle.
type ApologyChecker interface {
	RecordAndCheck(ctx context.Context, duration time.Duration, silenceThreshold int) (bool, error)
}

// Presenter is the coordinator's view of the presentation layer. Every call
// is forwarded to the UI through its own writer context; nothing here blocks
// the UI event loop.
type Presenter interface {
	Log(message string)
	PromptAlert(event models.AlertEvent)
	// AwaitAcknowledge blocks until the user acknowledges the alert or the
	// stop channel fires; returns false when stopped.
	AwaitAcknowledge(stop <-chan struct{}) bool
	SessionComplete()
}

// AlertCoordinator runs the alert state machine:
//
//	Monitoring -> Alerting -> AwaitingApology -> (loop) -> Monitoring
//
// It guarantees at most one open alert event at any time (CAS on the
// alerting flag), keeps the tracker paused for the full lifetime of an open
// alert, and opens a cooldown window when the cycle closes.
type AlertCoordinator struct {
	tracker   PauseControl
	speaker   Speaker
	haptic    Haptic
	verifier  ApologyChecker
	presenter Presenter
	cfg       *models.Config
	logger    *zap.Logger

	alerting atomic.Bool

	mu           sync.Mutex
	lastAlertEnd time.Time
}

func NewAlertCoordinator(
	tracker PauseControl,
	speaker Speaker,
	haptic Haptic,
	verifier ApologyChecker,
	presenter Presenter,
	cfg *models.Config,
	logger *zap.Logger,
) *AlertCoordinator {
	return &AlertCoordinator{
		tracker:   tracker,
		speaker:   speaker,
		haptic:    haptic,
		verifier:  verifier,
		presenter: presenter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Alerting reports whether an alert event is currently open.
func (c *AlertCoordinator) Alerting() bool {
	return c.alerting.Load()
}

// CooldownActive reports whether the post-alert cooldown window is still
// open. No new alert may be raised while it is.
func (c *AlertCoordinator) CooldownActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.lastAlertEnd.IsZero() && time.Since(c.lastAlertEnd) < c.cfg.Cooldown
}

// TryAlert attempts to open an alert cycle for the given verdict. It returns
// false without side effects when another alert is open or the cooldown has
// not elapsed; concurrent triggers from both sensors produce exactly one
// cycle. On success it blocks through the whole alert+apology sequence and
// returns true once the user has been released back into monitoring.
func (c *AlertCoordinator) TryAlert(ctx context.Context, verdict models.Verdict, stop <-chan struct{}) bool {
	if !verdict.Distracted {
		return false
	}
	if !c.alerting.CompareAndSwap(false, true) {
		return false
	}
	if c.CooldownActive() {
		c.alerting.Store(false)
		return false
	}

	event := models.AlertEvent{
		ID:       uuid.New().String(),
		Reason:   verdict.Reason,
		Source:   verdict.Source,
		OpenedAt: time.Now(),
	}

	// Scoped acquisition: the tracker resumes and the cooldown opens on
	// every exit path, including panics out of the voice channel.
	c.tracker.SetPaused(true)
	defer func() {
		c.tracker.SetPaused(false)
		c.mu.Lock()
		c.lastAlertEnd = time.Now()
		c.mu.Unlock()
		c.alerting.Store(false)
	}()

	c.logger.Info("Alert opened",
		zap.String("alert_id", event.ID),
		zap.String("reason", event.Reason),
		zap.String("source", string(event.Source)))
	c.presenter.Log(fmt.Sprintf("DISTRACTION (%s): %s", event.Source, event.Reason))
	c.presenter.PromptAlert(event)

	if err := c.speaker.Speak(ctx, c.cfg.AdmonishLine); err != nil {
		c.logger.Warn("Admonishment playback failed", zap.Error(err))
	}
	c.haptic.Pulse()

	if !c.presenter.AwaitAcknowledge(stop) {
		c.logger.Info("Session stopped while awaiting acknowledgment", zap.String("alert_id", event.ID))
		return true
	}

	c.awaitApology(ctx, event, stop)

	c.logger.Info("Alert closed", zap.String("alert_id", event.ID),
		zap.Duration("open_for", time.Since(event.OpenedAt)))
	return true
}

// awaitApology loops until a qualifying apology clip is heard or the session
// is stopped. Verifier errors are logged and count as failed attempts; they
// never tear down the session.
func (c *AlertCoordinator) awaitApology(ctx context.Context, event models.AlertEvent, stop <-chan struct{}) {
	c.presenter.Log("Say you're sorry to resume monitoring.")

	for {
		select {
		case <-stop:
			c.logger.Info("Session stopped mid-apology, abandoning alert", zap.String("alert_id", event.ID))
			return
		default:
		}

		ok, err := c.verifier.RecordAndCheck(ctx, c.cfg.ApologyWindow, c.cfg.SilenceThreshold)
		if err != nil {
			c.logger.Error("Apology verification failed, retrying", zap.Error(err))
		}
		if ok {
			c.presenter.Log("Apology accepted. Back to work.")
			return
		}

		c.haptic.Pulse()
		c.presenter.Log("That didn't sound like an apology. Try again.")
	}
}
