package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/models"
	"github.com/Random121/nwhacks-2026/utils"
)

const previewInterval = 200 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow connections from any origin
	},
}

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type startCommand struct {
	Goal            string `json:"goal"`
	DurationMinutes int    `json:"duration_minutes"`
}

// FocusSession is one connected client's focus session. The websocket is the
// entire presentation layer: it renders state pushed from here and forwards
// start/stop/acknowledge commands back. All outbound traffic funnels through
// a single writer goroutine so no monitoring goroutine ever touches the
// connection directly.
type FocusSession struct {
	ID          string
	Connection  *websocket.Conn
	RedisClient *redis.Client
	Logger      *zap.Logger
	cfg         *models.Config

	sendCh chan WebSocketMessage
	ackCh  chan struct{}

	state atomic.Int32

	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce *sync.Once

	wg sync.WaitGroup
}

func NewFocusSession(id string, conn *websocket.Conn, redisClient *redis.Client, cfg *models.Config) *FocusSession {
	logger := zap.L().With(zap.String("session_id", id))

	return &FocusSession{
		ID:          id,
		Connection:  conn,
		RedisClient: redisClient,
		Logger:      logger,
		cfg:         cfg,
		sendCh:      make(chan WebSocketMessage, 100),
		ackCh:       make(chan struct{}, 1),
	}
}

// HandleFocusSession upgrades the connection and services one client until
// it disconnects.
func HandleFocusSession(w http.ResponseWriter, r *http.Request, redisClient *redis.Client, cfg *models.Config) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("Failed to upgrade to websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	session := NewFocusSession(uuid.New().String(), conn, redisClient, cfg)
	session.Logger.Info("New focus session connection")

	writerDone := make(chan struct{})
	go session.writeLoop(writerDone)

	session.readLoop()

	session.stopMonitoring()
	session.wg.Wait()
	close(session.sendCh)
	<-writerDone
	session.Logger.Info("Focus session connection closed")
}

// writeLoop is the sole writer on the connection; everything else posts
// through sendCh.
func (fs *FocusSession) writeLoop(done chan<- struct{}) {
	defer close(done)
	for msg := range fs.sendCh {
		if err := fs.Connection.WriteJSON(msg); err != nil {
			fs.Logger.Error("Failed to send websocket message", zap.Error(err), zap.String("type", msg.Type))
		}
	}
}

func (fs *FocusSession) readLoop() {
	for {
		_, raw, err := fs.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fs.Logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			fs.Logger.Warn("Unparseable client message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "start":
			fs.handleStart(msg.Data)
		case "stop":
			fs.Logger.Info("Received stop command from client")
			fs.stopMonitoring()
		case "acknowledge":
			select {
			case fs.ackCh <- struct{}{}:
			default:
			}
		case "ping":
			fs.send("pong", nil)
		default:
			fs.Logger.Warn("Unknown message type", zap.String("type", msg.Type))
		}
	}
}

func (fs *FocusSession) handleStart(data interface{}) {
	if models.SessionState(fs.state.Load()) == models.SessionRunning {
		fs.send("error", map[string]string{"message": "a session is already running"})
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		fs.send("error", map[string]string{"message": "invalid start command"})
		return
	}
	var cmd startCommand
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Goal == "" || cmd.DurationMinutes <= 0 {
		fs.send("error", map[string]string{"message": "start requires a goal and a positive duration"})
		return
	}

	fs.startMonitoring(cmd.Goal, time.Duration(cmd.DurationMinutes)*time.Minute)
}

// startMonitoring wires the monitoring engine for this session and launches
// it in the background.
func (fs *FocusSession) startMonitoring(goal string, duration time.Duration) {
	fs.state.Store(int32(models.SessionRunning))

	camera := utils.NewCameraCapture(fs.cfg.CameraDevice, fs.Logger)
	landmarker := utils.NewLandmarker(fs.cfg.LandmarkerCommand, fs.cfg.LandmarkerArgs, fs.Logger)
	estimator := utils.NewHeadPoseEstimator(landmarker)
	tracker := NewTrackerHandler(camera, estimator, fs.cfg, fs.Logger)

	judge := utils.NewJudgeClient(fs.cfg, fs.RedisClient, fs.Logger)
	voice := utils.NewVoiceClient(fs.cfg.DeepgramKey, fs.cfg.SpeakModel, fs.Logger)
	recorder := utils.NewMicRecorder(fs.Logger)
	verifier := NewApologyVerifier(recorder, voice, fs.cfg.ApologyKeywords, fs.Logger)

	// Degrade silently to the null actuator when the hardware is absent.
	var haptic Haptic = utils.NopSlapper{}
	var closeHaptic func()
	if fs.cfg.SlapperPort != "" {
		slapper, err := utils.NewSlapper(fs.cfg.SlapperPort, fs.cfg.SlapperBaud, fs.Logger)
		if err != nil {
			fs.Logger.Warn("Haptic actuator unavailable", zap.Error(err))
		} else {
			haptic = slapper
			closeHaptic = slapper.Close
		}
	}

	coordinator := NewAlertCoordinator(tracker, voice, haptic, verifier, fs, fs.cfg, fs.Logger)
	monitor := NewMonitorHandler(judge, tracker, coordinator, fs, fs.cfg, fs.Logger)

	stopCh := make(chan struct{})

	fs.mu.Lock()
	fs.stopCh = stopCh
	fs.stopOnce = &sync.Once{}
	fs.mu.Unlock()

	fs.wg.Add(2)
	go fs.previewLoop(tracker, stopCh)
	go func() {
		defer fs.wg.Done()
		err := monitor.Run(context.Background(), goal, duration, stopCh)
		fs.signalStop()

		landmarker.Close()
		if closeHaptic != nil {
			closeHaptic()
		}

		if err != nil {
			fs.state.Store(int32(models.SessionIdle))
			fs.send("error", map[string]string{"message": err.Error()})
			return
		}
		fs.state.Store(int32(models.SessionComplete))
		fs.Logger.Info("Monitoring loop finished")
	}()
}

// previewLoop streams the tracker's latest frame to the client while the
// tracker is unpaused.
func (fs *FocusSession) previewLoop(tracker *TrackerHandler, stop <-chan struct{}) {
	defer fs.wg.Done()

	ticker := time.NewTicker(previewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if tracker.Paused() {
				continue
			}
			frame := tracker.LatestFrame()
			if frame == nil {
				continue
			}
			fs.send("preview", map[string]string{
				"jpeg": base64.StdEncoding.EncodeToString(frame),
			})
		}
	}
}

// signalStop closes the session's stop channel exactly once; reports whether
// this call was the one that fired it.
func (fs *FocusSession) signalStop() bool {
	fs.mu.Lock()
	stopOnce, stopCh := fs.stopOnce, fs.stopCh
	fs.mu.Unlock()

	if stopOnce == nil {
		return false
	}
	fired := false
	stopOnce.Do(func() {
		close(stopCh)
		fired = true
	})
	return fired
}

func (fs *FocusSession) stopMonitoring() {
	if fs.signalStop() {
		fs.Log("Session stopped.")
		fs.state.Store(int32(models.SessionIdle))
	}
}

// send posts a message to the writer goroutine; full buffers drop rather
// than block the monitoring loops.
func (fs *FocusSession) send(msgType string, data interface{}) {
	msg := WebSocketMessage{Type: msgType, Data: data, Timestamp: time.Now()}
	select {
	case fs.sendCh <- msg:
	default:
		fs.Logger.Warn("Send buffer full, dropping message", zap.String("type", msgType))
	}
}

// Log implements Presenter: a timestamped line for the client's log panel.
func (fs *FocusSession) Log(message string) {
	fs.send("log", map[string]string{
		"time":    time.Now().Format("15:04:05"),
		"message": message,
	})
}

// PromptAlert implements Presenter.
func (fs *FocusSession) PromptAlert(event models.AlertEvent) {
	fs.send("alert", map[string]string{
		"id":     event.ID,
		"reason": event.Reason,
		"source": string(event.Source),
	})
}

// AwaitAcknowledge implements Presenter: blocks the calling monitoring
// goroutine (never the UI) until the client acknowledges or the session
// stops.
func (fs *FocusSession) AwaitAcknowledge(stop <-chan struct{}) bool {
	select {
	case <-fs.ackCh:
		return true
	case <-stop:
		return false
	}
}

// SessionComplete implements Presenter.
func (fs *FocusSession) SessionComplete() {
	fs.send("session_complete", map[string]string{
		"message": fmt.Sprintf("Focus session complete! Session %s", fs.ID),
	})
}
