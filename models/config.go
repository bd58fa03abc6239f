package models

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the monitoring engine needs. It is built once
// at startup from the environment and is immutable afterwards; components
// receive it at construction and never read the environment themselves.
type Config struct {
	HTTPPort string
	LogFile  string

	// Screen judge (OpenRouter, OpenAI-compatible)
	OpenRouterKey     string
	OpenRouterBaseURL string
	VisionModel       string

	// Voice channel (Deepgram)
	DeepgramKey string
	SpeakModel  string

	// Optional criteria cache
	RedisAddr     string
	RedisPassword string

	// Haptic actuator serial link; empty port disables the device
	SlapperPort string
	SlapperBaud int

	// Camera and face-landmark backend
	CameraDevice      int
	LandmarkerCommand string
	LandmarkerArgs    []string

	// Pose classification thresholds, degrees. Downward gaze (phone on the
	// desk) is tolerated less than upward, hence the asymmetry.
	YawLimitDeg       float64
	PitchDownLimitDeg float64
	PitchUpLimitDeg   float64

	// Loop timing
	SamplePeriod   time.Duration
	CameraBackoff  time.Duration
	Cooldown       time.Duration
	PoseWindow     time.Duration
	PosePollPeriod time.Duration
	CooldownIdle   time.Duration

	// Apology verification
	ApologyWindow    time.Duration
	SilenceThreshold int
	ApologyKeywords  []string
	AdmonishLine     string
}

// DefaultConfig returns the reference tuning without touching the
// environment. LoadConfig layers env overrides on top of it.
func DefaultConfig() *Config {
	return &Config{
		HTTPPort:          "8080",
		LogFile:           "focusguard.log",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		VisionModel:       "google/gemini-2.0-flash-001",
		SpeakModel:        "aura-asteria-en",
		SlapperBaud:       115200,
		CameraDevice:      0,
		LandmarkerCommand: "focus-landmarker",

		YawLimitDeg:       20,
		PitchDownLimitDeg: 25,
		PitchUpLimitDeg:   25,

		SamplePeriod:   60 * time.Millisecond,
		CameraBackoff:  time.Second,
		Cooldown:       5 * time.Second,
		PoseWindow:     10 * time.Second,
		PosePollPeriod: 100 * time.Millisecond,
		CooldownIdle:   250 * time.Millisecond,

		ApologyWindow:    5 * time.Second,
		SilenceThreshold: 500,
		ApologyKeywords:  []string{"sorry", "my bad", "apologies"},
		AdmonishLine:     "Get back to work. You promised yourself you would focus.",
	}
}

// LoadConfig materializes the session configuration from the environment.
// Missing credentials are a hard failure: no partial session may begin.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	cfg.HTTPPort = envStr("PORT", cfg.HTTPPort)
	cfg.LogFile = envStr("LOG_FILE", cfg.LogFile)

	cfg.OpenRouterKey = os.Getenv("OPENROUTER_API_KEY")
	cfg.OpenRouterBaseURL = envStr("OPENROUTER_BASE_URL", cfg.OpenRouterBaseURL)
	cfg.VisionModel = envStr("FOCUS_VISION_MODEL", cfg.VisionModel)

	cfg.DeepgramKey = os.Getenv("DEEPGRAM_API_KEY")
	cfg.SpeakModel = envStr("DEEPGRAM_SPEAK_MODEL", cfg.SpeakModel)

	cfg.RedisAddr = os.Getenv("REDIS_HOST")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.SlapperPort = os.Getenv("SLAPPER_PORT")
	cfg.SlapperBaud = envInt("SLAPPER_BAUD", cfg.SlapperBaud)

	cfg.CameraDevice = envInt("CAMERA_DEVICE", cfg.CameraDevice)
	cfg.LandmarkerCommand = envStr("LANDMARKER_COMMAND", cfg.LandmarkerCommand)
	if args := os.Getenv("LANDMARKER_ARGS"); args != "" {
		cfg.LandmarkerArgs = strings.Fields(args)
	}

	cfg.YawLimitDeg = envFloat("FOCUS_YAW_LIMIT", cfg.YawLimitDeg)
	cfg.PitchDownLimitDeg = envFloat("FOCUS_PITCH_DOWN_LIMIT", cfg.PitchDownLimitDeg)
	cfg.PitchUpLimitDeg = envFloat("FOCUS_PITCH_UP_LIMIT", cfg.PitchUpLimitDeg)

	cfg.Cooldown = envDur("FOCUS_COOLDOWN", cfg.Cooldown)
	cfg.SilenceThreshold = envInt("FOCUS_SILENCE_THRESHOLD", cfg.SilenceThreshold)
	if kw := os.Getenv("FOCUS_APOLOGY_KEYWORDS"); kw != "" {
		cfg.ApologyKeywords = splitTrim(kw)
	}

	if cfg.OpenRouterKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable not set")
	}
	if cfg.DeepgramKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY environment variable not set")
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
