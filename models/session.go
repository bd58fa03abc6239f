package models

import (
	"time"
)

// SessionState tracks the lifecycle of the single active focus session.
type SessionState int32

const (
	SessionIdle SessionState = iota
	SessionRunning
	SessionComplete
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionRunning:
		return "running"
	case SessionComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// VerdictSource identifies which sensor raised a verdict.
type VerdictSource string

const (
	SourceScreen VerdictSource = "screen"
	SourceEyes   VerdictSource = "eyes"
)

// Verdict is the classification output of either sensor. The zero value
// means on-track. Verdicts from the two sensors are never merged; whichever
// fires first wins.
type Verdict struct {
	Distracted bool
	Reason     string
	Source     VerdictSource
}

func OnTrack() Verdict {
	return Verdict{}
}

func Distracted(source VerdictSource, reason string) Verdict {
	return Verdict{Distracted: true, Reason: reason, Source: source}
}

// PoseSample is one head-pose reading from the eye tracker. Only the most
// recent sample is retained; there is no history buffer.
type PoseSample struct {
	Yaw         float64
	Pitch       float64
	FacePresent bool
	Timestamp   time.Time
}

// FaceLandmark is a single facial landmark in image coordinates. X and Y are
// pixels; Z is relative depth scaled to the same unit as X.
type FaceLandmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AlertEvent spans exactly one alert+apology cycle. At most one is open at
// any time.
type AlertEvent struct {
	ID       string
	Reason   string
	Source   VerdictSource
	OpenedAt time.Time
}
