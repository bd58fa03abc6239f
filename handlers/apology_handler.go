package handlers

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/utils"
)

// ClipRecorder captures a fixed-duration mono clip from the microphone and
// returns raw s16le samples.
type ClipRecorder interface {
	RecordClip(ctx context.Context, duration time.Duration) ([]byte, error)
}

// Transcriber converts a WAV clip into text. Errors are infrastructure
// failures, never "no speech".
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// ApologyVerifier records a short clip and decides whether the user audibly
// apologized. Clips quieter than the silence threshold are rejected without
// a transcription call, which keeps retries cheap while the user sulks in
// silence.
type ApologyVerifier struct {
	recorder ClipRecorder
	voice    Transcriber
	keywords []string
	logger   *zap.Logger
}

func NewApologyVerifier(recorder ClipRecorder, voice Transcriber, keywords []string, logger *zap.Logger) *ApologyVerifier {
	return &ApologyVerifier{
		recorder: recorder,
		voice:    voice,
		keywords: keywords,
		logger:   logger,
	}
}

// RecordAndCheck blocks its caller for the full recording window. It must
// only be invoked from the alert coordinator's already-synchronous apology
// loop, never concurrently with itself.
func (v *ApologyVerifier) RecordAndCheck(ctx context.Context, duration time.Duration, silenceThreshold int) (bool, error) {
	pcm, err := v.recorder.RecordClip(ctx, duration)
	if err != nil {
		return false, err
	}

	peak := utils.PeakAmplitude(pcm)
	if peak < silenceThreshold {
		v.logger.Debug("Clip below silence threshold, skipping transcription",
			zap.Int("peak", peak), zap.Int("threshold", silenceThreshold))
		return false, nil
	}

	wav := utils.WrapWAV(pcm, 16000, 1)
	transcript, err := v.voice.Transcribe(ctx, wav)
	if err != nil {
		return false, err
	}

	return v.ContainsApology(transcript), nil
}

// ContainsApology reports whether the transcript contains any configured
// apology keyword as a lowercase substring. No stemming, no fuzzy matching.
func (v *ApologyVerifier) ContainsApology(transcript string) bool {
	lowered := strings.ToLower(transcript)
	for _, keyword := range v.keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
