package utils

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
)

const (
	// 16kHz mono PCM16; what the transcription model expects.
	recorderSampleRate = 16000
	recorderChannels   = 1
)

// MicRecorder captures fixed-duration clips from the default microphone by
// shelling out to ffmpeg, mirroring the webcam capture path. The microphone
// is only ever touched from inside an alert cycle, while the eye tracker is
// paused, so there is no contention over the device.
type MicRecorder struct {
	logger *zap.Logger
}

func NewMicRecorder(logger *zap.Logger) *MicRecorder {
	return &MicRecorder{logger: logger}
}

// RecordClip blocks for the full duration and returns raw little-endian
// s16le samples. The block is a deliberate sampling window, not a bug; only
// the alert coordinator's already-synchronous apology loop calls this.
func (r *MicRecorder) RecordClip(ctx context.Context, duration time.Duration) ([]byte, error) {
	seconds := fmt.Sprintf("%.1f", duration.Seconds())

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "ffmpeg",
			"-f", "avfoundation",
			"-i", ":0",
			"-t", seconds,
			"-ar", fmt.Sprintf("%d", recorderSampleRate),
			"-ac", fmt.Sprintf("%d", recorderChannels),
			"-f", "s16le",
			"-")
	case "linux":
		cmd = exec.CommandContext(ctx, "ffmpeg",
			"-f", "alsa",
			"-i", "default",
			"-t", seconds,
			"-ar", fmt.Sprintf("%d", recorderSampleRate),
			"-ac", fmt.Sprintf("%d", recorderChannels),
			"-f", "s16le",
			"-")
	case "windows":
		cmd = exec.CommandContext(ctx, "ffmpeg",
			"-f", "dshow",
			"-i", "audio=\"Microphone\"",
			"-t", seconds,
			"-ar", fmt.Sprintf("%d", recorderSampleRate),
			"-ac", fmt.Sprintf("%d", recorderChannels),
			"-f", "s16le",
			"-")
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to record audio clip: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no audio data captured")
	}

	r.logger.Debug("Captured audio clip", zap.Int("bytes", len(output)))
	return output, nil
}

// PeakAmplitude returns the maximum absolute sample value of a little-endian
// s16le clip. Used as the silence gate before any transcription call.
func PeakAmplitude(pcm []byte) int {
	peak := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}
	return peak
}

// WrapWAV frames raw s16le samples with a canonical 44-byte RIFF header so
// the clip can be submitted to the transcription API.
func WrapWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
