package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	listenapi "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	speakapi "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/rest"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	speak "github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"go.uber.org/zap"
)

// VoiceClient is the voice channel: pre-recorded transcription for apology
// clips and Aura text-to-speech for admonishments, both over Deepgram's REST
// APIs.
type VoiceClient struct {
	listenClient *listenapi.Client
	speakClient  *speakapi.Client
	speakModel   string
	logger       *zap.Logger
}

func NewVoiceClient(apiKey, speakModel string, logger *zap.Logger) *VoiceClient {
	restListen := listen.NewREST(apiKey, &interfaces.ClientOptions{})
	restSpeak := speak.NewREST(apiKey, &interfaces.ClientOptions{})

	return &VoiceClient{
		listenClient: listenapi.New(restListen),
		speakClient:  speakapi.New(restSpeak),
		speakModel:   speakModel,
		logger:       logger,
	}
}

// Transcribe submits a WAV clip and returns the transcript text. An error
// here is an infrastructure failure, distinct from "no speech detected";
// callers must not conflate the two.
func (c *VoiceClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       "nova-2",
		Language:    "en",
		SmartFormat: true,
	}

	res, err := c.listenClient.FromStream(ctx, bytes.NewReader(wav), options)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}

	if res == nil || len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return "", fmt.Errorf("transcription response contained no alternatives")
	}

	transcript := strings.TrimSpace(res.Results.Channels[0].Alternatives[0].Transcript)
	c.logger.Debug("Transcribed apology clip", zap.String("transcript", transcript))
	return transcript, nil
}

// Speak synthesizes the line with Aura and plays it through ffplay.
// Best-effort: a failure is logged by the caller and never stops the alert
// sequence.
func (c *VoiceClient) Speak(ctx context.Context, text string) error {
	options := &interfaces.SpeakOptions{
		Model: c.speakModel,
	}

	outPath := filepath.Join(os.TempDir(), "focusguard-speak.mp3")
	if _, err := c.speakClient.ToSave(ctx, outPath, text, options); err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, "ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", outPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio playback failed: %w", err)
	}
	return nil
}
