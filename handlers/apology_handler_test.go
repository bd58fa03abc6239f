package handlers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRecorder struct {
	pcm []byte
	err error
}

func (s *stubRecorder) RecordClip(ctx context.Context, duration time.Duration) ([]byte, error) {
	return s.pcm, s.err
}

type stubTranscriber struct {
	transcript string
	err        error
	calls      atomic.Int32
}

func (s *stubTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	s.calls.Add(1)
	return s.transcript, s.err
}

func newVerifier(rec *stubRecorder, voice *stubTranscriber) *ApologyVerifier {
	keywords := []string{"sorry", "my bad", "apologies"}
	return NewApologyVerifier(rec, voice, keywords, zap.NewNop())
}

func TestSilentClipSkipsTranscription(t *testing.T) {
	rec := &stubRecorder{pcm: pcmWithPeak(100)}
	voice := &stubTranscriber{transcript: "sorry"}
	v := newVerifier(rec, voice)

	ok, err := v.RecordAndCheck(context.Background(), time.Second, 500)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(0), voice.calls.Load(), "silent clip must not be transcribed")
}

func TestApologyAccepted(t *testing.T) {
	rec := &stubRecorder{pcm: pcmWithPeak(2000)}
	voice := &stubTranscriber{transcript: "I'm sorry, okay?"}
	v := newVerifier(rec, voice)

	ok, err := v.RecordAndCheck(context.Background(), time.Second, 500)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), voice.calls.Load())
}

func TestNonApologyRejected(t *testing.T) {
	rec := &stubRecorder{pcm: pcmWithPeak(2000)}
	voice := &stubTranscriber{transcript: "stop bothering me"}
	v := newVerifier(rec, voice)

	ok, err := v.RecordAndCheck(context.Background(), time.Second, 500)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTranscriptionErrorSurfaced(t *testing.T) {
	wantErr := errors.New("api unreachable")
	rec := &stubRecorder{pcm: pcmWithPeak(2000)}
	voice := &stubTranscriber{err: wantErr}
	v := newVerifier(rec, voice)

	ok, err := v.RecordAndCheck(context.Background(), time.Second, 500)
	require.ErrorIs(t, err, wantErr)
	assert.False(t, ok)
}

func TestRecorderErrorSurfaced(t *testing.T) {
	wantErr := errors.New("microphone busy")
	rec := &stubRecorder{err: wantErr}
	voice := &stubTranscriber{}
	v := newVerifier(rec, voice)

	_, err := v.RecordAndCheck(context.Background(), time.Second, 500)
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, int32(0), voice.calls.Load())
}

func TestContainsApology(t *testing.T) {
	v := newVerifier(&stubRecorder{}, &stubTranscriber{})

	assert.True(t, v.ContainsApology("I'm SO sorry about that"))
	assert.True(t, v.ContainsApology("ugh, my bad"))
	assert.True(t, v.ContainsApology("My Apologies."))
	assert.False(t, v.ContainsApology("stop bothering me"))
	assert.False(t, v.ContainsApology(""))
}
