package utils

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmFromSamples(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestPeakAmplitude(t *testing.T) {
	assert.Equal(t, 0, PeakAmplitude(nil))
	assert.Equal(t, 0, PeakAmplitude(pcmFromSamples(0, 0, 0)))
	assert.Equal(t, 500, PeakAmplitude(pcmFromSamples(100, -500, 300)))
	assert.Equal(t, 32767, PeakAmplitude(pcmFromSamples(-12, 32767, -32000)))
	// Negative extreme: |-32768| clamps nowhere, it is simply the peak.
	assert.Equal(t, 32768, PeakAmplitude(pcmFromSamples(-32768)))
}

func TestWrapWAV(t *testing.T) {
	pcm := pcmFromSamples(1, 2, 3, 4)
	wav := WrapWAV(pcm, 16000, 1)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm, wav[44:])
}
