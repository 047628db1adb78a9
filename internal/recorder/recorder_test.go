package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/zoolog/internal/errors"
)

func pcmSamples(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	t.Parallel()
	in := []int16{0, 1000, -1000, 32767, -32768, 42}

	data, err := EncodeWAV(pcmSamples(in...), 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))

	dec := wav.NewDecoder(bytes.NewReader(data))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	got := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		got[i] = int16(v)
	}
	assert.Equal(t, in, got)
}

func TestNewClip(t *testing.T) {
	t.Parallel()

	clip, err := NewClip(make([]byte, 2*16000*2), 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, clip.Duration)
	assert.Equal(t, ContentTypeWAV, clip.ContentType)
	assert.Equal(t, int64(len(clip.Data)), clip.Size())

	rc, err := clip.Open()
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	head := make([]byte, 4)
	_, err = rc.Read(head)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(head))

	_, err = NewClip(nil, 16000, 1)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestWriteSeekerPatchesEarlierBytes(t *testing.T) {
	t.Parallel()
	ws := &writeSeeker{}
	_, _ = ws.Write([]byte("hello world"))
	pos, err := ws.Seek(0, 0)
	require.NoError(t, err)
	assert.Zero(t, pos)
	_, _ = ws.Write([]byte("J"))
	assert.Equal(t, "Jello world", string(ws.buf))

	_, err = ws.Seek(-100, 1)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		kind     error
		category errors.ErrorCategory
	}{
		{"access denied", malgo.ErrAccessDenied, ErrPermission, errors.CategoryPermission},
		{"no device", malgo.ErrNoDevice, ErrNoDevice, errors.CategoryNotFound},
		{"does not exist", malgo.ErrDoesNotExist, ErrNoDevice, errors.CategoryNotFound},
		{"busy", malgo.ErrBusy, ErrBusy, errors.CategoryDeviceBusy},
		{"in use", malgo.ErrAlreadyInUse, ErrBusy, errors.CategoryDeviceBusy},
		{"format", malgo.ErrFormatNotSupported, ErrFormat, errors.CategoryAudio},
		{"no backend", malgo.ErrNoBackend, ErrUnsupported, errors.CategoryUnsupported},
		{"backend init", malgo.ErrFailedToInitBackend, ErrUnsupported, errors.CategoryUnsupported},
		{"sentinel", ErrPermission, ErrPermission, errors.CategoryPermission},
		{"wrapped sentinel", fmt.Errorf("prompt: %w", ErrBusy), ErrBusy, errors.CategoryDeviceBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classify(tt.err, "open")
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, errors.IsCategory(err, tt.category))
		})
	}

	err := classify(malgo.ErrGeneric, "open")
	assert.True(t, errors.IsCategory(err, errors.CategoryAudio))
	assert.NotErrorIs(t, err, ErrFormat)
}

func TestDecodeID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hw:1,0", decodeID("68773a312c3000"))
	assert.Equal(t, "not-hex", decodeID("not-hex"))
}

func TestFakeMicrophoneExclusive(t *testing.T) {
	t.Parallel()
	mic := NewFakeMicrophone()

	s, err := mic.Open(t.Context())
	require.NoError(t, err)
	assert.True(t, mic.Held())

	_, err = mic.Open(t.Context())
	assert.ErrorIs(t, err, ErrBusy)

	clip, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, time.Second, clip.Duration)
	assert.False(t, mic.Held())

	_, err = s.Finish()
	assert.Error(t, err)
}

func TestFakeMicrophoneFinishFailureReleases(t *testing.T) {
	t.Parallel()
	mic := NewFakeMicrophone()
	mic.FailFinish(malgo.ErrIO)

	s, err := mic.Open(t.Context())
	require.NoError(t, err)
	_, err = s.Finish()
	require.Error(t, err)
	assert.False(t, mic.Held())
}
