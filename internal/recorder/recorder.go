// Package recorder captures microphone audio into WAV clips.
package recorder

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/tphakala/zoolog/internal/errors"
)

// Microphone failure kinds. Returned errors wrap one of these so callers can
// tell the user what to do about it.
var (
	ErrUnsupported = errors.NewStd("audio capture is not supported in this environment")
	ErrPermission  = errors.NewStd("microphone permission denied")
	ErrNoDevice    = errors.NewStd("no microphone found")
	ErrBusy        = errors.NewStd("microphone is in use by another process")
	ErrFormat      = errors.NewStd("audio format not supported")
	ErrNoAudio     = errors.NewStd("no audio captured")
)

// Microphone opens capture streams. Implementations own an exclusive device;
// only one stream may be open at a time.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open capture. Exactly one of Finish or Close must be called,
// and either releases the device.
type Stream interface {
	// Finish stops capture and returns the recorded audio.
	Finish() (*Clip, error)
	// Close stops capture and discards the audio.
	Close() error
}

// Config holds capture settings
type Config struct {
	Device      string // name or ID, empty = system default
	SampleRate  int
	Channels    int
	MaxDuration time.Duration
}

const (
	DefaultSampleRate  = 16000
	DefaultChannels    = 1
	DefaultMaxDuration = 10 * time.Minute
	bitDepth           = 16
	bytesPerSample     = bitDepth / 8
)

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	return c
}

// bytesPerSecond of 16-bit PCM for this configuration
func (c Config) bytesPerSecond() int {
	return c.SampleRate * c.Channels * bytesPerSample
}

// ContentTypeWAV is the MIME type of recorded clips
const ContentTypeWAV = "audio/wav"

// Clip is a finished recording
type Clip struct {
	Data        []byte
	ContentType string
	SampleRate  int
	Channels    int
	Duration    time.Duration
}

// Open returns a reader over the clip data
func (c *Clip) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(c.Data)), nil
}

// Size returns the encoded size in bytes
func (c *Clip) Size() int64 {
	return int64(len(c.Data))
}

// Filename is the name used when uploading the clip
func (c *Clip) Filename() string {
	return "recording.wav"
}

// NewClip encodes 16-bit little endian PCM into a WAV clip.
func NewClip(pcm []byte, sampleRate, channels int) (*Clip, error) {
	if len(pcm) < bytesPerSample*channels {
		return nil, ErrNoAudio
	}
	data, err := EncodeWAV(pcm, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	frames := len(pcm) / (bytesPerSample * channels)
	return &Clip{
		Data:        data,
		ContentType: ContentTypeWAV,
		SampleRate:  sampleRate,
		Channels:    channels,
		Duration:    time.Duration(frames) * time.Second / time.Duration(sampleRate),
	}, nil
}
