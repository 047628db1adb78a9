package recorder

import (
	"context"
	"sync"
	"sync/atomic"
)

// FakeMicrophone is a scriptable Microphone for tests and for running
// without audio hardware.
type FakeMicrophone struct {
	mu       sync.Mutex
	openErr  error
	finalErr error
	pcm      []byte
	config   Config

	opens  atomic.Int32
	open   atomic.Int32 // streams not yet finished or closed
	closed atomic.Int32
}

// NewFakeMicrophone returns a microphone that records one second of silence.
func NewFakeMicrophone() *FakeMicrophone {
	cfg := Config{}.withDefaults()
	return &FakeMicrophone{config: cfg, pcm: make([]byte, cfg.bytesPerSecond())}
}

// FailOpen makes the next Open calls return err
func (f *FakeMicrophone) FailOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

// FailFinish makes Finish return err after releasing the stream
func (f *FakeMicrophone) FailFinish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalErr = err
}

// Opens returns how many streams were opened
func (f *FakeMicrophone) Opens() int { return int(f.opens.Load()) }

// Held reports whether a stream is still holding the device
func (f *FakeMicrophone) Held() bool { return f.open.Load() > 0 }

// Closed returns how many streams were discarded with Close
func (f *FakeMicrophone) Closed() int { return int(f.closed.Load()) }

func (f *FakeMicrophone) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, classify(f.openErr, "open")
	}
	if f.open.Load() > 0 {
		return nil, classify(ErrBusy, "open")
	}
	f.opens.Add(1)
	f.open.Add(1)
	return &fakeStream{mic: f}, nil
}

type fakeStream struct {
	mic  *FakeMicrophone
	once sync.Once
}

func (s *fakeStream) release() bool {
	released := false
	s.once.Do(func() {
		s.mic.open.Add(-1)
		released = true
	})
	return released
}

func (s *fakeStream) Finish() (*Clip, error) {
	if !s.release() {
		return nil, classify(ErrNoAudio, "finish")
	}
	s.mic.mu.Lock()
	finalErr, pcm, cfg := s.mic.finalErr, s.mic.pcm, s.mic.config
	s.mic.mu.Unlock()
	if finalErr != nil {
		return nil, classify(finalErr, "finish")
	}
	return NewClip(pcm, cfg.SampleRate, cfg.Channels)
}

func (s *fakeStream) Close() error {
	if s.release() {
		s.mic.closed.Add(1)
	}
	return nil
}
