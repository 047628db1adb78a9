package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/recorder"
)

// durationTicker counts whole seconds of recording on its own goroutine.
type durationTicker struct {
	seconds atomic.Int64
	done    chan struct{}
	wg      sync.WaitGroup
}

func startTicker(interval time.Duration) *durationTicker {
	t := &durationTicker{done: make(chan struct{})}
	t.wg.Go(func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-tk.C:
				t.seconds.Add(1)
			}
		}
	})
	return t
}

// stop halts the goroutine and returns the frozen count.
func (t *durationTicker) stop() int {
	close(t.done)
	t.wg.Wait()
	return int(t.seconds.Load())
}

func (s *Session) durationLocked() int {
	if s.ticker != nil {
		return int(s.ticker.seconds.Load())
	}
	return s.duration
}

// StartRecording opens the microphone. On failure the state stays idle and
// the error names the cause (unsupported, permission, no device, busy,
// format). The lock is released while the device opens, so snapshots and
// Discard are served during a slow permission prompt.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkMutable("start_recording"); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.mode != InputAudio {
		s.mu.Unlock()
		return fail(ErrInvalidState, errors.CategoryState, i18n.MsgAudioModeRequired)
	}
	if s.starting || s.recording != RecordingIdle {
		s.mu.Unlock()
		return invalidState("start_recording")
	}
	if s.deps.Microphone == nil {
		s.recordOutcome("unsupported")
		s.mu.Unlock()
		return microphoneError(recorder.ErrUnsupported)
	}
	s.starting = true
	mic := s.deps.Microphone
	s.mu.Unlock()

	stream, err := mic.Open(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		mapped := microphoneError(err)
		s.recordOutcome(openFailureResult(err))
		s.log.Warn("microphone open failed",
			logger.String("notice", string(MessageID(mapped))),
			logger.Error(err))
		return mapped
	}
	if s.lifecycle != LifecycleActive || s.recording != RecordingIdle {
		if cerr := stream.Close(); cerr != nil {
			s.log.Debug("failed to close microphone stream", logger.Error(cerr))
		}
		if s.lifecycle != LifecycleActive {
			return closed()
		}
		return invalidState("start_recording")
	}

	s.stream = stream
	s.recording = RecordingActive
	s.duration = 0
	s.ticker = startTicker(s.tick)
	s.notice = i18n.MsgRecordingStarted
	s.log.Debug("recording started")
	return nil
}

// StopRecording finalises the audio and releases the microphone. If the
// audio cannot be finalised the device is still released and the state
// returns to idle.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle != LifecycleActive {
		return closed()
	}
	if s.recording != RecordingActive {
		return invalidState("stop_recording")
	}

	seconds := s.ticker.stop()
	s.ticker = nil
	stream := s.stream
	s.stream = nil

	clip, err := stream.Finish()
	if err != nil {
		_ = stream.Close()
		s.recording = RecordingIdle
		s.duration = 0
		s.recordOutcome("failed")
		s.log.Warn("failed to finalise recording", logger.Error(err))
		return failWith(ErrNoAudio, err, errors.CategoryAudio, i18n.MsgNoAudio, "stop_recording")
	}

	s.clip = clip
	s.duration = seconds
	s.recording = RecordingDone
	s.notice = i18n.MsgRecordingSaved
	s.recordOutcome("saved")
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordingDuration.Observe(clip.Duration.Seconds())
	}
	s.log.Info("recording saved",
		logger.Int("seconds", seconds),
		logger.Int64("bytes", clip.Size()))
	return nil
}

// ResetRecording discards the recorded audio.
func (s *Session) ResetRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable("reset_recording"); err != nil {
		return err
	}
	if s.recording != RecordingDone {
		return invalidState("reset_recording")
	}
	s.clip = nil
	s.duration = 0
	s.recording = RecordingIdle
	s.notice = i18n.MsgRecordingReset
	return nil
}

// releaseMicrophoneLocked stops an active recording without keeping audio.
func (s *Session) releaseMicrophoneLocked() {
	if s.ticker != nil {
		s.ticker.stop()
		s.ticker = nil
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.log.Debug("failed to close microphone stream", logger.Error(err))
		}
		s.stream = nil
	}
	if s.recording == RecordingActive {
		s.recording = RecordingIdle
		s.duration = 0
	}
}

func (s *Session) recordOutcome(result string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Recordings.WithLabelValues(result).Inc()
	}
}

func openFailureResult(err error) string {
	switch {
	case errors.Is(err, recorder.ErrPermission):
		return "permission"
	case errors.Is(err, recorder.ErrBusy):
		return "busy"
	case errors.Is(err, recorder.ErrNoDevice):
		return "no_device"
	case errors.Is(err, recorder.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, recorder.ErrFormat):
		return "format"
	}
	return "failed"
}
