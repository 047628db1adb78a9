package recorder

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
)

const (
	drainInterval    = 50 * time.Millisecond
	ringBufferWindow = 2 * time.Second
)

// DeviceInfo describes a capture device
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// MalgoMicrophone captures from a sound card through miniaudio.
type MalgoMicrophone struct {
	config Config
	log    logger.Logger
	inUse  atomic.Bool
}

// NewMalgoMicrophone creates a microphone for the configured device
func NewMalgoMicrophone(config Config, log logger.Logger) *MalgoMicrophone {
	if log == nil {
		log = logger.Global().Module("recorder")
	}
	return &MalgoMicrophone{config: config.withDefaults(), log: log}
}

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.New(ErrUnsupported).
			Component("recorder").
			Category(errors.CategoryUnsupported).
			Context("os", runtime.GOOS).
			Build()
	}
}

// Open initializes the device and starts capturing.
func (m *MalgoMicrophone) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.inUse.CompareAndSwap(false, true) {
		return nil, classify(ErrBusy, "open")
	}

	s, err := m.open()
	if err != nil {
		m.inUse.Store(false)
		return nil, err
	}
	return s, nil
}

func (m *MalgoMicrophone) open() (*malgoStream, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, classify(err, "init_context")
	}
	release := func() {
		_ = mctx.Uninit()
		mctx.Free()
	}

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		release()
		return nil, classify(err, "enumerate_devices")
	}
	info, err := selectDevice(devices, m.config.Device)
	if err != nil {
		release()
		return nil, err
	}

	cfg := m.config
	s := &malgoStream{
		owner:  m,
		mctx:   mctx,
		config: cfg,
		ring:   ringbuffer.New(int(ringBufferWindow.Seconds()) * cfg.bytesPerSecond()),
		limit:  int(cfg.MaxDuration.Seconds() * float64(cfg.bytesPerSecond())),
		done:   make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.Capture.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: s.onData})
	if err != nil {
		release()
		return nil, classify(err, "init_device")
	}
	if device.CaptureFormat() != malgo.FormatS16 {
		device.Uninit()
		release()
		return nil, classify(ErrFormat, "init_device")
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		release()
		return nil, classify(err, "start_device")
	}

	s.wg.Go(s.drain)

	m.log.Info("capture started",
		logger.String("device", info.Name()),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("channels", cfg.Channels))
	return s, nil
}

// selectDevice finds a device by name or decoded ID; empty selects the default.
func selectDevice(devices []malgo.DeviceInfo, want string) (*malgo.DeviceInfo, error) {
	if len(devices) == 0 {
		return nil, classify(ErrNoDevice, "select_device")
	}
	if want == "" || want == "default" || want == "sysdefault" {
		for i := range devices {
			if devices[i].IsDefault == 1 {
				return &devices[i], nil
			}
		}
		return &devices[0], nil
	}
	for i := range devices {
		if devices[i].Name() == want || decodeID(devices[i].ID.String()) == want {
			return &devices[i], nil
		}
	}
	return nil, errors.New(ErrNoDevice).
		Component("recorder").
		Category(errors.CategoryNotFound).
		Context("device", want).
		Build()
}

// decodeID turns the hex encoded ALSA ID ("hw:1,0") back into text.
func decodeID(id string) string {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return id
	}
	return strings.TrimRight(string(raw), "\x00")
}

// ListDevices returns the available capture devices
func ListDevices() ([]DeviceInfo, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}
	mctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, classify(err, "init_context")
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, classify(err, "enumerate_devices")
	}
	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodeID(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

// malgoStream buffers device callbacks in a ring buffer that a drain
// goroutine empties into the PCM buffer.
type malgoStream struct {
	owner  *MalgoMicrophone
	mctx   *malgo.AllocatedContext
	device *malgo.Device
	config Config
	ring   *ringbuffer.RingBuffer

	mu      sync.Mutex
	pcm     bytes.Buffer
	limit   int
	dropped atomic.Int64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// onData runs on the audio thread and must not block.
func (s *malgoStream) onData(_, samples []byte, _ uint32) {
	if n, err := s.ring.Write(samples); err != nil {
		s.dropped.Add(int64(len(samples) - n))
	}
}

func (s *malgoStream) drain() {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.drainOnce()
		}
	}
}

func (s *malgoStream) drainOnce() {
	n := s.ring.Length()
	if n == 0 {
		return
	}
	chunk := make([]byte, n)
	read, err := s.ring.Read(chunk)
	if err != nil && read == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.limit - s.pcm.Len()
	if room <= 0 {
		s.dropped.Add(int64(read))
		return
	}
	if read > room {
		s.dropped.Add(int64(read - room))
		read = room
	}
	s.pcm.Write(chunk[:read])
}

// stop halts the device, joins the drain goroutine and frees miniaudio.
func (s *malgoStream) stop() {
	s.stopOnce.Do(func() {
		_ = s.device.Stop()
		close(s.done)
		s.wg.Wait()
		s.drainOnce()
		s.device.Uninit()
		_ = s.mctx.Uninit()
		s.mctx.Free()
		s.owner.inUse.Store(false)

		if d := s.dropped.Load(); d > 0 {
			s.owner.log.Warn("capture dropped audio", logger.Int64("bytes", d))
		}
	})
}

func (s *malgoStream) Finish() (*Clip, error) {
	s.stop()

	s.mu.Lock()
	pcm := s.pcm.Bytes()
	s.mu.Unlock()

	clip, err := NewClip(pcm, s.config.SampleRate, s.config.Channels)
	if err != nil {
		return nil, errors.New(err).
			Component("recorder").
			Category(errors.CategoryAudio).
			Context("operation", "finish").
			Context("pcm_bytes", len(pcm)).
			Build()
	}
	s.owner.log.Info("capture finished",
		logger.Duration("duration", clip.Duration),
		logger.Int("bytes", len(clip.Data)))
	return clip, nil
}

func (s *malgoStream) Close() error {
	s.stop()
	return nil
}

// classify maps miniaudio results to the recorder error kinds.
func classify(err error, operation string) error {
	category, kind := kindOf(err)
	if kind != nil && !errors.Is(err, kind) {
		err = fmt.Errorf("%w: %w", kind, err)
	}
	return errors.New(err).
		Component("recorder").
		Category(category).
		Context("operation", operation).
		Build()
}

func kindOf(err error) (errors.ErrorCategory, error) {
	switch {
	case errors.Is(err, ErrPermission), errors.Is(err, malgo.ErrAccessDenied):
		return errors.CategoryPermission, ErrPermission
	case errors.Is(err, ErrNoDevice), errors.Is(err, malgo.ErrNoDevice), errors.Is(err, malgo.ErrDoesNotExist):
		return errors.CategoryNotFound, ErrNoDevice
	case errors.Is(err, ErrBusy), errors.Is(err, malgo.ErrBusy), errors.Is(err, malgo.ErrAlreadyInUse),
		errors.Is(err, malgo.ErrFailedToOpenBackendDevice):
		return errors.CategoryDeviceBusy, ErrBusy
	case errors.Is(err, ErrFormat), errors.Is(err, malgo.ErrFormatNotSupported),
		errors.Is(err, malgo.ErrShareModeNotSupported), errors.Is(err, malgo.ErrInvalidDeviceConfig):
		return errors.CategoryAudio, ErrFormat
	case errors.Is(err, ErrUnsupported), errors.Is(err, malgo.ErrNoBackend), errors.Is(err, malgo.ErrAPINotFound),
		errors.Is(err, malgo.ErrFailedToInitBackend), errors.Is(err, malgo.ErrDeviceTypeNotSupported):
		return errors.CategoryUnsupported, ErrUnsupported
	}
	return errors.CategoryAudio, nil
}
