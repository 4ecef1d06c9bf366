package device

import (
	"context"
	"fmt"
	"sync"

	"MoodCapture/pkg/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind 设备类型
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Label 面向用户的设备名，对应 i18n 键 device_<label>
func (k Kind) Label() string {
	if k == KindVideo {
		return "camera"
	}
	return "microphone"
}

// Track 打开的设备轨道
type Track interface {
	Stop()
}

// AudioTrack 麦克风轨道，按块产出已编码音频
type AudioTrack interface {
	Track
	// ReadChunk 返回下一块数据；Stop 之后把剩余数据读完再返回 io.EOF
	ReadChunk(ctx context.Context) ([]byte, error)
	MimeType() string
}

// Frame 一帧静态画面
type Frame struct {
	Width    int
	Height   int
	Data     []byte
	MimeType string
}

// VideoTrack 摄像头轨道
type VideoTrack interface {
	Track
	Frame() (Frame, error)
}

// Driver 平台设备接口。Open* 可能因为权限弹窗而长时间阻塞
type Driver interface {
	OpenAudio(ctx context.Context) (AudioTrack, error)
	OpenVideo(ctx context.Context) (VideoTrack, error)
}

// Stream 已获取的设备流
type Stream struct {
	ID    string
	Kind  Kind
	Owner string

	track    Track
	mgr      *Manager
	released bool // 由 mgr.mu 保护
}

// Audio 音频轨道，视频流返回 nil
func (s *Stream) Audio() AudioTrack {
	t, _ := s.track.(AudioTrack)
	return t
}

// Video 视频轨道，音频流返回 nil
func (s *Stream) Video() VideoTrack {
	t, _ := s.track.(VideoTrack)
	return t
}

func (s *Stream) Release() {
	s.mgr.Release(s)
}

func (s *Stream) Released() bool {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	return s.released
}

// Manager 设备资源管理，同一类型同时最多一个活动流
type Manager struct {
	driver Driver
	log    *logrus.Logger

	mu      sync.Mutex
	live    map[Kind]*Stream
	pending map[Kind]bool
	epoch   uint64
	closed  bool
}

func NewManager(driver Driver, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		driver:  driver,
		log:     log,
		live:    make(map[Kind]*Stream),
		pending: make(map[Kind]bool),
	}
}

// Acquire 打开设备。驱动调用在锁外进行，期间同类型的再次获取返回 DeviceBusy
func (m *Manager) Acquire(ctx context.Context, kind Kind, owner string) (*Stream, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.WithKind(errors.KindDeviceUnavailable, "device manager closed")
	}
	if m.live[kind] != nil || m.pending[kind] {
		m.mu.Unlock()
		return nil, errors.WrapKind(errors.KindDeviceBusy, errors.ErrDeviceBusy, fmt.Sprintf("acquire %s", kind))
	}
	m.pending[kind] = true
	epoch := m.epoch
	m.mu.Unlock()

	track, err := m.open(ctx, kind)

	m.mu.Lock()
	delete(m.pending, kind)
	if err != nil {
		m.mu.Unlock()
		err = classify(kind, err)
		m.log.WithFields(logrus.Fields{"kind": kind, "owner": owner}).WithError(err).Warn("device acquisition failed")
		return nil, err
	}
	// 等待期间发生了 ReleaseAll 或 Close，结果作废并立即释放
	if m.closed || m.epoch != epoch || ctx.Err() != nil {
		track.Stop()
		m.mu.Unlock()
		m.log.WithFields(logrus.Fields{"kind": kind, "owner": owner}).Debug("late acquisition released")
		return nil, errors.WithKindf(errors.KindDeviceUnavailable, "%s acquisition abandoned", kind)
	}
	s := &Stream{ID: uuid.NewString(), Kind: kind, Owner: owner, track: track, mgr: m}
	m.live[kind] = s
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"kind": kind, "owner": owner, "stream": s.ID}).Debug("device acquired")
	return s, nil
}

func (m *Manager) open(ctx context.Context, kind Kind) (Track, error) {
	switch kind {
	case KindAudio:
		return m.driver.OpenAudio(ctx)
	case KindVideo:
		return m.driver.OpenVideo(ctx)
	default:
		return nil, fmt.Errorf("unknown device kind %q", kind)
	}
}

// classify 只保留 PermissionDenied，其余失败一律视为 DeviceUnavailable
func classify(kind Kind, err error) error {
	if errors.KindOf(err) == errors.KindPermissionDenied {
		return errors.Wrap(err, fmt.Sprintf("acquire %s", kind))
	}
	return errors.WrapKind(errors.KindDeviceUnavailable, err, fmt.Sprintf("acquire %s", kind))
}

// Release 幂等，只影响传入的流
func (m *Manager) Release(s *Stream) {
	if s == nil {
		return
	}
	m.mu.Lock()
	if s.released {
		m.mu.Unlock()
		return
	}
	s.released = true
	if m.live[s.Kind] == s {
		delete(m.live, s.Kind)
	}
	// 持锁停止，保证同类型的下一次打开发生在本轨道停止之后
	s.track.Stop()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"kind": s.Kind, "owner": s.Owner, "stream": s.ID}).Debug("device released")
}

// Live 当前是否持有该类型的流
func (m *Manager) Live(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[kind] != nil
}

// Pending 该类型是否有正在进行的获取
func (m *Manager) Pending(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[kind]
}

// ReleaseAll 同步释放所有流，进行中的获取完成后会被立即释放
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	m.epoch++
	streams := make([]*Stream, 0, len(m.live))
	for _, s := range m.live {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	for _, s := range streams {
		m.Release(s)
	}
}

// Close 释放所有流，之后的 Acquire 均失败
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.ReleaseAll()
}
