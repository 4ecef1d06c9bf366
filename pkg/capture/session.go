package capture

import (
	"context"
	"sync"

	"MoodCapture/pkg/device"
	"MoodCapture/pkg/errors"
	"MoodCapture/pkg/i18n"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notice 可关闭的一条设备/采集提示
type Notice struct {
	Kind    errors.Kind
	Key     string
	Message string
}

var noticeKeys = map[errors.Kind]string{
	errors.KindPermissionDenied:  "notice_permission_denied",
	errors.KindDeviceUnavailable: "notice_device_unavailable",
	errors.KindDeviceBusy:        "notice_device_busy",
	errors.KindCaptureNotReady:   "notice_capture_not_ready",
	errors.KindInvalidTransition: "notice_invalid_transition",
}

// Options 会话可选项
type Options struct {
	Lang   string
	I18n   *i18n.I18nSupport
	Logger *logrus.Logger
}

// Session 一次心情采集：文字、录音和照片。设备错误只在本地变为提示，不会终止会话
type Session struct {
	ID     string
	Audio  *AudioRecorder
	Camera *Camera

	mgr  *device.Manager
	opts Options

	mu     sync.Mutex
	text   string
	notice *Notice
}

func NewSession(mgr *device.Manager, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	id := uuid.NewString()
	return &Session{
		ID:     id,
		Audio:  NewAudioRecorder(mgr, id+":audio", opts.Logger),
		Camera: NewCamera(mgr, id+":camera", opts.Logger),
		mgr:    mgr,
		opts:   opts,
	}
}

// SetText 与设备操作互不阻塞
func (s *Session) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *Session) AudioArtifact() *Artifact { return s.Audio.Artifact() }
func (s *Session) ImageArtifact() *Artifact { return s.Camera.Artifact() }

func (s *Session) StartRecording(ctx context.Context) error {
	return s.report(device.KindAudio, s.Audio.Start(ctx))
}

func (s *Session) StopRecording() error {
	return s.report(device.KindAudio, s.Audio.Stop())
}

func (s *Session) StartCamera(ctx context.Context) error {
	return s.report(device.KindVideo, s.Camera.Start(ctx))
}

func (s *Session) CaptureImage() error {
	return s.report(device.KindVideo, s.Camera.Capture())
}

func (s *Session) Retake(ctx context.Context) error {
	return s.report(device.KindVideo, s.Camera.Retake(ctx))
}

func (s *Session) RemoveImage() error {
	return s.report(device.KindVideo, s.Camera.Remove())
}

func (s *Session) StopCamera() {
	s.Camera.Stop()
}

// report 把设备和采集错误转成提示，错误原样返回
func (s *Session) report(kind device.Kind, err error) error {
	if err == nil {
		return nil
	}
	k := errors.KindOf(err)
	key, ok := noticeKeys[k]
	if !ok {
		return err
	}
	label := s.opts.I18n.T(s.opts.Lang, "device_"+kind.Label(), nil)
	n := &Notice{
		Kind:    k,
		Key:     key,
		Message: s.opts.I18n.T(s.opts.Lang, key, map[string]interface{}{"Device": label}),
	}
	s.mu.Lock()
	s.notice = n
	s.mu.Unlock()
	s.opts.Logger.WithFields(logrus.Fields{"session": s.ID, "kind": k.String()}).WithError(err).Info("capture notice")
	return err
}

// Notice 当前提示，没有时为 nil
func (s *Session) Notice() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

func (s *Session) DismissNotice() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
}

// Snapshot 会话状态的一致视图
type Snapshot struct {
	Text        string
	Audio       *Artifact
	Image       *Artifact
	AudioState  AudioState
	CameraState CameraState
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Text:        s.Text(),
		Audio:       s.Audio.Artifact(),
		Image:       s.Camera.Artifact(),
		AudioState:  s.Audio.State(),
		CameraState: s.Camera.State(),
	}
}

// Reset 提交成功后清空文字和采集结果并释放设备，会话可继续使用
func (s *Session) Reset() {
	s.Audio.Discard()
	s.Camera.Discard()
	s.mu.Lock()
	s.text = ""
	s.notice = nil
	s.mu.Unlock()
}

// ResetSubmitted 只清掉已提交的内容：提交期间新录的音、新拍的照片和改过的文字保留
func (s *Session) ResetSubmitted(text string, audio, image *Artifact) {
	s.Audio.DiscardIf(audio)
	s.Camera.DiscardIf(image)
	s.mu.Lock()
	if s.text == text {
		s.text = ""
	}
	s.notice = nil
	s.mu.Unlock()
}

// Close 离开页面时调用，同步释放所有设备
func (s *Session) Close() {
	s.Audio.Close()
	s.Camera.Close()
	s.mu.Lock()
	s.text = ""
	s.notice = nil
	s.mu.Unlock()
}
