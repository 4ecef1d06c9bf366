package capture

import (
	"context"
	"sync"

	"MoodCapture/pkg/device"
	"MoodCapture/pkg/errors"

	"github.com/sirupsen/logrus"
)

type CameraState string

const (
	CameraOff       CameraState = "OFF"
	CameraStreaming CameraState = "STREAMING"
	CameraCaptured  CameraState = "CAPTURED"
)

// Camera 摄像头状态机：Off -> Streaming -> Captured，可重拍或移除
type Camera struct {
	mgr   *device.Manager
	owner string
	log   *logrus.Logger

	mu       sync.Mutex
	state    CameraState
	pending  bool
	epoch    uint64
	closed   bool
	stream   *device.Stream
	artifact *Artifact
}

func NewCamera(mgr *device.Manager, owner string, log *logrus.Logger) *Camera {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Camera{mgr: mgr, owner: owner, log: log, state: CameraOff}
}

// Start 只能从 Off 开始，失败时保持 Off
func (c *Camera) Start(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkStart(CameraOff); err != nil {
		c.mu.Unlock()
		return err
	}
	return c.acquire(ctx)
}

// Retake 丢弃照片并重新打开摄像头
func (c *Camera) Retake(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkStart(CameraCaptured); err != nil {
		c.mu.Unlock()
		return err
	}
	c.artifact = nil
	c.state = CameraOff
	return c.acquire(ctx)
}

// checkStart 调用方持有锁
func (c *Camera) checkStart(from CameraState) error {
	switch {
	case c.closed:
		return errors.WithKind(errors.KindInvalidTransition, "camera closed")
	case c.pending:
		return errors.WithKind(errors.KindInvalidTransition, "camera acquisition already pending")
	case c.state != from:
		return errors.WithKindf(errors.KindInvalidTransition, "cannot start camera from %s", c.state)
	}
	return nil
}

// acquire 进入时持有锁，获取设备期间释放锁
func (c *Camera) acquire(ctx context.Context) error {
	c.pending = true
	epoch := c.epoch
	c.mu.Unlock()

	stream, err := c.mgr.Acquire(ctx, device.KindVideo, c.owner)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	if err != nil {
		c.state = CameraOff
		return err
	}
	if c.closed || c.epoch != epoch {
		stream.Release()
		return errors.WithKind(errors.KindInvalidTransition, "camera reset while acquiring")
	}
	c.stream = stream
	c.state = CameraStreaming
	c.log.WithField("owner", c.owner).Debug("camera streaming")
	return nil
}

// Capture 截取当前帧并立即释放摄像头。帧尺寸为 0 时返回 CaptureNotReady，状态与流保持不变
func (c *Camera) Capture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CameraStreaming {
		return errors.WithKindf(errors.KindInvalidTransition, "cannot capture from %s", c.state)
	}
	frame, err := c.stream.Video().Frame()
	if err != nil {
		return errors.WrapKind(errors.KindCaptureNotReady, err, "read frame")
	}
	if frame.Width == 0 || frame.Height == 0 || len(frame.Data) == 0 {
		return errors.WithKind(errors.KindCaptureNotReady, "frame has no dimensions")
	}
	c.artifact = NewArtifact(device.KindVideo, frame.Data, frame.MimeType)
	c.stream.Release()
	c.stream = nil
	c.state = CameraCaptured
	c.log.WithFields(logrus.Fields{"owner": c.owner, "width": frame.Width, "height": frame.Height}).Debug("image captured")
	return nil
}

// Remove 丢弃照片，回到 Off，不重新打开摄像头
func (c *Camera) Remove() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CameraCaptured {
		return errors.WithKindf(errors.KindInvalidTransition, "cannot remove image from %s", c.state)
	}
	c.artifact = nil
	c.state = CameraOff
	return nil
}

// Stop 关闭取景，Streaming 以外为空操作
func (c *Camera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CameraStreaming {
		c.release()
	}
}

func (c *Camera) release() {
	if c.stream != nil {
		c.stream.Release()
		c.stream = nil
	}
	c.state = CameraOff
}

// Discard 回到 Off 并丢弃照片
func (c *Camera) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.release()
	c.artifact = nil
}

// DiscardIf 仅当照片仍是 a 时丢弃并回到 Off，重拍后的照片或取景不受影响
func (c *Camera) DiscardIf(a *Artifact) bool {
	if a == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artifact != a || c.state != CameraCaptured {
		return false
	}
	c.artifact = nil
	c.state = CameraOff
	return true
}

func (c *Camera) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Discard()
}

func (c *Camera) State() CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Camera) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Camera) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}
