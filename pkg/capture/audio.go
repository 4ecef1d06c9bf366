package capture

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"MoodCapture/pkg/device"
	"MoodCapture/pkg/errors"

	"github.com/sirupsen/logrus"
)

type AudioState string

const (
	AudioIdle      AudioState = "IDLE"
	AudioRecording AudioState = "RECORDING"
)

// stopGrace 停止后等待轨道读完的时间，超时则取消读取
const stopGrace = 2 * time.Second

type recording struct {
	chunks [][]byte
	mime   string
}

// AudioRecorder 麦克风状态机：Idle -> Recording -> Idle(附带录音)
type AudioRecorder struct {
	mgr   *device.Manager
	owner string
	log   *logrus.Logger
	grace time.Duration

	mu       sync.Mutex
	state    AudioState
	pending  bool
	epoch    uint64
	closed   bool
	stream   *device.Stream
	done     chan recording
	cancel   context.CancelFunc
	artifact *Artifact
}

func NewAudioRecorder(mgr *device.Manager, owner string, log *logrus.Logger) *AudioRecorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AudioRecorder{mgr: mgr, owner: owner, log: log, grace: stopGrace, state: AudioIdle}
}

// Start 只能从 Idle 开始；获取失败时保持 Idle，成功后丢弃之前的录音
func (r *AudioRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.closed:
		r.mu.Unlock()
		return errors.WithKind(errors.KindInvalidTransition, "recorder closed")
	case r.pending:
		r.mu.Unlock()
		return errors.WithKind(errors.KindInvalidTransition, "microphone acquisition already pending")
	case r.state != AudioIdle:
		r.mu.Unlock()
		return errors.WithKindf(errors.KindInvalidTransition, "cannot start recording from %s", r.state)
	}
	r.pending = true
	epoch := r.epoch
	r.mu.Unlock()

	stream, err := r.mgr.Acquire(ctx, device.KindAudio, r.owner)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = false
	if err != nil {
		return err
	}
	if r.closed || r.epoch != epoch {
		stream.Release()
		return errors.WithKind(errors.KindInvalidTransition, "recorder reset while acquiring microphone")
	}

	r.artifact = nil
	r.stream = stream
	r.state = AudioRecording
	r.done = make(chan recording, 1)
	var collectCtx context.Context
	collectCtx, r.cancel = context.WithCancel(context.Background())
	go collect(collectCtx, stream.Audio(), r.done, r.log)
	r.log.WithField("owner", r.owner).Debug("recording started")
	return nil
}

// collect 持续读取音频块，轨道读完或 ctx 取消后把已读到的结果交回
func collect(ctx context.Context, track device.AudioTrack, done chan<- recording, log *logrus.Logger) {
	rec := recording{mime: track.MimeType()}
	for {
		chunk, err := track.ReadChunk(ctx)
		if err != nil {
			switch {
			case stderrors.Is(err, io.EOF):
			case ctx.Err() != nil:
				log.Warn("audio track did not finish after stop, keeping chunks read so far")
			default:
				log.WithError(err).Warn("audio chunk read failed")
			}
			break
		}
		if len(chunk) > 0 {
			rec.chunks = append(rec.chunks, chunk)
		}
	}
	done <- rec
}

// Stop 只在 Recording 时有效，其他状态为空操作。释放麦克风后生成录音
func (r *AudioRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != AudioRecording {
		return nil
	}
	rec := r.finish()
	if size(rec.chunks) == 0 {
		return errors.WithKind(errors.KindCaptureNotReady, "recording is empty")
	}
	r.artifact = NewArtifact(device.KindAudio, join(rec.chunks), rec.mime)
	r.log.WithFields(logrus.Fields{"owner": r.owner, "bytes": r.artifact.Size()}).Debug("recording stopped")
	return nil
}

// finish 释放流并等待收集协程退出，调用方持有锁。
// 轨道在 grace 内没有读完就取消读取，锁最多被占用 grace 时长
func (r *AudioRecorder) finish() recording {
	r.stream.Release()
	var rec recording
	timer := time.NewTimer(r.grace)
	select {
	case rec = <-r.done:
		timer.Stop()
	case <-timer.C:
		r.cancel()
		rec = <-r.done
	}
	r.cancel()
	r.stream = nil
	r.done = nil
	r.cancel = nil
	r.state = AudioIdle
	return rec
}

// Discard 丢弃录音，正在录制时一并停止
func (r *AudioRecorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// DiscardIf 仅当录音仍是 a 时丢弃，之后的新录音或进行中的录制不受影响
func (r *AudioRecorder) DiscardIf(a *Artifact) bool {
	if a == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.artifact != a {
		return false
	}
	r.artifact = nil
	return true
}

func (r *AudioRecorder) reset() {
	r.epoch++
	if r.state == AudioRecording {
		r.finish()
	}
	r.artifact = nil
}

// Close 释放设备，之后不能再开始录音
func (r *AudioRecorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.reset()
}

func (r *AudioRecorder) State() AudioState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *AudioRecorder) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

func (r *AudioRecorder) Artifact() *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact
}

func size(chunks [][]byte) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}

func join(chunks [][]byte) []byte {
	out := make([]byte, 0, size(chunks))
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
