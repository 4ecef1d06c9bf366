package device

import (
	"context"
	"io"
	"sync"

	"MoodCapture/pkg/errors"
)

// chunkTrack 预先装好数据块的音频轨道，行为接近实时麦克风：
// 数据读完后阻塞到 Stop
type chunkTrack struct {
	mu      sync.Mutex
	chunks  [][]byte
	mime    string
	stopped chan struct{}
	once    sync.Once
	onStop  func()
}

// NewChunkTrack onStop 在第一次 Stop 时调用，可为 nil
func NewChunkTrack(chunks [][]byte, mime string, onStop func()) AudioTrack {
	return &chunkTrack{chunks: chunks, mime: mime, stopped: make(chan struct{}), onStop: onStop}
}

func (t *chunkTrack) ReadChunk(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if len(t.chunks) > 0 {
		c := t.chunks[0]
		t.chunks = t.chunks[1:]
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	select {
	case <-t.stopped:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *chunkTrack) MimeType() string { return t.mime }

func (t *chunkTrack) Stop() {
	t.once.Do(func() {
		close(t.stopped)
		if t.onStop != nil {
			t.onStop()
		}
	})
}

// stillTrack 始终返回同一帧的视频轨道，停止后返回 CaptureNotReady
type stillTrack struct {
	frame   Frame
	mu      sync.Mutex
	stopped bool
	onStop  func()
}

func NewStillTrack(frame Frame, onStop func()) VideoTrack {
	return &stillTrack{frame: frame, onStop: onStop}
}

func (t *stillTrack) Frame() (Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return Frame{}, errors.WithKind(errors.KindCaptureNotReady, "video track stopped")
	}
	return t.frame, nil
}

func (t *stillTrack) Stop() {
	t.mu.Lock()
	already := t.stopped
	t.stopped = true
	t.mu.Unlock()
	if !already && t.onStop != nil {
		t.onStop()
	}
}
