// Package devicetest 提供测试用的可控设备驱动
package devicetest

import (
	"context"
	"sync"

	"MoodCapture/pkg/device"
)

// FakeDriver 可控的测试驱动：权限、可用性、帧尺寸以及挂起获取的闸门
type FakeDriver struct {
	// Gate 非 nil 时 Open* 阻塞到 Gate 可读（或被关闭）或 ctx 结束
	Gate      chan struct{}
	AudioErr  error
	VideoErr  error
	Chunks    [][]byte
	AudioMime string
	// StallAudio 音频轨道在 Stop 后仍不返回 EOF，只有 ctx 结束才返回
	StallAudio bool
	Width      int
	Height     int
	FrameData  []byte
	FrameMime  string

	mu      sync.Mutex
	opened  map[device.Kind]int
	stopped map[device.Kind]int
}

func (f *FakeDriver) OpenAudio(ctx context.Context) (device.AudioTrack, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.AudioErr != nil {
		return nil, f.AudioErr
	}
	f.count(device.KindAudio, &f.opened)
	chunks := make([][]byte, len(f.Chunks))
	copy(chunks, f.Chunks)
	mimeType := f.AudioMime
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	onStop := func() { f.count(device.KindAudio, &f.stopped) }
	if f.StallAudio {
		return &stallTrack{chunks: chunks, mime: mimeType, onStop: onStop}, nil
	}
	return device.NewChunkTrack(chunks, mimeType, onStop), nil
}

func (f *FakeDriver) OpenVideo(ctx context.Context) (device.VideoTrack, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.VideoErr != nil {
		return nil, f.VideoErr
	}
	f.count(device.KindVideo, &f.opened)
	data := f.FrameData
	if data == nil {
		data = []byte("jpeg-frame")
	}
	mimeType := f.FrameMime
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	frame := device.Frame{Width: f.Width, Height: f.Height, Data: data, MimeType: mimeType}
	return device.NewStillTrack(frame, func() { f.count(device.KindVideo, &f.stopped) }), nil
}

func (f *FakeDriver) wait(ctx context.Context) error {
	if f.Gate == nil {
		return ctx.Err()
	}
	select {
	case <-f.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeDriver) count(kind device.Kind, m *map[device.Kind]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *m == nil {
		*m = make(map[device.Kind]int)
	}
	(*m)[kind]++
}

// Opened 成功打开的次数
func (f *FakeDriver) Opened(kind device.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[kind]
}

// Stopped 轨道被停止的次数
func (f *FakeDriver) Stopped(kind device.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped[kind]
}

// Open 仍未停止的轨道数
func (f *FakeDriver) Open(kind device.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[kind] - f.stopped[kind]
}

// stallTrack 读完数据块后一直阻塞到 ctx 结束，模拟 Stop 后不收尾的驱动
type stallTrack struct {
	mu     sync.Mutex
	chunks [][]byte
	mime   string
	once   sync.Once
	onStop func()
}

func (t *stallTrack) ReadChunk(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if len(t.chunks) > 0 {
		c := t.chunks[0]
		t.chunks = t.chunks[1:]
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (t *stallTrack) MimeType() string { return t.mime }

func (t *stallTrack) Stop() { t.once.Do(t.onStop) }
