package device

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"MoodCapture/pkg/errors"
)

const defaultChunkSize = 16 << 10

// 系统 mime 表里常缺少音频扩展名，或把 .webm 记为视频
var audioTypes = map[string]string{
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
}

// FileDriver 用本地文件回放麦克风和摄像头，供 moodctl 使用
type FileDriver struct {
	AudioPath string
	ImagePath string
	ChunkSize int
}

func (d *FileDriver) OpenAudio(ctx context.Context) (AudioTrack, error) {
	data, mimeType, err := d.load(ctx, d.AudioPath, KindAudio)
	if err != nil {
		return nil, err
	}
	size := d.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return NewChunkTrack(chunks, mimeType, nil), nil
}

func (d *FileDriver) OpenVideo(ctx context.Context) (VideoTrack, error) {
	data, mimeType, err := d.load(ctx, d.ImagePath, KindVideo)
	if err != nil {
		return nil, err
	}
	frame := Frame{Data: data, MimeType: mimeType}
	// 无法解码时尺寸为 0，拍照会得到 CaptureNotReady
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		frame.Width, frame.Height = cfg.Width, cfg.Height
	}
	return NewStillTrack(frame, nil), nil
}

func (d *FileDriver) load(ctx context.Context, path string, kind Kind) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if path == "" {
		return nil, "", errors.WithKindf(errors.KindDeviceUnavailable, "no %s source configured", kind.Label())
	}
	data, err := os.ReadFile(path)
	switch {
	case stderrors.Is(err, os.ErrPermission):
		return nil, "", errors.WrapKind(errors.KindPermissionDenied, err, fmt.Sprintf("open %s source", kind.Label()))
	case err != nil:
		return nil, "", errors.WrapKind(errors.KindDeviceUnavailable, err, fmt.Sprintf("open %s source", kind.Label()))
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := mime.TypeByExtension(ext)
	if kind == KindAudio && audioTypes[ext] != "" {
		mimeType = audioTypes[ext]
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
