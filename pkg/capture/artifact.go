package capture

import (
	"bytes"
	"io"
	"time"

	"MoodCapture/pkg/device"
)

// Artifact 采集结果，创建后不可修改，只能整体替换
type Artifact struct {
	kind      device.Kind
	data      []byte
	mimeType  string
	createdAt time.Time
}

func NewArtifact(kind device.Kind, data []byte, mimeType string) *Artifact {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Artifact{kind: kind, data: buf, mimeType: mimeType, createdAt: time.Now()}
}

func (a *Artifact) Kind() device.Kind    { return a.kind }
func (a *Artifact) MimeType() string     { return a.mimeType }
func (a *Artifact) Size() int64          { return int64(len(a.data)) }
func (a *Artifact) CreatedAt() time.Time { return a.createdAt }

// Reader 每次返回新的只读 reader
func (a *Artifact) Reader() io.Reader { return bytes.NewReader(a.data) }

// Bytes 返回数据副本
func (a *Artifact) Bytes() []byte {
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out
}

// Filename 上传用的文件名，audio.webm / image.jpg
func (a *Artifact) Filename() string {
	base := "audio"
	if a.kind == device.KindVideo {
		base = "image"
	}
	return base + extensionOf(a.mimeType)
}

var extensions = map[string]string{
	"audio/webm": ".webm",
	"audio/ogg":  ".ogg",
	"audio/wav":  ".wav",
	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func extensionOf(mimeType string) string {
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	return ".bin"
}
