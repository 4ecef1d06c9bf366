package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync/atomic"
	"time"

	"MoodCapture/pkg/capture"
	"MoodCapture/pkg/errors"

	"github.com/sirupsen/logrus"
)

const (
	MissingText     = "text"
	MissingAudio    = "audio"
	MissingImage    = "image"
	MissingIdentity = "identity"
)

// Identity 显式传入的登录身份
type Identity struct {
	Token string
}

// Source 提交内容的来源，capture.Session 实现了它
type Source interface {
	Text() string
	AudioArtifact() *capture.Artifact
	ImageArtifact() *capture.Artifact
	// ResetSubmitted 成功后只清掉本次提交的快照内容
	ResetSubmitted(text string, audio, image *capture.Artifact)
}

// Entry 服务端保存的心情记录
type Entry struct {
	ID        uint      `json:"id"`
	User      uint      `json:"user"`
	Text      string    `json:"mood_text"`
	Audio     *string   `json:"mood_audio"`
	Image     *string   `json:"mood_image"`
	AudioURL  string    `json:"mood_audio_url,omitempty"`
	ImageURL  string    `json:"mood_image_url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result 201 响应
type Result struct {
	Message string `json:"message"`
	Mood    Entry  `json:"mood"`
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logrus.Logger
	// OnComplete 提交成功、会话重置之后调用
	OnComplete func(*Result)
}

// Coordinator 提交闸门：三项输入和身份齐全才发起一次 multipart 请求，不重试
type Coordinator struct {
	identity Identity
	source   Source
	endpoint string
	client   *http.Client
	log      *logrus.Logger
	onDone   func(*Result)
	inFlight atomic.Bool
}

func NewCoordinator(identity Identity, source Source, opts Options) *Coordinator {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Coordinator{
		identity: identity,
		source:   source,
		endpoint: strings.TrimRight(opts.BaseURL, "/") + "/api/mood",
		client:   opts.HTTPClient,
		log:      opts.Logger,
		onDone:   opts.OnComplete,
	}
}

// Missing 按 text, audio, image, identity 顺序列出缺少的输入
func (c *Coordinator) Missing() []string {
	return c.missing(c.source.Text(), c.source.AudioArtifact(), c.source.ImageArtifact())
}

func (c *Coordinator) missing(text string, audio, image *capture.Artifact) []string {
	var out []string
	if strings.TrimSpace(text) == "" {
		out = append(out, MissingText)
	}
	if audio == nil {
		out = append(out, MissingAudio)
	}
	if image == nil {
		out = append(out, MissingImage)
	}
	if strings.TrimSpace(c.identity.Token) == "" {
		out = append(out, MissingIdentity)
	}
	return out
}

func (c *Coordinator) CanSubmit() bool {
	return len(c.Missing()) == 0
}

// InFlight 是否有提交正在进行
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Submit 校验失败时不发任何请求；请求失败时保留采集结果，成功后清掉已提交的内容
func (c *Coordinator) Submit(ctx context.Context) (*Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, errors.WithKind(errors.KindInvalidTransition, "submission already in flight")
	}
	defer c.inFlight.Store(false)

	// 先取快照，之后会话的改动不影响本次提交
	text := c.source.Text()
	audio := c.source.AudioArtifact()
	image := c.source.ImageArtifact()

	if missing := c.missing(text, audio, image); len(missing) > 0 {
		return nil, errors.WrapKind(errors.KindValidationFailed, errors.ErrValidationFailed,
			"missing "+strings.Join(missing, ", ")).WithContext("missing", strings.Join(missing, ","))
	}

	body, contentType, err := encode(text, audio, image)
	if err != nil {
		return nil, errors.WrapKind(errors.KindSubmissionFailed, err, "encode submission")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, errors.WrapKind(errors.KindSubmissionFailed, err, "build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.identity.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("mood submission failed")
		return nil, errors.WrapKind(errors.KindSubmissionFailed, err, "send submission")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.WrapKind(errors.KindSubmissionFailed, err, "read response")
	}

	if resp.StatusCode != http.StatusCreated {
		msg := serverMessage(raw, resp.Status)
		c.log.WithFields(logrus.Fields{"status": resp.StatusCode, "message": msg}).Warn("mood submission rejected")
		e := errors.WithKind(errors.KindSubmissionFailed, msg)
		e.Code = resp.StatusCode
		return nil, e
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.WrapKind(errors.KindSubmissionFailed, err, "decode response")
	}

	c.source.ResetSubmitted(text, audio, image)
	c.log.WithField("mood_id", res.Mood.ID).Info("mood submitted")
	if c.onDone != nil {
		c.onDone(&res)
	}
	return &res, nil
}

// serverMessage 原样取出服务端的 message 字段
func serverMessage(raw []byte, status string) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return status
}

func encode(text string, audio, image *capture.Artifact) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("mood_text", text); err != nil {
		return nil, "", err
	}
	parts := []struct {
		field string
		a     *capture.Artifact
	}{{"mood_audio", audio}, {"mood_image", image}}
	for _, p := range parts {
		field, a := p.field, p.a
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, a.Filename()))
		h.Set("Content-Type", a.MimeType())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, a.Reader()); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
