package handlers

import (
	"context"
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"MoodCapture/internal/models"
	"MoodCapture/pkg/errors"
	"MoodCapture/pkg/logger"
	"MoodCapture/pkg/middleware"
	"MoodCapture/pkg/response"
	"MoodCapture/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	fieldText  = "mood_text"
	fieldAudio = "mood_audio"
	fieldImage = "mood_image"
)

var fileFields = []string{fieldAudio, fieldImage}

// moodUpload 解析后的一次提交
type moodUpload struct {
	text  string
	files map[string]*multipart.FileHeader
}

func (u moodUpload) missing() []string {
	var out []string
	if strings.TrimSpace(u.text) == "" {
		out = append(out, "text")
	}
	if fh := u.files[fieldAudio]; fh == nil || fh.Size == 0 {
		out = append(out, "audio")
	}
	if fh := u.files[fieldImage]; fh == nil || fh.Size == 0 {
		out = append(out, "image")
	}
	return out
}

// handleCreateMood 先写文件再写记录，任一步失败都清理本次写入的文件
func (h *Handlers) handleCreateMood(c *gin.Context) {
	uid := middleware.CurrentUserID(c)
	if c.Request.ContentLength > h.cfg.MaxUploadBytes() {
		h.metrics.RecordSubmission("rejected")
		response.Abort(c, http.StatusRequestEntityTooLarge, h.t(c, "upload_too_large", nil))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes())

	upload, status, msg := h.parseMoodUpload(c)
	if status != 0 {
		h.metrics.RecordSubmission("rejected")
		response.Abort(c, status, msg)
		return
	}

	if h.cfg.IngestStrict {
		if missing := upload.missing(); len(missing) > 0 {
			h.metrics.RecordSubmission("rejected")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": h.t(c, "missing_inputs", nil),
				"missing": missing,
			})
			return
		}
	}

	ctx := c.Request.Context()
	now := h.now()
	rec := &models.MoodRecord{
		UserID:         uid,
		Text:           upload.text,
		ClientPlatform: models.PlatformOf(c.Request.UserAgent()),
	}

	var written []string
	for _, field := range fileFields {
		fh := upload.files[field]
		if fh == nil {
			continue
		}
		key, err := h.storePart(ctx, field, fh, now)
		if err != nil {
			h.failMood(c, written, err)
			return
		}
		written = append(written, key)
		k := key
		if field == fieldAudio {
			rec.AudioRef = &k
		} else {
			rec.ImageRef = &k
		}
	}

	if err := models.CreateMoodRecord(h.db.WithContext(ctx), rec); err != nil {
		h.failMood(c, written, err)
		return
	}

	if rec.AudioRef != nil {
		rec.AudioURL = h.store.PublicURL(*rec.AudioRef)
	}
	if rec.ImageRef != nil {
		rec.ImageURL = h.store.PublicURL(*rec.ImageRef)
	}
	h.metrics.RecordSubmission("accepted")
	logger.Info("mood entry saved",
		zap.Uint("user_id", uid),
		zap.Uint("mood_id", rec.ID),
		zap.Bool("audio", rec.AudioRef != nil),
		zap.Bool("image", rec.ImageRef != nil),
	)
	response.Created(c, h.t(c, "mood_saved", nil), gin.H{"mood": rec})
}

// parseMoodUpload status 非 0 表示请求应被拒绝
func (h *Handlers) parseMoodUpload(c *gin.Context) (moodUpload, int, string) {
	upload := moodUpload{files: make(map[string]*multipart.FileHeader, len(fileFields))}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return upload, http.StatusRequestEntityTooLarge, h.t(c, "upload_too_large", nil)
		case stderrors.Is(err, http.ErrNotMultipart):
			// 纯文本提交，按表单读取
			upload.text = c.PostForm(fieldText)
			return upload, 0, ""
		default:
			return upload, http.StatusBadRequest, "invalid multipart body"
		}
	}

	if vals := form.Value[fieldText]; len(vals) > 0 {
		upload.text = vals[0]
	}
	for name, parts := range form.File {
		if name != fieldAudio && name != fieldImage {
			return upload, http.StatusBadRequest, "Unexpected field: " + name
		}
		if len(parts) > 1 {
			return upload, http.StatusBadRequest, h.t(c, "too_many_parts", map[string]interface{}{"Field": name})
		}
		if len(parts) == 1 {
			upload.files[name] = parts[0]
		}
	}
	return upload, 0, ""
}

func (h *Handlers) storePart(ctx context.Context, field string, fh *multipart.FileHeader, now time.Time) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", errors.WrapKind(errors.KindStorageFault, err, "open "+field)
	}
	defer f.Close()

	key := util.UploadName(field, fh.Filename, now)
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.store.Write(ctx, key, f, fh.Size, contentType); err != nil {
		return "", errors.WrapKind(errors.KindStorageFault, err, "write "+field)
	}
	h.metrics.RecordUpload(field, fh.Size)
	return key, nil
}

// failMood 清理已写入的文件并返回通用 500
func (h *Handlers) failMood(c *gin.Context, written []string, cause error) {
	h.metrics.RecordSubmission("failed")
	logger.Error("mood submission failed", zap.Uint("user_id", middleware.CurrentUserID(c)), zap.Error(cause))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 10*time.Second)
	defer cancel()
	for _, key := range written {
		err := h.store.Delete(ctx, key)
		h.metrics.RecordCleanup(err == nil)
		if err != nil {
			// 留给定时清理任务
			logger.Warn("cleanup upload failed", zap.String("key", key), zap.Error(err))
		}
	}
	response.Abort(c, http.StatusInternalServerError, h.t(c, "server_error", nil))
}
