package handlers

import (
	stderrors "errors"
	"mime"
	"net/http"
	"path/filepath"

	"MoodCapture/pkg/response"
	stores "MoodCapture/pkg/storage"
	"MoodCapture/pkg/util"

	"github.com/gin-gonic/gin"
)

// handleGetUpload 从存储后端读取上传文件，只接受单层文件名
func (h *Handlers) handleGetUpload(c *gin.Context) {
	name := c.Param("name")
	if !util.IsFlatName(name) {
		response.Abort(c, http.StatusNotFound, "not found")
		return
	}

	rc, size, err := h.store.Read(c.Request.Context(), name)
	if err != nil {
		if stderrors.Is(err, stores.ErrNotFound) {
			response.Abort(c, http.StatusNotFound, "not found")
			return
		}
		_ = c.Error(err)
		response.Abort(c, http.StatusInternalServerError, h.t(c, "server_error", nil))
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	c.DataFromReader(http.StatusOK, size, contentType, rc, nil)
}
