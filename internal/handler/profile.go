package handlers

import (
	"fmt"
	"net/http"

	"MoodCapture/internal/models"
	"MoodCapture/pkg/errors"
	"MoodCapture/pkg/middleware"
	"MoodCapture/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func profileCacheKey(uid uint) string {
	return fmt.Sprintf("profile:%d", uid)
}

func (h *Handlers) handleGetProfile(c *gin.Context) {
	uid := middleware.CurrentUserID(c)
	ctx := c.Request.Context()

	v, hit := h.cache.Get(ctx, profileCacheKey(uid))
	h.metrics.RecordCacheLookup("profile", hit)
	if hit {
		response.Success(c, "ok", cast.ToStringMap(v))
		return
	}

	// 同一用户的并发未命中只查一次库
	loaded, err, _ := h.profileLoads.Do(profileCacheKey(uid), func() (interface{}, error) {
		p, err := models.GetProfile(h.db.WithContext(ctx), uid)
		if err != nil {
			return nil, err
		}
		_ = h.cache.Set(ctx, profileCacheKey(uid), map[string]any(p), 0)
		return p, nil
	})
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			response.Abort(c, http.StatusNotFound, h.t(c, "profile_not_found", nil))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", loaded)
}

func (h *Handlers) handleSaveProfile(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}

	uid := middleware.CurrentUserID(c)
	profile, created, err := models.SaveProfile(h.db, uid, body)
	if err != nil {
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			response.Fail(c, "invalid profile", gin.H{"errors": verrs})
			return
		}
		response.Error(c, err)
		return
	}

	_ = h.cache.Set(c.Request.Context(), profileCacheKey(uid), map[string]any(profile), 0)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"code":    status,
		"message": h.t(c, "profile_saved", nil),
		"data":    profile,
	})
}

// handleProfileSchema 客户端按此渲染表单
func (h *Handlers) handleProfileSchema(c *gin.Context) {
	response.Success(c, "ok", models.ProfileSchema)
}
