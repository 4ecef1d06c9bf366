package handlers

import (
	stderrors "errors"
	"net/http"

	"MoodCapture/internal/models"
	"MoodCapture/pkg/errors"
	"MoodCapture/pkg/logger"
	"MoodCapture/pkg/middleware"
	"MoodCapture/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signupForm struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"name"`
}

type loginForm struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) handleUserSignup(c *gin.Context) {
	var form signupForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}

	user, err := models.CreateUser(h.db, form.Email, form.Password, form.DisplayName)
	if err != nil {
		if stderrors.Is(err, models.ErrEmailTaken) {
			response.Abort(c, http.StatusConflict, h.t(c, "email_taken", nil))
			return
		}
		response.Error(c, err)
		return
	}

	token, err := h.tokens.Issue(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	logger.Info("user signed up", zap.Uint("user_id", user.ID))
	response.Created(c, h.t(c, "signup_ok", nil), gin.H{"token": token, "user": user})
}

func (h *Handlers) handleUserSignin(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}

	user, err := models.Authenticate(h.db, form.Email, form.Password)
	if err != nil {
		if errors.KindOf(err) == errors.KindUnauthorized {
			response.Abort(c, http.StatusUnauthorized, h.t(c, "invalid_credentials", nil))
			return
		}
		response.Error(c, err)
		return
	}

	token, err := h.tokens.Issue(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":      http.StatusOK,
		"message":   h.t(c, "login_ok", nil),
		"token":     token,
		"expiresIn": int(h.tokens.TTL().Seconds()),
		"user":      user,
	})
}

func (h *Handlers) handleUserLogout(c *gin.Context) {
	token := c.GetString(middleware.ContextToken)
	if err := h.tokens.Revoke(c.Request.Context(), token); err != nil {
		logger.Warn("revoke token failed", zap.Error(err))
	}
	response.Success(c, h.t(c, "logout_ok", nil), nil)
}

func (h *Handlers) handleUserInfo(c *gin.Context) {
	user, err := models.GetUserByID(h.db, middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", user)
}
