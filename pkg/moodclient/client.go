package moodclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MoodCapture/pkg/errors"

	"github.com/sirupsen/logrus"
)

var ErrProfileNotFound = stderrors.New("profile not found")

// User 服务端返回的用户信息
type User struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Auth 登录或注册的结果
type Auth struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
	User      User   `json:"user"`
}

// FieldSpec 资料字段定义
type FieldSpec struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Profile map[string]any

// Client 访问认证、资料接口。Token 显式保存在 Client 上，不使用全局登录状态
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	log     *logrus.Logger
}

func New(baseURL, token string, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, in any) (int, []byte, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.log.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}).Debug("api call")
	return resp.StatusCode, raw, nil
}

// apiError 把非 2xx 响应转换为带分类的错误，message 原样保留
func apiError(status int, raw []byte) error {
	var env envelope
	msg := http.StatusText(status)
	if json.Unmarshal(raw, &env) == nil && env.Message != "" {
		msg = env.Message
	}
	kind := errors.KindUnknown
	switch status {
	case http.StatusUnauthorized:
		kind = errors.KindUnauthorized
	case http.StatusNotFound:
		kind = errors.KindNotFound
	case http.StatusBadRequest, http.StatusConflict:
		kind = errors.KindValidationFailed
	}
	e := errors.WithKind(kind, msg)
	e.Code = status
	return e
}

func (c *Client) Signup(ctx context.Context, email, password, name string) (*Auth, error) {
	return c.auth(ctx, "/api/auth/signup", map[string]string{"email": email, "password": password, "name": name}, http.StatusCreated)
}

func (c *Client) Login(ctx context.Context, email, password string) (*Auth, error) {
	return c.auth(ctx, "/api/auth/login", map[string]string{"email": email, "password": password}, http.StatusOK)
}

func (c *Client) auth(ctx context.Context, path string, form map[string]string, want int) (*Auth, error) {
	status, raw, err := c.do(ctx, http.MethodPost, path, form)
	if err != nil {
		return nil, err
	}
	if status != want {
		return nil, apiError(status, raw)
	}
	var out Auth
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	c.Token = out.Token
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	status, raw, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError(status, raw)
	}
	c.Token = ""
	return nil
}

// GetProfile 资料不存在时返回 ErrProfileNotFound（分类 NotFound）
func (c *Client) GetProfile(ctx context.Context) (Profile, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/api/profile", nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errors.WrapKind(errors.KindNotFound, ErrProfileNotFound, "get profile")
	default:
		return nil, apiError(status, raw)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

// ValidationError 服务端返回的字段校验错误
type ValidationError struct {
	Fields []FieldError
}

func (v *ValidationError) Error() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return strings.Join(parts, "; ")
}

// SaveProfile 返回保存后的资料以及是否首次创建
func (c *Client) SaveProfile(ctx context.Context, values map[string]any) (Profile, bool, error) {
	status, raw, err := c.do(ctx, http.MethodPost, "/api/profile", values)
	if err != nil {
		return nil, false, err
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)
	switch status {
	case http.StatusOK, http.StatusCreated:
		var p Profile
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false, fmt.Errorf("failed to decode profile: %w", err)
		}
		return p, status == http.StatusCreated, nil
	case http.StatusBadRequest:
		var data struct {
			Errors []FieldError `json:"errors"`
		}
		if json.Unmarshal(env.Data, &data) == nil && len(data.Errors) > 0 {
			return nil, false, errors.WrapKind(errors.KindValidationFailed, &ValidationError{Fields: data.Errors}, "invalid profile")
		}
	}
	return nil, false, apiError(status, raw)
}

func (c *Client) ProfileSchema(ctx context.Context) ([]FieldSpec, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/api/profile/schema", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, raw)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	var out []FieldSpec
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return out, nil
}
