package moodclient

import (
	"context"
	stderrors "errors"

	"MoodCapture/pkg/errors"
)

// Screen 登录后进入的页面
type Screen string

const (
	ScreenLogin   Screen = "login"
	ScreenProfile Screen = "profile"
	ScreenCapture Screen = "capture"
)

// Landing 有资料进入采集页，资料不存在进入资料页；其他错误原样返回，不当作资料缺失
func (c *Client) Landing(ctx context.Context) (Screen, error) {
	if c.Token == "" {
		return ScreenLogin, nil
	}
	_, err := c.GetProfile(ctx)
	switch {
	case err == nil:
		return ScreenCapture, nil
	case stderrors.Is(err, ErrProfileNotFound):
		return ScreenProfile, nil
	case errors.KindOf(err) == errors.KindUnauthorized:
		// token 过期，重新登录
		c.Token = ""
		return ScreenLogin, nil
	default:
		return "", err
	}
}
