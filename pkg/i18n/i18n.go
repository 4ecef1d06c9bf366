package i18n

import (
	"embed"
	"encoding/json"
	"io/fs"
	"path"

	"MoodCapture/pkg/logger"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// 每个语言一个 json 文件，文件名即语言标签
//
//go:embed locales/*.json
var locales embed.FS

// I18nSupport 提示语与接口消息的翻译；nil 接收者原样返回键名
type I18nSupport struct {
	bundle      *i18n.Bundle
	defaultLang string
}

func NewI18nSupport(defaultLang string) (*I18nSupport, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		tag, defaultLang = language.English, "en"
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(locales, "locales/*.json")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		raw, err := locales.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(raw, path.Base(file)); err != nil {
			return nil, err
		}
	}
	return &I18nSupport{bundle: bundle, defaultLang: defaultLang}, nil
}

// T lang 不支持时退回默认语言，键缺失时返回键名
func (s *I18nSupport) T(lang, key string, data map[string]interface{}) string {
	if s == nil {
		return key
	}
	msg, err := i18n.NewLocalizer(s.bundle, lang, s.defaultLang).Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		logger.Warn("missing translation", zap.String("key", key), zap.String("lang", lang), zap.Error(err))
		return key
	}
	return msg
}

func (s *I18nSupport) TWithDefaultLang(key string, data map[string]interface{}) string {
	if s == nil {
		return key
	}
	return s.T(s.defaultLang, key, data)
}
