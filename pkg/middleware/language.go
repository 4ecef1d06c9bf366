package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

const ContextLang = "lang"

var supportedLangs = language.NewMatcher([]language.Tag{
	language.English,
	language.Chinese,
})

// LanguageMiddleware ?lang= 优先，其次 Accept-Language，都没有用 fallback
func LanguageMiddleware(fallback string) gin.HandlerFunc {
	if fallback == "" {
		fallback = "en"
	}
	return func(c *gin.Context) {
		lang := fallback
		if q := c.Query("lang"); q != "" {
			lang = matchLang(q, fallback)
		} else if h := c.GetHeader("Accept-Language"); h != "" {
			lang = matchLang(h, fallback)
		}
		c.Set(ContextLang, lang)
		c.Next()
	}
}

func matchLang(raw, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := supportedLangs.Match(tags...)
	if conf == language.No {
		return fallback
	}
	if idx == 1 {
		return "zh"
	}
	return "en"
}

// Lang 取当前请求语言
func Lang(c *gin.Context) string {
	return c.GetString(ContextLang)
}
