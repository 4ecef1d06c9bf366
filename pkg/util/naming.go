package util

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"
)

// UploadName 生成 <field>-<unixMillis>-<0..1e9><ext> 形式的上传文件名
func UploadName(field, original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if !IsFlatName("x" + ext) {
		ext = ""
	}
	return fmt.Sprintf("%s-%d-%d%s", field, now.UnixMilli(), rand.IntN(1_000_000_001), ext)
}

// IsFlatName 只允许单层文件名，拒绝目录穿越与隐藏文件
func IsFlatName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}

// FieldOf 取回上传文件名中的字段前缀
func FieldOf(name string) string {
	if i := strings.IndexByte(name, '-'); i > 0 {
		return name[:i]
	}
	return ""
}
