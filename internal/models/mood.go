package models

import (
	"fmt"
	"strings"
	"time"

	"MoodCapture/pkg/errors"

	"github.com/mssola/user_agent"
	"gorm.io/gorm"
)

// MoodRecord 一次被接受的提交，创建后不再修改
type MoodRecord struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         uint      `json:"user" gorm:"index"`
	Text           string    `json:"mood_text" gorm:"type:text"`
	AudioRef       *string   `json:"mood_audio" gorm:"size:255;index"`
	ImageRef       *string   `json:"mood_image" gorm:"size:255;index"`
	AudioURL       string    `json:"mood_audio_url,omitempty" gorm:"-"`
	ImageURL       string    `json:"mood_image_url,omitempty" gorm:"-"`
	ClientPlatform string    `json:"client_platform,omitempty" gorm:"size:128"`
	CreatedAt      time.Time `json:"createdAt"`
}

func CreateMoodRecord(db *gorm.DB, rec *MoodRecord) error {
	if rec.UserID == 0 {
		return errors.WithKind(errors.KindUnauthorized, "mood record without owner")
	}
	if err := db.Create(rec).Error; err != nil {
		return errors.WrapKind(errors.KindStorageFault, err, "create mood record")
	}
	return nil
}

// ReferencedUploads 返回 keys 中被任一记录引用的文件名
func ReferencedUploads(db *gorm.DB, keys []string) (map[string]bool, error) {
	out := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var recs []MoodRecord
	err := db.Select("audio_ref", "image_ref").
		Where("audio_ref IN ? OR image_ref IN ?", keys, keys).
		Find(&recs).Error
	if err != nil {
		return nil, errors.WrapKind(errors.KindStorageFault, err, "lookup referenced uploads")
	}
	for _, r := range recs {
		if r.AudioRef != nil {
			out[*r.AudioRef] = true
		}
		if r.ImageRef != nil {
			out[*r.ImageRef] = true
		}
	}
	return out, nil
}

// PlatformOf 从 User-Agent 提取 "浏览器 版本 / 系统" 摘要
func PlatformOf(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := user_agent.New(ua)
	name, version := parsed.Browser()
	if major, _, ok := strings.Cut(version, "."); ok {
		version = major
	}
	out := strings.TrimSpace(fmt.Sprintf("%s %s", name, version))
	if os := parsed.OS(); os != "" {
		out += " / " + os
	}
	if parsed.Mobile() {
		out += " (mobile)"
	}
	if len(out) > 128 {
		out = out[:128]
	}
	return out
}
