package util

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUploadNameShape(t *testing.T) {
	now := time.UnixMilli(1717171717171)
	re := regexp.MustCompile(`^mood_audio-1717171717171-\d{1,10}\.webm$`)

	for i := 0; i < 50; i++ {
		name := UploadName("mood_audio", "audio.WEBM", now)
		assert.Regexp(t, re, name)
		assert.True(t, IsFlatName(name))
		assert.Equal(t, "mood_audio", FieldOf(name))
	}
}

func TestUploadNameDropsPathFromOriginal(t *testing.T) {
	name := UploadName("mood_image", "../../etc/image.jpg", time.UnixMilli(1))
	assert.Regexp(t, `^mood_image-1-\d+\.jpg$`, name)

	name = UploadName("mood_image", "noext", time.UnixMilli(1))
	assert.Regexp(t, `^mood_image-1-\d+$`, name)
}

func TestIsFlatName(t *testing.T) {
	cases := map[string]bool{
		"mood_image-1-2.jpg": true,
		"":                   false,
		"..":                 false,
		".env":               false,
		"a/b.jpg":            false,
		`a\b.jpg`:            false,
		"../x.jpg":           false,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsFlatName(name), name)
	}
}
