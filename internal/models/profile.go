package models

import (
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"MoodCapture/pkg/errors"

	"github.com/spf13/cast"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrProfileNotFound = stderrors.New("profile not found")

type FieldType string

const (
	FieldNumber FieldType = "number"
	FieldText   FieldType = "text"
	FieldChoice FieldType = "choice"
	FieldTime   FieldType = "time" // HH:MM
)

// FieldSpec 资料字段定义
type FieldSpec struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	Choices  []string  `json:"choices,omitempty"`
}

func bound(v float64) *float64 { return &v }

// ProfileSchema 有序的生活方式资料字段
var ProfileSchema = []FieldSpec{
	{Name: "screetime_daily", Label: "Daily Screen Time (hours)", Type: FieldNumber, Required: true, Min: bound(0)},
	{Name: "job_description", Label: "Job Description", Type: FieldText, Required: true},
	{Name: "free_hr_activities", Label: "Free Hour Activities", Type: FieldText, Required: true},
	{Name: "travelling_hr", Label: "Travelling Time (minutes/day)", Type: FieldNumber, Required: true, Min: bound(0)},
	{Name: "weekend_mood", Label: "Weekend Mood", Type: FieldChoice, Required: true, Choices: []string{"happy", "relaxed", "tired", "neutral"}},
	{Name: "week_day_mood", Label: "Weekday Mood", Type: FieldChoice, Required: true, Choices: []string{"stressed", "productive", "calm", "neutral"}},
	{Name: "free_hr_mrg", Label: "Free Time (Morning - minutes)", Type: FieldNumber, Required: true, Min: bound(0)},
	{Name: "free_hr_eve", Label: "Free Time (Evening - minutes)", Type: FieldNumber, Required: true, Min: bound(0)},
	{Name: "sleep_time", Label: "Sleep Time", Type: FieldTime, Required: true},
	{Name: "preferred_exercise", Label: "Preferred Exercise", Type: FieldText, Required: true},
	{Name: "social_preference", Label: "Social Preference", Type: FieldChoice, Required: true, Choices: []string{"solo", "group"}},
	{Name: "energy_level_rating", Label: "Energy Level (1-10)", Type: FieldNumber, Required: true, Min: bound(1), Max: bound(10)},
	{Name: "sleep_pattern", Label: "Sleep Pattern (hours/day)", Type: FieldNumber, Required: true, Min: bound(0)},
	{Name: "hobbies", Label: "Hobbies", Type: FieldText, Required: true},
	{Name: "work_schedule", Label: "Work Schedule (hours/day)", Type: FieldNumber, Required: true, Min: bound(0)},
	{Name: "meal_preferences", Label: "Meal Preferences", Type: FieldText, Required: true},
	{Name: "relaxation_methods", Label: "Relaxation Methods", Type: FieldText, Required: true},
}

const maxTextLen = 1024

// FieldError 单个字段的校验失败
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationErrors 按 schema 顺序排列
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Field + ": " + fe.Reason
	}
	return strings.Join(parts, "; ")
}

func specByName(name string) (FieldSpec, bool) {
	for _, f := range ProfileSchema {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// normalize 校验并规范化单个值，返回存储用的字符串
func (f FieldSpec) normalize(raw any) (string, string) {
	s := strings.TrimSpace(cast.ToString(raw))
	if s == "" {
		if f.Required {
			return "", "is required"
		}
		return "", ""
	}
	switch f.Type {
	case FieldNumber:
		n, err := cast.ToFloat64E(s)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return "", "must be a number"
		}
		if f.Min != nil && n < *f.Min {
			return "", fmt.Sprintf("must be at least %g", *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return "", fmt.Sprintf("must be at most %g", *f.Max)
		}
		return cast.ToString(n), ""
	case FieldChoice:
		lower := strings.ToLower(s)
		for _, c := range f.Choices {
			if c == lower {
				return c, ""
			}
		}
		return "", "must be one of " + strings.Join(f.Choices, ", ")
	case FieldTime:
		t, err := time.Parse("15:04", s)
		if err != nil {
			return "", "must be a time in HH:MM"
		}
		return t.Format("15:04"), ""
	default:
		if len(s) > maxTextLen {
			return "", fmt.Sprintf("must be at most %d characters", maxTextLen)
		}
		return s, ""
	}
}

// ValidateProfile 按 schema 校验，未知字段忽略
func ValidateProfile(values map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(ProfileSchema))
	var errs ValidationErrors
	for _, f := range ProfileSchema {
		v, reason := f.normalize(values[f.Name])
		if reason != "" {
			errs = append(errs, FieldError{Field: f.Name, Reason: reason})
			continue
		}
		if v != "" {
			out[f.Name] = v
		}
	}
	if len(errs) > 0 {
		return nil, errors.WrapKind(errors.KindValidationFailed, errs, "invalid profile")
	}
	return out, nil
}

// ProfileField 资料以键值行存储，每个用户每个字段一行
type ProfileField struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    uint      `json:"-" gorm:"uniqueIndex:idx_profile_user_field"`
	Name      string    `json:"name" gorm:"size:64;uniqueIndex:idx_profile_user_field"`
	Value     string    `json:"value" gorm:"size:1024"`
	Position  int       `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Profile 对外的资料视图，数字字段为 float64
type Profile map[string]any

// SaveProfile 校验后整体 upsert，返回是否首次创建
func SaveProfile(db *gorm.DB, userID uint, values map[string]any) (Profile, bool, error) {
	clean, err := ValidateProfile(values)
	if err != nil {
		return nil, false, err
	}

	created := false
	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ProfileField{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		created = count == 0

		rows := make([]ProfileField, 0, len(clean))
		for i, f := range ProfileSchema {
			v, ok := clean[f.Name]
			if !ok {
				continue
			}
			rows = append(rows, ProfileField{UserID: userID, Name: f.Name, Value: v, Position: i})
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "position", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return nil, false, errors.WrapKind(errors.KindStorageFault, err, "save profile")
	}
	return toProfile(clean), created, nil
}

// GetProfile 没有任何字段时返回 ErrProfileNotFound
func GetProfile(db *gorm.DB, userID uint) (Profile, error) {
	var rows []ProfileField
	if err := db.Where("user_id = ?", userID).Order("position").Find(&rows).Error; err != nil {
		return nil, errors.WrapKind(errors.KindStorageFault, err, "get profile")
	}
	if len(rows) == 0 {
		return nil, errors.WrapKind(errors.KindNotFound, ErrProfileNotFound, "get profile")
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Name] = r.Value
	}
	return toProfile(values), nil
}

func toProfile(values map[string]string) Profile {
	p := make(Profile, len(values))
	for name, v := range values {
		if spec, ok := specByName(name); ok && spec.Type == FieldNumber {
			p[name] = cast.ToFloat64(v)
			continue
		}
		p[name] = v
	}
	return p
}

// Keys 按 schema 顺序返回已有字段名
func (p Profile) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	order := make(map[string]int, len(ProfileSchema))
	for i, f := range ProfileSchema {
		order[f.Name] = i
	}
	sort.Slice(keys, func(i, j int) bool { return order[keys[i]] < order[keys[j]] })
	return keys
}
