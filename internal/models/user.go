package models

import (
	stderrors "errors"
	"net/mail"
	"strings"
	"time"

	"MoodCapture/pkg/errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = stderrors.New("invalid email or password")
	ErrEmailTaken         = stderrors.New("email already registered")
)

const minPasswordLen = 6

type User struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Email       string     `json:"email" gorm:"size:255;uniqueIndex"`
	Password    string     `json:"-" gorm:"size:128"`
	DisplayName string     `json:"displayName" gorm:"size:128"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser 注册用户，密码以 bcrypt 存储
func CreateUser(db *gorm.DB, email, password, displayName string) (*User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errors.WithKind(errors.KindValidationFailed, "invalid email address")
	}
	if len(password) < minPasswordLen {
		return nil, errors.WithKindf(errors.KindValidationFailed, "password must be at least %d characters", minPasswordLen)
	}

	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, errors.WrapKind(errors.KindStorageFault, err, "lookup user")
	}
	if count > 0 {
		return nil, errors.WrapKind(errors.KindValidationFailed, ErrEmailTaken, "signup")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	user := &User{Email: email, Password: string(hash), DisplayName: displayName}
	if err := db.Create(user).Error; err != nil {
		return nil, errors.WrapKind(errors.KindStorageFault, err, "create user")
	}
	return user, nil
}

// Authenticate 校验邮箱密码，成功后更新 LastLogin
func Authenticate(db *gorm.DB, email, password string) (*User, error) {
	var user User
	err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.WrapKind(errors.KindUnauthorized, ErrInvalidCredentials, "login")
	}
	if err != nil {
		return nil, errors.WrapKind(errors.KindStorageFault, err, "lookup user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, errors.WrapKind(errors.KindUnauthorized, ErrInvalidCredentials, "login")
	}

	now := time.Now()
	user.LastLogin = &now
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, errors.WrapKind(errors.KindStorageFault, err, "update last login")
	}
	return &user, nil
}

func GetUserByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	err := db.First(&user, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.WithKind(errors.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, errors.WrapKind(errors.KindStorageFault, err, "get user")
	}
	return &user, nil
}
