package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"MoodCapture/internal/models"
	"MoodCapture/pkg/cache"
	"MoodCapture/pkg/config"
	"MoodCapture/pkg/i18n"
	"MoodCapture/pkg/metrics"
	stores "MoodCapture/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// faultyStore 在指定字段写入或删除时注入故障
type faultyStore struct {
	*stores.LocalStore
	mu          sync.Mutex
	failWriteOn string
	failDelete  bool
}

func (f *faultyStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	fail := f.failWriteOn != "" && strings.HasPrefix(key, f.failWriteOn)
	f.mu.Unlock()
	if fail {
		return stderrors.New("disk full")
	}
	return f.LocalStore.Write(ctx, key, r, size, contentType)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return stderrors.New("io error")
	}
	return f.LocalStore.Delete(ctx, key)
}

type testServer struct {
	engine    *gin.Engine
	db        *gorm.DB
	store     *faultyStore
	uploadDir string
	cfg       *config.Config
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	cfg := &config.Config{
		APIPrefix:       "/api",
		UploadPrefix:    "/uploads",
		MonitorPrefix:   "/metrics",
		MaxUploadMB:     1,
		TokenTTL:        time.Hour,
		RateLimit:       "1000-M",
		LanguageDefault: "en",
		Storage:         stores.Config{Driver: stores.DriverLocal, UploadDir: uploadDir, BaseURL: "/uploads"},
		Cache:           cache.Config{Type: "local"},
	}
	for _, m := range mutate {
		m(cfg)
	}

	bundle, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)
	store := &faultyStore{LocalStore: stores.NewLocalStore(uploadDir, "/uploads")}

	h := NewHandlers(db, cfg, Deps{
		Store:   store,
		Cache:   cache.NewLocalCache(cache.LocalConfig{MaxSize: 100, DefaultExpiration: time.Minute}),
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		I18n:    bundle,
	})
	engine := gin.New()
	h.Register(engine)

	return &testServer{engine: engine, db: db, store: store, uploadDir: uploadDir, cfg: cfg}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) jsonRequest(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

func (s *testServer) signup(t *testing.T, email string) string {
	t.Helper()
	w := s.jsonRequest(http.MethodPost, "/api/auth/signup", "", gin.H{"email": email, "password": "secret1", "name": "Test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (s *testServer) uploadedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(s.uploadDir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (s *testServer) moodCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&models.MoodRecord{}).Count(&n).Error)
	return n
}

type part struct {
	field, filename, contentType string
	data                         []byte
}

func moodRequest(t *testing.T, token, text string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if text != "" {
		require.NoError(t, mw.WriteField("mood_text", text))
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		h.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/mood", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

var (
	audioPart = part{"mood_audio", "audio.webm", "audio/webm", []byte("webm-bytes")}
	imagePart = part{"mood_image", "image.jpg", "image/jpeg", []byte("jpeg-bytes")}
)

type moodResponse struct {
	Message string `json:"message"`
	Mood    struct {
		ID        uint    `json:"id"`
		User      uint    `json:"user"`
		Text      string  `json:"mood_text"`
		Audio     *string `json:"mood_audio"`
		Image     *string `json:"mood_image"`
		AudioURL  string  `json:"mood_audio_url"`
		Platform  string  `json:"client_platform"`
		CreatedAt string  `json:"createdAt"`
	} `json:"mood"`
}

func TestMoodRejectsUnauthenticatedBeforeWriting(t *testing.T) {
	s := newTestServer(t)

	w := s.do(moodRequest(t, "", "fine", audioPart, imagePart))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(moodRequest(t, "forged-token", "fine", audioPart, imagePart))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Empty(t, s.uploadedFiles(t))
	assert.Zero(t, s.moodCount(t))
}

func TestMoodAcceptsCompleteSubmission(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	w := s.do(moodRequest(t, token, "feeling calm", audioPart, imagePart))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out moodResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "Mood entry saved", out.Message)
	assert.Equal(t, "feeling calm", out.Mood.Text)
	require.NotNil(t, out.Mood.Audio)
	require.NotNil(t, out.Mood.Image)
	assert.Regexp(t, `^mood_audio-\d+-\d+\.webm$`, *out.Mood.Audio)
	assert.Regexp(t, `^mood_image-\d+-\d+\.jpg$`, *out.Mood.Image)
	assert.Equal(t, "/uploads/"+*out.Mood.Audio, out.Mood.AudioURL)
	assert.Equal(t, "Chrome 120 / Windows 10", out.Mood.Platform)
	assert.ElementsMatch(t, []string{*out.Mood.Audio, *out.Mood.Image}, s.uploadedFiles(t))

	// 上传文件可以通过 /uploads 读取
	get := s.do(httptest.NewRequest(http.MethodGet, "/uploads/"+*out.Mood.Image, nil))
	assert.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "jpeg-bytes", get.Body.String())
	assert.Equal(t, "image/jpeg", get.Header().Get("Content-Type"))
}

func TestMoodLenientAcceptsTextOnly(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	w := s.do(moodRequest(t, token, "just words"))
	require.Equal(t, http.StatusCreated, w.Code)

	var out moodResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Nil(t, out.Mood.Audio)
	assert.Nil(t, out.Mood.Image)
	assert.Empty(t, s.uploadedFiles(t))
}

func TestMoodStrictRequiresAllThree(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.IngestStrict = true })
	token := s.signup(t, "a@example.com")

	w := s.do(moodRequest(t, token, "  ", audioPart))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var out struct {
		Message string   `json:"message"`
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "All three mood inputs (text, voice, and image) are required.", out.Message)
	assert.Equal(t, []string{"text", "image"}, out.Missing)
	assert.Empty(t, s.uploadedFiles(t))

	w = s.do(moodRequest(t, token, "ok", audioPart, imagePart))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestMoodRejectsDuplicateParts(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	w := s.do(moodRequest(t, token, "x", audioPart, audioPart, imagePart))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(moodRequest(t, token, "x", part{"avatar", "a.png", "image/png", []byte("p")}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, s.uploadedFiles(t))
	assert.Zero(t, s.moodCount(t))
}

func TestMoodStorageFaultRemovesWrittenFiles(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")
	s.store.failWriteOn = "mood_image"

	w := s.do(moodRequest(t, token, "x", audioPart, imagePart))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"Server error"}`, w.Body.String())

	assert.Empty(t, s.uploadedFiles(t))
	assert.Zero(t, s.moodCount(t))
}

func TestMoodDatabaseFaultRemovesWrittenFiles(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	require.NoError(t, s.db.Callback().Create().Before("gorm:create").Register("fail_mood", func(tx *gorm.DB) {
		if tx.Statement.Table == "mood_records" {
			_ = tx.AddError(stderrors.New("database is locked"))
		}
	}))

	w := s.do(moodRequest(t, token, "x", audioPart, imagePart))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, s.uploadedFiles(t))
	assert.Zero(t, s.moodCount(t))
}

func TestMoodCleanupFailureStillReturnsGeneric500(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")
	s.store.failWriteOn = "mood_image"
	s.store.failDelete = true

	w := s.do(moodRequest(t, token, "x", audioPart, imagePart))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	// 清理失败时文件保留给定时任务，但不存在引用它的记录
	assert.Len(t, s.uploadedFiles(t), 1)
	assert.Zero(t, s.moodCount(t))
}

func TestMoodBodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	big := part{"mood_audio", "audio.webm", "audio/webm", bytes.Repeat([]byte("a"), 2<<20)}
	w := s.do(moodRequest(t, token, "x", big, imagePart))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, s.uploadedFiles(t))
}

func TestMoodConcurrentSubmissionsAreIndependent(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	reqs := make([]*http.Request, 4)
	for i := range reqs {
		reqs[i] = moodRequest(t, token, "same", audioPart, imagePart)
	}

	var wg sync.WaitGroup
	codes := make([]int, len(reqs))
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *http.Request) {
			defer wg.Done()
			codes[i] = s.do(req).Code
		}(i, req)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}
	assert.Equal(t, int64(4), s.moodCount(t))
	assert.Len(t, s.uploadedFiles(t), 8)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "a@example.com")

	w := s.jsonRequest(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "a@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.jsonRequest(http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@example.com", "password": "wrong!!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.jsonRequest(http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = s.jsonRequest(http.MethodGet, "/api/auth/info", login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.jsonRequest(http.MethodPost, "/api/auth/logout", login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.jsonRequest(http.MethodGet, "/api/auth/info", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func validProfile() gin.H {
	return gin.H{
		"screetime_daily": 4, "job_description": "Nurse", "free_hr_activities": "Walks",
		"travelling_hr": 30, "weekend_mood": "happy", "week_day_mood": "calm",
		"free_hr_mrg": 20, "free_hr_eve": 60, "sleep_time": "22:45",
		"preferred_exercise": "Yoga", "social_preference": "group", "energy_level_rating": 6,
		"sleep_pattern": 8, "hobbies": "Piano", "work_schedule": 7,
		"meal_preferences": "Vegan", "relaxation_methods": "Tea",
	}
}

func TestProfileFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	w := s.jsonRequest(http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Profile not found")

	w = s.jsonRequest(http.MethodPost, "/api/profile", token, validProfile())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	updated := validProfile()
	updated["hobbies"] = "Cello"
	w = s.jsonRequest(http.MethodPost, "/api/profile", token, updated)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.jsonRequest(http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "Cello", out.Data["hobbies"])
	assert.Equal(t, 6.0, out.Data["energy_level_rating"])

	w = s.jsonRequest(http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileValidationErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	bad := validProfile()
	bad["energy_level_rating"] = 0
	delete(bad, "hobbies")

	w := s.jsonRequest(http.MethodPost, "/api/profile", token, bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var out struct {
		Data struct {
			Errors []models.FieldError `json:"errors"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Data.Errors, 2)
	assert.Equal(t, "energy_level_rating", out.Data.Errors[0].Field)
	assert.Equal(t, "hobbies", out.Data.Errors[1].Field)

	w = s.jsonRequest(http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileSchemaIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := s.jsonRequest(http.MethodGet, "/api/profile/schema", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Data []models.FieldSpec `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out.Data, len(models.ProfileSchema))
}

func TestUploadsRejectTraversal(t *testing.T) {
	s := newTestServer(t)
	for _, p := range []string{"/uploads/..%2Fsecret", "/uploads/.env", "/uploads/missing.jpg"} {
		w := s.do(httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, p)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/system/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestLanguageSelection(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@example.com")

	req := moodRequest(t, token, "x")
	req.URL.RawQuery = "lang=zh"
	w := s.do(req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "心情记录已保存")
}
