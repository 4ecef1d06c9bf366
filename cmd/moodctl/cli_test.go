package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	handlers "MoodCapture/internal/handler"
	"MoodCapture/internal/models"
	"MoodCapture/pkg/cache"
	"MoodCapture/pkg/config"
	"MoodCapture/pkg/i18n"
	"MoodCapture/pkg/metrics"
	stores "MoodCapture/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMoodServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		MaxUploadMB:     4,
		IngestStrict:    true,
		TokenTTL:        time.Hour,
		RateLimit:       "100-M",
		LanguageDefault: "en",
		Storage:         stores.Config{Driver: stores.DriverLocal, UploadDir: uploadDir},
		Cache:           cache.Config{Type: "local"},
	}
	bundle, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)
	h := handlers.NewHandlers(db, cfg, handlers.Deps{
		Store:   stores.NewLocalStore(uploadDir, "/uploads"),
		Cache:   cache.NewLocalCache(cache.LocalConfig{MaxSize: 100, DefaultExpiration: time.Minute}),
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		I18n:    bundle,
	})
	engine := gin.New()
	h.Register(engine)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, uploadDir
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFixtures(t *testing.T, dir string) (string, string) {
	t.Helper()
	audio := filepath.Join(dir, "clip.webm")
	require.NoError(t, os.WriteFile(audio, bytes.Repeat([]byte{0x1a, 0x45}, 64), 0o644))

	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.Black)
	photo := filepath.Join(dir, "face.png")
	f, err := os.Create(photo)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return audio, photo
}

var profileArgs = []string{
	"--field", "screetime_daily=4",
	"--field", "job_description=Nurse",
	"--field", "free_hr_activities=Walks",
	"--field", "travelling_hr=30",
	"--field", "weekend_mood=happy",
	"--field", "week_day_mood=calm",
	"--field", "free_hr_mrg=20",
	"--field", "free_hr_eve=60",
	"--field", "sleep_time=22:45",
	"--field", "preferred_exercise=Yoga",
	"--field", "social_preference=solo",
	"--field", "energy_level_rating=7",
	"--field", "sleep_pattern=8",
	"--field", "hobbies=Piano",
	"--field", "work_schedule=7",
	"--field", "meal_preferences=Vegan",
	"--field", "relaxation_methods=Tea",
}

func TestEndToEndMoodFlow(t *testing.T) {
	srv, uploadDir := newMoodServer(t)
	home := t.TempDir()
	t.Setenv("MOODCTL_SERVER", srv.URL)

	stdout, _, err := executeCLI(t, home, "landing")
	require.NoError(t, err)
	assert.Equal(t, "login\n", stdout)

	stdout, _, err = executeCLI(t, home, "signup", "--email", "a@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "signed up as a@example.com")
	assert.FileExists(t, filepath.Join(home, configFileName))

	stdout, _, err = executeCLI(t, home, "landing")
	require.NoError(t, err)
	assert.Equal(t, "profile\n", stdout)

	stdout, _, err = executeCLI(t, home, append([]string{"profile", "set"}, profileArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "profile created")

	stdout, _, err = executeCLI(t, home, "profile", "set", "--field", "hobbies=Cello")
	require.NoError(t, err)
	assert.Contains(t, stdout, "profile updated")

	stdout, _, err = executeCLI(t, home, "profile", "get")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cello")

	stdout, _, err = executeCLI(t, home, "landing")
	require.NoError(t, err)
	assert.Equal(t, "capture\n", stdout)

	audio, photo := writeFixtures(t, t.TempDir())
	stdout, _, err = executeCLI(t, home, "mood", "submit", "--text", "calm today", "--audio", audio, "--image", photo)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Mood entry saved")

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, _, err = executeCLI(t, home, "logout")
	require.NoError(t, err)
	stdout, _, err = executeCLI(t, home, "landing")
	require.NoError(t, err)
	assert.Equal(t, "login\n", stdout)
}

func TestMoodSubmitRequiresAllInputs(t *testing.T) {
	srv, uploadDir := newMoodServer(t)
	home := t.TempDir()
	t.Setenv("MOODCTL_SERVER", srv.URL)

	_, _, err := executeCLI(t, home, "signup", "--email", "b@example.com", "--password", "secret1")
	require.NoError(t, err)

	audio, _ := writeFixtures(t, t.TempDir())
	_, _, err = executeCLI(t, home, "mood", "submit", "--text", "only voice", "--audio", audio)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image")

	_, err = os.Stat(uploadDir)
	assert.True(t, os.IsNotExist(err), "nothing reaches the server")
}

func TestMoodSubmitMissingCameraSource(t *testing.T) {
	srv, _ := newMoodServer(t)
	home := t.TempDir()
	t.Setenv("MOODCTL_SERVER", srv.URL)

	_, _, err := executeCLI(t, home, "signup", "--email", "c@example.com", "--password", "secret1")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "mood", "submit", "--text", "x", "--image", filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No camera is available.")
}

func TestLoginRequiresFlags(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "login", "--email", "a@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "password" not set`)
}

func TestConfigShowsMaskedToken(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, configFileName),
		[]byte("token = \"abcd1234efgh5678\"\nlang = \"zh\"\n"), 0o600))
	t.Setenv("MOODCTL_SERVER", "http://mood.test")

	stdout, _, err := executeCLI(t, home, "config")
	require.NoError(t, err)

	var got effectiveConfig
	require.NoError(t, toml.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "http://mood.test", got.Server)
	assert.Equal(t, "zh", got.Lang)
	assert.Equal(t, "abcd********5678", got.Token)

	stdout, _, err = executeCLI(t, home, "config", "--reveal")
	require.NoError(t, err)
	require.NoError(t, toml.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "abcd1234efgh5678", got.Token)
}
