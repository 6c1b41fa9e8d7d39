package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"classcal/internal/timewindow"
)

// assertSameSettings compares the persisted form of two configs.
func assertSameSettings(t *testing.T, want, got *Config) {
	t.Helper()
	w, err := yaml.Marshal(want)
	require.NoError(t, err)
	g, err := yaml.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, string(w), string(g))
}

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assertSameSettings(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assertSameSettings(t, cfg, again)
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
timezone: Asia/Seoul
legacy_recurrence_text: true
publish:
  cron: "0 * * * *"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "midnight", cfg.AllDayRule)
	assert.Equal(t, timewindow.AllDayMidnight, cfg.AllDay())
	assert.True(t, cfg.LegacyRecurrenceText)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Classes", cfg.Publish.CalendarName)
	assert.Equal(t, "Asia/Seoul", cfg.Location().String())
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := map[string]string{
		"bad cron":     "publish:\n  cron: \"every minute\"\n",
		"bad timezone": "timezone: Mars/Olympus\n",
		"bad all-day":  "all_day_rule: end-of-day\n",
		"half auth":    "basic_auth:\n  username: admin\n",
		"bad yaml":     "listen: [\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.AllDayRule = "end_of_day"
	cfg.Publish.Cron = ""
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, timewindow.AllDayEndOfDay, loaded.AllDay())
	assert.Empty(t, loaded.Publish.Cron)
	assert.Equal(t, "secret", loaded.BasicAuth.Password)
}

func TestLocation_FallsBackToLocal(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/Special"}
	assert.Equal(t, time.Local, cfg.Location())
}

func TestLocation_ResolvedOncePerZone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Seoul"
	require.NoError(t, cfg.Validate())

	first := cfg.Location()
	assert.Equal(t, "Asia/Seoul", first.String())
	assert.Same(t, first, cfg.Location())

	cfg.Timezone = "Europe/Paris"
	assert.Equal(t, "Europe/Paris", cfg.Location().String())
}

func TestValidate_RejectsUnknownAllDayRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllDayRule = "end-of-day"
	cfg.Normalize()
	assert.Equal(t, "end-of-day", cfg.AllDayRule)
	assert.ErrorContains(t, cfg.Validate(), "all_day_rule")

	cfg.AllDayRule = ""
	cfg.Normalize()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, timewindow.AllDayMidnight, cfg.AllDay())
}

func TestWriteFileAtomic_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.ics")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
