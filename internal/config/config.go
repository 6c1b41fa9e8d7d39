package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
	_ "time/tzdata" // zone database for minimal containers

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "classcal/internal/log"
	"classcal/internal/timewindow"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// PublishConfig controls the periodic iCalendar feed export.
type PublishConfig struct {
	// Cron is a standard 5-field cron expression. Empty disables publishing.
	Cron string `yaml:"cron" json:"cron"`
	// Path is where the .ics file is written.
	Path string `yaml:"path" json:"path"`
	// CalendarName is shown by calendar clients subscribing to the feed.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to interpret form dates (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// DatabasePath is the SQLite file holding events.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// AllDayRule picks the all-day predicate. Supported values:
	//   - "midnight" (default): start and end both at 00:xx on the same day
	//   - "end_of_day": start at 00:xx, end at 23:xx on the same day
	AllDayRule string `yaml:"all_day_rule" json:"all_day_rule"`

	// LegacyRecurrenceText keeps the old wording for biweekly multi-day rules.
	LegacyRecurrenceText bool `yaml:"legacy_recurrence_text" json:"legacy_recurrence_text"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Publish PublishConfig `yaml:"publish" json:"publish"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	resolved atomic.Pointer[zone]
}

// zone is a resolved Timezone, keyed by the name it was loaded from.
type zone struct {
	name string
	loc  *time.Location
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "UTC",
		DatabasePath: "/var/lib/classcal/classcal.db",
		AllDayRule:   string(timewindow.DefaultAllDayRule),
		LogLevel:     "info",
		Publish: PublishConfig{
			Cron:         "*/15 * * * *",
			Path:         "/var/lib/classcal/calendar.ics",
			CalendarName: "Classes",
		},
	}
}

// Normalize fills in missing values so that partially-filled configs still
// behave correctly. Unknown values are left for Validate to reject.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.AllDayRule == "" {
		c.AllDayRule = def.AllDayRule
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Publish.Path == "" {
		c.Publish.Path = def.Publish.Path
	}
	if c.Publish.CalendarName == "" {
		c.Publish.CalendarName = def.Publish.CalendarName
	}
}

// Validate reports settings that cannot be defaulted away.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	c.resolved.Store(&zone{name: c.Timezone, loc: loc})
	if _, err := timewindow.ParseAllDayRule(c.AllDayRule); err != nil {
		return fmt.Errorf("config: all_day_rule: %w", err)
	}
	if c.Publish.Cron != "" {
		if _, err := cron.ParseStandard(c.Publish.Cron); err != nil {
			return fmt.Errorf("config: publish.cron %q: %w", c.Publish.Cron, err)
		}
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return errors.New("config: basic_auth needs both username and password")
	}
	return nil
}

// Location returns the configured zone, or time.Local if it cannot be loaded.
// The zone is loaded once per Timezone value.
func (c *Config) Location() *time.Location {
	if z := c.resolved.Load(); z != nil && z.name == c.Timezone {
		return z.loc
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		loc = time.Local
	}
	c.resolved.Store(&zone{name: c.Timezone, loc: loc})
	return loc
}

// AllDay returns the parsed all-day rule.
func (c *Config) AllDay() timewindow.AllDayRule {
	r, err := timewindow.ParseAllDayRule(c.AllDayRule)
	if err != nil {
		return timewindow.DefaultAllDayRule
	}
	return r
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created) and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data next to path and renames it into place, so
// readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".classcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
