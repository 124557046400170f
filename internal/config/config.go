package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FactRule describes how a single scheduling-system fact is interpreted.
type FactRule struct {
	// Title is the fact name as configured in the scheduling system.
	Title string `yaml:"title" json:"title"`
	// Value is the fact value that switches the flag on.
	Value string `yaml:"value" json:"value"`
	// IgnoreValue, if matched, marks the event's broadcast as untouchable.
	// Only meaningful for the livestream fact.
	IgnoreValue string `yaml:"ignore_value,omitempty" json:"ignore_value,omitempty"`
	// Default is the flag value used when the fact is absent.
	Default bool `yaml:"default" json:"default"`
}

// VisibilityRule maps fact values onto broadcast privacy statuses.
type VisibilityRule struct {
	// Title is the fact name carrying the desired visibility.
	Title string `yaml:"title" json:"title"`
	// Values associates privacy statuses ("public", "unlisted", "private")
	// with the fact values that select them.
	Values map[string]string `yaml:"values" json:"values"`
}

// EventsConfig controls which scheduling events are loaded and how their
// facts and services are interpreted.
type EventsConfig struct {
	// DaysAhead limits reconciliation to events starting within this many days.
	DaysAhead int `yaml:"days_ahead" json:"days_ahead"`
	// SpeakerService is the service-type title whose assignment names the speaker.
	SpeakerService string `yaml:"speaker_service" json:"speaker_service"`
	// ThumbnailName is the attached-file name (without extension) used as
	// the broadcast thumbnail when present.
	ThumbnailName string `yaml:"thumbnail_name" json:"thumbnail_name"`

	Livestream FactRule       `yaml:"livestream" json:"livestream"`
	OnHomepage FactRule       `yaml:"on_homepage" json:"on_homepage"`
	InCalendar FactRule       `yaml:"in_calendar" json:"in_calendar"`
	Visibility VisibilityRule `yaml:"visibility" json:"visibility"`
}

// BroadcastConfig controls how broadcasts are titled and created.
type BroadcastConfig struct {
	// TitleTemplate supports %title%, %subject%, %speaker%, %date%.
	TitleTemplate string `yaml:"title_template" json:"title_template"`
	// DescriptionTemplate additionally supports %subject_newline% and
	// %speaker_newline%.
	DescriptionTemplate string `yaml:"description_template" json:"description_template"`
	// DefaultThumbnail is a publicly reachable image URL used when the
	// event has no matching thumbnail file attached.
	DefaultThumbnail string `yaml:"default_thumbnail" json:"default_thumbnail"`
	// StreamKeyID is the id of the platform stream key to bind (not the key).
	StreamKeyID string `yaml:"stream_key_id" json:"stream_key_id"`
	// DefaultVisibility is the privacy status used when no visibility fact
	// matches ("public", "unlisted" or "private").
	DefaultVisibility string `yaml:"default_visibility" json:"default_visibility"`
}

// PublishConfig controls the downstream page publication.
type PublishConfig struct {
	// Enabled toggles page publication entirely.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// AdvanceDays is how many days before an event's start its link
	// becomes visible.
	AdvanceDays int `yaml:"advance_days" json:"advance_days"`
	// AllowParallelWindows permits an event's advance window to overlap a
	// running earlier event. When false the window is clamped to the
	// earlier event's end.
	AllowParallelWindows bool `yaml:"allow_parallel_windows" json:"allow_parallel_windows"`
	// Pages maps page ids to template keys.
	Pages map[int]string `yaml:"pages" json:"pages"`
	// FeedPath, if set, is where the ICS feed of reconciled livestreams is
	// written after each run.
	FeedPath string `yaml:"feed_path,omitempty" json:"feed_path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the daemon endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the daemon's status endpoints.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone shared by the scheduling system and the
	// broadcast platform (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the cron schedule for daemon-mode runs.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// StateFile is where the run fingerprint is persisted between runs.
	StateFile string `yaml:"state_file" json:"state_file"`

	// SnapshotFile is the offline gateway snapshot backing this binary's
	// runs. Production gateway adapters are wired in their own binaries.
	SnapshotFile string `yaml:"snapshot_file" json:"snapshot_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Events    EventsConfig    `yaml:"events" json:"events"`
	Broadcast BroadcastConfig `yaml:"broadcast" json:"broadcast"`
	Publish   PublishConfig   `yaml:"publish" json:"publish"`

	// BasicAuth, if non-nil, protects all daemon endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Berlin",
		RefreshCron: "*/15 * * * *",
		StateFile:   "./var/livesync-state",
		LogLevel:    "info",
		Events: EventsConfig{
			DaysAhead:      6,
			SpeakerService: "Predigt",
			ThumbnailName:  "YouTube",
			Livestream: FactRule{
				Title:       "Livestream",
				Value:       "Ja",
				IgnoreValue: "Ignorieren",
				Default:     false,
			},
			OnHomepage: FactRule{
				Title:   "Livestream auf der Homepage",
				Value:   "Ja",
				Default: true,
			},
			InCalendar: FactRule{
				Title:   "Livestream im Kalender",
				Value:   "Ja",
				Default: false,
			},
			Visibility: VisibilityRule{
				Title: "Livestream Sichtbarkeit",
				Values: map[string]string{
					"public":   "Öffentlich",
					"unlisted": "Nur über einen Link",
					"private":  "Privat",
				},
			},
		},
		Broadcast: BroadcastConfig{
			TitleTemplate:       "%title% -%subject%%speaker%%date%",
			DescriptionTemplate: "Livestream aus unserer Gemeinde\n\n%speaker_newline%%subject%",
			DefaultVisibility:   "public",
		},
		Publish: PublishConfig{
			Enabled:     false,
			AdvanceDays: 6,
			Pages:       map[int]string{},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.StateFile == "" {
		c.StateFile = def.StateFile
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Events.DaysAhead <= 0 {
		c.Events.DaysAhead = def.Events.DaysAhead
	}
	if c.Events.Visibility.Values == nil {
		c.Events.Visibility.Values = map[string]string{}
	}
	if c.Broadcast.TitleTemplate == "" {
		c.Broadcast.TitleTemplate = def.Broadcast.TitleTemplate
	}
	if c.Broadcast.DescriptionTemplate == "" {
		c.Broadcast.DescriptionTemplate = def.Broadcast.DescriptionTemplate
	}
	if c.Broadcast.DefaultVisibility == "" {
		c.Broadcast.DefaultVisibility = def.Broadcast.DefaultVisibility
	}
	if c.Publish.AdvanceDays <= 0 {
		c.Publish.AdvanceDays = def.Publish.AdvanceDays
	}
	if c.Publish.Pages == nil {
		c.Publish.Pages = map[int]string{}
	}
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	switch c.Broadcast.DefaultVisibility {
	case "public", "unlisted", "private":
	default:
		return fmt.Errorf("config: invalid default_visibility %q", c.Broadcast.DefaultVisibility)
	}
	for status := range c.Events.Visibility.Values {
		switch status {
		case "public", "unlisted", "private":
		default:
			return fmt.Errorf("config: invalid visibility status %q", status)
		}
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
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
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".livesync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
