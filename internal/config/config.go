// Package config defines the configuration surface accepted by the core,
// exactly the option table in spec.md §6. It follows the teacher's
// Default()+Validate() convention (types.DefaultThresholds/Validate).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rdvcore/core/internal/stringutils"
)

// Memory holds the Memory Engine's tunables.
type Memory struct {
	DefaultShortTTLSecs    int     `yaml:"default_short_ttl_secs"`
	DefaultWorkingTTLSecs  *int    `yaml:"default_working_ttl_secs"`
	RetrieveDefaultLimit   int     `yaml:"retrieve_default_limit"`
	SimilarityThreshold    float64 `yaml:"similarity_threshold"`
	CrossSessionDefault    bool    `yaml:"cross_session_default"`
	CrossFolderDefault     bool    `yaml:"cross_folder_default"`
	MaxAgeDiffMs           *int64  `yaml:"max_age_diff_ms"`
}

// Extraction holds the Notes & Insight Extractor's tunables.
type Extraction struct {
	MinNoteFrequency  int     `yaml:"min_note_frequency"`
	BaseConfidence    float64 `yaml:"base_confidence"`
	FrequencyBoost    float64 `yaml:"frequency_boost"`
	MaxConfidence     float64 `yaml:"max_confidence"`
	MinContentLength  int     `yaml:"min_content_length"`
}

// Monitoring holds the Monitoring Loop's tunables.
type Monitoring struct {
	TickOverheadSlackMs int `yaml:"tick_overhead_slack_ms"`
}

// Injector holds the Command Injector's tunables.
type Injector struct {
	ExtraDenylist []string `yaml:"extra_denylist"`
}

// Notifications configures the external notification channels routed to by
// the Monitoring Loop for high/critical Orchestrator Insights. Shape is
// generalized from the teacher's types.NotificationsConfig.
type Notifications struct {
	EnableToast    bool          `yaml:"enable_toast"`
	EnableTerminal bool          `yaml:"enable_terminal"`
	EnableBanner   bool          `yaml:"enable_banner"`
	Slack          SlackConfig   `yaml:"slack"`
	Discord        DiscordConfig `yaml:"discord"`
	Email          EmailConfig   `yaml:"email"`
}

// SlackConfig holds Slack webhook settings.
type SlackConfig struct {
	Enabled     bool   `yaml:"enabled"`
	WebhookURL  string `yaml:"webhook_url"`
	Channel     string `yaml:"channel"`
	MinPriority int    `yaml:"min_priority"`
}

// DiscordConfig holds Discord webhook settings.
type DiscordConfig struct {
	Enabled     bool   `yaml:"enabled"`
	WebhookURL  string `yaml:"webhook_url"`
	MinPriority int    `yaml:"min_priority"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Enabled     bool     `yaml:"enabled"`
	SMTPHost    string   `yaml:"smtp_host"`
	SMTPPort    int      `yaml:"smtp_port"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	From        string   `yaml:"from"`
	To          []string `yaml:"to"`
	MinPriority int      `yaml:"min_priority"`
}

// Config is the full configuration struct accepted by the core, per
// spec.md §6's option table.
type Config struct {
	DatabasePath  string        `yaml:"-"`
	DefaultUserID string        `yaml:"-"`
	Memory        Memory        `yaml:"memory"`
	Extraction    Extraction    `yaml:"extraction"`
	Monitoring    Monitoring    `yaml:"monitoring"`
	Injector      Injector      `yaml:"injector"`
	Notifications Notifications `yaml:"notifications"`
}

// Default returns the configuration with every spec.md §6 default applied.
func Default() Config {
	return Config{
		Memory: Memory{
			DefaultShortTTLSecs:  300,
			RetrieveDefaultLimit: 20,
			SimilarityThreshold:  0.8,
			CrossSessionDefault:  true,
			CrossFolderDefault:   false,
			MaxAgeDiffMs:         durationMsPtr(7 * 24 * time.Hour),
		},
		Extraction: Extraction{
			MinNoteFrequency: 1,
			BaseConfidence:   0.5,
			FrequencyBoost:   0.1,
			MaxConfidence:    0.95,
			MinContentLength: 10,
		},
		Monitoring: Monitoring{
			TickOverheadSlackMs: 100,
		},
		Injector: Injector{
			ExtraDenylist: []string{},
		},
		Notifications: Notifications{
			EnableToast:    true,
			EnableTerminal: true,
			EnableBanner:   true,
		},
	}
}

func durationMsPtr(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}

// LoadEnv applies the two environment variables spec.md §6 documents on
// top of cfg, returning the updated value. RDV_DATABASE_PATH and
// RDV_USER_ID are the only environment-driven settings; everything else in
// the table is accepted only as struct fields.
func (c Config) LoadEnv() Config {
	if v := os.Getenv("RDV_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("RDV_USER_ID"); v != "" {
		c.DefaultUserID = v
	}
	return c
}

// LoadYAMLFile merges overrides from a YAML file onto cfg. Missing keys
// keep their existing value since the fields decode onto the receiver
// rather than a zero value.
func (c Config) LoadYAMLFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config file: %w", err)
	}
	return c, nil
}

// Validate checks the numeric ranges the component design depends on.
func (c Config) Validate() error {
	if stringutils.IsEmpty(c.DatabasePath) {
		return fmt.Errorf("database_path must not be blank")
	}
	if stringutils.IsEmpty(c.DefaultUserID) {
		return fmt.Errorf("default_user_id must not be blank")
	}
	if c.Memory.SimilarityThreshold < 0 || c.Memory.SimilarityThreshold > 1 {
		return fmt.Errorf("memory.similarity_threshold must be in [0,1]")
	}
	if c.Extraction.BaseConfidence < 0 || c.Extraction.BaseConfidence > 1 {
		return fmt.Errorf("extraction.base_confidence must be in [0,1]")
	}
	if c.Extraction.MaxConfidence < c.Extraction.BaseConfidence {
		return fmt.Errorf("extraction.max_confidence must be >= base_confidence")
	}
	if c.Memory.RetrieveDefaultLimit < 1 {
		return fmt.Errorf("memory.retrieve_default_limit must be at least 1")
	}
	return nil
}
