// Package config loads the daemon's single settings file (spec §6).
//
// Grounded on the corpus's viper-based config loader: YAML on disk,
// environment-variable overrides, and a typed Go struct consumers bind
// against instead of touching viper directly.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings is the single configuration surface named in spec §6: root data
// directory, host/port, log level, default provider priority, default
// timeouts, max iterations, debug/raw flags, compaction threshold, and the
// approval-audit path.
type Settings struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`

	DefaultProviderPriority int           `mapstructure:"default_provider_priority" yaml:"default_provider_priority"`
	ProviderTimeout         time.Duration `mapstructure:"provider_timeout" yaml:"provider_timeout"`
	MaxIterations           int           `mapstructure:"max_iterations" yaml:"max_iterations"`

	DebugEvents bool `mapstructure:"debug_events" yaml:"debug_events"`
	RawEvents   bool `mapstructure:"raw_events" yaml:"raw_events"`

	CompactionThreshold int `mapstructure:"compaction_threshold" yaml:"compaction_threshold"`

	ApprovalAuditPath string `mapstructure:"approval_audit_path" yaml:"approval_audit_path"`

	SubscriberQueueSize int `mapstructure:"subscriber_queue_size" yaml:"subscriber_queue_size"`
}

// Default returns the built-in defaults, matching the constants named
// throughout spec.md (600s provider timeout, 50-message compaction
// threshold, 256-deep subscriber queues).
func Default() Settings {
	return Settings{
		DataDir:                 "./data",
		Host:                    "127.0.0.1",
		Port:                    8099,
		LogLevel:                "info",
		LogFormat:               "console",
		DefaultProviderPriority: 100,
		ProviderTimeout:         600 * time.Second,
		MaxIterations:           25,
		CompactionThreshold:     50,
		ApprovalAuditPath:       "audit/approvals.jsonl",
		SubscriberQueueSize:     256,
	}
}

// Load reads settings from path (if non-empty) layered over Default(),
// allowing AGENTD_-prefixed environment variables to override any field.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("AGENTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetConfigType("yaml")
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("default_provider_priority", def.DefaultProviderPriority)
	v.SetDefault("provider_timeout", def.ProviderTimeout)
	v.SetDefault("max_iterations", def.MaxIterations)
	v.SetDefault("compaction_threshold", def.CompactionThreshold)
	v.SetDefault("approval_audit_path", def.ApprovalAuditPath)
	v.SetDefault("subscriber_queue_size", def.SubscriberQueueSize)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("debug_events", def.DebugEvents)
	v.SetDefault("raw_events", def.RawEvents)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return s, nil
}

// WriteDefault scaffolds a new settings file at path populated with
// Default(), failing if a file already exists there unless force is set.
// Grounded on the teacher's "mote init" (RunInit writing config.yaml via
// gopkg.in/yaml.v3), trimmed to this daemon's single settings file instead
// of the teacher's whole config-directory tree (logs/ui/tools/skills
// subdirectories this daemon doesn't have).
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("settings file already exists at %s (use --force to overwrite)", path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings file %s: %w", path, err)
	}
	return nil
}
