package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/pkg/activity"
)

// Storage backends accepted by StorageConfig.Backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultSlot is the storage key of the session document.
const DefaultSlot = "rased-session-v1"

// Duration accepts "500ms" style strings or integer milliseconds in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || value.Tag == "!!null" {
		d.Duration = 0
		return nil
	}
	if value.Tag == "!!int" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		d.Duration = time.Duration(n) * time.Millisecond
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must be like \"500ms\" or integer milliseconds: %w", err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type Config struct {
	Log      LogConfig       `yaml:"log"`
	Storage  StorageConfig   `yaml:"storage"`
	Autosave AutosaveConfig  `yaml:"autosave"`
	Print    PrintConfig     `yaml:"print"`
	Export   ExportConfig    `yaml:"export"`
	Server   ServerConfig    `yaml:"server"`
	Rules    []rased.Rule    `yaml:"rules"`
	Activity activity.Config `yaml:"activity"`
}

type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Slot    string      `yaml:"slot"`
	Owner   string      `yaml:"owner"`
	Dir     string      `yaml:"dir"`
	DSN     string      `yaml:"dsn"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	TTL      Duration `yaml:"ttl"`
}

// AutosaveConfig drives the save-status indicator.
type AutosaveConfig struct {
	SavedAfter Duration `yaml:"saved_after"`
	IdleAfter  Duration `yaml:"idle_after"`
}

type PrintConfig struct {
	AccentColor string `yaml:"accent_color"`
	LogoURL     string `yaml:"logo_url"`
	Title       string `yaml:"title"`
}

type ExportConfig struct {
	Dir       string   `yaml:"dir"`
	Prefix    string   `yaml:"prefix"`
	Clipboard []string `yaml:"clipboard"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default mirrors the behavior of the browser app: one slot, 500ms/2s status
// delays and the institutional accent.
func Default() *Config {
	return &Config{
		Log: LogConfig{Mode: "development", Level: "info"},
		Storage: StorageConfig{
			Backend: BackendFile,
			Slot:    DefaultSlot,
			Dir:     defaultDataDir(),
			Redis:   RedisConfig{Addr: "127.0.0.1:6379", Prefix: "rased:"},
		},
		Autosave: AutosaveConfig{
			SavedAfter: Duration{500 * time.Millisecond},
			IdleAfter:  Duration{2 * time.Second},
		},
		Print:    PrintConfig{AccentColor: rased.DefaultAccentColor},
		Export:   ExportConfig{Dir: ".", Prefix: "rased-formulaire"},
		Server:   ServerConfig{Addr: "127.0.0.1:8787"},
		Activity: activity.Config{Channel: activity.DefaultChannel},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "rased")
	}
	return ".rased"
}

// Load reads path (or $RASED_CONFIG when path is empty) over the defaults,
// then applies RASED_* environment overrides. A missing default file is not
// an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = strings.TrimSpace(os.Getenv("RASED_CONFIG"))
		explicit = path != ""
	}
	if !explicit {
		if wd, err := os.Getwd(); err == nil {
			candidate := filepath.Join(wd, "rased.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	set := func(key string, target *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
		}
	}
	set("RASED_LOG_MODE", &cfg.Log.Mode)
	set("RASED_LOG_LEVEL", &cfg.Log.Level)
	set("RASED_STORAGE", &cfg.Storage.Backend)
	set("RASED_SLOT", &cfg.Storage.Slot)
	set("RASED_OWNER", &cfg.Storage.Owner)
	set("RASED_DATA_DIR", &cfg.Storage.Dir)
	set("RASED_DSN", &cfg.Storage.DSN)
	set("RASED_REDIS_ADDR", &cfg.Storage.Redis.Addr)
	set("RASED_REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	set("RASED_ACCENT", &cfg.Print.AccentColor)
	set("RASED_LOGO_URL", &cfg.Print.LogoURL)
	set("RASED_EXPORT_DIR", &cfg.Export.Dir)
	set("RASED_HTTP_ADDR", &cfg.Server.Addr)

	if v := strings.TrimSpace(os.Getenv("RASED_REDIS_DB")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RASED_REDIS_DB: %w", err)
		}
		cfg.Storage.Redis.DB = n
	}
	if v := strings.TrimSpace(os.Getenv("RASED_ACTIVITY")); v != "" {
		cfg.Activity.Enabled = parseBool(v)
	}
	return nil
}

func (cfg *Config) normalize() error {
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	switch cfg.Storage.Backend {
	case "":
		cfg.Storage.Backend = BackendFile
	case BackendMemory, BackendFile, BackendSQLite, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("config: unknown storage backend %q", cfg.Storage.Backend)
	}
	if strings.TrimSpace(cfg.Storage.Slot) == "" {
		cfg.Storage.Slot = DefaultSlot
	}
	switch cfg.Storage.Backend {
	case BackendFile:
		if strings.TrimSpace(cfg.Storage.Dir) == "" {
			cfg.Storage.Dir = defaultDataDir()
		}
	case BackendSQLite:
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			cfg.Storage.DSN = filepath.Join(cfg.Storage.Dir, "rased.db")
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return errors.New("config: storage.dsn is required for postgres")
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
			return errors.New("config: storage.redis.addr is required for redis")
		}
	}

	if cfg.Autosave.SavedAfter.Duration <= 0 {
		cfg.Autosave.SavedAfter.Duration = 500 * time.Millisecond
	}
	if cfg.Autosave.IdleAfter.Duration <= 0 {
		cfg.Autosave.IdleAfter.Duration = 2 * time.Second
	}

	if accent := strings.TrimSpace(cfg.Print.AccentColor); accent == "" {
		cfg.Print.AccentColor = rased.DefaultAccentColor
	} else if !rased.IsHexColor(accent) {
		return fmt.Errorf("config: print.accent_color %q is not a hex color", accent)
	}
	if strings.TrimSpace(cfg.Export.Prefix) == "" {
		cfg.Export.Prefix = "rased-formulaire"
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = "127.0.0.1:8787"
	}

	for i, rule := range cfg.Rules {
		if rule.Step < 0 || rule.Step >= rased.StepCount {
			return fmt.Errorf("config: rules[%d]: step %d out of range", i, rule.Step)
		}
		if strings.TrimSpace(rule.Expr) == "" {
			return fmt.Errorf("config: rules[%d]: expr is required", i)
		}
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on", "oui":
		return true
	default:
		return false
	}
}
