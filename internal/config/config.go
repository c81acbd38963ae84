package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/part5srs/internal/sm2"
)

// EnvPrefix prefixes every environment variable read as configuration.
// Nested keys are separated by a double underscore: PART5SRS_DB__DSN.
const EnvPrefix = "PART5SRS_"

// Config is the application configuration.
type Config struct {
	DB        DBConfig      `koanf:"db"`
	Server    ServerConfig  `koanf:"server"`
	Log       LogConfig     `koanf:"log"`
	Corpus    CorpusConfig  `koanf:"corpus"`
	Session   SessionConfig `koanf:"session"`
	Scheduler sm2.Params    `koanf:"scheduler"`
}

type DBConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type ServerConfig struct {
	Addr          string        `koanf:"addr" validate:"required"`
	SessionMaxAge time.Duration `koanf:"session_max_age" validate:"gte=1s"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type CorpusConfig struct {
	ReposDir     string        `koanf:"repos_dir" validate:"required"`
	SyncInterval time.Duration `koanf:"sync_interval" validate:"gte=0"` // 0 disables periodic sync
	Concurrency  int           `koanf:"concurrency" validate:"gte=1,lte=64"`
}

type SessionConfig struct {
	MaxItems  int `koanf:"max_items" validate:"gte=0"`  // 0 = no cap
	BatchSize int `koanf:"batch_size" validate:"gte=0"` // 0 = write each answer immediately
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DB: DBConfig{
			Driver: "sqlite",
			DSN:    "part5srs.db",
		},
		Server: ServerConfig{
			Addr:          ":8080",
			SessionMaxAge: 2 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Corpus: CorpusConfig{
			ReposDir:    "repos",
			Concurrency: 4,
		},
		Session: SessionConfig{
			MaxItems: 20,
		},
		Scheduler: *sm2.DefaultParams(),
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"db":            "db.dsn",
	"driver":        "db.driver",
	"addr":          "server.addr",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"repos-dir":     "corpus.repos_dir",
	"sync-interval": "corpus.sync_interval",
	"max-items":     "session.max_items",
	"batch-size":    "session.batch_size",
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("config", "c", "", "Path to a YAML configuration file")
	fs.String("db", d.DB.DSN, "Database DSN (SQLite file path or postgres URL)")
	fs.String("driver", d.DB.Driver, "Database driver: sqlite or postgres")
	fs.String("addr", d.Server.Addr, "HTTP listen address")
	fs.String("log-level", d.Log.Level, "Log level: debug, info, warn or error")
	fs.String("log-format", d.Log.Format, "Log format: text or json")
	fs.String("repos-dir", d.Corpus.ReposDir, "Directory for git source checkouts")
	fs.Duration("sync-interval", d.Corpus.SyncInterval, "Re-sync sources this often while serving (0 disables)")
	fs.Int("max-items", d.Session.MaxItems, "Maximum questions per review session (0 = no cap)")
	fs.Int("batch-size", d.Session.BatchSize, "Write answers in batches of this size (0 = immediately)")
}

// Load builds the configuration from, in increasing priority: built-in
// defaults, the YAML file named by --config or PART5SRS_CONFIG, PART5SRS_*
// environment variables and explicitly set flags. envFiles are loaded into
// the environment first; missing files are skipped.
func Load(fs *pflag.FlagSet, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	k := koanf.New(".")

	path := os.Getenv(EnvPrefix + "CONFIG")
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey turns PART5SRS_CORPUS__REPOS_DIR into corpus.repos_dir.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if s == "config" {
		return ""
	}
	return strings.ReplaceAll(s, "__", ".")
}

// flagKey applies only flags set on the command line; defaults are already
// in the Config.
func flagKey(f *pflag.Flag) (string, interface{}) {
	key, ok := flagKeys[f.Name]
	if !ok || !f.Changed {
		return "", nil
	}
	return key, f.Value.String()
}

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
