/*
Package config loads server configuration.

PRECEDENCE (later wins):
  1. Default()
  2. TOML file, if a path is given
  3. Environment variables

ENVIRONMENT:
  Every field can be set by its bare name (PORT, DB_DRIVER, LOG_LEVEL, ...)
  or by its section-prefixed name (SERVER_PORT, DATABASE_DB_DRIVER, ...).
  Unset variables leave the file or default value alone.

EXAMPLE FILE:
  [server]
  port = 8080
  write_timeout = "15s"

  [database]
  driver = "sqlite"
  sqlite_path = "./data/ledger.db"

  [ledger]
  max_attempts = 3
  lock_timeout = "2s"

  [audit]
  interval = "1h"
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/warp/party-ledger/logger"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Log      LogConfig      `toml:"log"`
	Audit    AuditConfig    `toml:"audit"`
}

type ServerConfig struct {
	Port            int           `toml:"port" envconfig:"PORT"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	WriteTimeout    time.Duration `toml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	CORSOrigins     []string      `toml:"cors_origins" envconfig:"CORS_ORIGINS"`
	LoadScenarios   bool          `toml:"load_scenarios" envconfig:"LOAD_SCENARIOS"`
}

type DatabaseConfig struct {
	Driver     string `toml:"driver" envconfig:"DB_DRIVER"`
	SQLitePath string `toml:"sqlite_path" envconfig:"SQLITE_PATH"`
	URL        string `toml:"url" envconfig:"DATABASE_URL"`
}

// LedgerConfig bounds write retries. MaxAttempts lock waits must fit
// inside the server write timeout so a stuck writer still gets its 409.
type LedgerConfig struct {
	MaxAttempts int           `toml:"max_attempts" envconfig:"LEDGER_MAX_ATTEMPTS"`
	LockTimeout time.Duration `toml:"lock_timeout" envconfig:"LEDGER_LOCK_TIMEOUT"`
}

type LogConfig struct {
	Level  string `toml:"level" envconfig:"LOG_LEVEL"`
	Format string `toml:"format" envconfig:"LOG_FORMAT"`
	Output string `toml:"output" envconfig:"LOG_OUTPUT"`
}

// AuditConfig controls the background audit. Zero Interval disables it.
type AuditConfig struct {
	Interval time.Duration `toml:"interval" envconfig:"AUDIT_INTERVAL"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			WriteTimeout:    15 * time.Second,
			CORSOrigins:     []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			SQLitePath: "./data/ledger.db",
		},
		Ledger: LedgerConfig{
			MaxAttempts: 3,
			LockTimeout: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Audit: AuditConfig{
			Interval: time.Hour,
		},
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			problems = append(problems, "sqlite driver needs sqlite_path")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			problems = append(problems, "postgres driver needs url")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	if c.Ledger.MaxAttempts < 1 {
		problems = append(problems, "ledger max_attempts must be at least 1")
	}
	if c.Server.WriteTimeout < 0 {
		problems = append(problems, "server write_timeout must not be negative")
	}
	if c.Ledger.LockTimeout < 0 {
		problems = append(problems, "ledger lock_timeout must not be negative")
	}
	if wait := c.Ledger.LockWaitBudget(); c.Server.WriteTimeout > 0 && wait >= c.Server.WriteTimeout {
		problems = append(problems, fmt.Sprintf("ledger lock waits (%d x %s) must finish inside server write_timeout %s",
			c.Ledger.MaxAttempts, c.Ledger.LockTimeout, c.Server.WriteTimeout))
	}
	if !logger.ValidLevel(c.Log.Level) {
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Audit.Interval < 0 {
		problems = append(problems, "audit interval must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LockWaitBudget is the longest a write can spend waiting on party locks.
func (l LedgerConfig) LockWaitBudget() time.Duration {
	if l.MaxAttempts < 1 {
		return 0
	}
	return time.Duration(l.MaxAttempts) * l.LockTimeout
}

func (c Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}
