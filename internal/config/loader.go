package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/example/gov-agenda/internal/scheduler"
)

// Config captures the runtime settings of the agenda service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	Location        *time.Location
	WorkDayStart    scheduler.ClockTime
	WorkDayEnd      scheduler.ClockTime
	SlotStep        time.Duration
	DigestCron      string
	RateLimitRPS    float64
	RateLimitBurst  int
	CORSOrigins     []string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// fileConfig mirrors the YAML layout. Every field is a string or list so that
// the same parsing and validation path serves both the file and the environment.
type fileConfig struct {
	HTTPPort        string   `yaml:"http_port"`
	SQLiteDSN       string   `yaml:"sqlite_dsn"`
	Timezone        string   `yaml:"timezone"`
	WorkDayStart    string   `yaml:"work_day_start"`
	WorkDayEnd      string   `yaml:"work_day_end"`
	SlotStep        string   `yaml:"slot_step"`
	DigestCron      string   `yaml:"digest_cron"`
	RateLimitRPS    string   `yaml:"rate_limit_rps"`
	RateLimitBurst  string   `yaml:"rate_limit_burst"`
	CORSOrigins     []string `yaml:"cors_origins"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

const envPrefix = "GOVAGENDA_"

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTPPort:        8080,
		SQLiteDSN:       "file:govagenda.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		Location:        time.UTC,
		WorkDayStart:    scheduler.ClockTime{Hour: 8},
		WorkDayEnd:      scheduler.ClockTime{Hour: 18},
		SlotStep:        scheduler.DefaultSlotStep,
		DigestCron:      "0 7 * * *",
		RateLimitRPS:    20,
		RateLimitBurst:  40,
		CORSOrigins:     []string{"http://localhost:5173"},
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then GOVAGENDA_* environment variables. Invalid values are collected and
// reported together with the name of the setting that carried them.
func Load(path string) (Config, error) {
	raw := fileConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("lecture du fichier de configuration %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("fichier de configuration %s invalide: %w", path, err)
		}
	}
	raw.overlayEnv()
	return raw.resolve()
}

func (f *fileConfig) overlayEnv() {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
			*dst = v
		}
	}
	setString("HTTP_PORT", &f.HTTPPort)
	setString("SQLITE_DSN", &f.SQLiteDSN)
	setString("TIMEZONE", &f.Timezone)
	setString("WORK_DAY_START", &f.WorkDayStart)
	setString("WORK_DAY_END", &f.WorkDayEnd)
	setString("SLOT_STEP", &f.SlotStep)
	setString("DIGEST_CRON", &f.DigestCron)
	setString("RATE_LIMIT_RPS", &f.RateLimitRPS)
	setString("RATE_LIMIT_BURST", &f.RateLimitBurst)
	setString("LOG_LEVEL", &f.LogLevel)
	setString("LOG_FORMAT", &f.LogFormat)
	setString("SHUTDOWN_TIMEOUT", &f.ShutdownTimeout)

	if v := strings.TrimSpace(os.Getenv(envPrefix + "CORS_ORIGINS")); v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		f.CORSOrigins = origins
	}
}

func (f fileConfig) resolve() (Config, error) {
	cfg := Default()
	invalid := make([]string, 0)

	if f.HTTPPort != "" {
		port, err := strconv.Atoi(f.HTTPPort)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "http_port")
		} else {
			cfg.HTTPPort = port
		}
	}

	if f.SQLiteDSN != "" {
		cfg.SQLiteDSN = f.SQLiteDSN
	}

	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			invalid = append(invalid, "timezone")
		} else {
			cfg.Location = loc
		}
	}

	if f.WorkDayStart != "" {
		c, err := scheduler.ParseClockTime(f.WorkDayStart)
		if err != nil {
			invalid = append(invalid, "work_day_start")
		} else {
			cfg.WorkDayStart = c
		}
	}
	if f.WorkDayEnd != "" {
		c, err := scheduler.ParseClockTime(f.WorkDayEnd)
		if err != nil {
			invalid = append(invalid, "work_day_end")
		} else {
			cfg.WorkDayEnd = c
		}
	}
	if !cfg.WorkDayStart.Before(cfg.WorkDayEnd) {
		invalid = append(invalid, "work_day_start/work_day_end")
	}

	if f.SlotStep != "" {
		step, err := time.ParseDuration(f.SlotStep)
		if err != nil || step <= 0 {
			invalid = append(invalid, "slot_step")
		} else {
			cfg.SlotStep = step
		}
	}

	if f.DigestCron != "" {
		cfg.DigestCron = f.DigestCron
	}
	if _, err := cron.ParseStandard(cfg.DigestCron); err != nil {
		invalid = append(invalid, "digest_cron")
	}

	if f.RateLimitRPS != "" {
		rps, err := strconv.ParseFloat(f.RateLimitRPS, 64)
		if err != nil || rps < 0 {
			invalid = append(invalid, "rate_limit_rps")
		} else {
			cfg.RateLimitRPS = rps
		}
	}
	if f.RateLimitBurst != "" {
		burst, err := strconv.Atoi(f.RateLimitBurst)
		if err != nil || burst < 0 {
			invalid = append(invalid, "rate_limit_burst")
		} else {
			cfg.RateLimitBurst = burst
		}
	}

	if f.CORSOrigins != nil {
		cfg.CORSOrigins = f.CORSOrigins
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.LogFormat = f.LogFormat
	}

	if f.ShutdownTimeout != "" {
		d, err := time.ParseDuration(f.ShutdownTimeout)
		if err != nil || d <= 0 {
			invalid = append(invalid, "shutdown_timeout")
		} else {
			cfg.ShutdownTimeout = d
		}
	}

	if len(invalid) > 0 {
		return Config{}, &InvalidError{Fields: invalid}
	}
	return cfg, nil
}

// InvalidError lists the settings whose values could not be used.
type InvalidError struct {
	Fields []string
}

func (e *InvalidError) Error() string {
	return "valeurs de configuration invalides: " + strings.Join(e.Fields, ", ")
}

// IsInvalid reports whether err was caused by invalid setting values.
func IsInvalid(err error) bool {
	var target *InvalidError
	return errors.As(err, &target)
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// DayWindow returns the configured working hours on the given day.
func (c Config) DayWindow(day time.Time) scheduler.WorkWindow {
	return scheduler.DayWindow(day, c.WorkDayStart, c.WorkDayEnd, c.Location)
}
