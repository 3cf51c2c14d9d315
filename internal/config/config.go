package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"repscore-engine/internal/domain"
)

// PropertyConfig is one property as operators write it. Aliases map a
// platform name to its reference: a place ID for google, a listing URL
// for the OTAs. Missing OTA aliases are resolved live.
type PropertyConfig struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	City    string            `yaml:"city"`
	State   string            `yaml:"state"`
	Aliases map[string]string `yaml:"aliases"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Store struct {
		Backend     string `yaml:"backend"` // sqlite | postgres
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"store"`

	Platforms struct {
		Enabled []string `yaml:"enabled"`
	} `yaml:"platforms"`

	Pacing struct {
		UnitDelayMS       int `yaml:"unit_delay_ms"`
		GoogleOnlyDelayMS int `yaml:"google_only_delay_ms"`
	} `yaml:"pacing"`

	Retry struct {
		MaxRetries int `yaml:"max_retries"`
		DelayMS    int `yaml:"delay_ms"`
	} `yaml:"retry"`

	Providers struct {
		Mode   string            `yaml:"mode"`   // live | stub
		Actors map[string]string `yaml:"actors"` // platform -> apify actor override
	} `yaml:"providers"`

	Resolver struct {
		Mode           string `yaml:"mode"` // http | browser
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"resolver"`

	Schedule struct {
		Enabled bool   `yaml:"enabled"`
		DailyAt string `yaml:"daily_at"` // "HH:MM", local time
	} `yaml:"schedule"`

	Alerts struct {
		Enabled     bool     `yaml:"enabled"`
		IMAPHost    string   `yaml:"imap_host"`
		IMAPPort    int      `yaml:"imap_port"`
		Username    string   `yaml:"username"`
		Mailbox     string   `yaml:"mailbox"`
		PollSeconds int      `yaml:"poll_seconds"`
		SubjectAny  []string `yaml:"subject_any"`
	} `yaml:"alerts"`

	Search struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Index   string `yaml:"index"`
	} `yaml:"search"`

	Properties []PropertyConfig `yaml:"properties"`
}

// Defaults is the baseline every load starts from, so a sparse user
// file only overrides what it mentions.
func Defaults() Config {
	var cfg Config
	cfg.App.Port = 8642
	cfg.Store.Backend = "sqlite"
	cfg.Platforms.Enabled = []string{"google", "tripadvisor", "booking", "expedia"}
	cfg.Pacing.UnitDelayMS = 5000
	cfg.Pacing.GoogleOnlyDelayMS = 2000
	cfg.Retry.MaxRetries = 1
	cfg.Retry.DelayMS = 10000
	cfg.Providers.Mode = "live"
	cfg.Resolver.Mode = "http"
	cfg.Resolver.TimeoutSeconds = 60
	cfg.Alerts.IMAPPort = 993
	cfg.Alerts.Mailbox = "INBOX"
	cfg.Alerts.PollSeconds = 300
	cfg.Alerts.SubjectAny = []string{"reputation alert", "review alert"}
	cfg.Search.Host = "http://127.0.0.1:7700"
	cfg.Search.Index = "properties"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) UnitDelay() time.Duration {
	return time.Duration(c.Pacing.UnitDelayMS) * time.Millisecond
}

func (c Config) GoogleOnlyDelay() time.Duration {
	return time.Duration(c.Pacing.GoogleOnlyDelayMS) * time.Millisecond
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelayMS) * time.Millisecond
}

func (c Config) ResolverTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutSeconds) * time.Second
}

func (c Config) AlertPollInterval() time.Duration {
	return time.Duration(c.Alerts.PollSeconds) * time.Second
}

// EnabledPlatforms parses platforms.enabled, dropping names that
// don't parse; Validate reports those separately.
func (c Config) EnabledPlatforms() []domain.Platform {
	var out []domain.Platform
	for _, name := range c.Platforms.Enabled {
		if pl, err := domain.ParsePlatform(name); err == nil {
			out = append(out, pl)
		}
	}
	return out
}

// DomainProperties converts the configured properties, keeping only
// aliases whose platform parses.
func (c Config) DomainProperties() []domain.Property {
	out := make([]domain.Property, 0, len(c.Properties))
	for _, pc := range c.Properties {
		p := domain.Property{
			ID:    pc.ID,
			Name:  pc.Name,
			City:  pc.City,
			State: pc.State,
		}
		if len(pc.Aliases) > 0 {
			p.Aliases = make(map[domain.Platform]string, len(pc.Aliases))
			for name, ref := range pc.Aliases {
				if pl, err := domain.ParsePlatform(name); err == nil {
					p.Aliases[pl] = ref
				}
			}
		}
		out = append(out, p)
	}
	return out
}
