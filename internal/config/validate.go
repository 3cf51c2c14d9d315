package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"repscore-engine/internal/domain"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate trims and dedupes what it safely can and
// reports everything else. Errors block saving; warnings don't.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	// ---- Normalization ----

	out.Store.Backend = strings.ToLower(strings.TrimSpace(out.Store.Backend))
	out.Providers.Mode = strings.ToLower(strings.TrimSpace(out.Providers.Mode))
	out.Resolver.Mode = strings.ToLower(strings.TrimSpace(out.Resolver.Mode))

	seenPl := map[string]bool{}
	var platforms []string
	for _, name := range out.Platforms.Enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seenPl[name] {
			continue
		}
		seenPl[name] = true
		platforms = append(platforms, name)
	}
	out.Platforms.Enabled = platforms

	for i := range out.Properties {
		out.Properties[i].ID = strings.TrimSpace(out.Properties[i].ID)
		out.Properties[i].Name = strings.TrimSpace(out.Properties[i].Name)
		out.Properties[i].City = strings.TrimSpace(out.Properties[i].City)
		out.Properties[i].State = strings.TrimSpace(out.Properties[i].State)
	}

	// ---- Validation ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	switch out.Store.Backend {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(out.Store.PostgresDSN) == "" {
			res.addErr("store.postgres_dsn is required when store.backend=postgres")
		}
	default:
		res.addErr("store.backend must be sqlite or postgres, got %q", out.Store.Backend)
	}

	if len(out.Platforms.Enabled) == 0 {
		res.addErr("platforms.enabled must name at least one platform")
	}
	for _, name := range out.Platforms.Enabled {
		if _, err := domain.ParsePlatform(name); err != nil {
			res.addErr("platforms.enabled: unknown platform %q", name)
		}
	}

	if out.Pacing.UnitDelayMS < 0 || out.Pacing.GoogleOnlyDelayMS < 0 {
		res.addErr("pacing delays must be >= 0")
	} else if out.Pacing.UnitDelayMS > 0 && out.Pacing.UnitDelayMS < 1000 {
		res.addWarn("pacing.unit_delay_ms is very low (%d) and may trip provider rate limits.", out.Pacing.UnitDelayMS)
	}

	if out.Retry.MaxRetries < 0 {
		res.addErr("retry.max_retries must be >= 0")
	}
	if out.Retry.DelayMS < 0 {
		res.addErr("retry.delay_ms must be >= 0")
	}

	switch out.Providers.Mode {
	case "live", "stub":
	default:
		res.addErr("providers.mode must be live or stub, got %q", out.Providers.Mode)
	}
	for name := range out.Providers.Actors {
		if _, err := domain.ParsePlatform(name); err != nil {
			res.addErr("providers.actors: unknown platform %q", name)
		}
	}

	switch out.Resolver.Mode {
	case "http", "browser":
	default:
		res.addErr("resolver.mode must be http or browser, got %q", out.Resolver.Mode)
	}

	if out.Schedule.Enabled {
		if _, err := time.Parse("15:04", out.Schedule.DailyAt); err != nil {
			res.addErr("schedule.daily_at must be HH:MM, got %q", out.Schedule.DailyAt)
		}
	}

	if out.Alerts.Enabled {
		if strings.TrimSpace(out.Alerts.IMAPHost) == "" {
			res.addErr("alerts.imap_host is required when alerts.enabled=true")
		}
		if out.Alerts.IMAPPort == 0 {
			res.addErr("alerts.imap_port is required when alerts.enabled=true")
		}
		if strings.TrimSpace(out.Alerts.Username) == "" {
			res.addErr("alerts.username is required when alerts.enabled=true")
		}
		if strings.TrimSpace(out.Alerts.Mailbox) == "" {
			res.addErr("alerts.mailbox is required when alerts.enabled=true")
		}
		if len(out.Alerts.SubjectAny) == 0 {
			res.addWarn("alerts.subject_any is empty; alert polling will match nothing.")
		}
	}

	if out.Search.Enabled {
		if strings.TrimSpace(out.Search.Host) == "" {
			res.addErr("search.host is required when search.enabled=true")
		}
		if strings.TrimSpace(out.Search.Index) == "" {
			res.addErr("search.index is required when search.enabled=true")
		}
	}

	// ---- Property sanity ----

	if len(out.Properties) == 0 {
		res.addWarn("no properties configured; refresh runs will have nothing to do.")
	}
	seenID := map[string]bool{}
	for i, pc := range out.Properties {
		if pc.ID == "" {
			res.addErr("properties[%d].id is required", i)
			continue
		}
		if seenID[pc.ID] {
			res.addErr("duplicate property id %q", pc.ID)
		}
		seenID[pc.ID] = true
		if pc.Name == "" {
			res.addErr("properties[%d] (%s): name is required", i, pc.ID)
		}
		for name, ref := range pc.Aliases {
			pl, err := domain.ParsePlatform(name)
			if err != nil {
				res.addWarn("property %s: alias for unknown platform %q is ignored", pc.ID, name)
				continue
			}
			if pl.RequiresResolution() {
				if u, err := url.Parse(ref); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
					res.addWarn("property %s: %s alias %q is not a listing URL and will fail as malformed", pc.ID, pl, ref)
				}
			}
		}
	}

	return out, res
}
