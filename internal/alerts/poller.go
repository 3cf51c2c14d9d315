package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap/v2"

	"repscore-engine/internal/config"
	"repscore-engine/internal/domain"
	"repscore-engine/internal/refresh"
)

// Starter is the one engine call the poller makes.
type Starter interface {
	Start(props []domain.Property, platforms []domain.Platform, trigger domain.Trigger) (domain.RunHandle, error)
}

type Poller struct {
	Engine Starter
	CfgVal *atomic.Value // stores config.Config

	// Password fetches the mailbox secret; injected so polling code
	// never touches the keyring directly.
	Password func(config.Config) (string, error)
}

func (p *Poller) cfg() config.Config {
	return p.CfgVal.Load().(config.Config)
}

// Run polls until the context ends. The interval and enabled flag are
// re-read every cycle so config edits apply without a restart.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("[alerts] poller up")
	for {
		interval := p.cfg().AlertPollInterval()
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		cfg := p.cfg()
		if !cfg.Alerts.Enabled {
			continue
		}
		started, err := p.PollOnce(ctx, cfg)
		if err != nil {
			log.Printf("[alerts] poll: %v", err)
			continue
		}
		if started > 0 {
			log.Printf("[alerts] triggered %d refresh(es)", started)
		}
	}
}

// PollOnce scans unseen mail for review alerts and starts a refresh
// for each match while the engine is idle. Matched messages are marked
// seen; everything else is left alone.
func (p *Poller) PollOnce(ctx context.Context, cfg config.Config) (started int, err error) {
	addr := cfg.Alerts.IMAPHost
	if cfg.Alerts.IMAPPort != 0 && !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, cfg.Alerts.IMAPPort)
	} else if !strings.Contains(addr, ":") {
		addr += ":993"
	}
	mailbox := cfg.Alerts.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}

	password, err := p.Password(cfg)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	c, err := dialAndLogin(ctx, addr, cfg.Alerts.Username, password, nil)
	if err != nil {
		return 0, err
	}
	defer logoutAndClose(c)

	msgs, err := fetchUnseenSubjects(ctx, c, mailbox, 200)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	props := cfg.DomainProperties()
	var handled []imap.UID
	for _, m := range msgs {
		prop, pl, ok := Match(m.Subject, props, cfg.Alerts.SubjectAny)
		if !ok {
			continue
		}

		_, err := p.Engine.Start([]domain.Property{prop}, []domain.Platform{pl}, domain.TriggerAlert)
		switch {
		case errors.Is(err, refresh.ErrRunActive):
			// Leave unseen; the next poll retries once the run ends.
			log.Printf("[alerts] run active, deferring %q", m.Subject)
			continue
		case err != nil:
			log.Printf("[alerts] start %s/%s: %v", prop.ID, pl, err)
			continue
		}

		log.Printf("[alerts] %q -> refresh %s on %s", m.Subject, prop.ID, pl)
		handled = append(handled, m.UID)
		started++
	}

	if err := markSeen(c, handled); err != nil {
		return started, err
	}
	return started, nil
}
