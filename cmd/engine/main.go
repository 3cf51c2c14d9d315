package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"repscore-engine/internal/alerts"
	"repscore-engine/internal/config"
	"repscore-engine/internal/domain"
	"repscore-engine/internal/events"
	"repscore-engine/internal/httpapi"
	"repscore-engine/internal/lock"
	"repscore-engine/internal/providers"
	"repscore-engine/internal/refresh"
	"repscore-engine/internal/resolve"
	"repscore-engine/internal/schedule"
	"repscore-engine/internal/search"
	"repscore-engine/internal/secrets"
	"repscore-engine/internal/store"
)

var version = "dev" // overridden via -ldflags "-X main.version=..."

func main() {
	cfgFlag := flag.String("config", "", "config file path (default <data_dir>/config.yml)")
	addrFlag := flag.String("addr", "", "listen address (default 127.0.0.1:<app.port>)")
	flag.Parse()

	// .env is a dev convenience; a real environment always wins.
	_ = godotenv.Load()

	// Engine data dir: use env if provided (a desktop shell can pass
	// one), else the per-user config dir.
	dataDir := os.Getenv("REPSCORE_DATA_DIR")
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			log.Fatalf("[engine] cannot locate a data dir, set REPSCORE_DATA_DIR: %v", err)
		}
		dataDir = filepath.Join(base, "repscore")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine per data dir. A second instance would interleave
	// snapshot writes and defeat the pacing guarantees.
	fl, err := lock.Acquire(dataDir)
	if err != nil {
		log.Fatalf("[engine] %v", err)
	}
	defer fl.Unlock()

	userCfgPath := *cfgFlag
	if userCfgPath == "" {
		userCfgPath, err = config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			log.Fatalf("[engine] config bootstrap failed: %v", err)
		}
	}

	loadCfg := func() (config.Config, error) { return loadConfig(userCfgPath, dataDir) }
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("[engine] config load failed (%s): %v", userCfgPath, err)
	}

	// Reloadable config: PUT /api/config swaps this after a save.
	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	st, sqliteDB, err := openStore(cfg, dataDir)
	if err != nil {
		log.Fatalf("[engine] store open failed: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		log.Fatalf("[engine] migrate failed: %v", err)
	}

	hub := events.NewHub()

	engine := refresh.New(buildProviders(cfg), resolve.New(st, buildFinder(cfg)), st, hub, refresh.Options{
		UnitDelay:       cfg.UnitDelay(),
		GoogleOnlyDelay: cfg.GoogleOnlyDelay(),
		MaxRetries:      cfg.Retry.MaxRetries,
		RetryDelay:      cfg.RetryDelay(),
	})

	if cfg.Search.Enabled {
		// An unsecured local meili accepts an empty key, so a missing
		// secret is fine here.
		apiKey, _ := secrets.GetOr(secrets.AccountMeiliKey, "MEILI_API_KEY")
		sink := search.New(cfg.Search.Host, apiKey, cfg.Search.Index)
		if err := sink.InitIndex(); err != nil {
			log.Printf("[search] init failed, will retry at first reindex: %v", err)
		}
		engine.AfterRun = func(domain.RunSummary) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			snaps, err := st.LatestSnapshots(ctx)
			if err != nil {
				log.Printf("[search] reindex skipped: %v", err)
				return
			}
			cur := cfgVal.Load().(config.Config)
			if err := sink.IndexScores(cur.DomainProperties(), snaps); err != nil {
				log.Printf("[search] reindex failed: %v", err)
			}
		}
	}

	sched := schedule.New(engine, &cfgVal)
	if err := sched.Start(); err != nil {
		log.Printf("[schedule] not started: %v", err)
	}
	defer sched.Stop()

	poller := &alerts.Poller{
		Engine: engine,
		CfgVal: &cfgVal,
		Password: func(c config.Config) (string, error) {
			return secrets.GetOr(secrets.IMAPAccount(c), "IMAP_PASSWORD")
		},
	}

	handler := httpapi.Chain(httpapi.NewMux(httpapi.Deps{
		Engine:      engine,
		Store:       st,
		Hub:         hub,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		SQLiteDB:    sqliteDB,
		Version:     version,
		StartedAt:   time.Now(),
	}), httpapi.RequestID, httpapi.Recover, httpapi.Cors, httpapi.AccessLog)

	addr := listenAddr(*addrFlag, cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("[engine] listening on http://%s (data=%s, store=%s)", addr, dataDir, cfg.Store.Backend)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("[engine] shutting down")
		// Cancel is non-interruptive: the in-flight unit finishes and
		// its snapshot lands before the worker exits.
		engine.Cancel()
		engine.Wait()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})
	if err := g.Wait(); err != nil {
		log.Printf("[engine] exit: %v", err)
	}
}

// loadConfig layers packaged defaults, the user config.yml, and the
// properties.yml overlay, then normalizes. Warnings log; errors fail
// the load.
func loadConfig(path, dataDir string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := config.OverlayProperties(&cfg, filepath.Join(dataDir, "properties.yml")); err != nil {
		log.Printf("[config] properties overlay: %v", err)
	}
	norm, res := config.NormalizeAndValidate(cfg)
	for _, w := range res.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !res.OK() {
		return norm, fmt.Errorf("invalid config: %s", strings.Join(res.Errors, "; "))
	}
	return norm, nil
}

func listenAddr(flagAddr string, cfg config.Config) string {
	if flagAddr != "" {
		return flagAddr
	}
	if env := os.Getenv("REPSCORE_ADDR"); env != "" {
		return env
	}
	return fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
}

func openStore(cfg config.Config, dataDir string) (store.Store, *sql.DB, error) {
	if cfg.Store.Backend == "postgres" {
		pg, err := store.OpenPostgres(cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, nil, nil
	}
	sq, err := store.OpenSQLite(filepath.Join(dataDir, "repscore.db"))
	if err != nil {
		return nil, nil, err
	}
	// the raw pool feeds the sqlite-only checkpoint endpoint
	return sq, sq.Pool, nil
}

// buildProviders wires one provider per platform. Missing credentials
// don't block startup: live fetches classify as CONFIG_ERROR until the
// operator stores keys and restarts.
func buildProviders(cfg config.Config) []refresh.Provider {
	if cfg.Providers.Mode == "stub" {
		var out []refresh.Provider
		for _, pl := range domain.AllPlatforms() {
			out = append(out, providers.NewStub(pl))
		}
		return out
	}

	googleKey, err := secrets.GetOr(secrets.AccountGoogleKey, "GOOGLE_API_KEY")
	if err != nil {
		log.Printf("[engine] %v", err)
	}
	apifyToken, err := secrets.GetOr(secrets.AccountApifyToken, "APIFY_TOKEN")
	if err != nil {
		log.Printf("[engine] %v", err)
	}

	out := []refresh.Provider{providers.NewGoogle(googleKey)}
	for _, pl := range []domain.Platform{domain.PlatformTripadvisor, domain.PlatformBooking, domain.PlatformExpedia} {
		out = append(out, providers.NewApify(pl, cfg.Providers.Actors[string(pl)], apifyToken))
	}
	return out
}

func buildFinder(cfg config.Config) resolve.Finder {
	if cfg.Resolver.Mode == "browser" {
		f := resolve.NewBrowserFinder()
		f.Timeout = cfg.ResolverTimeout()
		return f
	}
	f := resolve.NewWebFinder()
	f.Client.Timeout = cfg.ResolverTimeout()
	return f
}
