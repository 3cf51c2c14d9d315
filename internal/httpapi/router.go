package httpapi

import "net/http"

// NewMux returns the raw mux so main() can wrap it in the middleware
// chain and attach anything that needs the server handle.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Refresh commands and observation
	rh := RefreshHandler{Engine: d.Engine, CfgVal: d.CfgVal}
	mux.HandleFunc("/api/refresh/start", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Start,
	}))
	mux.HandleFunc("/api/refresh/retry-unit", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.RetryUnit,
	}))
	mux.HandleFunc("/api/refresh/retry-failed", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.RetryFailed,
	}))
	mux.HandleFunc("/api/refresh/cancel", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Cancel,
	}))
	mux.HandleFunc("/api/refresh/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Status,
	}))
	mux.HandleFunc("/api/refresh/summary", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Summary,
	}))
	mux.HandleFunc("/api/refresh/units", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Units,
	}))

	// Scores and history
	sh := ScoresHandler{Store: d.Store}
	mux.HandleFunc("/api/scores/latest", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Latest,
	}))
	mux.HandleFunc("/api/snapshots", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Snapshots,
	}))
	mux.HandleFunc("/api/runs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Runs,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/api/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/api/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/api/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))
	mux.HandleFunc("/api/properties", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Properties,
	}))

	// Secrets (use CfgVal, NOT a snapshot cfg)
	sec := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sec.Status,
	}))
	mux.HandleFunc("/api/secrets/", sec.ByPath)

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/api/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Health
	hh := HealthHandler{Version: d.Version, StartedAt: d.StartedAt}
	mux.HandleFunc("/api/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Maintenance, sqlite only
	if d.SQLiteDB != nil {
		dh := DBHandler{DB: d.SQLiteDB}
		mux.HandleFunc("/api/db/checkpoint", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: dh.Checkpoint,
		}))
	}

	return mux
}
