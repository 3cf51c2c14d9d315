package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"repscore-engine/internal/config"
	"repscore-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setSecretReq struct {
	Value string `json:"value"`
}

// account maps the URL name onto a keyring account. The IMAP password
// is keyed by the currently configured user@host, so save the config
// before storing it.
func (h SecretsHandler) account(name string) (string, bool) {
	switch name {
	case "google_api_key":
		return secrets.AccountGoogleKey, true
	case "apify_token":
		return secrets.AccountApifyToken, true
	case "meili_api_key":
		return secrets.AccountMeiliKey, true
	case "imap_password":
		cfg := h.CfgVal.Load().(config.Config)
		return secrets.IMAPAccount(cfg), true
	}
	return "", false
}

// Status reports which secrets are present, never their values.
func (h SecretsHandler) Status(w http.ResponseWriter, r *http.Request) {
	out := map[string]bool{}
	for _, name := range []string{"google_api_key", "apify_token", "meili_api_key", "imap_password"} {
		account, _ := h.account(name)
		_, err := secrets.Get(account)
		out[name] = err == nil
	}
	writeJSON(w, out)
}

// ByPath handles PUT and DELETE on /api/secrets/{name}.
func (h SecretsHandler) ByPath(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/secrets/")
	account, ok := h.account(name)
	if !ok {
		WriteError(w, r, http.StatusNotFound, "unknown_secret", "no secret named "+name)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req setSecretReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := secrets.Set(account, req.Value); err != nil {
			WriteError(w, r, http.StatusBadRequest, "store_failed", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := secrets.Delete(account); err != nil {
			WriteError(w, r, http.StatusBadRequest, "delete_failed", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
