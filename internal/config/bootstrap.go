package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// defaultYAML seeds a fresh data dir when no packaged default file is
// available. Everything here matches Defaults().
const defaultYAML = `app:
  port: 8642

store:
  backend: sqlite

platforms:
  enabled: [google, tripadvisor, booking, expedia]

pacing:
  unit_delay_ms: 5000
  google_only_delay_ms: 2000

retry:
  max_retries: 1
  delay_ms: 10000

providers:
  mode: live

resolver:
  mode: http
  timeout_seconds: 60

schedule:
  enabled: false
  daily_at: "06:30"

alerts:
  enabled: false
  imap_host: ""
  imap_port: 993
  username: ""
  mailbox: INBOX
  poll_seconds: 300
  subject_any: ["reputation alert", "review alert"]

search:
  enabled: false
  host: http://127.0.0.1:7700
  index: properties

# Properties usually live in properties.yml next to this file.
properties: []
`

// EnsureUserConfig places a config.yml in the data dir on first run,
// copying the packaged default when one exists.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if defaultPath != "" {
		if src, err := os.Open(defaultPath); err == nil {
			defer src.Close()
			dst, err := os.Create(userPath)
			if err != nil {
				return "", err
			}
			defer dst.Close()
			if _, err := io.Copy(dst, src); err != nil {
				return "", err
			}
			return userPath, nil
		}
	}

	if err := os.WriteFile(userPath, []byte(defaultYAML), 0o644); err != nil {
		return "", err
	}
	return userPath, nil
}
