package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"repscore-engine/internal/config"
)

const (
	// “Service” groups the engine's secrets in the OS keychain.
	KeyringService = "repscore"

	AccountGoogleKey  = "google_api_key"
	AccountApifyToken = "apify_token"
	AccountMeiliKey   = "meili_api_key"
)

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	v, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", errors.New("stored secret is empty")
	}
	return v, nil
}

// GetOr tries the keychain first and falls back to an environment
// variable. Headless boxes rarely run a keychain daemon.
func GetOr(account string, envVar string) (string, error) {
	if v, err := Get(account); err == nil {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s not found (set it in the keychain or via %s)", account, envVar)
}

func Set(account string, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// IMAPAccount keys the mailbox password by user@host so two configured
// mailboxes never collide.
func IMAPAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"repscore:imap:%s@%s",
		cfg.Alerts.Username,
		cfg.Alerts.IMAPHost,
	)
}
