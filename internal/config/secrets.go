package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// secretsFilePath holds provider credentials outside the regular config file
// so `config show` never prints them.
func secretsFilePath() string {
	if p := os.Getenv("FRONTDESK_SECRETS"); p != "" {
		return p
	}
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func secretGet(service, account string) ([]byte, error) {
	data, err := os.ReadFile(secretsFilePath())
	if err != nil {
		return nil, fmt.Errorf("secrets not available: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	svc, ok := secrets[service]
	if !ok {
		return nil, fmt.Errorf("service %q not found", service)
	}
	val, ok := svc[account]
	if !ok {
		return nil, fmt.Errorf("account %q not found in service %q", account, service)
	}
	return []byte(val), nil
}
