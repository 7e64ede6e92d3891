// Package secrets resolves API credentials by name. A secret is looked up
// first in the environment, then as a file under SECRETS_DIR (one secret per
// file, trailing whitespace trimmed). Lookups are cached for the process
// lifetime so hot paths never touch the filesystem twice.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Canonical secret names used by the service.
const (
	NewsdataAPIKey  = "NEWS_DATA_API_KEY"
	AnthropicAPIKey = "ANTHROPIC_API_KEY"
	OpenAIAPIKey    = "OPENAI_API_KEY"
	GoogleAPIKey    = "GEMINI_API_KEY"
)

// ErrNotFound indicates the secret exists neither in the environment nor
// under SECRETS_DIR.
var ErrNotFound = errors.New("secret not found")

var (
	mu    sync.RWMutex
	cache = make(map[string]string)
)

// Get resolves a secret by name.
func Get(name string) (string, error) {
	mu.RLock()
	v, ok := cache[name]
	mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := resolve(name)
	if err != nil {
		return "", err
	}

	mu.Lock()
	cache[name] = v
	mu.Unlock()
	return v, nil
}

func resolve(name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}

	dir := os.Getenv("SECRETS_DIR")
	if dir == "" {
		return "", fmt.Errorf("%w: %s (set %s or SECRETS_DIR)", ErrNotFound, name, name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to read secret %s: %w", name, err)
	}

	v := strings.TrimSpace(string(raw))
	if v == "" {
		return "", fmt.Errorf("%w: %s (file is empty)", ErrNotFound, name)
	}
	return v, nil
}

// Reset clears the cache. Tests use this between cases.
func Reset() {
	mu.Lock()
	cache = make(map[string]string)
	mu.Unlock()
}
