package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when no source yields a secret.
var ErrNotConfigured = errors.New("secret is not configured")

// Source describes where a credential may come from. Sources are tried in
// order: File, Value, FileEnv, Env.
type Source struct {
	// Name is used in error messages.
	Name string
	// Value is an inline secret from configuration or flags.
	Value string
	// File points to a file containing the secret.
	File string
	// Env names an environment variable holding the secret.
	Env string
	// FileEnv names an environment variable holding a path to the secret.
	FileEnv string
}

var lookupEnv = os.LookupEnv

// Load resolves the secret described by src. The result is trimmed.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		return readFile(name, file)
	}
	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}
	if src.FileEnv != "" {
		if file, ok := lookupEnv(src.FileEnv); ok && strings.TrimSpace(file) != "" {
			return readFile(name, strings.TrimSpace(file))
		}
	}
	if src.Env != "" {
		if v, ok := lookupEnv(src.Env); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}

	return "", fmt.Errorf("%s: %w", name, ErrNotConfigured)
}

func readFile(name, file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%s file %q is empty", name, file)
	}
	return secret, nil
}
