// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the file name is the key and the trimmed contents
// are the value.
//
// Recognized keys: ncbi-api-key, ncbi-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/suppfetch/pkg/types"
)

const (
	// DefaultDir is where the CLI looks for secret files.
	DefaultDir = ".secrets/"

	KeyNCBIAPIKey = "ncbi-api-key"
	KeyNCBIEmail  = "ncbi-email"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory is
// not an error and yields an empty set. Unreadable files are logged and
// skipped.
func Load(dir string, logger zerolog.Logger) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	if len(s) > 0 {
		logger.Debug().Strs("keys", s.Keys()).Msg("loaded secrets")
	}
	return s, nil
}

// Keys returns the loaded key names, sorted. Values are never exposed here
// so the result is safe to log.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Default returns value when set, otherwise the secret stored under key.
func (s Secrets) Default(key, value string) string {
	if value != "" {
		return value
	}
	return s[key]
}

// ApplyNCBI fills the NCBI credentials of cfg that configuration left empty.
func (s Secrets) ApplyNCBI(cfg *types.SourceConfig) {
	cfg.APIKey = s.Default(KeyNCBIAPIKey, cfg.APIKey)
	cfg.Email = s.Default(KeyNCBIEmail, cfg.Email)
}
