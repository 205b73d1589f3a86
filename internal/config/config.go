// Package config loads per-daemon JSON configuration files, falling back to
// documented defaults when the file is absent — a daemon should still start
// with sane behavior rather than refuse to boot because an operator hasn't
// written a config file yet. A file that exists but cannot be read or parsed
// is reported as an error. Grounded on cppla-moto's config/setting.go
// (env-var override of the config path).
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads the JSON file at path (or the value of envVar if path is
// empty) into dst. A missing file is not an error: dst is left untouched,
// so whatever defaults the caller stored in it beforehand apply. A file that
// cannot be read or is not valid JSON returns an error (the daemons in cmd/
// exit on it); after a parse error dst may hold fields json.Unmarshal had
// already filled in.
func Load(envVar, fallbackPath string, dst any) (string, error) {
	path := os.Getenv(envVar)
	if path == "" {
		path = fallbackPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return path, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return path, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return path, nil
}
