// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ConfigDirName and ConfigFileName locate the user configuration file
// (spec §2 ambient configuration: per-user settings distinct from any
// package manifest).
const (
	ConfigDirName  = ".forge"
	ConfigFileName = "configuration"
)

// RegistryAuth holds the credentials forge uses to talk to a single
// registry location (spec §4.D "registry-identifier locations").
type RegistryAuth struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// Config is forge's user-scoped configuration: registry credentials,
// default cache location, and default fetch concurrency.
type Config struct {
	CacheDir    string         `toml:"cacheDir"`
	Concurrency int            `toml:"concurrency"`
	Registries  []RegistryAuth `toml:"registries"`
}

// DefaultConfigPath returns ~/.forge/configuration.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "determine user home directory")
	}
	return filepath.Join(home, ConfigDirName, ConfigFileName), nil
}

// LoadConfig reads the TOML configuration file at path. A missing file is
// not an error; it yields a Config with only built-in defaults applied.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Concurrency: 8}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config as TOML")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return cfg, nil
}

// AuthFor returns the registered credentials for url, if any.
func (c *Config) AuthFor(url string) (RegistryAuth, bool) {
	for _, r := range c.Registries {
		if r.URL == url {
			return r, true
		}
	}
	return RegistryAuth{}, false
}

// Save writes the configuration back to path as TOML.
func (c *Config) Save(path string) error {
	b, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config to TOML")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	return writeFileAtomic(path, b)
}
