// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "configuration"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want default of 8", cfg.Concurrency)
	}
}

func TestLoadConfigParsesTOMLAndClampsNonPositiveConcurrency(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configuration")
	writeFile(t, dir, "configuration", `
cacheDir = "/var/cache/forge"
concurrency = 0

[[registries]]
url = "https://registry.example.com"
token = "secret"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheDir != "/var/cache/forge" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want the default re-applied when the file sets a non-positive value", cfg.Concurrency)
	}
	auth, ok := cfg.AuthFor("https://registry.example.com")
	if !ok || auth.Token != "secret" {
		t.Errorf("AuthFor = %+v, %v", auth, ok)
	}
}

func TestConfigAuthForUnknownURL(t *testing.T) {
	cfg := &Config{}
	if _, ok := cfg.AuthFor("https://unknown.example.com"); ok {
		t.Error("expected no auth entry for an unregistered registry URL")
	}
}

func TestConfigSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "configuration")
	cfg := &Config{CacheDir: "/tmp/cache", Concurrency: 4, Registries: []RegistryAuth{{URL: "https://r.example.com", Token: "tok"}}}

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.CacheDir != cfg.CacheDir || got.Concurrency != cfg.Concurrency {
		t.Errorf("round-tripped config = %+v, want %+v", got, cfg)
	}
	if len(got.Registries) != 1 || got.Registries[0].Token != "tok" {
		t.Errorf("round-tripped registries = %+v", got.Registries)
	}
}
