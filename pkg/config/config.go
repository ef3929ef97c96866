// Mod Merge Core
// Copyright (c) 2026 Mod Merge Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Mod Merge Core.
//
// Mod Merge Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Mod Merge Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Mod Merge Core.  If not, see <http://www.gnu.org/licenses/>.

// Package config holds the process-lifetime settings singleton: the
// game root, storage root, external output location, platform variant,
// and link preference every operation needs to locate its inputs and
// outputs (spec §9 "global mutable state"). It is loaded once from a
// TOML file the same way the teacher's own config package loads
// zaparoo's settings (pkg/config/config.go upstream of this file),
// with the same toml+RWMutex+xdg shape, carrying a different field set
// for a different domain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/modforge/mergecore/internal/syncutil"
	"github.com/modforge/mergecore/pkg/platform"
)

const (
	SchemaVersion = 1
	CfgEnv        = "MERGECORE_CFG"
	CfgFile       = "config.toml"
)

// Values is the on-disk shape of the settings file, serialized with
// go-toml/v2 exactly as the teacher's Values struct is (pkg/config's
// upstream convention: plain structs with `toml:"..."` tags, no custom
// marshalers).
type Values struct {
	ConfigSchema int    `toml:"config_schema"`
	Platform     string `toml:"platform"`
	GameDir      string `toml:"game_dir"`
	UpdateDir    string `toml:"update_dir,omitempty"`
	DLCDir       string `toml:"dlc_dir,omitempty"`
	StoreDir     string `toml:"store_dir"`
	OutputDir    string `toml:"output_dir"`
	PreferLinks  bool   `toml:"prefer_links"`
	Language     string `toml:"language"`
	DebugLogging bool   `toml:"debug_logging"`
}

// BaseDefaults mirrors the teacher's BaseDefaults var: the values a
// freshly generated config file is seeded with.
var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Platform:     platform.Switch.String(),
	PreferLinks:  true,
	Language:     "USen",
}

// Instance is the settings singleton: a TOML-backed value guarded by a
// reader/writer lock so top-level operations can snapshot it cheaply
// and workers never contend on the lock (spec §9).
type Instance struct {
	cfgPath string
	vals    Values
	mu      syncutil.RWMutex
}

// defaultStoreDir resolves the default Merged Tree / mod-store root the
// same way the teacher resolves its own default data directory: via
// adrg/xdg, joined with an application name rather than hand-rolled
// per-OS logic.
func defaultStoreDir() string {
	return filepath.Join(xdg.DataHome, "mergecore")
}

func defaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "mergecore")
}

// NewConfig loads or creates the settings singleton. If no config file
// exists at the resolved path, one is written from defaults first, the
// same bootstrap order the teacher's NewConfig follows.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		if configDir == "" {
			configDir = defaultConfigDir()
		}
		cfgPath = filepath.Join(configDir, CfgFile)
	}
	log.Debug().Str("path", cfgPath).Msg("config path resolved")

	if defaults.StoreDir == "" {
		defaults.StoreDir = defaultStoreDir()
	}

	cfg := Instance{
		cfgPath: cfgPath,
		vals:    defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")
		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load re-reads the config file from disk, replacing the in-memory
// values wholesale under the write lock.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var newVals Values
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().
			Int("got", newVals.ConfigSchema).
			Int("want", SchemaVersion).
			Msg("config schema version mismatch")
		return errors.New("schema version mismatch")
	}

	c.vals = newVals
	return nil
}

// Save writes the current values to disk under the write lock.
func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}
	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Snapshot is an immutable copy of settings, handed to each top-level
// operation so its workers never re-acquire the singleton's lock (spec
// §9: "Settings snapshot: read under a reader lock; snapshot-cloned
// into each top-level operation so workers do not re-acquire the
// lock.").
type Snapshot struct {
	variant     platform.Variant
	gameDir     string
	updateDir   string
	dlcDir      string
	storeDir    string
	outputDir   string
	preferLinks bool
	language    string
}

// Snapshot clones the current settings under a read lock.
func (c *Instance) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	variant := platform.Switch
	if c.vals.Platform == platform.WiiU.String() {
		variant = platform.WiiU
	}
	return Snapshot{
		variant:     variant,
		gameDir:     c.vals.GameDir,
		updateDir:   c.vals.UpdateDir,
		dlcDir:      c.vals.DLCDir,
		storeDir:    c.vals.StoreDir,
		outputDir:   c.vals.OutputDir,
		preferLinks: c.vals.PreferLinks,
		language:    c.vals.Language,
	}
}

func (s Snapshot) Variant() platform.Variant { return s.variant }
func (s Snapshot) GameDir() string           { return s.gameDir }
func (s Snapshot) UpdateDir() string         { return s.updateDir }

func (s Snapshot) DLCDir() string {
	if s.dlcDir != "" {
		return s.dlcDir
	}
	return s.variant.DLCDir()
}

func (s Snapshot) StoreDir() string  { return s.storeDir }
func (s Snapshot) OutputDir() string { return s.outputDir }
func (s Snapshot) PreferLinks() bool { return s.preferLinks }
func (s Snapshot) Language() string  { return s.language }
func (s Snapshot) HasDLC() bool      { return s.dlcDir != "" }

// MergedTreeDir is the internal staging directory the Link Orchestrator
// populates before publishing, rooted under the storage root (spec §3
// "Merged Tree").
func (s Snapshot) MergedTreeDir() string {
	return filepath.Join(s.storeDir, "merged")
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
