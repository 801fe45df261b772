// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package casecross

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of a run. It is passed explicitly to each
// entry point.
type Config struct {
	Seed uint64 `yaml:"seed"`

	// ChunkWidth is the ideal partition width of the sleep period.
	ChunkWidth time.Duration `yaml:"chunk_width"`
	// ControlWindow is the width of each control search window.
	ControlWindow time.Duration `yaml:"control_window"`
	// ControlInterval is the step between control windows and the buffer
	// left on each side of the case event.
	ControlInterval time.Duration `yaml:"control_interval"`
	// ControlPeriod is the width of hazard and control periods.
	ControlPeriod time.Duration `yaml:"control_period"`
	// HazardOffset is the gap between the end of the hazard period and the
	// case event.
	HazardOffset time.Duration `yaml:"hazard_offset"`

	MinControls    int `yaml:"min_controls"`
	TargetControls int `yaml:"target_controls"`

	// CaseSpacing drops case events closer than this to the previous one.
	CaseSpacing  time.Duration `yaml:"case_spacing"`
	LimbCoalesce time.Duration `yaml:"limb_coalesce"`

	SpO2Floor             float64 `yaml:"spo2_floor"`
	DesaturationThreshold float64 `yaml:"desaturation_threshold"`

	Workers int `yaml:"workers"`

	Associations Associations `yaml:"associations"`

	Log    LogConfig    `yaml:"log"`
	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// InputConfig locates the study's input files.
type InputConfig struct {
	SleepTimes       string   `yaml:"sleep_times"`
	CaseTimes        string   `yaml:"case_times"`
	AnnotationDir    string   `yaml:"annotation_dir"`
	SignalDir        string   `yaml:"signal_dir"`
	SaturationLabels []string `yaml:"saturation_labels"`
}

// OutputConfig names the report destinations; empty paths are skipped.
type OutputConfig struct {
	CSV    string `yaml:"csv"`
	XLSX   string `yaml:"xlsx"`
	SQLite string `yaml:"sqlite"`
}

// DefaultConfig returns the study protocol's settings.
func DefaultConfig() Config {
	return Config{
		Seed:                  123456,
		ChunkWidth:            30 * time.Minute,
		ControlWindow:         150 * time.Second,
		ControlInterval:       5 * time.Minute,
		ControlPeriod:         30 * time.Second,
		HazardOffset:          0,
		MinControls:           1,
		TargetControls:        3,
		CaseSpacing:           5 * time.Minute,
		LimbCoalesce:          500 * time.Millisecond,
		SpO2Floor:             20,
		DesaturationThreshold: 90,
		Workers:               1,
		Associations:          DefaultAssociations(),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads a YAML file over the defaults and then applies
// CASECROSS_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config %s: %w", path, err)
		}
	}

	if err := cfg.loadFromEnv("CASECROSS"); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFromEnv(prefix string) error {
	var errs []error
	durationEnv := func(key string, dst *time.Duration) {
		if v := os.Getenv(prefix + "_" + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, key, err))
				return
			}
			*dst = d
		}
	}
	intEnv := func(key string, dst *int) {
		if v := os.Getenv(prefix + "_" + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, key, err))
				return
			}
			*dst = n
		}
	}
	floatEnv := func(key string, dst *float64) {
		if v := os.Getenv(prefix + "_" + key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, key, err))
				return
			}
			*dst = f
		}
	}
	stringEnv := func(key string, dst *string) {
		if v := os.Getenv(prefix + "_" + key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(prefix + "_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s_SEED: %w", prefix, err))
		} else {
			c.Seed = seed
		}
	}
	durationEnv("CHUNK_WIDTH", &c.ChunkWidth)
	durationEnv("CONTROL_WINDOW", &c.ControlWindow)
	durationEnv("CONTROL_INTERVAL", &c.ControlInterval)
	durationEnv("CONTROL_PERIOD", &c.ControlPeriod)
	durationEnv("HAZARD_OFFSET", &c.HazardOffset)
	durationEnv("CASE_SPACING", &c.CaseSpacing)
	durationEnv("LIMB_COALESCE", &c.LimbCoalesce)
	floatEnv("SPO2_FLOOR", &c.SpO2Floor)
	floatEnv("DESATURATION_THRESHOLD", &c.DesaturationThreshold)
	intEnv("MIN_CONTROLS", &c.MinControls)
	intEnv("TARGET_CONTROLS", &c.TargetControls)
	intEnv("WORKERS", &c.Workers)
	stringEnv("LOG_LEVEL", &c.Log.Level)
	stringEnv("LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("error reading environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate rejects settings the window and sampling code cannot work with.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	positive("chunk_width", c.ChunkWidth)
	positive("control_interval", c.ControlInterval)
	positive("control_period", c.ControlPeriod)
	if c.ControlWindow < c.ControlPeriod {
		errs = append(errs, fmt.Errorf("control_window %s is narrower than control_period %s", c.ControlWindow, c.ControlPeriod))
	}
	nonNegative := func(name string, d time.Duration) {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", name, d))
		}
	}
	nonNegative("hazard_offset", c.HazardOffset)
	nonNegative("case_spacing", c.CaseSpacing)
	nonNegative("limb_coalesce", c.LimbCoalesce)
	if c.MinControls < 0 || c.TargetControls < 0 {
		errs = append(errs, errors.New("control counts must not be negative"))
	}
	if c.TargetControls > 0 && c.MinControls > c.TargetControls {
		errs = append(errs, fmt.Errorf("min_controls %d exceeds target_controls %d", c.MinControls, c.TargetControls))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: invalid config: %w", ErrMalformedInput, errors.Join(errs...))
	}
	return nil
}

func (c Config) storeOptions() StoreOptions {
	return StoreOptions{
		Associations: c.Associations,
		LimbCoalesce: c.LimbCoalesce,
		SpO2Floor:    c.SpO2Floor,
	}
}

func (c Config) controlPolicy() ControlPolicy {
	return ControlPolicy{
		MinControls:    c.MinControls,
		TargetControls: c.TargetControls,
	}
}
