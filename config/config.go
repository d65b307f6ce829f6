// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the port subsystem's tunables (default buffer
// size, default buffering mode, registry limits) from a YAML file.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/corvid-scheme/schemeport/port"
)

// Config holds the tunables a caller would otherwise hardcode when
// constructing ports in bulk.
type Config struct {
	// DefaultBufferSize is used by callers that don't have a
	// size preference of their own (e.g. cmd/portcat).
	DefaultBufferSize int `json:"defaultBufferSize"`
	// DefaultBuffering names the buffering mode new output file
	// ports should start in: "full", "line", or "none".
	DefaultBuffering string `json:"defaultBuffering"`
	// MaxRegisteredPorts caps how many ports a port/registry
	// Registry will track before Register starts evicting the
	// oldest entries; zero means unlimited.
	MaxRegisteredPorts int `json:"maxRegisteredPorts"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		DefaultBufferSize: 4096,
		DefaultBuffering:  "full",
	}
}

// Load reads and parses a YAML config file at path, filling in
// Default() for anything the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// BufferingMode translates the configured buffering-mode name into a
// port.BufferMode, defaulting to port.BufferFull on an empty or
// unrecognized value.
func (c Config) BufferingMode() port.BufferMode {
	switch c.DefaultBuffering {
	case "line":
		return port.BufferLine
	case "none":
		return port.BufferNone
	default:
		return port.BufferFull
	}
}
