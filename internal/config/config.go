// Package config loads program descriptors: which binaries make up a DS
// program and where they live in memory. The descriptor is YAML, one file per
// program.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dsdelink/internal/reloc"
)

// Config describes one program: the main ARM9 binary plus its autoload
// blocks and overlays.
type Config struct {
	MainModule Module     `yaml:"main_module"`
	Autoloads  []Autoload `yaml:"autoloads,omitempty"`
	Overlays   []Overlay  `yaml:"overlays,omitempty"`
}

// Module locates one binary and its place in memory.
type Module struct {
	Name string `yaml:"name"`
	// Code is the path to the module's raw code, relative to the config
	// file.
	Code        string `yaml:"code"`
	BaseAddress uint32 `yaml:"base_address"`
	// EntryAddress is the entry function's address. Only the main module
	// has one.
	EntryAddress uint32 `yaml:"entry_address,omitempty"`
	// Relocations is the path the relocations file is read from and
	// written to.
	Relocations string `yaml:"relocations,omitempty"`
}

// Autoload is a module the runtime copies into fixed RAM early in boot.
// Kind is "itcm", "dtcm", or "unknown" with an index.
type Autoload struct {
	Kind   string `yaml:"kind"`
	Index  uint32 `yaml:"index,omitempty"`
	Module `yaml:",inline"`
}

// Overlay is a module loaded and unloaded at runtime.
type Overlay struct {
	ID     uint16 `yaml:"id"`
	Module `yaml:",inline"`
}

// Load reads and validates a program descriptor.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the descriptor back out.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.MainModule.Code == "" {
		return fmt.Errorf("main_module has no code path")
	}
	if c.MainModule.BaseAddress == 0 {
		return fmt.Errorf("main_module has no base_address")
	}
	for i := range c.Autoloads {
		a := &c.Autoloads[i]
		switch a.Kind {
		case "itcm", "dtcm", "unknown":
		default:
			return fmt.Errorf("autoload %d: kind %q is not itcm, dtcm or unknown", i, a.Kind)
		}
		if a.Code == "" {
			return fmt.Errorf("autoload %d has no code path", i)
		}
	}
	seen := make(map[uint16]bool)
	for i := range c.Overlays {
		o := &c.Overlays[i]
		if o.Code == "" {
			return fmt.Errorf("overlay %d has no code path", o.ID)
		}
		if seen[o.ID] {
			return fmt.Errorf("overlay %d listed twice", o.ID)
		}
		seen[o.ID] = true
	}
	return nil
}

// ModuleKind returns the autoload's module identity.
func (a *Autoload) ModuleKind() reloc.ModuleKind {
	switch a.Kind {
	case "itcm":
		return reloc.ItcmKind()
	case "dtcm":
		return reloc.DtcmKind()
	}
	return reloc.AutoloadKind(a.Index)
}

// ModuleKind returns the overlay's module identity.
func (o *Overlay) ModuleKind() reloc.ModuleKind {
	return reloc.OverlayKind(o.ID)
}
