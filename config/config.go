// Package config loads the analysis configuration from vrp.conf files.
//
// A vrp.conf is a TOML file. Files are looked up from the working
// directory upwards; settings in a nearer file override those in files
// further up, which in turn override the defaults.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigName is the name of the configuration file.
const ConfigName = "vrp.conf"

type Config struct {
	// JumpSetWidening selects jump-set widening: unstable interval
	// endpoints jump to the nearest constant of the function instead of
	// straight to the infinities.
	JumpSetWidening bool `toml:"jump_set_widening"`

	// Dot makes the driver dump each function's constraint graph in
	// Graphviz dot format next to the results.
	Dot bool `toml:"dot"`

	// DotDir is the directory dot files are written to.
	DotDir string `toml:"dot_dir"`
}

func DefaultConfig() Config {
	return Config{
		JumpSetWidening: false,
		Dot:             false,
		DotDir:          ".",
	}
}

type parsedConfig struct {
	cfg  Config
	meta toml.MetaData
}

// mergeConfigs folds a list of configurations, ordered from outermost to
// innermost, over the defaults. Only keys that are actually present in a
// file override the accumulated value.
func mergeConfigs(confs []parsedConfig) Config {
	out := DefaultConfig()
	for _, conf := range confs {
		if conf.meta.IsDefined("jump_set_widening") {
			out.JumpSetWidening = conf.cfg.JumpSetWidening
		}
		if conf.meta.IsDefined("dot") {
			out.Dot = conf.cfg.Dot
		}
		if conf.meta.IsDefined("dot_dir") {
			out.DotDir = conf.cfg.DotDir
		}
	}
	return out
}

func parseConfig(path string) (parsedConfig, error) {
	var conf parsedConfig
	meta, err := toml.DecodeFile(path, &conf.cfg)
	if err != nil {
		return parsedConfig{}, err
	}
	conf.meta = meta
	return conf, nil
}

// Load returns the effective configuration for dir: the defaults,
// overridden by every vrp.conf between the filesystem root and dir,
// nearest file last.
func Load(dir string) (Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Config{}, err
	}
	var confs []parsedConfig
	for {
		path := filepath.Join(dir, ConfigName)
		if _, err := os.Stat(path); err == nil {
			conf, err := parseConfig(path)
			if err != nil {
				return Config{}, err
			}
			// Prepend: outer directories come first.
			confs = append([]parsedConfig{conf}, confs...)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return mergeConfigs(confs), nil
}
