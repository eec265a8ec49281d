// Package config resolves deployctl's configuration options — parallelism
// limits, error budget, what-if mode, enabled phases, seed preprocessor
// defines — via a layered viper file search (project directory, then the
// user's XDG config directory, then home), overridable by environment
// variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sqlfleet/deployctl/internal/migration"
)

var v *viper.Viper

const (
	projectConfigDir  = ".deploy"
	projectConfigFile = "config.yaml"
	appConfigDirName  = "deployctl"
	envPrefix         = "DEPLOYCTL"
)

// Initialize sets up the viper configuration singleton. Should be called
// once at process startup, before Load.
//
// Precedence for locating the config file (highest to lowest):
//  1. Walking up from the working directory looking for <dir>/.deploy/config.yaml
//  2. $XDG_CONFIG_HOME/deployctl/config.yaml (os.UserConfigDir)
//  3. $HOME/.deployctl/config.yaml
//
// Environment variables prefixed DEPLOYCTL_ always take precedence over
// whichever file was found.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, projectConfigDir, projectConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(configDir, appConfigDirName, projectConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(homeDir, "."+appConfigDirName, projectConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// MaxParallelism/MaxParallelismPerTarget: positive int; 0 means logical
	// CPU count; default is unbounded. The unconfigured default is
	// effectively unlimited, not CPU-bound; an explicit 0 is the knob that
	// asks for CPU-bound behavior (resolved downstream by limiter).
	v.SetDefault("max-parallelism", math.MaxInt)
	v.SetDefault("max-parallelism-per-target", math.MaxInt)
	v.SetDefault("max-error-count", 0)
	v.SetDefault("whatif", false)
	v.SetDefault("enabled-phases", []string{})
	v.SetDefault("allow-content-in-core-phase", false)
	v.SetDefault("defines", map[string]string{})

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return nil
}

// Options is the resolved configuration handed to a migration.Session or
// seed.Session.
type Options struct {
	MaxParallelism          int
	MaxParallelismPerTarget int
	MaxErrorCount           int
	IsWhatIfMode            bool

	// EnabledPhases is nil when every phase runs; otherwise it names the
	// non-empty subset to run, in Pre/Core/Post order regardless of how
	// the config file listed them.
	EnabledPhases           []migration.Phase
	AllowContentInCorePhase bool

	// Defines holds the seed preprocessor's substitution variables.
	Defines map[string]string
}

// Load resolves Options from the initialized viper singleton. Initialize
// must be called first; Load panics otherwise, following the
// package-level-singleton convention of trusting callers to initialize
// once at startup.
func Load() Options {
	if v == nil {
		panic("config: Load called before Initialize")
	}
	return Options{
		MaxParallelism:          GetInt("max-parallelism"),
		MaxParallelismPerTarget: GetInt("max-parallelism-per-target"),
		MaxErrorCount:           GetInt("max-error-count"),
		IsWhatIfMode:            GetBool("whatif"),
		EnabledPhases:           parsePhases(GetStringSlice("enabled-phases")),
		AllowContentInCorePhase: GetBool("allow-content-in-core-phase"),
		Defines:                 GetStringMapString("defines"),
	}
}

func parsePhases(names []string) []migration.Phase {
	if len(names) == 0 {
		return nil
	}
	order := []migration.Phase{migration.Pre, migration.Core, migration.Post}
	enabled := make(map[migration.Phase]bool, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "pre":
			enabled[migration.Pre] = true
		case "core":
			enabled[migration.Core] = true
		case "post":
			enabled[migration.Post] = true
		}
	}
	phases := make([]migration.Phase, 0, len(order))
	for _, p := range order {
		if enabled[p] {
			phases = append(phases, p)
		}
	}
	return phases
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetStringSlice retrieves a string slice configuration value.
func GetStringSlice(key string) []string {
	if v == nil {
		return nil
	}
	return v.GetStringSlice(key)
}

// GetStringMapString retrieves a map[string]string configuration value.
func GetStringMapString(key string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v.GetStringMapString(key)
}

// Set overrides a configuration value, mainly for CLI flags that take
// precedence over the file/env-resolved value.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// Reset discards the singleton, letting tests call Initialize again from
// a clean slate.
func Reset() {
	v = nil
}
