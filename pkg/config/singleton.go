package config

import (
	"fmt"
	"sync"
)

var (
	// globalConfig holds the singleton configuration instance.
	globalConfig *Config

	// configMutex protects access to globalConfig.
	configMutex sync.RWMutex

	// initOnce ensures configuration is initialized only once.
	initOnce sync.Once
)

// Initialize loads configuration from the specified path with environment
// variable overrides and stores it as the global singleton configuration.
// Subsequent calls are ignored.
func Initialize(path string, optional bool) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path, optional)
		if err != nil {
			initErr = err
			return
		}

		SetConfig(cfg)
	})

	return initErr
}

// GetConfig returns the global configuration instance, or nil if Initialize
// has not been called successfully.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig replaces the global configuration instance.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// ReloadConfig reloads the configuration from the specified path. The new
// configuration replaces the global instance only if loading and validation
// succeed; otherwise the existing configuration remains in place.
func ReloadConfig(path string, optional bool) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path, optional)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}

	SetConfig(cfg)
	return cfg, nil
}

// MustGetConfig returns the global configuration instance.
// It panics if the configuration has not been initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
