package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/line98"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

const (
	caroFile   = "caro.json"
	line98File = "line98.json"
)

// Manager loads and caches the rule configuration of each game
type Manager struct {
	configDir string
	caro      *caro.Config
	line98    *line98.Config
	mu        sync.RWMutex
}

// NewManager creates a configuration manager reading from configDir
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{configDir: configDir}

	// Fail fast on a broken file instead of on the first game
	if _, err := m.Caro(); err != nil {
		return nil, fmt.Errorf("failed to load caro config: %w", err)
	}
	if _, err := m.Line98(); err != nil {
		return nil, fmt.Errorf("failed to load line98 config: %w", err)
	}

	return m, nil
}

// Caro returns the Caro rules, falling back to the defaults when caro.json
// is absent
func (m *Manager) Caro() (caro.Config, error) {
	m.mu.RLock()
	if m.caro != nil {
		cfg := *m.caro
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if m.caro != nil {
		return *m.caro, nil
	}

	cfg := caro.DefaultConfig()
	if err := m.readFile(caroFile, &cfg); err != nil && !errors.Is(err, ErrConfigNotFound) {
		return caro.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return caro.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.caro = &cfg
	return cfg, nil
}

// Line98 returns the Line98 rules, falling back to the defaults when
// line98.json is absent
func (m *Manager) Line98() (line98.Config, error) {
	m.mu.RLock()
	if m.line98 != nil {
		cfg := *m.line98
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.line98 != nil {
		return *m.line98, nil
	}

	cfg := line98.DefaultConfig()
	if err := m.readFile(line98File, &cfg); err != nil && !errors.Is(err, ErrConfigNotFound) {
		return line98.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return line98.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.line98 = &cfg
	return cfg, nil
}

// readFile decodes a config file over the values already in target, so a
// file only needs the fields it changes
func (m *Manager) readFile(name string, target any) error {
	data, err := os.ReadFile(filepath.Join(m.configDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[CONFIG] %s not found in %s, using defaults", name, m.configDir)
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, name, err)
	}
	return nil
}

// RefreshCache drops the cached rules so the next read goes to disk.
// Running games keep the snapshot they were created with.
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caro = nil
	m.line98 = nil
}
