package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/line98"
)

func writeConfigFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("empty directory uses defaults", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		caroRules, err := manager.Caro()
		if err != nil {
			t.Fatalf("Caro() failed: %v", err)
		}
		if caroRules.Size != caro.DefaultConfig().Size {
			t.Errorf("Expected default size %d, got %d", caro.DefaultConfig().Size, caroRules.Size)
		}

		lineRules, err := manager.Line98()
		if err != nil {
			t.Fatalf("Line98() failed: %v", err)
		}
		if lineRules != line98.DefaultConfig() {
			t.Errorf("Expected default line98 rules, got %+v", lineRules)
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		_, err := NewManager("/non/existent/path")
		if err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("invalid file fails fast", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, caroFile, `{"winCondition": 99}`)

		_, err := NewManager(dir)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, line98File, `{"size":`)

		_, err := NewManager(dir)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestManager_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, caroFile, `{"size": 19, "timeLimit": 60}`)
	writeConfigFile(t, dir, line98File, `{"allowHelp": false}`)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	caroRules, _ := manager.Caro()
	if caroRules.Size != 19 {
		t.Errorf("Expected size 19, got %d", caroRules.Size)
	}
	if caroRules.TimeLimit != 60 {
		t.Errorf("Expected timeLimit 60, got %d", caroRules.TimeLimit)
	}
	if caroRules.WinCondition != 5 {
		t.Errorf("Expected default winCondition 5, got %d", caroRules.WinCondition)
	}

	lineRules, _ := manager.Line98()
	if lineRules.AllowHelp {
		t.Error("Expected help to be disabled")
	}
	if lineRules.Size != 9 {
		t.Errorf("Expected default size 9, got %d", lineRules.Size)
	}
}

func TestManager_ShippedConfigs(t *testing.T) {
	manager, err := NewManager(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("Failed to load shipped configs: %v", err)
	}

	caroRules, _ := manager.Caro()
	if caroRules.Size != 15 || caroRules.WinCondition != 5 {
		t.Errorf("Expected 15x15 five-in-a-row, got %+v", caroRules)
	}
	lineRules, _ := manager.Line98()
	if lineRules != line98.DefaultConfig() {
		t.Errorf("Expected shipped line98 rules to match defaults, got %+v", lineRules)
	}
}

func TestManager_RefreshCache(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, caroFile, `{"timeLimit": 10}`)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	writeConfigFile(t, dir, caroFile, `{"timeLimit": 20}`)
	cached, _ := manager.Caro()
	if cached.TimeLimit != 10 {
		t.Errorf("Expected cached timeLimit 10, got %d", cached.TimeLimit)
	}

	manager.RefreshCache()
	fresh, _ := manager.Caro()
	if fresh.TimeLimit != 20 {
		t.Errorf("Expected reloaded timeLimit 20, got %d", fresh.TimeLimit)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				manager.RefreshCache()
			}
			if _, err := manager.Caro(); err != nil {
				t.Errorf("Caro() failed: %v", err)
			}
			if _, err := manager.Line98(); err != nil {
				t.Errorf("Line98() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
}
