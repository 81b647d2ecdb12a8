// Package settings provides local settings file management.
// The recent files list is stored in recent.json in the user's
// latex-workbench directory.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"latex-workbench/internal/logger"
	"latex-workbench/internal/types"
)

const (
	// SettingsFileName is the name of the settings file
	SettingsFileName = "recent.json"

	// DefaultMaxRecent is used when no positive limit is configured.
	DefaultMaxRecent = 5
)

// LocalSettings is the persisted state.
type LocalSettings struct {
	RecentFiles []string `json:"recent_files"`
}

// Manager manages the recent files list. Entries are most recent first.
type Manager struct {
	filePath  string
	maxRecent int
	settings  *LocalSettings
	mu        sync.RWMutex
}

// DefaultPath returns ~/.latex-workbench/recent.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "cannot locate home directory", err)
	}
	return filepath.Join(home, ".latex-workbench", SettingsFileName), nil
}

// NewManagerWithPath creates a settings manager backed by filePath and loads
// it. A missing or unreadable file starts an empty list.
func NewManagerWithPath(filePath string, maxRecent int) *Manager {
	if maxRecent <= 0 {
		maxRecent = DefaultMaxRecent
	}
	m := &Manager{
		filePath:  filePath,
		maxRecent: maxRecent,
		settings:  &LocalSettings{},
	}
	if err := m.Load(); err != nil {
		logger.Warn("recent files list ignored", logger.Err(err), logger.String("path", filePath))
	}
	return m
}

// Load reads the file, dropping entries that no longer exist on disk and
// anything beyond the limit.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = &LocalSettings{}
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return types.NewIOError("failed to read settings", m.filePath, err)
	}

	var settings LocalSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid settings file", m.filePath, err)
	}

	kept := make([]string, 0, len(settings.RecentFiles))
	for _, p := range settings.RecentFiles {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		kept = append(kept, p)
	}
	m.settings.RecentFiles = truncate(kept, m.maxRecent)
	return nil
}

// Save writes the list to disk, creating its directory.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.settings, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to encode settings", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.filePath), 0755); err != nil {
		return types.NewIOError("failed to create settings directory", filepath.Dir(m.filePath), err)
	}
	if err := os.WriteFile(m.filePath, data, 0600); err != nil {
		return types.NewIOError("failed to write settings", m.filePath, err)
	}
	return nil
}

// AddRecent moves p to the front of the list and saves.
func (m *Manager) AddRecent(p string) error {
	if p == "" {
		return nil
	}
	m.mu.Lock()
	list := []string{p}
	for _, existing := range m.settings.RecentFiles {
		if existing != p {
			list = append(list, existing)
		}
	}
	m.settings.RecentFiles = truncate(list, m.maxRecent)
	m.mu.Unlock()

	return m.Save()
}

// RemoveRecent drops p from the list and saves if it was present.
func (m *Manager) RemoveRecent(p string) error {
	m.mu.Lock()
	list := make([]string, 0, len(m.settings.RecentFiles))
	for _, existing := range m.settings.RecentFiles {
		if existing != p {
			list = append(list, existing)
		}
	}
	changed := len(list) != len(m.settings.RecentFiles)
	m.settings.RecentFiles = list
	m.mu.Unlock()

	if !changed {
		return nil
	}
	return m.Save()
}

// RecentFiles returns a copy of the list, most recent first.
func (m *Manager) RecentFiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.settings.RecentFiles))
	copy(out, m.settings.RecentFiles)
	return out
}

// GetFilePath returns the settings file path
func (m *Manager) GetFilePath() string {
	return m.filePath
}

func truncate(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
