// Package prefs provides JSON-based user preferences.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const (
	appDir    = "draft-reader"
	prefsFile = "preferences.json"

	keyTrackDir = "trackDir"
	keyCardSet  = "cardSet"

	// DefaultCardSet is used until the user picks a set.
	DefaultCardSet = "woe"
)

// Prefs stores user preferences as a key-value map.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// Path returns the default preferences location,
// ~/.config/draft-reader/preferences.json on Linux.
func Path() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir, prefsFile)
}

// Load reads preferences from the default location.
func Load() *Prefs {
	return LoadFrom(Path())
}

// LoadFrom reads preferences from path. A missing or unreadable file gives
// empty preferences.
func LoadFrom(path string) *Prefs {
	p := &Prefs{
		values: make(map[string]interface{}),
		path:   path,
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p.values)
	return p
}

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// String returns a string preference, or "" if not set.
func (p *Prefs) String(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetString stores a string preference.
func (p *Prefs) SetString(key string, val string) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// TrackDir returns the screenshot directory, defaulting to ~/Downloads.
func (p *Prefs) TrackDir() string {
	if dir := p.String(keyTrackDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Downloads")
}

// SetTrackDir stores the screenshot directory.
func (p *Prefs) SetTrackDir(dir string) {
	p.SetString(keyTrackDir, dir)
}

// CardSet returns the active card set code.
func (p *Prefs) CardSet() string {
	if set := p.String(keyCardSet); set != "" {
		return set
	}
	return DefaultCardSet
}

// SetCardSet stores the active card set code.
func (p *Prefs) SetCardSet(set string) {
	p.SetString(keyCardSet, set)
}
