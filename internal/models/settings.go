// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const appDirName = "promille"

// BAC status strings
const (
	StatusSober         = "sober"
	StatusUnderLimit    = "under_limit"
	StatusOverLimit     = "over_limit"
	StatusAbsoluteLimit = "absolute_limit"
)

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Engine settings
	CacheLimit     int `json:"cacheLimit"`     // Cached input combinations
	DebounceMillis int `json:"debounceMillis"` // Quiet period before recomputing

	// Legal thresholds in ‰
	LegalLimit    float64 `json:"legalLimit"`
	AbsoluteLimit float64 `json:"absoluteLimit"`
	SoberBelow    float64 `json:"soberBelow"`

	// Alert settings
	EnableOverLimitAlert     bool `json:"enableOverLimitAlert"`
	EnableAbsoluteLimitAlert bool `json:"enableAbsoluteLimitAlert"`
	EnableSoberAlert         bool `json:"enableSoberAlert"`
	RepeatAlertMinutes       int  `json:"repeatAlertMinutes"` // 0 = no repeat

	// Chart settings
	ChartWidth      int               `json:"chartWidth"`
	ChartHeight     int               `json:"chartHeight"`
	ChartMaxBAC     float64           `json:"chartMaxBac"` // Upper y-axis bound, grows with the data
	ChartShowDrinks bool              `json:"chartShowDrinks"`
	ChartShowNow    bool              `json:"chartShowNow"`
	ChartColors     map[string]string `json:"chartColors"` // Model id -> hex colour
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		CacheLimit:     50,
		DebounceMillis: 300,

		LegalLimit:    0.5,
		AbsoluteLimit: 1.1,
		SoberBelow:    0.05,

		EnableOverLimitAlert:     true,
		EnableAbsoluteLimitAlert: true,
		EnableSoberAlert:         true,
		RepeatAlertMinutes:       30,

		ChartWidth:      1000,
		ChartHeight:     600,
		ChartMaxBAC:     2.0,
		ChartShowDrinks: true,
		ChartShowNow:    true,
		ChartColors: map[string]string{
			string(Widmark): "#3b82f6", // Blue
			string(Watson):  "#22c55e", // Green
			string(Forrest): "#f97316", // Orange
			string(Seidl):   "#a855f7", // Purple
		},
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, appDirName)
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from the default config path
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.LoadFile(path)
}

// LoadFile loads settings from path, keeping defaults if the file does not exist
func (s *Settings) LoadFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the app, not user input
	if err != nil {
		if os.IsNotExist(err) {
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	return json.Unmarshal(data, s)
}

// Save saves settings to the default config path
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.SaveFile(path)
}

// SaveFile saves settings to path
func (s *Settings) SaveFile(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.CacheLimit = other.CacheLimit
	s.DebounceMillis = other.DebounceMillis
	s.LegalLimit = other.LegalLimit
	s.AbsoluteLimit = other.AbsoluteLimit
	s.SoberBelow = other.SoberBelow
	s.EnableOverLimitAlert = other.EnableOverLimitAlert
	s.EnableAbsoluteLimitAlert = other.EnableAbsoluteLimitAlert
	s.EnableSoberAlert = other.EnableSoberAlert
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.ChartWidth = other.ChartWidth
	s.ChartHeight = other.ChartHeight
	s.ChartMaxBAC = other.ChartMaxBAC
	s.ChartShowDrinks = other.ChartShowDrinks
	s.ChartShowNow = other.ChartShowNow

	s.ChartColors = make(map[string]string, len(other.ChartColors))
	for k, v := range other.ChartColors {
		s.ChartColors[k] = v
	}
}

// ModelColor returns the chart colour of a model, grey if none is configured
func (s *Settings) ModelColor(model ModelID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.ChartColors[string(model)]; ok {
		return c
	}
	return "#6b7280"
}

// GetBACStatus returns the status string for a BAC value in ‰
func (s *Settings) GetBACStatus(bac float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case bac >= s.AbsoluteLimit:
		return StatusAbsoluteLimit
	case bac >= s.LegalLimit:
		return StatusOverLimit
	case bac < s.SoberBelow:
		return StatusSober
	default:
		return StatusUnderLimit
	}
}
