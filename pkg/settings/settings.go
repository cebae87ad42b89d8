package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Settings is user state that should persist across restarts.
type Settings struct {
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
	// Resume maps a played path to the position it was left at.
	Resume map[string]time.Duration `json:"resume"`
}

var defaultSettings = Settings{
	Volume: 1.0,
}

// maxResumeEntries bounds the resume map; it is reset once full.
const maxResumeEntries = 200

// DefaultPath is $HOME/.config/flow-player/state.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "state.json"
	}
	return filepath.Join(home, ".config", "flow-player", "state.json")
}

// Load reads the settings file from disk. When the file is missing or cannot
// be parsed, defaults are returned so playback can continue.
func Load(path string) Settings {
	s := defaultSettings
	f, err := os.Open(path)
	if err != nil {
		return withDefaults(s)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return withDefaults(defaultSettings)
	}
	return withDefaults(s)
}

func withDefaults(s Settings) Settings {
	if s.Volume < 0 || s.Volume > 1 {
		s.Volume = defaultSettings.Volume
	}
	if s.Resume == nil {
		s.Resume = map[string]time.Duration{}
	}
	return s
}

// Remember records where path was left. Positions near the start or end are
// forgotten so the next run starts from the beginning.
func (s *Settings) Remember(path string, pos, dur time.Duration) {
	if s.Resume == nil {
		s.Resume = map[string]time.Duration{}
	}
	if pos < 5*time.Second || (dur > 0 && pos > dur-5*time.Second) {
		delete(s.Resume, path)
		return
	}
	if _, ok := s.Resume[path]; !ok && len(s.Resume) >= maxResumeEntries {
		s.Resume = map[string]time.Duration{}
	}
	s.Resume[path] = pos
}

// Save writes the settings to disk, creating the directory when necessary.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
