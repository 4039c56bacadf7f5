package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Settings holds repository-local configuration from .strata/config.toml.
type Settings struct {
	User   UserSettings   `toml:"user"`
	Revset RevsetSettings `toml:"revset"`
}

// UserSettings identifies the author recorded on new commits.
type UserSettings struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// RevsetSettings carries user-defined revset aliases, expanded textually
// before parsing.
type RevsetSettings struct {
	Aliases map[string]string `toml:"aliases"`
}

func defaultSettings() Settings {
	return Settings{
		User:   UserSettings{Name: "anonymous", Email: "anonymous@localhost"},
		Revset: RevsetSettings{Aliases: make(map[string]string)},
	}
}

// LoadSettings reads config.toml. A missing file yields defaults.
func LoadSettings(path string) (Settings, error) {
	s := defaultSettings()
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("load settings %s: %w", path, err)
	}
	if s.Revset.Aliases == nil {
		s.Revset.Aliases = make(map[string]string)
	}
	return s, nil
}

// SaveSettings atomically writes config.toml.
func SaveSettings(path string, s Settings) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("save settings: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("save settings: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save settings: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save settings: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save settings: rename: %w", err)
	}
	return nil
}
