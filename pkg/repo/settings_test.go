package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsMissingFileGivesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.User.Name == "" || s.User.Email == "" {
		t.Errorf("defaults = %+v", s.User)
	}
	if s.Revset.Aliases == nil {
		t.Error("aliases map is nil")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	want := Settings{
		User: UserSettings{Name: "Alice", Email: "alice@example.com"},
		Revset: RevsetSettings{Aliases: map[string]string{
			"mine":  "ancestors(@)",
			"trunk": "ancestors(main)",
		}},
	}
	if err := SaveSettings(path, want); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got.User != want.User {
		t.Errorf("user = %+v, want %+v", got.User, want.User)
	}
	if got.Revset.Aliases["mine"] != "ancestors(@)" || got.Revset.Aliases["trunk"] != "ancestors(main)" {
		t.Errorf("aliases = %v", got.Revset.Aliases)
	}
}

func TestLoadSettingsRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[user\nname = "), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("malformed config accepted")
	}
}
