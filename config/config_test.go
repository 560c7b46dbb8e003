package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FontSize != 14 || cfg.EmoteSize != 14 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if _, err := os.Stat(Path(dir)); err != nil {
		t.Errorf("user config file not written on first load: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Config{
		ClientID:          "abc",
		ClientSecret:      "shh",
		FontSize:          16,
		EmoteSize:         20,
		ShowTimestamps:    true,
		Profiles:          []Profile{{Name: "alice", TwitchUserID: "1"}, {Name: "bob"}},
		ActiveProfileName: "alice",
	}
	if err := Save(dir, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got %+v\nwant %+v", got, want)
	}
	// Profile list order must survive the round trip.
	if got.Profiles[0].Name != "alice" || got.Profiles[1].Name != "bob" {
		t.Errorf("profile order changed: %+v", got.Profiles)
	}
}

func TestLoadRejectsDanglingActiveProfile(t *testing.T) {
	dir := t.TempDir()
	raw := "active_profile_name = \"ghost\"\n"
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Load() expected error for dangling active_profile_name, got nil")
	}
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte("not = [toml"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Load() expected parse error, got nil")
	}
}

func TestUpsertProfile(t *testing.T) {
	c := Config{Profiles: []Profile{{Name: "alice"}}}

	c.UpsertProfile(Profile{Name: "alice", TwitchUserID: "1"})
	if len(c.Profiles) != 1 {
		t.Fatalf("upsert duplicated profile: %+v", c.Profiles)
	}
	if c.Profiles[0].TwitchUserID != "1" {
		t.Errorf("twitch_user_id not backfilled: %+v", c.Profiles[0])
	}

	// Upsert with empty user id must not clobber the remembered one.
	c.UpsertProfile(Profile{Name: "alice"})
	if c.Profiles[0].TwitchUserID != "1" {
		t.Errorf("twitch_user_id clobbered: %+v", c.Profiles[0])
	}

	c.UpsertProfile(Profile{Name: "bob"})
	if len(c.Profiles) != 2 || c.Profiles[1].Name != "bob" {
		t.Errorf("new profile not appended: %+v", c.Profiles)
	}
}

func TestDirEnvOverride(t *testing.T) {
	t.Setenv("CHAT_TENDER_CONFIG_DIR", "/tmp/ct-test")
	d, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if d != "/tmp/ct-test" {
		t.Errorf("Dir() = %q, want /tmp/ct-test", d)
	}
}
