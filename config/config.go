// Package config loads and persists the user-facing TOML configuration:
// Twitch app credentials, display preferences, and the profile list. A base
// file shipped next to the binary is merged under the per-OS user file so
// deployments can pin defaults without touching user state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	appDirName = "chat-tender"
	fileName   = "app_config.toml"

	// BaseConfigPath is the optional deployment-provided base file, relative
	// to the working directory.
	BaseConfigPath = "config/app_config.toml"
)

// Profile is a named local identity. TwitchUserID is backfilled after the
// first successful login under this profile.
type Profile struct {
	Name         string `toml:"name"`
	TwitchUserID string `toml:"twitch_user_id,omitempty"`
}

type Config struct {
	ClientID     string `toml:"client_id,omitempty"`
	ClientSecret string `toml:"client_secret,omitempty"`

	// Display preferences; consumed by the presentation layer only.
	EnableCJKFont  bool    `toml:"enable_cjk_font"`
	FontSize       float64 `toml:"font_size"`
	EmoteSize      float64 `toml:"emote_size"`
	ShowTimestamps bool    `toml:"show_timestamps"`
	CollapseEmotes bool    `toml:"collapse_emotes"`

	Profiles          []Profile `toml:"profiles"`
	ActiveProfileName string    `toml:"active_profile_name,omitempty"`
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		FontSize:  14,
		EmoteSize: 14,
	}
}

// Dir resolves the per-OS config directory. CHAT_TENDER_CONFIG_DIR overrides
// it (tests, portable installs).
func Dir() (string, error) {
	if d := os.Getenv("CHAT_TENDER_CONFIG_DIR"); d != "" {
		return d, nil
	}
	root, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(root, appDirName), nil
}

// Path returns the user config file path under dir.
func Path(dir string) string {
	return filepath.Join(dir, fileName)
}

// Load merges the base file (if present) under the user file at dir. A
// missing user file yields defaults; on first successful load without a user
// file, the merged result is written out so the user has a file to edit.
func Load(dir string) (Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(BaseConfigPath, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("parse base config: %w", err)
	}

	userPath := Path(dir)
	_, err := toml.DecodeFile(userPath, &cfg)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if serr := Save(dir, cfg); serr != nil {
			return cfg, fmt.Errorf("write initial config: %w", serr)
		}
	case err != nil:
		return cfg, fmt.Errorf("parse config %s: %w", userPath, err)
	}

	if cfg.ActiveProfileName != "" && cfg.FindProfile(cfg.ActiveProfileName) == nil {
		return cfg, fmt.Errorf("active_profile_name %q references no profile", cfg.ActiveProfileName)
	}
	return cfg, nil
}

// Save writes cfg to the user file under dir via a temp file and rename, so
// concurrent readers never observe a torn write.
func Save(dir string, cfg Config) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, fileName+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, Path(dir))
}

// FindProfile returns the profile with the given name, or nil.
func (c *Config) FindProfile(name string) *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i]
		}
	}
	return nil
}

// ActiveProfile returns the profile referenced by ActiveProfileName, or nil.
func (c *Config) ActiveProfile() *Profile {
	if c.ActiveProfileName == "" {
		return nil
	}
	return c.FindProfile(c.ActiveProfileName)
}

// UpsertProfile adds the profile or merges it into the existing one of the
// same name. Profile names are unique within a config.
func (c *Config) UpsertProfile(p Profile) {
	if existing := c.FindProfile(p.Name); existing != nil {
		if p.TwitchUserID != "" {
			existing.TwitchUserID = p.TwitchUserID
		}
		return
	}
	c.Profiles = append(c.Profiles, p)
}
