// Package main provides a CLI tool to inspect and migrate stored profile tokens.
//
// It walks every profile in the config, reports whether a token file exists
// and whether it is encrypted, and can optionally validate tokens against the
// identity endpoint or rewrite plaintext files encrypted.
//
// Usage:
//
//	inspect-token [--profile NAME] [--validate] [--encrypt] [--dry-run]
//
// Flags:
//
//	--profile:  Inspect a single profile only (default: all profiles)
//	--validate: Check each token against id.twitch.tv
//	--encrypt:  Rewrite plaintext token files encrypted (requires ENCRYPTION_KEY)
//	--dry-run:  With --encrypt, report what would change without writing
//
// Environment Variables:
//
//	CHAT_TENDER_CONFIG_DIR: Config directory override
//	ENCRYPTION_KEY: Base64-encoded 32-byte key (required for --encrypt,
//	                and for reading already-encrypted files)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/chat-tender/auth"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/twitchapi"
)

func main() {
	profileFilter := flag.String("profile", "", "Inspect a single profile only (default: all profiles)")
	validate := flag.Bool("validate", false, "Check each token against id.twitch.tv")
	encrypt := flag.Bool("encrypt", false, "Rewrite plaintext token files encrypted (requires ENCRYPTION_KEY)")
	dryRun := flag.Bool("dry-run", false, "With --encrypt, report what would change without writing")
	flag.Parse()

	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	enc, err := auth.EncryptorFromEnv()
	if err != nil {
		slog.Error("bad ENCRYPTION_KEY", slog.Any("err", err))
		os.Exit(1)
	}
	if *encrypt && enc == nil {
		slog.Error("ENCRYPTION_KEY is required for --encrypt")
		os.Exit(1)
	}

	dir, err := config.Dir()
	if err != nil {
		slog.Error("resolve config dir", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		slog.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	profiles := cfg.Profiles
	if *profileFilter != "" {
		p := cfg.FindProfile(*profileFilter)
		if p == nil {
			slog.Error("no such profile", slog.String("profile", *profileFilter))
			os.Exit(1)
		}
		profiles = []config.Profile{*p}
	}
	if len(profiles) == 0 {
		slog.Info("no profiles configured", slog.String("config_dir", dir))
		return
	}

	errCount := 0
	for _, p := range profiles {
		if err := inspect(dir, p, enc, *validate, *encrypt, *dryRun); err != nil {
			slog.Error("inspect failed", slog.String("profile", p.Name), slog.Any("err", err))
			errCount++
		}
	}
	if errCount > 0 {
		os.Exit(1)
	}
}

func inspect(dir string, p config.Profile, enc *auth.Encryptor, validate, encrypt, dryRun bool) error {
	logger := slog.With(slog.String("profile", p.Name))

	st, err := auth.LoadStoredToken(dir, p.Name, enc)
	switch {
	case errors.Is(err, auth.ErrTokenNotFound):
		logger.Info("no stored token", slog.String("path", auth.TokenPath(dir, p.Name)))
		return nil
	case err != nil:
		return err
	}

	raw, rerr := os.ReadFile(auth.TokenPath(dir, p.Name))
	encrypted := rerr == nil && strings.HasPrefix(string(raw), "ENCv1:")
	logger.Info("stored token",
		slog.Bool("encrypted", encrypted),
		slog.Bool("has_refresh_token", st.RefreshToken != nil))

	if validate {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		id := &twitchapi.IDClient{}
		res, verr := id.Validate(ctx, st.AccessToken)
		if verr != nil {
			logger.Warn("token validation failed", slog.Any("err", verr))
		} else {
			logger.Info("token valid",
				slog.String("login", res.Login),
				slog.String("user_id", res.UserID),
				slog.Int("expires_in_seconds", res.ExpiresIn))
		}
	}

	if encrypt && !encrypted {
		if dryRun {
			logger.Info("would encrypt token file (dry-run)")
			return nil
		}
		if err := auth.SaveStoredToken(dir, p.Name, st, enc); err != nil {
			return fmt.Errorf("rewrite encrypted: %w", err)
		}
		logger.Info("token file encrypted")
	}
	return nil
}
