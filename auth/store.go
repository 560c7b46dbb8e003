package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// encPrefix marks an encrypted token file. Plaintext files stay readable so
// setting ENCRYPTION_KEY later migrates files on the next save.
const encPrefix = "ENCv1:"

// StoredToken is the persisted credential, one file per profile directory.
// RefreshToken is null for flows that never produced one (pasted tokens).
type StoredToken struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
}

// TokenPath returns <configDir>/profiles/<profile>/token.json.
func TokenPath(configDir, profile string) string {
	return filepath.Join(configDir, "profiles", safeName(profile), "token.json")
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "default"
	}
	for _, bad := range []string{"\\", "/", ":", " "} {
		s = strings.ReplaceAll(s, bad, "_")
	}
	return s
}

// LoadStoredToken reads the token file for a profile. A missing file reports
// ErrTokenNotFound.
func LoadStoredToken(configDir, profile string, enc *Encryptor) (StoredToken, error) {
	var st StoredToken
	b, err := os.ReadFile(TokenPath(configDir, profile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, fmt.Errorf("%w: profile %q", ErrTokenNotFound, profile)
		}
		return st, err
	}
	if bytes.HasPrefix(b, []byte(encPrefix)) {
		if enc == nil {
			return st, fmt.Errorf("token file for %q is encrypted but no ENCRYPTION_KEY is set", profile)
		}
		raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimPrefix(b, []byte(encPrefix))))
		if err != nil {
			return st, fmt.Errorf("decode token file: %w", err)
		}
		if b, err = enc.Decrypt(raw); err != nil {
			return st, err
		}
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("parse token file: %w", err)
	}
	return st, nil
}

// SaveStoredToken writes the token for a profile, creating parent dirs and
// going through a temp file + rename so readers see complete writes only.
func SaveStoredToken(configDir, profile string, st StoredToken, enc *Encryptor) error {
	path := TokenPath(configDir, profile)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if enc != nil {
		sealed, err := enc.Encrypt(b)
		if err != nil {
			return err
		}
		b = []byte(encPrefix + base64.StdEncoding.EncodeToString(sealed))
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "token.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
