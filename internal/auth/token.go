// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeranaias/morpheus-tui/internal/chaterr"
	"github.com/jeranaias/morpheus-tui/internal/util"
)

// EnvToken is the environment variable consulted before the token file.
const EnvToken = "MORPHEUS_TOKEN"

// ErrNoToken is returned when no credential is configured.
var ErrNoToken = chaterr.New(chaterr.KindUnauthorized, "not signed in: set "+EnvToken+" or run 'morpheus signin'")

// =============================================================================
// TOKEN SOURCES
// =============================================================================

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() (string, error)
}

// Static is a fixed token.
type Static string

// Token returns the token, or ErrNoToken when empty.
func (s Static) Token() (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// EnvFile reads the token from an environment variable, falling back to a
// file. It is re-read on every call so sign-in and sign-out take effect
// without a restart.
type EnvFile struct {
	Env  string
	Path string
}

// NewEnvFile creates a source reading EnvToken and then path.
func NewEnvFile(path string) *EnvFile {
	return &EnvFile{Env: EnvToken, Path: path}
}

// Token returns the first non-empty credential found.
func (s *EnvFile) Token() (string, error) {
	if s.Env != "" {
		if tok := strings.TrimSpace(os.Getenv(s.Env)); tok != "" {
			return tok, nil
		}
	}
	if s.Path == "" {
		return "", ErrNoToken
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", chaterr.Wrap(chaterr.KindUnauthorized, "reading token file", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// SaveToken writes token to path readable only by the owner.
func SaveToken(path, token string) error {
	return util.AtomicWriteFileWithDir(path, []byte(strings.TrimSpace(token)+"\n"), 0600, 0700)
}

// RemoveToken deletes the token file. A missing file is not an error.
func RemoveToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// =============================================================================
// EXPIRY
// =============================================================================

// CheckExpiry reports an Unauthorized error when token is a JWT whose exp
// claim is before now. The signature is not verified; the server does that.
// Opaque tokens always pass.
func CheckExpiry(token string, now time.Time) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !now.Before(exp.Time) {
		return chaterr.New(chaterr.KindUnauthorized, "session expired at "+exp.Time.Local().Format(time.RFC1123)+"; sign in again")
	}
	return nil
}

// Checked wraps a source so expired JWTs are rejected before any request
// is made.
type Checked struct {
	Source TokenSource
	Now    func() time.Time
}

// Token returns the wrapped token after an expiry check.
func (c Checked) Token() (string, error) {
	tok, err := c.Source.Token()
	if err != nil {
		return "", err
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if err := CheckExpiry(tok, now()); err != nil {
		return "", err
	}
	return tok, nil
}
