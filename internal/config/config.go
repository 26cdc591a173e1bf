package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AdminUser     string
	AdminPassHash string // bcrypt

	// AuthSecret signs the bearer tokens handed to admins and students.
	AuthSecret string

	// VaultKeyB64 is the base64-encoded 32-byte key for the sensitive
	// result vault. The process must not start without it.
	VaultKeyB64 string

	CORSOrigins []string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:      addr,
		DBDriver:      envOr("DB_DRIVER", "sqlite"),
		DBDSN:         envOr("DB_DSN", ""),
		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: os.Getenv("ADMIN_PASS_HASH"),
		AuthSecret:    envOr("AUTH_HMAC_SECRET", "dev-secret-cambia-esto"),
		VaultKeyB64:   os.Getenv("VAULT_KEY"),
		CORSOrigins:   csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

// VaultKey decodes and validates the vault key. A missing or malformed key
// is a startup error, not something to fall back from.
func (c Config) VaultKey() ([]byte, error) {
	if c.VaultKeyB64 == "" {
		return nil, errors.New("VAULT_KEY not set")
	}
	key, err := base64.StdEncoding.DecodeString(c.VaultKeyB64)
	if err != nil {
		return nil, fmt.Errorf("VAULT_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("VAULT_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c Config) Validate() error {
	if _, err := c.VaultKey(); err != nil {
		return err
	}
	if c.AdminPassHash == "" {
		return errors.New("ADMIN_PASS_HASH not set")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
