package config

import (
	"encoding/hex"
	"fmt"
)

// sha512HexLen is the length of a hex-encoded SHA-512 digest.
const sha512HexLen = 128

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Sessions.Backend {
	case "memory":
	case "redis":
		if c.Sessions.Redis.Addr == "" {
			return fmt.Errorf("sessions: redis backend requires an address")
		}
	default:
		return fmt.Errorf("sessions: unknown backend %q", c.Sessions.Backend)
	}

	seenIDs := make(map[int64]bool)
	seenHosts := make(map[string]bool)

	for i := range c.Tenants {
		t := &c.Tenants[i]

		if t.ID <= 0 {
			return fmt.Errorf("tenant %d: id must be positive", t.ID)
		}
		if seenIDs[t.ID] {
			return fmt.Errorf("tenant %d: duplicate id", t.ID)
		}
		seenIDs[t.ID] = true

		if t.Hostname != "" {
			if seenHosts[t.Hostname] {
				return fmt.Errorf("tenant %d: duplicate hostname %q", t.ID, t.Hostname)
			}
			seenHosts[t.Hostname] = true
		}

		if t.BasicAuth && (t.BasicAuthUsername == "" || t.BasicAuthPassword == "") {
			return fmt.Errorf("tenant %d: basic auth enabled without credentials", t.ID)
		}

		if t.AdminAPITokenDigest != "" {
			if len(t.AdminAPITokenDigest) != sha512HexLen {
				return fmt.Errorf("tenant %d: admin API token digest must be %d hex characters",
					t.ID, sha512HexLen)
			}
			if _, err := hex.DecodeString(t.AdminAPITokenDigest); err != nil {
				return fmt.Errorf("tenant %d: admin API token digest is not valid hex: %w", t.ID, err)
			}
		}
	}

	return nil
}
