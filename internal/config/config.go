// Package config holds the CLI configuration and key file handling.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/1ureka/bitseal/internal/fragment"
	"github.com/1ureka/bitseal/internal/record"
)

// Role represents the user's chosen role (host or client).
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Mode selects the frame transport used after the handshake.
type Mode string

const (
	ModeWebRTC    Mode = "webrtc"
	ModeWebSocket Mode = "websocket"
)

// PINLength is the number of digits in a signaling PIN.
const PINLength = 6

// Config stores all parameters gathered from CLI flags or interactive prompts.
type Config struct {
	Role Role

	WSAddr string // Host: signaling listen address, ":0" picks a port
	WSURL  string // Client: normalized signaling URL, including the PIN
	PIN    string // Client: PIN shown by the host

	Mode  Mode
	Suite string

	KeyFile string // hex-encoded secp256k1 private key
	PeerKey string // hex-encoded compressed public key of the expected peer

	OutDir   string // where received files are written
	SendFile string // Client: send this file instead of reading stdin

	MaxPending       int           // incomplete messages held by the reassembler
	PendingTTL       time.Duration // age after which an incomplete message is dropped
	ClockSkew        time.Duration // accepted handshake timestamp drift, 0 disables the check
	HandshakeTimeout time.Duration // bound on signaling, handshake and ICE
}

// Default returns a Config with every optional field filled in.
func Default() Config {
	return Config{
		WSAddr:           ":0",
		Mode:             ModeWebRTC,
		Suite:            record.SuiteAESGCM,
		OutDir:           ".",
		MaxPending:       32,
		PendingTTL:       time.Minute,
		ClockSkew:        5 * time.Minute,
		HandshakeTimeout: 2 * time.Minute,
	}
}

// Validate reports the first problem that would stop the channel from being
// established.
func (c Config) Validate() error {
	switch c.Role {
	case RoleHost:
		if c.WSAddr == "" {
			return errors.New("missing signaling listen address")
		}
	case RoleClient:
		if c.WSURL == "" {
			return errors.New("missing WebSocket URL for client role")
		}
		if _, err := url.Parse(c.WSURL); err != nil {
			return fmt.Errorf("invalid WebSocket URL: %w", err)
		}
	default:
		return fmt.Errorf("invalid role %q: must be 'host' or 'client'", c.Role)
	}

	switch c.Mode {
	case ModeWebRTC, ModeWebSocket:
	default:
		return fmt.Errorf("invalid transport %q: must be '%s' or '%s'", c.Mode, ModeWebRTC, ModeWebSocket)
	}

	if _, err := record.SuiteByName(c.Suite); err != nil {
		return err
	}

	if c.KeyFile == "" {
		return errors.New("missing key file (create one with 'bitseal keygen')")
	}
	if c.PeerKey == "" {
		return errors.New("missing peer public key")
	}
	if _, err := ParsePublicKey(c.PeerKey); err != nil {
		return err
	}

	if c.MaxPending < 1 {
		return fmt.Errorf("max pending messages must be at least 1, got %d", c.MaxPending)
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("clock skew must not be negative, got %s", c.ClockSkew)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive, got %s", c.HandshakeTimeout)
	}
	return nil
}

// Limits converts the reassembly settings. A zero TTL disables age eviction.
func (c Config) Limits() fragment.Limits {
	ttl := c.PendingTTL
	if ttl == 0 {
		ttl = -1
	}
	return fragment.Limits{MaxPending: c.MaxPending, MaxAge: ttl}
}

// NormalizeWSURL validates a user-supplied host or URL and returns the
// signaling endpoint with the PIN attached. A bare host defaults to wss.
func NormalizeWSURL(raw, pin string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}

	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}

	pin = strings.TrimSpace(pin)
	if len(pin) != PINLength || strings.Trim(pin, "0123456789") != "" {
		return "", fmt.Errorf("invalid PIN: must be %d digits", PINLength)
	}

	out := url.URL{Scheme: scheme, Host: u.Host, Path: "/ws", RawQuery: url.Values{"pin": {pin}}.Encode()}
	return out.String(), nil
}
