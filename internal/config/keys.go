package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// GenerateKey creates a key and writes it to path as hex text with 0600
// permissions. An existing file is never overwritten.
func GenerateKey(path string) (*ec.PrivateKey, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, hex.EncodeToString(priv.Serialize())); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return priv, f.Close()
}

// LoadKey reads a key written by GenerateKey.
func LoadKey(path string) (*ec.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("key file %s: expected 64 hex characters", path)
	}

	priv, _ := ec.PrivateKeyFromBytes(raw)
	return priv, nil
}

// ParsePublicKey decodes a hex-encoded compressed (or uncompressed) public key.
func ParsePublicKey(s string) (*ec.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid peer public key: %w", err)
	}
	pub, err := ec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid peer public key: %w", err)
	}
	return pub, nil
}
