package config

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

func testPeerKey() string {
	_, pub := ec.PrivateKeyFromBytes(bytes.Repeat([]byte{0x07}, 32))
	return hex.EncodeToString(pub.Compressed())
}

func validHost() Config {
	c := Default()
	c.Role = RoleHost
	c.KeyFile = "host.key"
	c.PeerKey = testPeerKey()
	return c
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid host", func(*Config) {}, ""},
		{"valid client", func(c *Config) { c.Role = RoleClient; c.WSURL = "ws://127.0.0.1:9000/ws?pin=123456" }, ""},
		{"no role", func(c *Config) { c.Role = "" }, "invalid role"},
		{"client without url", func(c *Config) { c.Role = RoleClient }, "missing WebSocket URL"},
		{"host without addr", func(c *Config) { c.WSAddr = "" }, "listen address"},
		{"bad mode", func(c *Config) { c.Mode = "carrier-pigeon" }, "invalid transport"},
		{"bad suite", func(c *Config) { c.Suite = "rot13" }, "rot13"},
		{"no key", func(c *Config) { c.KeyFile = "" }, "missing key file"},
		{"no peer", func(c *Config) { c.PeerKey = "" }, "missing peer"},
		{"bad peer", func(c *Config) { c.PeerKey = "02abcd" }, "invalid peer public key"},
		{"zero pending", func(c *Config) { c.MaxPending = 0 }, "max pending"},
		{"negative skew", func(c *Config) { c.ClockSkew = -time.Second }, "clock skew"},
		{"zero timeout", func(c *Config) { c.HandshakeTimeout = 0 }, "handshake timeout"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validHost()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLimits(t *testing.T) {
	c := Default()
	if l := c.Limits(); l.MaxPending != 32 || l.MaxAge != time.Minute {
		t.Fatalf("default limits: %+v", l)
	}
	c.PendingTTL = 0
	if l := c.Limits(); l.MaxAge >= 0 {
		t.Fatalf("zero TTL should disable age eviction, got %s", l.MaxAge)
	}
}

func TestNormalizeWSURL(t *testing.T) {
	testCases := []struct {
		raw, pin, want string
	}{
		{"ws://127.0.0.1:8080", "123456", "ws://127.0.0.1:8080/ws?pin=123456"},
		{"wss://example.devtunnels.ms/ws?pin=000000", "654321", "wss://example.devtunnels.ms/ws?pin=654321"},
		{"example.com:443", "111111", "wss://example.com:443/ws?pin=111111"},
		{"https://example.com/anything", "222222", "wss://example.com/ws?pin=222222"},
	}
	for _, tc := range testCases {
		got, err := NormalizeWSURL(tc.raw, tc.pin)
		if err != nil {
			t.Fatalf("NormalizeWSURL(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Errorf("NormalizeWSURL(%q): got %q, want %q", tc.raw, got, tc.want)
		}
	}

	for _, pin := range []string{"", "12345", "1234567", "12a456"} {
		if _, err := NormalizeWSURL("ws://h:1", pin); err == nil {
			t.Errorf("PIN %q accepted", pin)
		}
	}
	if _, err := NormalizeWSURL("ws://", "123456"); err == nil {
		t.Error("URL without host accepted")
	}
}

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.key")

	priv, err := GenerateKey(path)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("key file permissions: got %o, want 600", perm)
		}
	}

	loaded, err := LoadKey(path)
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if !bytes.Equal(loaded.PubKey().Compressed(), priv.PubKey().Compressed()) {
		t.Fatal("loaded key differs from generated key")
	}

	if _, err := GenerateKey(path); err == nil {
		t.Fatal("GenerateKey overwrote an existing key file")
	}
}

func TestLoadKeyRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"short":  "abcd\n",
		"nonhex": strings.Repeat("zz", 32),
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadKey(path); err == nil {
			t.Errorf("%s: LoadKey accepted %q", name, content)
		}
	}
	if _, err := LoadKey(filepath.Join(dir, "missing")); err == nil {
		t.Error("LoadKey accepted a missing file")
	}
}
