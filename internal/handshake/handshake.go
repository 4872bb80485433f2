// Package handshake builds and verifies the signed BitSeal-RTC handshake and
// derives the session key from its outputs.
//
// Each peer sends one handshake carrying its public key, a fresh 4-byte salt
// and a timestamp, signed for the intended recipient. Once both handshakes
// verify, each side runs ECDH and hashes the shared point with both salts.
package handshake

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/1ureka/bitseal/internal/protocol"
)

// ProtocolID is version-pinned; peers with any other value are rejected.
const ProtocolID = "BitSeal-RTC/1.0"

// Message is the signed handshake body. Its canonical form fixes the field
// order and carries no whitespace.
type Message struct {
	Proto string `json:"proto"`
	PK    string `json:"pk"`   // compressed public key, hex
	Salt  string `json:"salt"` // 4 bytes, hex
	TS    int64  `json:"ts"`   // unix milliseconds
}

// Canonical returns the exact bytes that get signed.
func (m Message) Canonical() []byte {
	return []byte(fmt.Sprintf(`{"proto":"%s","pk":"%s","salt":"%s","ts":%d}`, m.Proto, m.PK, m.Salt, m.TS))
}

// Offer is the outgoing half of a handshake.
type Offer struct {
	Raw       []byte
	Signature []byte
	Salt      []byte
}

// Peer is what a verified handshake yields.
type Peer struct {
	PublicKey *ec.PublicKey
	Salt      []byte
	Timestamp time.Time
}

// Handshaker carries the pluggable pieces of the handshake. The zero value
// uses BRC-77, the system clock and crypto/rand.
type Handshaker struct {
	Signer Signer
	Now    func() time.Time
	Rand   io.Reader
}

var defaultHandshaker = &Handshaker{}

// Build creates a signed handshake for peer with the default Handshaker.
func Build(self *ec.PrivateKey, peer *ec.PublicKey) (*Offer, error) {
	return defaultHandshaker.Build(self, peer)
}

// Verify checks a peer handshake with the default Handshaker.
func Verify(raw, sig []byte, self *ec.PrivateKey) (*Peer, error) {
	return defaultHandshaker.Verify(raw, sig, self)
}

func (h *Handshaker) signer() Signer {
	if h.Signer == nil {
		return BRC77{}
	}
	return h.Signer
}

func (h *Handshaker) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Handshaker) random() io.Reader {
	if h.Rand == nil {
		return rand.Reader
	}
	return h.Rand
}

// Build generates a fresh salt and signs the canonical message for peer.
func (h *Handshaker) Build(self *ec.PrivateKey, peer *ec.PublicKey) (*Offer, error) {
	salt := make([]byte, protocol.SaltSize)
	if _, err := io.ReadFull(h.random(), salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	msg := Message{
		Proto: ProtocolID,
		PK:    hex.EncodeToString(self.PubKey().Compressed()),
		Salt:  hex.EncodeToString(salt),
		TS:    h.now().UnixMilli(),
	}
	raw := msg.Canonical()

	sig, err := h.signer().Sign(raw, self, peer)
	if err != nil {
		return nil, fmt.Errorf("sign handshake: %w", err)
	}
	return &Offer{Raw: raw, Signature: sig, Salt: salt}, nil
}

// Verify parses raw, pins the protocol identifier, checks the signature
// against self and returns the sender's key and salt.
func (h *Handshaker) Verify(raw, sig []byte, self *ec.PrivateKey) (*Peer, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, protocol.Wrap(protocol.KindMalformedMessage, "parse handshake", err)
	}
	if msg.Proto != ProtocolID {
		return nil, protocol.New(protocol.KindProtocolMismatch, fmt.Sprintf("unsupported protocol %q", msg.Proto))
	}

	pkBytes, err := hex.DecodeString(msg.PK)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindMalformedMessage, "decode public key", err)
	}
	peerPub, err := ec.ParsePubKey(pkBytes)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindMalformedMessage, "parse public key", err)
	}
	salt, err := hex.DecodeString(msg.Salt)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindMalformedMessage, "decode salt", err)
	}
	if len(salt) != protocol.SaltSize {
		return nil, protocol.New(protocol.KindMalformedMessage, fmt.Sprintf("salt is %d bytes, want %d", len(salt), protocol.SaltSize))
	}
	if msg.TS <= 0 {
		return nil, protocol.New(protocol.KindMalformedMessage, "missing timestamp")
	}

	signer := h.signer()
	ok, err := signer.Verify(raw, sig, self)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindSignatureInvalid, "verify handshake", err)
	}
	if !ok {
		return nil, protocol.New(protocol.KindSignatureInvalid, "handshake signature invalid")
	}
	if resolver, ok := signer.(SenderResolver); ok {
		sender, err := resolver.Sender(sig)
		if err != nil {
			return nil, protocol.Wrap(protocol.KindSignatureInvalid, "resolve signer", err)
		}
		if !bytes.Equal(sender.Compressed(), pkBytes) {
			return nil, protocol.New(protocol.KindSignatureInvalid, "handshake signed by a key other than the announced one")
		}
	}

	return &Peer{
		PublicKey: peerPub,
		Salt:      salt,
		Timestamp: time.UnixMilli(msg.TS),
	}, nil
}

// Expect fails unless the handshake came from want.
func (p *Peer) Expect(want *ec.PublicKey) error {
	if want == nil {
		return nil
	}
	if !bytes.Equal(p.PublicKey.Compressed(), want.Compressed()) {
		return protocol.New(protocol.KindPeerMismatch, fmt.Sprintf("handshake from %x, expected %x", p.PublicKey.Compressed(), want.Compressed()))
	}
	return nil
}

// CheckFreshness fails if the handshake timestamp is more than skew away from now.
// A zero skew disables the check.
func (p *Peer) CheckFreshness(now time.Time, skew time.Duration) error {
	if skew <= 0 {
		return nil
	}
	delta := now.Sub(p.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if delta > skew {
		return protocol.New(protocol.KindStaleHandshake, fmt.Sprintf("handshake timestamp off by %s (allowed %s)", delta.Round(time.Millisecond), skew))
	}
	return nil
}
