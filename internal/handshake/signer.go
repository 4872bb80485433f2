package handshake

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/message"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Signer is a recipient-bound signature scheme: a signature made for peer
// can only be checked by the holder of peer's private key.
type Signer interface {
	Sign(msg []byte, self *ec.PrivateKey, peer *ec.PublicKey) ([]byte, error)
	Verify(msg, sig []byte, self *ec.PrivateKey) (bool, error)
}

// SenderResolver is implemented by signers whose signatures carry the
// signer's public key. Verify uses it to bind the announced key to the signer.
type SenderResolver interface {
	Sender(sig []byte) (*ec.PublicKey, error)
}

// brc77Version prefixes every BRC-77 signature.
var brc77Version = []byte{0x42, 0x42, 0x33, 0x01}

const (
	compressedKeySize = 33
	brc77KeyIDSize    = 32
	minDERSize        = 8 // 30 06 02 01 r 02 01 s

	brc77MinSize = 4 + compressedKeySize + compressedKeySize + brc77KeyIDSize + minDERSize
)

// BRC77 signs with BRC-77 signed messages (BRC-42 derived signing keys).
type BRC77 struct{}

func (BRC77) Sign(msg []byte, self *ec.PrivateKey, peer *ec.PublicKey) ([]byte, error) {
	if peer == nil {
		return nil, errors.New("brc77: recipient key required")
	}
	return message.Sign(msg, self, peer)
}

// Verify only accepts signatures addressed to self. Signatures for "anyone"
// (recipient byte 0x00) are rejected, as are short inputs that message.Verify
// would index past.
func (BRC77) Verify(msg, sig []byte, self *ec.PrivateKey) (bool, error) {
	if len(sig) < brc77MinSize {
		return false, fmt.Errorf("brc77: signature too short: %d bytes", len(sig))
	}
	if !bytes.Equal(sig[:len(brc77Version)], brc77Version) {
		return false, fmt.Errorf("brc77: unknown version %s", hex.EncodeToString(sig[:len(brc77Version)]))
	}
	recipient := sig[len(brc77Version)+compressedKeySize : len(brc77Version)+2*compressedKeySize]
	if !bytes.Equal(recipient, self.PubKey().Compressed()) {
		return false, errors.New("brc77: signature is not addressed to this key")
	}
	return message.Verify(msg, sig, self)
}

// Sender extracts the signer key: version(4) || sender(33) || recipient || keyID || DER.
func (BRC77) Sender(sig []byte) (*ec.PublicKey, error) {
	if len(sig) < len(brc77Version)+compressedKeySize {
		return nil, fmt.Errorf("brc77: signature too short: %d bytes", len(sig))
	}
	if !bytes.Equal(sig[:len(brc77Version)], brc77Version) {
		return nil, fmt.Errorf("brc77: unknown version %s", hex.EncodeToString(sig[:len(brc77Version)]))
	}
	return ec.ParsePubKey(sig[len(brc77Version) : len(brc77Version)+compressedKeySize])
}
