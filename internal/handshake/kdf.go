package handshake

import (
	"bytes"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"

	"github.com/1ureka/bitseal/internal/protocol"
)

// SharedSecret runs ECDH and returns the compressed encoding of the shared point.
func SharedSecret(self *ec.PrivateKey, peer *ec.PublicKey) ([]byte, error) {
	point, err := self.DeriveSharedSecret(peer)
	if err != nil {
		return nil, err
	}
	return point.Compressed(), nil
}

// DeriveKey returns SHA-256(shared || lo || hi), lo and hi being the two salts
// in byte order, so both peers derive the same key whichever side they are on.
func DeriveKey(shared, saltSelf, saltPeer []byte) []byte {
	lo, hi := saltSelf, saltPeer
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	data := make([]byte, 0, len(shared)+len(lo)+len(hi))
	data = append(data, shared...)
	data = append(data, lo...)
	data = append(data, hi...)
	return bsvhash.Sha256(data)
}

// SessionKey combines SharedSecret and DeriveKey.
func SessionKey(self *ec.PrivateKey, peer *ec.PublicKey, saltSelf, saltPeer []byte) ([]byte, error) {
	if len(saltSelf) != protocol.SaltSize || len(saltPeer) != protocol.SaltSize {
		return nil, protocol.New(protocol.KindMalformedMessage, "salts must be 4 bytes")
	}
	shared, err := SharedSecret(self, peer)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindMalformedMessage, "key agreement", err)
	}
	return DeriveKey(shared, saltSelf, saltPeer), nil
}
