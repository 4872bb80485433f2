package record

import (
	"fmt"

	aesgcm "github.com/bsv-blockchain/go-sdk/primitives/aesgcm"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/1ureka/bitseal/internal/protocol"
)

// AEAD seals and opens one record with the tag kept separate from the
// ciphertext, matching the frame layout.
type AEAD interface {
	Name() string
	Seal(plaintext, ad, nonce, key []byte) (ciphertext, tag []byte, err error)
	Open(ciphertext, ad, nonce, tag, key []byte) ([]byte, error)
}

// Suite names accepted by SuiteByName.
const (
	SuiteAESGCM           = "aes-gcm"
	SuiteChaCha20Poly1305 = "chacha20-poly1305"
)

// SuiteByName resolves a configured suite. An empty name selects AES-GCM.
func SuiteByName(name string) (AEAD, error) {
	switch name {
	case "", SuiteAESGCM:
		return AESGCM{}, nil
	case SuiteChaCha20Poly1305:
		return ChaCha20Poly1305{}, nil
	default:
		return nil, fmt.Errorf("unknown AEAD suite %q", name)
	}
}

// AESGCM is AES-256-GCM. It is the suite the reference peers speak.
type AESGCM struct{}

func (AESGCM) Name() string { return SuiteAESGCM }

func (AESGCM) Seal(plaintext, ad, nonce, key []byte) ([]byte, []byte, error) {
	return aesgcm.AESGCMEncrypt(plaintext, key, nonce, ad)
}

func (AESGCM) Open(ciphertext, ad, nonce, tag, key []byte) ([]byte, error) {
	return aesgcm.AESGCMDecrypt(ciphertext, key, nonce, ad, tag)
}

// ChaCha20Poly1305 is the IETF construction (12-byte nonce). Both peers must
// be configured with it; the frame does not name its suite.
type ChaCha20Poly1305 struct{}

func (ChaCha20Poly1305) Name() string { return SuiteChaCha20Poly1305 }

func (ChaCha20Poly1305) Seal(plaintext, ad, nonce, key []byte) ([]byte, []byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, ad)
	split := len(sealed) - protocol.TagSize
	return sealed[:split], sealed[split:], nil
}

func (ChaCha20Poly1305) Open(ciphertext, ad, nonce, tag, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	return aead.Open(nil, nonce, sealed, ad)
}
