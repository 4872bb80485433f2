// Package record implements the BitSeal-RTC record layer: AEAD-sealed frames
// with per-direction nonces and a sliding replay window.
//
// A Session is not safe for concurrent use. Encode only touches send state
// and Decode only touches receive state, so one goroutine per direction is fine.
package record

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/1ureka/bitseal/internal/handshake"
	"github.com/1ureka/bitseal/internal/protocol"
)

// Session holds the key material and counters of one established connection.
type Session struct {
	key      []byte
	saltSend []byte
	saltRecv []byte
	aead     AEAD

	seq    uint64
	window Window
}

// NewSession creates a session from an already derived key. saltSend is this
// side's handshake salt, saltRecv the peer's. A nil suite selects AES-GCM.
func NewSession(key, saltSend, saltRecv []byte, suite AEAD) (*Session, error) {
	if len(key) != protocol.KeySize {
		return nil, fmt.Errorf("session key is %d bytes, want %d", len(key), protocol.KeySize)
	}
	if len(saltSend) != protocol.SaltSize || len(saltRecv) != protocol.SaltSize {
		return nil, fmt.Errorf("salts must be %d bytes", protocol.SaltSize)
	}
	if suite == nil {
		suite = AESGCM{}
	}

	// Random base below 2^63 so a session cannot realistically run the counter out.
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("read initial sequence: %w", err)
	}
	seq := binary.BigEndian.Uint64(buf[:]) >> 1

	return &Session{
		key:      append([]byte(nil), key...),
		saltSend: append([]byte(nil), saltSend...),
		saltRecv: append([]byte(nil), saltRecv...),
		aead:     suite,
		seq:      seq,
	}, nil
}

// Establish derives the session key from a verified peer handshake and
// returns a ready session.
func Establish(self *ec.PrivateKey, peer *handshake.Peer, selfSalt []byte, suite AEAD) (*Session, error) {
	key, err := handshake.SessionKey(self, peer.PublicKey, selfSalt, peer.Salt)
	if err != nil {
		return nil, err
	}
	return NewSession(key, selfSalt, peer.Salt, suite)
}

// Suite returns the AEAD in use.
func (s *Session) Suite() AEAD { return s.aead }

// Encode seals plaintext into a wire frame. The send counter advances even
// if the frame is never transmitted.
func (s *Session) Encode(plaintext []byte, flags uint8) ([]byte, error) {
	if s.seq == math.MaxUint64 {
		return nil, protocol.New(protocol.KindSequenceExhausted, "send sequence exhausted")
	}
	s.seq++
	seq := s.seq

	ciphertext, tag, err := s.aead.Seal(plaintext, protocol.AssociatedData(flags, seq), protocol.Nonce(s.saltSend, seq), s.key)
	if err != nil {
		return nil, fmt.Errorf("seal record %d: %w", seq, err)
	}

	frame := make([]byte, 0, protocol.Overhead+len(ciphertext))
	return protocol.AppendFrame(frame, &protocol.Frame{
		Flags:      flags,
		Seq:        seq,
		Ciphertext: ciphertext,
		Tag:        tag,
	}), nil
}

// Decode authenticates and decrypts one wire frame. A sequence number is
// only recorded in the replay window once its frame authenticates, so
// forged frames cannot push the window forward.
func (s *Session) Decode(frame []byte) ([]byte, error) {
	f, err := protocol.ParseFrame(frame)
	if err != nil {
		return nil, err
	}
	if !s.window.Check(f.Seq) {
		return nil, protocol.New(protocol.KindReplay, fmt.Sprintf("replayed or stale sequence %d (max %d)", f.Seq, s.window.MaxSeq()))
	}

	plain, err := s.aead.Open(f.Ciphertext, protocol.AssociatedData(f.Flags, f.Seq), protocol.Nonce(s.saltRecv, f.Seq), f.Tag, s.key)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindDecryptFailure, fmt.Sprintf("open record %d", f.Seq), err)
	}
	if plain == nil {
		plain = []byte{}
	}

	s.window.Accept(f.Seq)
	return plain, nil
}
