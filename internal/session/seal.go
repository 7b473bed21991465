package session

import (
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealedToken reports a sealed token that does not open under this secret.
var ErrSealedToken = errors.New("session: sealed token rejected")

// sealer encrypts tokens that must leave the process, such as job payloads.
// The nonce is a keyed hash of the token, so one token always seals to the
// same text and queue deduplication keeps working.
type sealer struct {
	aead     cipher.AEAD
	nonceKey [32]byte
}

func newSealer(secret []byte) (*sealer, error) {
	key := blake2b.Sum256(append([]byte("campusdesk seal key\x00"), secret...))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	return &sealer{aead: aead, nonceKey: blake2b.Sum256(append([]byte("campusdesk seal nonce\x00"), secret...))}, nil
}

func (s *sealer) seal(token string) (string, error) {
	mac, err := blake2b.New(chacha20poly1305.NonceSizeX, s.nonceKey[:])
	if err != nil {
		return "", err
	}
	mac.Write([]byte(token))
	nonce := mac.Sum(nil)
	out := s.aead.Seal(nonce, nonce, []byte(token), nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *sealer) open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < chacha20poly1305.NonceSizeX+s.aead.Overhead() {
		return "", ErrSealedToken
	}
	nonce, box := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := s.aead.Open(nil, nonce, box, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedToken, err)
	}
	return string(plain), nil
}

// SealToken encrypts token under the session secret.
func (m *Manager) SealToken(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	s, err := newSealer(m.secret)
	if err != nil {
		return "", err
	}
	return s.seal(token)
}

// OpenToken reverses SealToken.
func (m *Manager) OpenToken(sealed string) (string, error) {
	s, err := newSealer(m.secret)
	if err != nil {
		return "", err
	}
	return s.open(sealed)
}
