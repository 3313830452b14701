package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const sealPrefix = "sb1:"

var ErrUnsealable = errors.New("value cannot be opened")

// Sealer encrypts stored values with a key derived from a configured secret.
type Sealer struct {
	key [32]byte
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("empty storage secret")
	}
	h := hkdf.New(sha256.New, []byte(secret), nil, []byte("feedline-storage"))
	s := &Sealer{}
	if _, err := io.ReadFull(h, s.key[:]); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealPrefix) {
		return "", ErrUnsealable
	}
	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealPrefix))
	if err != nil || len(box) < 24+secretbox.Overhead {
		return "", ErrUnsealable
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", ErrUnsealable
	}
	return string(plain), nil
}
