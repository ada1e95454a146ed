package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length.
	IVSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16

	envelopePrefix = "enc:v1:"
)

var (
	// ErrKeySize indicates key material that is not exactly KeySize bytes.
	ErrKeySize = errors.New("crypto: key must be 32 bytes")
	// ErrMalformedEnvelope indicates a tagged value that cannot be decoded.
	ErrMalformedEnvelope = errors.New("crypto: malformed envelope")
)

// Envelope is the output of a single AES-256-GCM encryption.
type Envelope struct {
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// DeriveKey normalizes key material to 32 bytes using SHA-256.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}

// RandomKey returns KeySize bytes from the system CSPRNG.
func RandomKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext under key with a fresh random IV.
func Seal(key, plaintext []byte) (Envelope, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Envelope{}, err
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Envelope{}, fmt.Errorf("generate iv: %w", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - TagSize
	return Envelope{
		IV:         iv,
		Tag:        append([]byte(nil), sealed[split:]...),
		Ciphertext: append([]byte(nil), sealed[:split]...),
	}, nil
}

// Open authenticates and decrypts an envelope. Any tampering yields an error
// and no plaintext.
func Open(key []byte, env Envelope) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(env.IV) != IVSize || len(env.Tag) != TagSize {
		return nil, ErrMalformedEnvelope
	}
	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	plain, err := gcm.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// String serializes the envelope into its tagged storage form.
func (e Envelope) String() string {
	enc := base64.StdEncoding
	return envelopePrefix + enc.EncodeToString(e.IV) + ":" + enc.EncodeToString(e.Tag) + ":" + enc.EncodeToString(e.Ciphertext)
}

// IsEnvelope reports whether value carries the envelope tag.
func IsEnvelope(value string) bool {
	return strings.HasPrefix(value, envelopePrefix)
}

// ParseEnvelope decodes a tagged envelope string.
func ParseEnvelope(value string) (Envelope, error) {
	if !IsEnvelope(value) {
		return Envelope{}, ErrMalformedEnvelope
	}
	parts := strings.Split(strings.TrimPrefix(value, envelopePrefix), ":")
	if len(parts) != 3 {
		return Envelope{}, ErrMalformedEnvelope
	}
	enc := base64.StdEncoding
	iv, err := enc.DecodeString(parts[0])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: iv: %v", ErrMalformedEnvelope, err)
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: tag: %v", ErrMalformedEnvelope, err)
	}
	ciphertext, err := enc.DecodeString(parts[2])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: ciphertext: %v", ErrMalformedEnvelope, err)
	}
	return Envelope{IV: iv, Tag: tag, Ciphertext: ciphertext}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
