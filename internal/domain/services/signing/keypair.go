package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidDigest     = errors.New("digest must be 32 bytes")
)

// KeypairIdentity signs with an in-memory Ed25519 key.
type KeypairIdentity struct {
	privateKey ed25519.PrivateKey
	address    string
}

// NewKeypairIdentity wraps an existing Ed25519 private key.
func NewKeypairIdentity(key ed25519.PrivateKey) (*KeypairIdentity, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, ed25519.PrivateKeySize, len(key))
	}
	pub := key.Public().(ed25519.PublicKey)
	return &KeypairIdentity{
		privateKey: key,
		address:    AddressFromPublicKey(pub),
	}, nil
}

// NewKeypairIdentityFromBase64 parses a base64 secret. Accepted layouts are a
// 32-byte seed, a 33-byte seed prefixed with the Ed25519 scheme flag, or a
// 64-byte seed||public key.
func NewKeypairIdentityFromBase64(encoded string) (*KeypairIdentity, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return NewKeypairIdentity(ed25519.NewKeyFromSeed(raw))
	case ed25519.SeedSize + 1:
		if raw[0] != Ed25519Flag {
			return nil, fmt.Errorf("%w: unsupported key scheme flag 0x%02x", ErrInvalidPrivateKey, raw[0])
		}
		return NewKeypairIdentity(ed25519.NewKeyFromSeed(raw[1:]))
	case ed25519.PrivateKeySize:
		key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !ed25519.PublicKey(raw[ed25519.SeedSize:]).Equal(key.Public()) {
			return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidPrivateKey)
		}
		return NewKeypairIdentity(key)
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidPrivateKey, len(raw))
	}
}

// Address returns the account address of the key.
func (k *KeypairIdentity) Address() string {
	return k.address
}

// PublicKey returns the Ed25519 public key.
func (k *KeypairIdentity) PublicKey() ed25519.PublicKey {
	return k.privateKey.Public().(ed25519.PublicKey)
}

// Sign signs the intent digest and returns flag || signature || public key.
func (k *KeypairIdentity) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(digest) != 32 {
		return nil, ErrInvalidDigest
	}
	sig := ed25519.Sign(k.privateKey, digest)
	pub := k.PublicKey()

	out := make([]byte, 0, 1+len(sig)+len(pub))
	out = append(out, Ed25519Flag)
	out = append(out, sig...)
	out = append(out, pub...)
	return out, nil
}

var _ Identity = (*KeypairIdentity)(nil)
