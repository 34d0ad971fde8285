// Package signing provides the identities that authorize ledger transactions.
package signing

import (
	"context"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Ed25519Flag is the signature scheme prefix for Ed25519 keys.
const Ed25519Flag byte = 0x00

// transactionIntent prefixes transaction bytes before hashing:
// scope TransactionData, version V0, app id Sui.
var transactionIntent = []byte{0x00, 0x00, 0x00}

// Identity is something that can authorize a transaction: a keypair held by
// the service or an external wallet. Sign receives the 32-byte intent digest
// and returns the serialized signature (flag || signature || public key).
type Identity interface {
	Address() string
	Sign(ctx context.Context, digest []byte) ([]byte, error)
}

// IntentDigest returns the BLAKE2b-256 hash of the transaction intent message.
func IntentDigest(txBytes []byte) []byte {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	sum := blake2b.Sum256(msg)
	return sum[:]
}

// AddressFromPublicKey derives the account address for an Ed25519 public key.
func AddressFromPublicKey(pub []byte) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, Ed25519Flag)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}
