package signing

import (
	"context"
	"errors"
	"fmt"
)

var ErrWalletRejected = errors.New("wallet rejected signing request")

// WalletAdapter is an external signer, typically a browser or custody wallet
// reached over some bridge. SignDigest must return the serialized signature.
type WalletAdapter interface {
	Address() string
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// WalletIdentity delegates signing to a WalletAdapter.
type WalletIdentity struct {
	wallet WalletAdapter
}

func NewWalletIdentity(wallet WalletAdapter) *WalletIdentity {
	return &WalletIdentity{wallet: wallet}
}

func (w *WalletIdentity) Address() string {
	return w.wallet.Address()
}

func (w *WalletIdentity) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, ErrInvalidDigest
	}
	sig, err := w.wallet.SignDigest(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: %w", w.wallet.Address(), err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("wallet %s: %w", w.wallet.Address(), ErrWalletRejected)
	}
	return sig, nil
}

var _ Identity = (*WalletIdentity)(nil)
