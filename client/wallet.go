package client

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/internal/eth"
)

// EventKind classifies a wallet-side event that invalidates the session.
type EventKind string

const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
	EventDisconnected    EventKind = "disconnect"
)

// Event is emitted by a wallet when its state changes out from under
// the application.
type Event struct {
	Kind    EventKind
	Account string
	ChainID string
}

// Wallet abstracts the signer used by the login flow. Connect yields the
// active account address, SignMessage produces an EIP-191 personal
// signature, and Events delivers state changes until the wallet is closed.
type Wallet interface {
	Connect(ctx context.Context) (string, error)
	SignMessage(ctx context.Context, address, message string) (string, error)
	Events() <-chan Event
}

// ErrWalletRejected is returned by a wallet when the user declines
// connection or signing.
var ErrWalletRejected = fmt.Errorf("wallet request rejected")

// KeyWallet is a Wallet over an in-process secp256k1 key. It is used by the
// demo client and by tests; real deployments front a browser wallet instead.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address string

	mu     sync.Mutex
	events chan Event
	closed bool
}

// NewKeyWallet parses a hex-encoded private key, with or without the 0x
// prefix.
func NewKeyWallet(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeyWalletFromKey(key), nil
}

// NewKeyWalletFromKey wraps an existing key.
func NewKeyWalletFromKey(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{
		key:     key,
		address: core.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey).Hex()),
		events:  make(chan Event, 8),
	}
}

func (w *KeyWallet) Connect(_ context.Context) (string, error) {
	return w.address, nil
}

func (w *KeyWallet) SignMessage(_ context.Context, address, message string) (string, error) {
	if core.NormalizeAddress(address) != w.address {
		return "", fmt.Errorf("unknown account %s", address)
	}
	sig, err := eth.SignPersonal(w.key, message)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

func (w *KeyWallet) Events() <-chan Event {
	return w.events
}

// Emit injects a wallet event, simulating an account or chain switch.
func (w *KeyWallet) Emit(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.events <- ev
}

// Close stops event delivery.
func (w *KeyWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.events)
}
