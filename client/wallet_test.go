package client

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delinked/delinked/internal/eth"
)

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestKeyWalletSigns(t *testing.T) {
	key := newTestKey(t)
	wallet := NewKeyWalletFromKey(key)
	defer wallet.Close()

	addr, err := wallet.Connect(context.Background())
	require.NoError(t, err)

	sig, err := wallet.SignMessage(context.Background(), addr, "Login to DeLinked: abc")
	require.NoError(t, err)
	assert.True(t, eth.VerifyPersonal(addr, "Login to DeLinked: abc", sig))
}

func TestKeyWalletRejectsUnknownAccount(t *testing.T) {
	wallet := NewKeyWalletFromKey(newTestKey(t))
	defer wallet.Close()

	_, err := wallet.SignMessage(context.Background(), "0x0000000000000000000000000000000000000001", "msg")
	assert.Error(t, err)
}

func TestNewKeyWalletHex(t *testing.T) {
	key := newTestKey(t)
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	wallet, err := NewKeyWallet(hexKey)
	require.NoError(t, err)
	defer wallet.Close()

	addr, err := wallet.Connect(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, addr)

	_, err = NewKeyWallet("zz")
	assert.Error(t, err)
}

func TestFileTokenStore(t *testing.T) {
	store := NewFileTokenStore(t.TempDir())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("abc.def.ghi"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, store.Clear())
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}
