// Package eth implements EIP-191 personal message signing and recovery as
// produced by wallet personal_sign: the message is prefixed with
// "\x19Ethereum Signed Message:\n" + length before hashing.
package eth

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// signatureLength is the byte length of a secp256k1 signature with recovery id.
const signatureLength = 65

// PersonalHash returns the EIP-191 digest of a message.
func PersonalHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

// SignPersonal signs a message with the given key and returns a 0x-prefixed
// hex signature with the V value in Ethereum convention (27/28), matching
// what wallet extensions produce.
func SignPersonal(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(PersonalHash(message), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return hexutil.Encode(sig), nil
}

// RecoverPersonal recovers the signer address from a message and a
// 0x-prefixed hex signature.
func RecoverPersonal(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", signatureLength, len(sig))
	}

	// Wallets return V as 27/28; go-ethereum expects 0/1.
	v := sig[signatureLength-1]
	if v >= 27 {
		sig = append([]byte(nil), sig...)
		sig[signatureLength-1] = v - 27
	}

	pub, err := crypto.SigToPub(PersonalHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonal reports whether signature is a valid personal_sign signature
// over message by the holder of address. It is pure and never returns an
// error: any malformed input yields false.
func VerifyPersonal(address, message, signature string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	recovered, err := RecoverPersonal(message, signature)
	if err != nil {
		return false
	}
	return recovered == common.HexToAddress(address)
}
