// Package digest computes the canonical payment digest and recovers the
// signer of a signed digest. These are pure functions; nothing here
// touches storage, the chain, or a wallet.
package digest

/*
 * Dual-licensed under Apache-2.0 and MIT.
 *
 * You can get a copy of the Apache License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * You can also get a copy of the MIT License at
 *
 * http://opensource.org/licenses/MIT
 */

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const ethSignedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// Payment computes keccak256(contractAddress ‖ channelId ‖ cumulative ‖
// tokenContract), tight-packed with no length prefixes or padding.
// tokenContract is the zero address for the native-coin variant; it is
// always included so a native-coin channel's digest can never collide
// with a token channel's digest at the same address and id.
func Payment(contractAddress common.Address, channelID [32]byte, cumulative *big.Int, tokenContract common.Address) [32]byte {
	buf := make([]byte, 0, 20+32+32+20)
	buf = append(buf, contractAddress.Bytes()...)
	buf = append(buf, channelID[:]...)
	buf = append(buf, padTo32(cumulative)...)
	buf = append(buf, tokenContract.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

// Recoverable prefixes a payment digest with the Ethereum signed-message
// header and re-hashes it, producing the digest that was actually signed
// and must be presented to Ecrecover.
func Recoverable(paymentDigest [32]byte) [32]byte {
	return crypto.Keccak256Hash([]byte(ethSignedMessagePrefix), paymentDigest[:])
}

// Sign produces the 65-byte (r, s, v) signature over the recoverable
// digest of a payment, with v normalized to {27, 28} as Ethereum tools
// and the on-chain contract's ecrecover expect.
func Sign(contractAddress common.Address, channelID [32]byte, cumulative *big.Int, tokenContract common.Address, key SignerFunc) ([]byte, error) {
	d := Recoverable(Payment(contractAddress, channelID, cumulative, tokenContract))
	sig, err := key(d)
	if err != nil {
		return nil, err
	}
	return normalizeV(sig), nil
}

// SignerFunc produces a 65-byte signature (v in {0,1} or {27,28}) over a
// 32-byte digest. Implemented by wallet.Signer; kept as a plain func type
// here so this package never imports wallet.
type SignerFunc func(digest [32]byte) ([]byte, error)

// Recover returns the address that produced signature over the payment
// described by (contractAddress, channelID, cumulative, tokenContract).
func Recover(contractAddress common.Address, channelID [32]byte, cumulative *big.Int, tokenContract common.Address, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("digest: signature must be 65 bytes, got %d", len(signature))
	}
	d := Recoverable(Payment(contractAddress, channelID, cumulative, tokenContract))
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(d[:], sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("digest: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func normalizeV(sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if len(out) == 65 && out[64] < 27 {
		out[64] += 27
	}
	return out
}

func padTo32(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
