// Package wallet holds the secp256k1 key used to sign payment promises.
// It is the external collaborator the Digest module delegates signing to
// (spec §4.1): digest construction and verification are pure, but
// producing a signature requires a private key, which lives here.
package wallet

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
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs digests with a single held private key and reports the
// address that key controls. Key management (rotation, encrypted
// storage, hardware wallets) is a Non-goal; this is the minimal surface
// the Channel Manager and Client Facade need.
type Signer struct {
	mutex   sync.RWMutex
	key     *ecdsa.PrivateKey
	address common.Address
}

// New wraps an already-loaded private key.
func New(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Generate creates a fresh signer backed by a random key, useful for
// tests and for the mock contract adapter's demo mode.
func Generate() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate key: %w", err)
	}
	return New(key), nil
}

// FromHex loads a signer from a hex-encoded (no 0x prefix required)
// secp256k1 private key, as read from the config's PrivateKeyFile.
func FromHex(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, fmt.Errorf("wallet: parse private key: %w", err)
	}
	return New(key), nil
}

// Address returns the address this signer controls.
func (s *Signer) Address() common.Address {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.address
}

// Sign produces a 65-byte (r, s, v) signature over digest, v in {0,1}.
// Matches the digest.SignerFunc shape so it can be passed directly to
// digest.Sign.
func (s *Signer) Sign(d [32]byte) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	sig, err := crypto.Sign(d[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign: %w", err)
	}
	return sig, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
