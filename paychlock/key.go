package paychlock

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

import "github.com/ethereum/go-ethereum/common"

// PairKey formats the lock key for a (sender, receiver) pair table.
func PairKey(sender, receiver common.Address) string {
	return sender.Hex() + "->" + receiver.Hex()
}
