package contract

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
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// channelABIJSON describes the functions and events named in the
// external interface: open/deposit/claim/startSettling/settle plus the
// view helpers and the Did* events. Both the native-coin and token
// variant contracts share this ABI; they differ only in whether `open`
// and `deposit` additionally pull funds via ERC20 transferFrom, which is
// invisible at the ABI level.
const channelABIJSON = `[
  {"type":"function","name":"open","inputs":[
    {"name":"channelId","type":"bytes32"},
    {"name":"receiver","type":"address"},
    {"name":"settlingPeriod","type":"uint256"},
    {"name":"tokenContract","type":"address"},
    {"name":"value","type":"uint256"}],"outputs":[],"stateMutability":"payable"},
  {"type":"function","name":"deposit","inputs":[
    {"name":"channelId","type":"bytes32"},
    {"name":"value","type":"uint256"}],"outputs":[],"stateMutability":"payable"},
  {"type":"function","name":"claim","inputs":[
    {"name":"channelId","type":"bytes32"},
    {"name":"payment","type":"uint256"},
    {"name":"signature","type":"bytes"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"startSettling","inputs":[
    {"name":"channelId","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"settle","inputs":[
    {"name":"channelId","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"paymentDigest","inputs":[
    {"name":"channelId","type":"bytes32"},
    {"name":"payment","type":"uint256"},
    {"name":"tokenContract","type":"address"}],"outputs":[{"type":"bytes32"}],"stateMutability":"view"},
  {"type":"function","name":"canClaim","inputs":[
    {"name":"channelId","type":"bytes32"},
    {"name":"payment","type":"uint256"},
    {"name":"origin","type":"address"},
    {"name":"signature","type":"bytes"}],"outputs":[{"type":"bool"}],"stateMutability":"view"},
  {"type":"function","name":"channels","inputs":[
    {"name":"","type":"bytes32"}],"outputs":[
    {"name":"sender","type":"address"},
    {"name":"receiver","type":"address"},
    {"name":"value","type":"uint256"},
    {"name":"settlingPeriod","type":"uint256"},
    {"name":"settlingUntil","type":"uint256"},
    {"name":"tokenContract","type":"address"}],"stateMutability":"view"},
  {"type":"event","name":"DidOpen","inputs":[
    {"name":"channelId","type":"bytes32","indexed":true},
    {"name":"sender","type":"address","indexed":true},
    {"name":"receiver","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false},
    {"name":"tokenContract","type":"address","indexed":false}]},
  {"type":"event","name":"DidDeposit","inputs":[
    {"name":"channelId","type":"bytes32","indexed":true},
    {"name":"deposit","type":"uint256","indexed":false}]},
  {"type":"event","name":"DidClaim","inputs":[
    {"name":"channelId","type":"bytes32","indexed":true}]},
  {"type":"event","name":"DidStartSettling","inputs":[
    {"name":"channelId","type":"bytes32","indexed":true}]},
  {"type":"event","name":"DidSettle","inputs":[
    {"name":"channelId","type":"bytes32","indexed":true}]}
]`

// channelABI is parsed once at package init, avoiding a generated
// binding package (contract-binding codegen from ABI artifacts is out
// of scope per the purpose/scope note).
var channelABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(channelABIJSON))
	if err != nil {
		panic("contract: invalid embedded ABI: " + err.Error())
	}
	channelABI = parsed
}
