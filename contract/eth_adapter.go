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
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	logging "github.com/ipfs/go-log"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/perr"
	"github.com/wcgcyx/paychan/wallet"
)

var log = logging.Logger("contract")

// ethAdapter is the real Adapter, talking to an Ethereum-compatible JSON-RPC
// endpoint through ethclient and hand-packed ABI calls (no generated
// bindings).
type ethAdapter struct {
	client *ethclient.Client
	signer *wallet.Signer
	chainID *big.Int
}

// NewEthAdapter connects to rpcURL and returns an Adapter backed by it.
// The signer is used to authorize every state-changing call this adapter
// submits; the caller address passed to Open/Deposit/etc. must match
// signer.Address(), since a raw ethclient connection authenticates
// transactions with one local key, not an address-per-call remote
// wallet.
func NewEthAdapter(ctx context.Context, rpcURL string, chainID *big.Int, signer *wallet.Signer) (Adapter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "dial %s", rpcURL)
	}
	return &ethAdapter{client: client, signer: signer, chainID: chainID}, nil
}

// transactOpts builds a *bind.TransactOpts whose Signer callback delegates
// to wallet.Signer.Sign on the transaction's sighash. This avoids ever
// extracting the raw ecdsa.PrivateKey from the wallet package, at the
// cost of not using bind.NewKeyedTransactorWithChainID's convenience
// constructor.
func (a *ethAdapter) transactOpts(ctx context.Context, value *big.Int) (*bind.TransactOpts, error) {
	nonce, err := a.client.PendingNonceAt(ctx, a.signer.Address())
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "fetch nonce")
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "suggest gas price")
	}
	chainID := a.chainID
	opts := &bind.TransactOpts{
		From:    a.signer.Address(),
		Context: ctx,
		Nonce:   new(big.Int).SetUint64(nonce),
		GasPrice: gasPrice,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			txSigner := types.LatestSignerForChainID(chainID)
			hash := txSigner.Hash(tx)
			var d [32]byte
			copy(d[:], hash[:])
			sig, err := a.signer.Sign(d)
			if err != nil {
				return nil, err
			}
			return tx.WithSignature(txSigner, sig)
		},
	}
	if value != nil {
		opts.Value = value
	}
	return opts, nil
}

func (a *ethAdapter) send(ctx context.Context, contractAddress common.Address, value *big.Int, method string, args ...interface{}) (TxResult, error) {
	opts, err := a.transactOpts(ctx, value)
	if err != nil {
		return TxResult{}, err
	}
	data, err := channelABI.Pack(method, args...)
	if err != nil {
		return TxResult{}, perr.Wrap(perr.ChainError, err, "pack %s", method)
	}
	gasLimit, err := a.client.EstimateGas(ctx, ethereumCallMsg(opts.From, &contractAddress, opts.Value, data))
	if err != nil {
		return TxResult{}, perr.Wrap(perr.ChainError, err, "estimate gas for %s", method)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    opts.Nonce.Uint64(),
		To:       &contractAddress,
		Value:    valueOrZero(opts.Value),
		Gas:      gasLimit,
		GasPrice: opts.GasPrice,
		Data:     data,
	})
	signedTx, err := opts.Signer(opts.From, tx)
	if err != nil {
		return TxResult{}, perr.Wrap(perr.ChainError, err, "sign tx for %s", method)
	}
	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return TxResult{}, perr.Wrap(perr.ChainError, err, "send tx for %s", method)
	}
	receipt, err := bind.WaitMined(ctx, a.client, signedTx)
	if err != nil {
		return TxResult{}, perr.Wrap(perr.ChainError, err, "wait for %s", method)
	}
	log.Debugf("%s mined in block %d, tx %s", method, receipt.BlockNumber.Uint64(), receipt.TxHash.Hex())
	return TxResult{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
	}, nil
}

func (a *ethAdapter) Open(ctx context.Context, contractAddress common.Address, sender common.Address, channelID channel.ID, receiver common.Address, settlingPeriod uint64, value *big.Int, kind ContractKind) (TxResult, error) {
	callValue := value
	if kind.Kind == Token {
		callValue = big.NewInt(0)
	}
	return a.send(ctx, contractAddress, callValue, "open", channelID, receiver, new(big.Int).SetUint64(settlingPeriod), kind.TokenAddress, value)
}

func (a *ethAdapter) Deposit(ctx context.Context, contractAddress common.Address, channelID channel.ID, value *big.Int) (TxResult, error) {
	state, err := a.GetState(ctx, contractAddress, channelID)
	if err != nil {
		return TxResult{}, err
	}
	if state != channel.OPEN {
		return TxResult{}, perr.New(perr.InvalidState, "deposit requires OPEN, got %s", state)
	}
	return a.send(ctx, contractAddress, value, "deposit", channelID, value)
}

func (a *ethAdapter) Claim(ctx context.Context, contractAddress common.Address, channelID channel.ID, cumulative *big.Int, signature []byte) (TxResult, error) {
	return a.send(ctx, contractAddress, nil, "claim", channelID, cumulative, signature)
}

func (a *ethAdapter) StartSettling(ctx context.Context, contractAddress common.Address, channelID channel.ID) (TxResult, error) {
	return a.send(ctx, contractAddress, nil, "startSettling", channelID)
}

func (a *ethAdapter) Settle(ctx context.Context, contractAddress common.Address, channelID channel.ID) (TxResult, error) {
	return a.send(ctx, contractAddress, nil, "settle", channelID)
}

func (a *ethAdapter) ChannelByID(ctx context.Context, contractAddress common.Address, channelID channel.ID) (ChannelInfo, error) {
	data, err := channelABI.Pack("channels", channelID)
	if err != nil {
		return ChannelInfo{}, perr.Wrap(perr.ChainError, err, "pack channels")
	}
	out, err := a.client.CallContract(ctx, ethereumCallMsg(common.Address{}, &contractAddress, nil, data), nil)
	if err != nil {
		return ChannelInfo{}, perr.Wrap(perr.ChainError, err, "call channels")
	}
	values, err := channelABI.Unpack("channels", out)
	if err != nil {
		return ChannelInfo{}, perr.Wrap(perr.ChainError, err, "unpack channels")
	}
	current, err := a.CurrentBlock(ctx)
	if err != nil {
		return ChannelInfo{}, err
	}
	return ChannelInfo{
		Sender:         values[0].(common.Address),
		Receiver:       values[1].(common.Address),
		Value:          values[2].(*big.Int),
		SettlingPeriod: values[3].(*big.Int).Uint64(),
		SettlingUntil:  values[4].(*big.Int).Uint64(),
		TokenContract:  values[5].(common.Address),
		CurrentBlock:   current,
	}, nil
}

func (a *ethAdapter) GetState(ctx context.Context, contractAddress common.Address, channelID channel.ID) (channel.State, error) {
	info, err := a.ChannelByID(ctx, contractAddress, channelID)
	if err != nil {
		return channel.ABSENT, err
	}
	return info.State(), nil
}

func (a *ethAdapter) CurrentBlock(ctx context.Context) (uint64, error) {
	n, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, perr.Wrap(perr.ChainError, err, "fetch block number")
	}
	return n, nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func ethereumCallMsg(from common.Address, to *common.Address, value *big.Int, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{From: from, To: to, Value: valueOrZero(value), Data: data}
}

