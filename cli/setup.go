package cli

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
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log"
	"github.com/urfave/cli/v2"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/config"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/paychstore"
	"github.com/wcgcyx/paychan/paymentstore"
	"github.com/wcgcyx/paychan/paymgr"
	"github.com/wcgcyx/paychan/wallet"
)

// node bundles the collaborators every command needs, built once from
// the loaded config. Commands that only read state (e.g. list) still
// pay the cost of dialing the chain adapter, matching the teacher's
// own pattern of a single entrypoint wiring the full stack per command.
type node struct {
	cfg      config.Config
	mgr      *paymgr.Manager
	adapter  contract.Adapter
	payments paymentstore.Repository
}

func setup(c *cli.Context) (*node, error) {
	cfg, err := config.NewConfig(c.String("config"))
	if err != nil {
		return nil, usageError(c, err)
	}
	if err := logging.SetLogLevel("*", cfg.LogLevel); err != nil {
		return nil, usageError(c, err)
	}

	signer, err := loadSigner(cfg)
	if err != nil {
		return nil, err
	}

	var adapter contract.Adapter
	if cfg.ChainRPCURL == "" {
		adapter = contract.NewMockAdapter()
	} else {
		adapter, err = contract.NewEthAdapter(c.Context, cfg.ChainRPCURL, big.NewInt(cfg.ChainID), signer)
		if err != nil {
			return nil, err
		}
	}

	channels, err := openChannelStore(cfg, adapter)
	if err != nil {
		return nil, err
	}
	payments, err := openPaymentStore(cfg)
	if err != nil {
		return nil, err
	}

	minimum := new(big.Int)
	if cfg.MinimumChannelAmount != "" {
		if _, ok := minimum.SetString(cfg.MinimumChannelAmount, 10); !ok {
			return nil, usageError(c, cli.Exit("cannot parse minimum channel amount", 1))
		}
	}

	mgr := paymgr.New(channels, payments, adapter, signer, paymgr.Opts{
		MinimumChannelAmount: minimum,
		DepositMultiplier:    cfg.DefaultDepositMultiplier,
		SettlementPeriod:     cfg.SettlementPeriod,
	})
	return &node{cfg: cfg, mgr: mgr, adapter: adapter, payments: payments}, nil
}

func loadSigner(cfg config.Config) (*wallet.Signer, error) {
	if cfg.PrivateKeyFile == "" {
		return wallet.Generate()
	}
	raw, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return nil, err
	}
	return wallet.FromHex(strings.TrimSpace(string(raw)))
}

func openChannelStore(cfg config.Config, adapter contract.Adapter) (paychstore.Repository, error) {
	if cfg.Engine == "memory" {
		return paychstore.NewMemRepository(adapter), nil
	}
	path := cfg.DatabaseFile
	if path == "" {
		path = cfg.Path + "/channels"
	}
	return paychstore.NewBadgerRepository(paychstore.Opts{Path: path}, adapter)
}

func openPaymentStore(cfg config.Config) (paymentstore.Repository, error) {
	if cfg.Engine == "memory" {
		return paymentstore.NewMemRepository(), nil
	}
	path := cfg.DatabaseFile
	if path == "" {
		path = cfg.Path + "/payments"
	}
	return paymentstore.NewBadgerRepository(paymentstore.Opts{Path: path})
}

func parseKind(c *cli.Context) (contract.ContractKind, error) {
	if !c.IsSet("token") {
		return contract.ContractKind{}, nil
	}
	token := c.String("token")
	if !common.IsHexAddress(token) {
		return contract.ContractKind{}, usageError(c, cli.Exit("invalid token address", 1))
	}
	return contract.ContractKind{Kind: contract.Token, TokenAddress: common.HexToAddress(token)}, nil
}

func parseAddress(c *cli.Context, arg string) (common.Address, error) {
	if !common.IsHexAddress(arg) {
		return common.Address{}, usageError(c, cli.Exit("invalid address: "+arg, 1))
	}
	return common.HexToAddress(arg), nil
}

func parseAmount(c *cli.Context, arg string) (*big.Int, error) {
	amt, ok := new(big.Int).SetString(arg, 10)
	if !ok {
		return nil, usageError(c, cli.Exit("invalid amount: "+arg, 1))
	}
	return amt, nil
}

func parseChannelID(c *cli.Context, arg string) (channel.ID, error) {
	id, err := channel.IDFromHex(arg)
	if err != nil {
		return channel.ID{}, usageError(c, cli.Exit("invalid channel id: "+arg, 1))
	}
	return id, nil
}
