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
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/gateway"
	"github.com/wcgcyx/paychan/paychmon"
)

// ServeCMD runs the node as a long-lived process: a 402-gated gateway
// in front of a static demo handler, plus a settling monitor that
// auto-finalizes settle for any channel this node is sender of once
// its settling period elapses.
var ServeCMD = &cli.Command{
	Name:      "serve",
	Usage:     "serve the 402 payment gateway and the settling monitor",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "price",
			Value: "1",
			Usage: "flat price, in the channel's base unit, per request",
		},
		&cli.StringFlag{
			Name:  "contract",
			Usage: "channel contract address this gateway accepts payments on",
		},
	},
	Action: func(c *cli.Context) error {
		n, err := setup(c)
		if err != nil {
			return err
		}

		price, ok := new(big.Int).SetString(c.String("price"), 10)
		if !ok {
			return usageError(c, cli.Exit("invalid price", 1))
		}

		monitor, err := paychmon.NewMonitor(c.Context, n.adapter, func(ctx context.Context, id channel.ID) error {
			_, err := n.mgr.CloseChannel(ctx, id, n.mgr.Self())
			return err
		}, paychmon.Opts{Path: n.cfg.Path + "/monitor"})
		if err != nil {
			return err
		}
		defer monitor.Shutdown()

		settling, err := n.mgr.SettlingChannels(c.Context)
		if err != nil {
			return err
		}
		for _, rec := range settling {
			if err := monitor.Track(c.Context, rec.ChannelID, rec.SettlingUntil); err != nil {
				return err
			}
		}

		contractAddr, err := contractAddressFlag(c)
		if err != nil {
			return err
		}

		gw := gateway.New(n.mgr, n.payments, gateway.Opts{
			Receiver:        n.mgr.Self(),
			ContractAddress: contractAddr,
			SelfURL:         "http://" + n.cfg.ListenAddr + "/pay",
		}, func(r *http.Request) (*big.Int, string, error) {
			return price, "", nil
		})

		mux := http.NewServeMux()
		mux.Handle("/pay", gw.PaymentHandler())
		mux.Handle("/", gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "paid content")
		})))

		fmt.Printf("listening on %s\n", n.cfg.ListenAddr)
		return http.ListenAndServe(n.cfg.ListenAddr, mux)
	},
}

func contractAddressFlag(c *cli.Context) (common.Address, error) {
	if !c.IsSet("contract") {
		return common.Address{}, nil
	}
	return parseAddress(c, c.String("contract"))
}
