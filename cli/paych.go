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
	"fmt"

	"github.com/urfave/cli/v2"
)

// OpenCMD opens or reuses a channel to a receiver, without spending
// from it. The amount argument is a price: a channel with at least that
// much remaining is reused, else a fresh one is opened with a deposit of
// amount times the deposit multiplier, floored at the minimum amount.
var OpenCMD = &cli.Command{
	Name:      "open",
	Usage:     "open or reuse a payment channel",
	ArgsUsage: "[contract address, receiver address, amount]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "token",
			Usage: "ERC20 token contract address, omit for the native coin",
		},
	},
	Action: func(c *cli.Context) error {
		n, err := setup(c)
		if err != nil {
			return err
		}
		contractAddr, err := parseAddress(c, c.Args().Get(0))
		if err != nil {
			return err
		}
		receiver, err := parseAddress(c, c.Args().Get(1))
		if err != nil {
			return err
		}
		deposit, err := parseAmount(c, c.Args().Get(2))
		if err != nil {
			return err
		}
		kind, err := parseKind(c)
		if err != nil {
			return err
		}
		rec, err := n.mgr.RequireOpenChannel(c.Context, n.mgr.Self(), receiver, contractAddr, kind, deposit)
		if err != nil {
			return err
		}
		fmt.Printf("channel: %s\n", rec.ChannelID)
		fmt.Printf("value:   %s\n", rec.Value)
		return nil
	},
}

// BuyCMD opens a channel if needed and signs a new cumulative promise
// against it for price.
var BuyCMD = &cli.Command{
	Name:      "buy",
	Usage:     "sign a payment promise, opening a channel if needed",
	ArgsUsage: "[contract address, receiver address, price]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "token",
			Usage: "ERC20 token contract address, omit for the native coin",
		},
		&cli.StringFlag{
			Name:  "meta",
			Usage: "opaque metadata to attach to the payment",
		},
	},
	Action: func(c *cli.Context) error {
		n, err := setup(c)
		if err != nil {
			return err
		}
		contractAddr, err := parseAddress(c, c.Args().Get(0))
		if err != nil {
			return err
		}
		receiver, err := parseAddress(c, c.Args().Get(1))
		if err != nil {
			return err
		}
		price, err := parseAmount(c, c.Args().Get(2))
		if err != nil {
			return err
		}
		kind, err := parseKind(c)
		if err != nil {
			return err
		}
		rec, err := n.mgr.RequireOpenChannel(c.Context, n.mgr.Self(), receiver, contractAddr, kind, price)
		if err != nil {
			return err
		}
		payment, err := n.mgr.NextPayment(c.Context, rec.ChannelID, price, c.String("meta"))
		if err != nil {
			return err
		}
		fmt.Printf("channel:    %s\n", payment.ChannelID)
		fmt.Printf("cumulative: %s\n", payment.Cumulative)
		fmt.Printf("signature:  0x%x\n", payment.Signature)
		return nil
	},
}

// ClaimCMD settles a channel the caller holds a role in: a receiver
// claims, a sender starts or finalizes settling.
var ClaimCMD = &cli.Command{
	Name:      "claim",
	Usage:     "claim a channel as its receiver",
	ArgsUsage: "[channel id]",
	Action: func(c *cli.Context) error {
		return closeChannel(c)
	},
}

// SettleCMD starts or finalizes the settling clock as a channel's
// sender.
var SettleCMD = &cli.Command{
	Name:      "settle",
	Usage:     "start or finalize settling as a channel's sender",
	ArgsUsage: "[channel id]",
	Action: func(c *cli.Context) error {
		return closeChannel(c)
	},
}

func closeChannel(c *cli.Context) error {
	n, err := setup(c)
	if err != nil {
		return err
	}
	id, err := parseChannelID(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	result, err := n.mgr.CloseChannel(c.Context, id, n.mgr.Self())
	if err != nil {
		return err
	}
	fmt.Printf("tx:    %s\n", result.TxHash.Hex())
	fmt.Printf("block: %d\n", result.BlockNumber)
	return nil
}

// ListCMD lists every locally known open channel.
var ListCMD = &cli.Command{
	Name:      "list",
	Usage:     "list locally known open channels",
	ArgsUsage: " ",
	Action: func(c *cli.Context) error {
		n, err := setup(c)
		if err != nil {
			return err
		}
		channels, err := n.mgr.OpenChannels(c.Context)
		if err != nil {
			return err
		}
		for _, rec := range channels {
			fmt.Printf("%s  sender=%s  receiver=%s  value=%s  spent=%s\n",
				rec.ChannelID, rec.Sender.Hex(), rec.Receiver.Hex(), rec.Value, rec.Spent)
		}
		return nil
	},
}
