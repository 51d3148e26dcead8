// Package cli is the paychan command line interface, built around
// urfave/cli/v2 the way the teacher's own fcr CLI is: a top-level App
// with one subcommand per operation, each wiring its own Manager from
// config rather than talking to a separate daemon process.
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

const version = "0.1.0"

// NewCLI creates the paychan CLI app.
func NewCLI() *cli.App {
	app := &cli.App{
		Name:      "paychan",
		HelpName:  "paychan",
		Usage:     "an off-chain unidirectional payment channel engine",
		UsageText: "paychan [global options] command [arguments...]",
		Version:   version,
		Description: "\n\t paychan opens, funds and spends down unidirectional payment\n" +
			"\t channels anchored on an Ethereum-compatible chain, and serves\n" +
			"\t or consumes the HTTP 402 micropayment challenge on top of them.\n",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "",
				Usage:   "specify a config file, defaults to $HOME/.paychan/config.yaml",
			},
		},
	}
	app.Commands = []*cli.Command{
		OpenCMD,
		BuyCMD,
		ClaimCMD,
		SettleCMD,
		ListCMD,
		ServeCMD,
		{
			Name:        "version",
			Usage:       "get paychan version",
			Description: "Get the paychan version",
			ArgsUsage:   " ",
			Action: func(c *cli.Context) error {
				fmt.Println("paychan version: ", version)
				return nil
			},
		},
	}
	return app
}

// usageError is used to generate the usage error.
//
// @input - cli context, error.
//
// @output - error.
func usageError(c *cli.Context, err error) error {
	fmt.Println("Usage:", c.App.Name, c.Command.Name, c.Command.ArgsUsage)
	return fmt.Errorf("incorrect usage: %v", err.Error())
}
