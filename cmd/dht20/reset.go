package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/ianwhalen/dht20/cmd/dht20/console"
	"github.com/ianwhalen/dht20/environment"
)

var resetCmd = cli.Command{
	Name:  "reset",
	Usage: "soft reset the sensor",
	Flags: []cli.Flag{adapterFlag, busFlag},
	Action: func(c *cli.Context) error {
		answer, err := console.YesOrNo("soft reset the sensor?")
		if err != nil {
			return err
		}
		if answer != console.Yes {
			return nil
		}
		trans, err := openBus(c)(c.Int("bus"))
		if err != nil {
			return console.Exit(1, "transport error: %s", console.Red(err))
		}
		defer func() { _ = trans.Close() }()
		s := environment.NewDHT20(trans)
		if err = s.Reset(context.Background()); err != nil {
			return console.Exit(1, "reset error: %s", console.Red(err))
		}
		console.Printf("%s sensor reset\n", console.Green("ok"))
		return nil
	},
}
