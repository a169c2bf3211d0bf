package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/ianwhalen/dht20/cmd/dht20/console"
)

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "query sensor presence status",
	Flags: []cli.Flag{adapterFlag, busFlag, configFlag},
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		s, err := newSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		defer func() { _ = s.Close() }()
		res, _ := s.DoCommand(ctx, map[string]interface{}{"command": "get_status"})
		if res["status"] == "ok" {
			console.Printf("%s bus %s\n", console.Green("ok"), console.White(res["bus"]))
			return nil
		}
		return console.Exit(1, "sensor status: %s", console.Red(res["error"]))
	},
}

var rawCmd = cli.Command{
	Name:  "raw",
	Usage: "dump a raw measurement frame",
	Flags: []cli.Flag{adapterFlag, busFlag, configFlag},
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		s, err := newSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		defer func() { _ = s.Close() }()
		res, _ := s.DoCommand(ctx, map[string]interface{}{"command": "get_raw_data"})
		if msg, failed := res["error"]; failed {
			return console.Exit(1, "error getting raw data: %s", console.Red(msg))
		}
		console.Printf("%s\n", console.White(res["raw_data"]))
		return nil
	},
}
