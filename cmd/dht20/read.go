package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ianwhalen/dht20/cmd/dht20/console"
)

var readCmd = cli.Command{
	Name:  "read",
	Usage: "read temperature and humidity once",
	Flags: []cli.Flag{adapterFlag, busFlag, configFlag},
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		s, err := newSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		defer func() { _ = s.Close() }()
		readings, err := s.GetReadings(ctx)
		if err != nil {
			return console.Exit(1, "error getting readings: %s", console.Red(err))
		}
		printReadings(readings)
		return nil
	},
}

var monitorCmd = cli.Command{
	Name:  "monitor",
	Usage: "read temperature and humidity periodically until interrupted",
	Flags: []cli.Flag{adapterFlag, busFlag, configFlag,
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Value:   2 * time.Second,
		},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		s, err := newSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		defer func() { _ = s.Close() }()
		ticker := time.NewTicker(c.Duration("interval"))
		defer ticker.Stop()
		for {
			readings, err := s.GetReadings(ctx)
			if err != nil {
				console.Errorf("error getting readings: %s", console.Red(err))
			} else {
				printReadings(readings)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func printReadings(readings map[string]interface{}) {
	console.Printf("%s  %s\n%s %s\n",
		console.PictoThermometer, console.White(readings["temperature_celsius"]),
		console.PictoHumidity, console.White(readings["humidity_percent"]))
}
