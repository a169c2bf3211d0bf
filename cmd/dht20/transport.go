package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"gopkg.in/yaml.v3"

	"github.com/ianwhalen/dht20"
	"github.com/ianwhalen/dht20/adapter"
	"github.com/ianwhalen/dht20/component"
	"github.com/ianwhalen/dht20/i2c"
)

var adapterFlag = &cli.StringFlag{
	Name:    "adapter",
	Aliases: []string{"a"},
	Value:   "i2c",
	Usage:   "bus transport: i2c, gobot or mcp2221",
}

var busFlag = &cli.IntFlag{
	Name:    "bus",
	Aliases: []string{"b"},
	Value:   component.DefaultBus,
	Usage:   "I2C bus number",
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "yaml configuration file",
}

// sensorConfig builds the component configuration from the config file (if
// given) with the bus flag taking precedence.
func sensorConfig(c *cli.Context) (component.Config, error) {
	var cfg component.Config
	if path := c.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("could not read config file: %w", err)
		}
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("could not parse config file: %w", err)
		}
	}
	if c.IsSet("bus") {
		bus := c.Int("bus")
		cfg.I2CBus = &bus
	}
	return cfg, nil
}

func openBus(c *cli.Context) component.OpenBus {
	return func(busNumber int) (dht20.BusTransport, error) {
		switch c.String("adapter") {
		case "i2c":
			return i2c.Open(busNumber)
		case "gobot":
			npi := nanopi.NewNeoAdaptor()
			if err := npi.I2cBusAdaptor.Connect(); err != nil {
				return nil, fmt.Errorf("adaptor connect error: %w", err)
			}
			return i2c.OpenGobot(npi, busNumber), nil
		case "mcp2221":
			ad := adapter.NewMCP2221()
			if err := ad.Init(); err != nil {
				return nil, fmt.Errorf("adapter initialization error: %w", err)
			}
			return ad, nil
		default:
			return nil, fmt.Errorf("unknown adapter: %s", c.String("adapter"))
		}
	}
}

func newSensor(ctx context.Context, c *cli.Context) (*component.Sensor, error) {
	cfg, err := sensorConfig(c)
	if err != nil {
		return nil, err
	}
	return component.New(ctx, cfg, component.WithOpenBus(openBus(c)))
}
