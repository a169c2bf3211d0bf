package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/ianwhalen/dht20/adapter"
	"github.com/ianwhalen/dht20/cmd/dht20/console"
)

var detectCmd = cli.Command{
	Name:  "detect",
	Usage: "detect MCP2221 USB bridges",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "status",
			Usage: "query the I2C engine status of the bridge",
		},
	},
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(adapter.VendorID, adapter.ProductID)
		if len(devices) == 0 {
			return console.Exit(1, "no MCP2221 device found")
		}
		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		_ = w.Flush()

		if !c.Bool("status") {
			return nil
		}
		status, err := adapter.NewMCP2221().GetStatus(context.Background())
		if err != nil {
			return console.Exit(1, "status request error: %s", console.Red(err))
		}
		console.Printf("speed divider: %s\ntimeout: %s\nbuffer counter: %s\npending reads: %s\n",
			console.White(status.I2CSpeedDivider), console.White(status.I2CTimeout),
			console.White(status.I2CDataBufferCounter), console.White(status.ReadPending))
		return nil
	},
}
