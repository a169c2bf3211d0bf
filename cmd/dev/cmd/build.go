package cmd

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the dht20 cli",
		RunE: func(cmd *cobra.Command, args []string) error {
			version := cmd.Flag("version").Value.String()
			return build.GoBuild("dist/dht20", "./cmd/dht20", build.GoBuildOpts{
				Version:       version,
				InjectVersion: true,
				EnableCgo:     true,
				Arch:          cmd.Flag("arch").Value.String(),
				OS:            cmd.Flag("os").Value.String(),
			})
		},
	}
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	return cmd
}
