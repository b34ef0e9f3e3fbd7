package main

import (
	"fmt"

	"github.com/fxnlabs/tensor-node/internal/backend"
	"github.com/fxnlabs/tensor-node/internal/config"
	"github.com/fxnlabs/tensor-node/internal/device"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func infoCommand(log **zap.Logger, cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Construct the configured execution contexts and print device details",
		Action: func(c *cli.Context) error {
			mgr, err := backend.NewManager(*cfg, *log)
			if err != nil {
				return err
			}
			defer mgr.Close()

			for _, ordinal := range mgr.Ordinals() {
				info, err := mgr.DeviceInfo(ordinal)
				if err != nil {
					return err
				}
				ctx, err := mgr.Context(ordinal)
				if err != nil {
					return err
				}
				fmt.Printf("device %d: %s\n", info.Ordinal, info.Name)
				fmt.Printf("  compute capability: %s\n", info.Capability)
				fmt.Printf("  total memory:       %.1f GiB\n", float64(info.TotalMemory)/(1<<30))
				fmt.Printf("  seed:               %d\n", ctx.Seed())
				for _, f := range device.Flags() {
					fmt.Printf("  %-22s %v\n", f.String()+":", ctx.FlagEnabled(f))
				}
			}
			return nil
		},
	}
}
