package main

import (
	"fmt"
	"os"

	"github.com/fxnlabs/tensor-node/internal/config"
	"github.com/fxnlabs/tensor-node/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	var configPath string
	var cfg *config.Config
	var zapLogger *zap.Logger
	var rootLogger *zap.Logger

	app := &cli.App{
		Name:  "tensornode",
		Usage: "Manage per-device GPU execution contexts for the tensor backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Value:       "config.yaml",
				Usage:       "Path to the node config file",
				EnvVars:     []string{"TENSORNODE_CONFIG"},
				Destination: &configPath,
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				if !os.IsNotExist(err) {
					return err
				}
				// No config file present, run on defaults.
				cfg = config.Default()
			}
			zapLogger, err = logger.New(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			rootLogger = zapLogger.Named("tensornode")
			return nil
		},
		Commands: []*cli.Command{
			infoCommand(&rootLogger, &cfg),
			startCommand(&rootLogger, &cfg),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if rootLogger != nil {
			rootLogger.Fatal("failed to run app", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
