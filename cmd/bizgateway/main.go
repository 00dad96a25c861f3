// Command bizgateway serves the backend abstraction over HTTP on loopback.
//
//	bizgateway --config config.yml
//	bizgateway --switch hybrid
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/bootstrap"
	"github.com/kbukum/bizbackend/config"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "bizgateway:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("bizgateway", pflag.ContinueOnError)
	configFile := flags.StringP("config", "c", "", "config file (default: ./cmd/bizgateway/config.yml or ./config.yml)")
	envFile := flags.String("env", "", "dotenv file loaded before the environment is read")
	switchTo := flags.String("switch", "", "persist a backend kind as the active one and exit")
	showVersion := flags.BoolP("version", "v", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Println(version.Get().String())
		return nil
	}

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	cfg, err := bootstrap.LoadConfig(opts...)
	if err != nil {
		return err
	}

	if *switchTo != "" {
		kind, err := backend.ParseKind(*switchTo)
		if err != nil {
			return err
		}
		// The gateway listener is not needed to switch.
		cfg.Server.Enabled = false
		app, err := bootstrap.NewApp(cfg)
		if err != nil {
			return err
		}
		return app.RunTask(context.Background(), func(ctx context.Context) error {
			if err := app.Manager.SetProvider(ctx, kind); err != nil {
				return err
			}
			app.Logger.Info("Backend switched", logger.Fields(logger.FieldProvider, kind))
			return nil
		})
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	return app.Run(context.Background())
}
