package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gabibotos/httpsrv/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := defaultConfig()
	var configFile string

	cmd := &cobra.Command{
		Use:          "httpsrv",
		Short:        "Serve a fixed response over http or https",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.load(cmd.Flags(), configFile); err != nil {
				return err
			}
			lg, err := newLogger(cfg.Dev)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, lg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "a YAML file with the server configuration")
	cfg.registerFlags(cmd.Flags())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), NewVersionInfo().String())
		},
	})
	return cmd
}

func newLogger(dev bool) (log.Logger, error) {
	lc := zap.NewProductionConfig()
	lc.Development = dev

	zlg, err := lc.Build()
	if err != nil {
		return nil, err
	}
	return log.NewZap(zlg), nil
}

// run serves until SIGINT or SIGTERM.
func run(ctx context.Context, cfg *config, lg log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, lg)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	lg.Printf("Shutting down... ")
	return app.Stop(context.Background())
}
