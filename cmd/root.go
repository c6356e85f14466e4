package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/depotcharge/app"
	"github.com/kilianp07/depotcharge/config"
	"github.com/kilianp07/depotcharge/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "depotcharge",
	Short:         "Depot EV charge planner",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// setup loads the configuration, applies the log settings and builds the
// service with its inputs. The returned cleanup must be called once done.
func setup() (context.Context, *app.Service, *app.Inputs, func(), error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stop()
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logCloser, err := logger.Setup(cfg.Log)
	if err != nil {
		stop()
		return nil, nil, nil, nil, err
	}
	in, err := app.LoadInputs(*cfg)
	if err != nil {
		stop()
		_ = logCloser.Close()
		return nil, nil, nil, nil, err
	}
	svc, err := app.New(cfg)
	if err != nil {
		stop()
		_ = logCloser.Close()
		return nil, nil, nil, nil, err
	}
	svc.ServeMetrics(ctx)
	cleanup := func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
		closeQuietly(logCloser)
		stop()
	}
	return ctx, svc, in, cleanup, nil
}

func closeQuietly(c io.Closer) { _ = c.Close() }
