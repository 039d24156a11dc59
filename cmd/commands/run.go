/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaproj/reducefn"
	"github.com/numaproj/reducefn/pkg/apis"
	"github.com/numaproj/reducefn/pkg/config"
	"github.com/numaproj/reducefn/pkg/driver"
	"github.com/numaproj/reducefn/pkg/metrics"
	"github.com/numaproj/reducefn/pkg/reduce"
	"github.com/numaproj/reducefn/pkg/shared/logging"
)

func NewRunCommand() *cobra.Command {
	var (
		configPath  string
		inputPath   string
		metricsAddr string
		noMetrics   bool
		batchSize   int
	)
	command := &cobra.Command{
		Use:   "run",
		Short: "Run the windowing strategy over a stream of JSON line events",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("run")
			ctx, stop := signal.NotifyContext(logging.WithLogger(context.Background(), logger), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadConfig(configPath, func(_ *apis.RunnerConfig, err error) {
				if err != nil {
					logger.Errorw("Failed to reload the configuration", zap.Error(err))
					return
				}
				logger.Warn("Configuration changed, the windowing strategy applies after a restart")
			})
			if err != nil {
				return err
			}
			conf := cfg.Get()
			strategy, err := reduce.NewWindowingStrategyFromConfig(&conf)
			if err != nil {
				return err
			}
			logger.Infow("Starting", zap.String("strategy", strategy.String()), zap.String("store", string(conf.Store.Type)))

			store, closeStore, err := newStore(ctx, conf.Store)
			if err != nil {
				return fmt.Errorf("failed to create the state store, %w", err)
			}
			defer func() {
				if err := closeStore(); err != nil {
					logger.Errorw("Failed to close the state store", zap.Error(err))
				}
			}()

			v := reducefn.GetVersion()
			metrics.BuildInfo.WithLabelValues(v.Version, v.Platform).Set(1)
			if !noMetrics {
				if metricsAddr == "" {
					metricsAddr = fmt.Sprintf(":%d", conf.Metrics.Port)
				}
				var opts []metrics.Option
				if hc, ok := store.(metrics.HealthChecker); ok {
					opts = append(opts, metrics.WithHealthChecker(hc))
				}
				_, shutdown, err := metrics.NewMetricsServer(metricsAddr, opts...).Start(ctx)
				if err != nil {
					return fmt.Errorf("failed to start the metrics server, %w", err)
				}
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = shutdown(sctx)
				}()
			}

			var in io.Reader = cmd.InOrStdin()
			if inputPath != "" && inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			counts := metrics.NewCountingSink()
			d, err := driver.New(strategy, store,
				driver.WithWorkers(conf.Workers),
				driver.WithBatchSize(batchSize),
				driver.WithMetricsSink(metrics.Tee(metrics.PrometheusSink{}, counts)))
			if err != nil {
				return err
			}
			if err := d.Run(ctx, in, cmd.OutOrStdout()); err != nil {
				return err
			}
			logger.Infow("Done", zap.Any("summary", counts.Summary()), zap.Any("invocations", counts.InvocationSummary()))
			return nil
		},
	}
	command.Flags().StringVarP(&configPath, "config", "c", "", "path of the runner configuration file, the defaults are used if empty")
	command.Flags().StringVarP(&inputPath, "input", "i", "-", "path of the JSON line events, - reads stdin")
	command.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address of the metrics server, defaults to the port of the configuration")
	command.Flags().BoolVar(&noMetrics, "no-metrics", false, "do not start the metrics server")
	command.Flags().IntVar(&batchSize, "batch-size", 1000, "number of elements buffered before they are processed")
	return command
}
