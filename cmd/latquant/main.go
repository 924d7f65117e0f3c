package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/latquant/internal/agent"
	"github.com/ethpandaops/latquant/internal/migrate"
	"github.com/ethpandaops/latquant/internal/quantile"
	"github.com/ethpandaops/latquant/internal/version"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latquant",
		Short: "Sliding-window latency quantile estimator",
		Long: `latquant estimates exact quantiles (p50, p99, ...) of an
integer-valued latency stream over a recent sliding time window and
exports the results to logs, Prometheus, ClickHouse or HTTP sinks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.Flags().StringVar(
		&cfgFile, "config", "",
		"path to config file (required)",
	)
	cmd.Flags().StringVar(
		&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)",
	)

	if err := cmd.MarkFlagRequired("config"); err != nil {
		fmt.Fprintf(os.Stderr, "error marking flag required: %v\n", err)
		os.Exit(1)
	}

	cmd.AddCommand(versionCmd())
	cmd.AddCommand(demoCmd())
	cmd.AddCommand(migrateCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullWithPlatform())
		},
	}
}

// demoCmd feeds a fixed data set through the estimator and prints a
// few percentiles, as a quick smoke check without any configuration.
func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a small built-in demonstration",
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := quantile.NewHistogram(0, 1000)
			if err != nil {
				return err
			}

			for i := uint64(0); i <= 101; i++ {
				if err := hist.AddValue(i); err != nil {
					return err
				}
			}

			for _, f := range []float64{0.5, 0.99} {
				v, err := hist.EstimateQuantile(f)
				if err != nil {
					return err
				}

				fmt.Printf("histogram p%g: %d\n", f*100, v)
			}

			window, err := quantile.NewSlidingWindow(3, 10, 0, 1000)
			if err != nil {
				return err
			}

			for i := uint64(0); i < 11; i++ {
				if err := window.Insert(i, i*2); err != nil {
					return err
				}
			}

			v, err := window.EstimateQuantile(0.5)
			if err != nil {
				return err
			}

			fmt.Printf("sliding window p50: %d\n", v)

			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Manage the ClickHouse snapshot schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			m := migrate.New(log, dsn)

			switch args[0] {
			case "up":
				return m.Up()
			case "down":
				return m.Down()
			case "status":
				v, dirty, err := m.Status()
				if err != nil {
					return err
				}

				fmt.Printf("version: %d dirty: %v\n", v, dirty)

				return nil
			default:
				return fmt.Errorf("unknown migrate action: %s", args[0])
			}
		},
	}

	cmd.Flags().StringVar(
		&dsn, "dsn", "",
		"ClickHouse connection string (e.g. clickhouse://host:9000/db)",
	)

	if err := cmd.MarkFlagRequired("dsn"); err != nil {
		fmt.Fprintf(os.Stderr, "error marking flag required: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := agent.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flag overrides config file.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}

	log.SetLevel(level)

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	a, err := agent.New(log, cfg)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	log.Info("Starting latquant agent")

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}

	<-ctx.Done()

	log.Info("Shutting down latquant agent")

	if err := a.Stop(); err != nil {
		log.WithError(err).Error("Error during shutdown")
		return fmt.Errorf("stopping agent: %w", err)
	}

	log.Info("Shutdown complete")

	return nil
}
