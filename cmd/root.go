package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-motor/configs"
	"github.com/RyanBlaney/sonido-motor/logging"
	"github.com/RyanBlaney/sonido-motor/metrics"
)

var (
	configFile  string
	logLevel    string
	logFile     string
	logFormat   string
	metricsAddr string

	// v holds the configuration of this process
	v = viper.New()

	appConfig *configs.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sonido-motor",
	Short: "Speech segmentation and timing metrics for motor speech assessment",
	Long: `Segments recordings of standardized speech tasks into voiced regions and
computes timing metrics from the segment boundaries.

Supported tasks:
- SV: sustained vowel (maximum phonation time)
- SR1..SR5: syllable repetition (pauses, utterances, repetition rate, task failure)
- PR: passage reading (pauses and utterances over the whole passage)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (YAML)")

	// Output and logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"also append log output to this file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address while running, e.g. :9090")

	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	v.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	v.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
}

// initializeConfig loads the configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	config, err := configs.Load(v)
	if err != nil {
		return err
	}
	appConfig = config
	return nil
}

// bindFlags binds a command's flags to configuration keys. Flags set on the
// command line win over the file and the environment.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if f := flags.Lookup(flag); f != nil {
			v.BindPFlag(key, f)
		}
	}
}

// runtime is the process-level state shared by commands
type runtime struct {
	logger   logging.Logger
	metrics  *metrics.Metrics
	teardown func() error
}

// startRuntime sets up logging and, when an address is configured, the
// metrics endpoint. The teardown stops both.
func startRuntime(ctx context.Context) (*runtime, error) {
	logger, closeLog, err := logging.Setup(logging.Options{
		Level:  appConfig.LogLevel,
		Format: appConfig.LogFormat,
		File:   appConfig.LogFile,
	})
	if err != nil {
		return nil, err
	}

	rt := &runtime{logger: logger, teardown: closeLog}
	if appConfig.Metrics.Addr == "" {
		return rt, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = metrics.NewMetrics(reg)

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := metrics.Serve(serveCtx, appConfig.Metrics.Addr, reg); err != nil {
			logger.Error(err, "Metrics endpoint stopped", logging.Fields{"addr": appConfig.Metrics.Addr})
		}
	}()
	logger.Info("Serving metrics", logging.Fields{"addr": appConfig.Metrics.Addr})

	rt.teardown = func() error {
		cancel()
		<-done
		return closeLog()
	}
	return rt, nil
}
