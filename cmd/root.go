// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/ColonelBlimp/dtmfaddr/internal/codec"
	"github.com/ColonelBlimp/dtmfaddr/internal/config"
	"github.com/ColonelBlimp/dtmfaddr/internal/logging"
	"github.com/ColonelBlimp/dtmfaddr/internal/observe"
	"github.com/ColonelBlimp/dtmfaddr/internal/recovery"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// app is the state every subcommand shares, built once per invocation.
type app struct {
	settings *config.Settings
	codec    *codec.Codec
	log      *zap.Logger
	reader   *sdkmetric.ManualReader
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "dtmfaddr",
	Short: "Send and receive hex addresses as DTMF tones",
	Long: `Encodes a 40-character hex address into a framed DTMF tone sequence
and recovers it from recorded or captured audio.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	// Finalizers run even when a command fails, unlike PersistentPostRun.
	cobra.OnFinalize(finalize)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio capture device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("sample-rate", "r", 44100, "render and capture sample rate in Hz")
	rootCmd.PersistentFlags().IntP("min-length", "m", 40, "shortest decoded hex payload accepted")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	bindFlags()
}

// bindFlags binds the persistent flags to their config keys.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("device_index", flags.Lookup("device"))
	_ = viper.BindPFlag("sample_rate", flags.Lookup("sample-rate"))
	_ = viper.BindPFlag("min_hex_length", flags.Lookup("min-length"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("record_seconds", listenCmd.Flags().Lookup("seconds"))
	_ = viper.BindPFlag("wav_channels", encodeCmd.Flags().Lookup("channels"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(settings.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	recovery.SetLogger(log)

	a := &app{settings: settings, log: log}

	var metrics *observe.Metrics
	if settings.Debug {
		var mp *sdkmetric.MeterProvider
		mp, a.reader = observe.NewManualProvider()
		if metrics, err = observe.NewMetrics(mp); err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
	}

	if a.codec, err = codec.New(settings.CodecConfig(), metrics, log); err != nil {
		return fmt.Errorf("create codec: %w", err)
	}

	log.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("file", viper.ConfigFileUsed()),
		zap.Float64("sample_rate", settings.SampleRate),
		zap.Int("min_hex_length", settings.MinHexLength),
	)
	current = a
	return nil
}

func finalize() {
	if err := teardown(); err != nil {
		fmt.Fprintf(os.Stderr, "teardown: %v\n", err)
	}
}

// teardown prints the debug metric summary and flushes the logger.
func teardown() error {
	a := current
	if a == nil {
		return nil
	}
	defer func() {
		_ = a.log.Sync()
		recovery.SetLogger(nil)
		current = nil
	}()

	if a.reader == nil {
		return nil
	}
	counts, err := observe.Snapshot(context.Background(), a.reader)
	if err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		a.log.Debug("metric", zap.String("name", name), zap.Int64("value", counts[name]))
	}
	return nil
}
