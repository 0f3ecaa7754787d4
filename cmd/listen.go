package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColonelBlimp/dtmfaddr/internal/audio"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Capture audio from a microphone and decode the address in it",
	Long: `Records a fixed length of audio from the capture device, then decodes the
whole buffer at once. Start playback before the recording window closes.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().Float64P("seconds", "s", 8, "seconds of audio to capture")
	listenCmd.Flags().String("save", "", "also write the captured audio to this WAV file")
	listenCmd.Flags().Bool("list-devices", false, "list capture devices and exit")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, _ []string) error {
	a := current
	s := a.settings

	capture := audio.New(audio.Config{
		DeviceIndex: s.DeviceIndex,
		SampleRate:  uint32(s.SampleRate),
		Channels:    1,
		BufferSize:  1024,
	})
	if err := capture.Init(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer capture.Close()

	out := cmd.OutOrStdout()
	if list, _ := cmd.Flags().GetBool("list-devices"); list {
		devices, err := capture.ListDevices()
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		for i, d := range devices {
			fmt.Fprintf(out, "[%d] %s\n", i, d.Name())
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("listening", zap.Duration("duration", s.RecordDuration()), zap.Int("device", s.DeviceIndex))
	samples, err := capture.Record(ctx, s.RecordDuration())
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := writeWAV(path, samples, s.SampleRate, 1); err != nil {
			return err
		}
		a.log.Info("saved capture", zap.String("file", path))
	}

	res, err := a.codec.Decode(ctx, samples, s.SampleRate)
	if err != nil {
		a.log.Warn("decode failed", zap.String("partial", res.Hex), zap.Error(err))
		return err
	}
	fmt.Fprintln(out, res.Address())
	return nil
}
