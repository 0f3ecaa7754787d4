package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColonelBlimp/dtmfaddr/internal/audio"
	"github.com/ColonelBlimp/dtmfaddr/internal/dtmf"
	"github.com/ColonelBlimp/dtmfaddr/internal/wav"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <address>",
	Short: "Encode a hex address as a DTMF tone sequence",
	Long: `Prints the framed tone sequence for a hex address (with or without 0x).
With --output the sequence is rendered and written as a 16-bit PCM WAV file;
with --play it is sent to the default playback device.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().StringP("output", "o", "", "write rendered audio to this WAV file")
	encodeCmd.Flags().IntP("channels", "c", 1, "WAV channels (1 or 2)")
	encodeCmd.Flags().BoolP("segments", "s", false, "list every segment")
	encodeCmd.Flags().BoolP("play", "p", false, "play the tones on the default output device")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	a := current
	payload := dtmf.NormalizePayload(args[0])
	if len(payload) != dtmf.ExpectedHexLength {
		a.log.Warn("unexpected address length",
			zap.Int("length", len(payload)),
			zap.Int("expected", dtmf.ExpectedHexLength),
		)
	}

	seq, err := a.codec.Tones(cmd.Context(), payload)
	var skipped *dtmf.UnmappableError
	if err != nil && !errors.As(err, &skipped) {
		return fmt.Errorf("encode: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "symbols:  %s\n", seq.Symbols())
	fmt.Fprintf(out, "segments: %d (%d tones, %d silences)\n", len(seq), seq.Tones(), seq.Silences())
	fmt.Fprintf(out, "duration: %v\n", seq.Duration())
	if skipped != nil {
		fmt.Fprintf(out, "skipped:  %d\n", len(skipped.Skipped))
	}

	if show, _ := cmd.Flags().GetBool("segments"); show {
		for i, s := range seq {
			if s.Silent() {
				fmt.Fprintf(out, "%3d  silence  %v\n", i, s.Duration)
				continue
			}
			fmt.Fprintf(out, "%3d  %-7s  %v  %4.0f Hz + %4.0f Hz\n", i, s.Symbol, s.Duration, s.Tone.Row, s.Tone.Col)
		}
	}

	path, _ := cmd.Flags().GetString("output")
	play, _ := cmd.Flags().GetBool("play")
	if path == "" && !play {
		return nil
	}
	samples, err := a.codec.Render(cmd.Context(), payload)
	if err != nil {
		return err
	}

	if path != "" {
		if err := writeWAV(path, samples, a.settings.SampleRate, a.settings.WAVChannels); err != nil {
			return err
		}
		a.log.Info("wrote audio", zap.String("file", path), zap.Int("samples", len(samples)))
	}
	if play {
		return playSamples(cmd.Context(), samples, a.settings.SampleRate)
	}
	return nil
}

func playSamples(ctx context.Context, samples []float64, sampleRate float64) error {
	player := audio.NewPlayer(audio.Config{
		DeviceIndex: -1,
		SampleRate:  uint32(sampleRate),
		Channels:    1,
		BufferSize:  1024,
	})
	if err := player.Init(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer player.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	current.log.Info("playing", zap.Int("samples", len(samples)))
	if err := player.Play(ctx, samples); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	return nil
}

func writeWAV(path string, samples []float64, sampleRate float64, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := wav.Write(f, samples, int(sampleRate), channels); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
