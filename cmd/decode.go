package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/ColonelBlimp/dtmfaddr/internal/dtmf"
	"github.com/ColonelBlimp/dtmfaddr/internal/recovery"
	"github.com/ColonelBlimp/dtmfaddr/internal/wav"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file.wav>...",
	Short: "Recover hex addresses from WAV recordings",
	Long: `Decodes each WAV file as one complete recording and prints the address
it carries. Multiple files are decoded in parallel and reported in order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringP("expect", "e", "", "score each decode against this address")
	rootCmd.AddCommand(decodeCmd)
}

type fileResult struct {
	res dtmf.Result
	err error
}

func runDecode(cmd *cobra.Command, args []string) error {
	a := current
	results := make([]fileResult, len(args))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.NumCPU())
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			defer recovery.HandlePanic()
			res, err := decodeFile(ctx, path)
			results[i] = fileResult{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	expect, _ := cmd.Flags().GetString("expect")
	out := cmd.OutOrStdout()
	var errs []error
	for i, path := range args {
		r := results[i]
		scored := expect != "" && r.res.Symbols != nil
		var accuracy float64
		if scored {
			accuracy = a.codec.Accuracy(cmd.Context(), r.res, expect)
		}

		if r.err != nil {
			a.log.Warn("decode failed",
				zap.String("file", path),
				zap.String("partial", r.res.Hex),
				zap.Error(r.err),
			)
			if scored {
				fmt.Fprintf(out, "%s\taccuracy %.1f%%\n", path, accuracy)
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, r.err))
			continue
		}

		switch {
		case len(args) == 1 && scored:
			fmt.Fprintf(out, "%s\naccuracy: %.1f%%\n", r.res.Address(), accuracy)
		case len(args) == 1:
			fmt.Fprintln(out, r.res.Address())
		case scored:
			fmt.Fprintf(out, "%s\t%s\t%.1f%%\n", path, r.res.Address(), accuracy)
		default:
			fmt.Fprintf(out, "%s\t%s\n", path, r.res.Address())
		}
	}
	return errors.Join(errs...)
}

func decodeFile(ctx context.Context, path string) (dtmf.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return dtmf.Result{}, err
	}
	defer f.Close()

	clip, err := wav.Read(f)
	if err != nil {
		return dtmf.Result{}, err
	}
	current.log.Debug("read audio",
		zap.String("file", path),
		zap.Int("samples", len(clip.Samples)),
		zap.Float64("sample_rate", clip.SampleRate),
		zap.Int("channels", clip.Channels),
	)
	return current.codec.Decode(ctx, clip.Samples, clip.SampleRate)
}
