package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ColonelBlimp/dtmfaddr/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// roundTripPayload uses only keys that decode to themselves and never
// repeats a character back to back.
const roundTripPayload = "0123456789abcd0123456789abcd0123456789ab"

func resetViperForTest() {
	viper.Reset()
	bindFlags()
}

// resetFlags restores every flag to its default so one test's arguments
// do not leak into the next.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

func setupConfig(t *testing.T, content string) string {
	t.Helper()
	resetViperForTest()
	resetFlags(t)

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	configDir := filepath.Join(tmpDir, ".config", config.AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return tmpDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HasExpectedFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name         string
		shorthand    string
		defaultValue string
	}{
		{"device", "d", "-1"},
		{"sample-rate", "r", "44100"},
		{"min-length", "m", "40"},
		{"debug", "D", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("flag %q shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("flag %q default = %q, want %q", tt.name, flag.DefValue, tt.defaultValue)
			}
			if flag.Usage == "" {
				t.Errorf("flag %q has no description", tt.name)
			}
		})
	}
}

func TestRootCmd_Properties(t *testing.T) {
	if rootCmd.Use != "dtmfaddr" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "dtmfaddr")
	}
	if rootCmd.Short == "" {
		t.Error("rootCmd.Short is empty")
	}
	if rootCmd.Long == "" {
		t.Error("rootCmd.Long is empty")
	}

	want := map[string]bool{"encode": false, "decode": false, "listen": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	resetViperForTest()
	resetFlags(t)

	output, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("Execute() with --help error = %v", err)
	}
	for _, want := range []string{"dtmfaddr", "--device", "--min-length", "encode", "decode", "listen"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestInitConfig(t *testing.T) {
	setupConfig(t, "min_hex_length: 20")

	initConfig()

	if got := viper.GetInt("min_hex_length"); got != 20 {
		t.Errorf("viper.GetInt(min_hex_length) = %d, want 20", got)
	}
}

func TestEncodeCmd_PrintsSummary(t *testing.T) {
	setupConfig(t, config.DefaultConfig)

	output, err := execute(t, "encode", "0x1234567890abcdef1234567890abcdef12345678")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}

	for _, want := range []string{
		"symbols:  *1234567890ABCDDD1234567890ABCDDD12345678#",
		"segments: 83 (42 tones, 41 silences)",
		"duration: 5s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("encode output missing %q:\n%s", want, output)
		}
	}
}

func TestEncodeCmd_Segments(t *testing.T) {
	setupConfig(t, config.DefaultConfig)

	output, err := execute(t, "encode", "--segments", "1")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if !strings.Contains(output, "697 Hz + 1209 Hz") {
		t.Errorf("segment listing missing tone pair for '1':\n%s", output)
	}
	if !strings.Contains(output, "silence") {
		t.Errorf("segment listing missing silences:\n%s", output)
	}
}

func TestEncodeCmd_RequiresAddress(t *testing.T) {
	setupConfig(t, config.DefaultConfig)

	if _, err := execute(t, "encode"); err == nil {
		t.Error("encode without an address should fail")
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tmpDir := setupConfig(t, config.DefaultConfig)
	path := filepath.Join(tmpDir, "address.wav")

	if _, err := execute(t, "encode", "0x"+roundTripPayload, "-o", path); err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("encode did not write %s: %v", path, err)
	}

	resetFlags(t)
	output, err := execute(t, "decode", path)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got := strings.TrimSpace(output); got != "0x"+roundTripPayload {
		t.Errorf("decode output = %q, want %q", got, "0x"+roundTripPayload)
	}
}

func TestEncodeDecode_StereoWithDebug(t *testing.T) {
	tmpDir := setupConfig(t, config.DefaultConfig)
	path := filepath.Join(tmpDir, "stereo.wav")

	if _, err := execute(t, "--debug", "encode", roundTripPayload, "-c", "2", "-o", path); err != nil {
		t.Fatalf("encode error = %v", err)
	}

	resetFlags(t)
	output, err := execute(t, "--debug", "decode", path)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !strings.Contains(output, "0x"+roundTripPayload) {
		t.Errorf("decode output = %q, want address", output)
	}
}

func TestDecodeCmd_MultipleFiles(t *testing.T) {
	tmpDir := setupConfig(t, config.DefaultConfig)
	first := filepath.Join(tmpDir, "first.wav")
	second := filepath.Join(tmpDir, "second.wav")
	other := "abcd0123456789abcd0123456789abcd01234567"

	if _, err := execute(t, "encode", roundTripPayload, "-o", first); err != nil {
		t.Fatalf("encode first error = %v", err)
	}
	resetFlags(t)
	if _, err := execute(t, "encode", other, "-o", second); err != nil {
		t.Fatalf("encode second error = %v", err)
	}

	resetFlags(t)
	output, err := execute(t, "decode", first, second)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Fatalf("decode printed %d lines, want 2:\n%s", len(lines), output)
	}
	if lines[0] != first+"\t0x"+roundTripPayload {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != second+"\t0x"+other {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestDecodeCmd_ShortAddress(t *testing.T) {
	tmpDir := setupConfig(t, config.DefaultConfig)
	path := filepath.Join(tmpDir, "short.wav")

	if _, err := execute(t, "encode", "0123456789", "-o", path); err != nil {
		t.Fatalf("encode error = %v", err)
	}

	resetFlags(t)
	if _, err := execute(t, "decode", path); err == nil || !strings.Contains(err.Error(), "incomplete") {
		t.Errorf("strict decode error = %v, want incomplete sequence", err)
	}

	resetFlags(t)
	output, err := execute(t, "--min-length", "10", "decode", path)
	if err != nil {
		t.Fatalf("lenient decode error = %v", err)
	}
	if got := strings.TrimSpace(output); got != "0x0123456789" {
		t.Errorf("lenient decode output = %q, want 0x0123456789", got)
	}
}

func TestDecodeCmd_MissingFile(t *testing.T) {
	tmpDir := setupConfig(t, config.DefaultConfig)
	path := filepath.Join(tmpDir, "missing.wav")

	_, err := execute(t, "decode", path)
	if err == nil {
		t.Fatal("decode of a missing file should fail")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	tmpDir := setupConfig(t, "sample_rate: 1000000")

	_, err := execute(t, "decode", filepath.Join(tmpDir, "x.wav"))
	if err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Errorf("expected config error, got: %v", err)
	}
}

func TestListenCmd_Flags(t *testing.T) {
	flags := listenCmd.Flags()
	for _, name := range []string{"seconds", "save", "list-devices"} {
		if flags.Lookup(name) == nil {
			t.Errorf("listen flag %q not found", name)
		}
	}
}

// captureStderr redirects os.Stderr, where the zap logger writes, while fn runs.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stderr")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	old := os.Stderr
	os.Stderr = f
	defer func() { os.Stderr = old }()

	fn()

	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read temp file: %v", err)
	}
	return string(data)
}

func TestDecodeCmd_Expect(t *testing.T) {
	tmpDir := setupConfig(t, config.DefaultConfig)
	path := filepath.Join(tmpDir, "address.wav")

	if _, err := execute(t, "encode", roundTripPayload, "-o", path); err != nil {
		t.Fatalf("encode error = %v", err)
	}

	tests := []struct {
		name   string
		expect string
		want   string
	}{
		{"matching address", "0x" + roundTripPayload, "accuracy: 100.0%"},
		// every hex position differs; only the two markers line up (2 of 42)
		{"different address", "abcd0123456789abcd0123456789abcd01234567", "accuracy: 4.8%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			output, err := execute(t, "decode", "--expect", tt.expect, path)
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if !strings.Contains(output, "0x"+roundTripPayload) {
				t.Errorf("decode output missing address:\n%s", output)
			}
			if !strings.Contains(output, tt.want) {
				t.Errorf("decode output missing %q:\n%s", tt.want, output)
			}
		})
	}
}

func TestDecodeCmd_ExpectScoresFailedDecode(t *testing.T) {
	tmpDir := setupConfig(t, config.DefaultConfig)
	path := filepath.Join(tmpDir, "short.wav")

	if _, err := execute(t, "encode", "0123456789", "-o", path); err != nil {
		t.Fatalf("encode error = %v", err)
	}

	resetFlags(t)
	output, err := execute(t, "decode", "-e", "0123456789", path)
	if err == nil {
		t.Fatal("strict decode of a short address should fail")
	}
	if !strings.Contains(output, "accuracy 100.0%") {
		t.Errorf("failed decode should still be scored:\n%s", output)
	}
}

func TestDecodeCmd_FailureStillFinalizes(t *testing.T) {
	tmpDir := setupConfig(t, config.DefaultConfig)
	path := filepath.Join(tmpDir, "short.wav")

	if _, err := execute(t, "encode", "0123456789", "-o", path); err != nil {
		t.Fatalf("encode error = %v", err)
	}

	resetFlags(t)
	var err error
	logs := captureStderr(t, func() {
		_, err = execute(t, "--debug", "decode", path)
	})
	if err == nil {
		t.Fatal("strict decode of a short address should fail")
	}
	if current != nil {
		t.Error("shared state not released after a failed command")
	}
	if !strings.Contains(logs, "dtmf.decodes") {
		t.Errorf("debug metric summary missing after a failed decode:\n%s", logs)
	}
}

func TestEncodeCmd_Flags(t *testing.T) {
	flags := encodeCmd.Flags()
	for _, name := range []string{"output", "channels", "segments", "play"} {
		if flags.Lookup(name) == nil {
			t.Errorf("encode flag %q not found", name)
		}
	}
	if flags.Lookup("play").DefValue != "false" {
		t.Error("encode --play should default to false")
	}
	if decodeCmd.Flags().Lookup("expect") == nil {
		t.Error("decode flag \"expect\" not found")
	}
}
