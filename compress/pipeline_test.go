package compress

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner replays one scripted behavior per invocation.
type fakeRunner struct {
	availableErr error
	calls        int
	behaviors    []func(outputPath string) ([]byte, error)
}

func (f *fakeRunner) Available() error { return f.availableErr }

func (f *fakeRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.behaviors) {
		return nil, errors.New("unexpected invocation")
	}
	return f.behaviors[idx](outputPathFromArgs(args))
}

func outputPathFromArgs(args []string) string {
	for _, a := range args {
		if strings.HasPrefix(a, "-sOutputFile=") {
			return strings.TrimPrefix(a, "-sOutputFile=")
		}
	}
	return ""
}

func writeBytes(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

// produce returns a behavior that writes size bytes to the attempt's output.
func produce(t *testing.T, size int) func(string) ([]byte, error) {
	return func(out string) ([]byte, error) {
		writeBytes(t, out, size)
		return nil, nil
	}
}

func fail(diag string) func(string) ([]byte, error) {
	return func(string) ([]byte, error) {
		return []byte(diag), errors.New("exit status 1")
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestInput(t *testing.T, size int) (inputPath, outputPath string) {
	t.Helper()
	dir := t.TempDir()
	inputPath = filepath.Join(dir, "in.pdf")
	outputPath = filepath.Join(dir, "out.pdf")
	writeBytes(t, inputPath, size)
	return inputPath, outputPath
}

func TestCompressPrimarySuccess(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){produce(t, 400)}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForQuality(50)
	result, err := pl.Compress(context.Background(), in, out, preset)
	require.NoError(t, err)

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, int64(1000), result.OriginalSize)
	assert.Equal(t, int64(400), result.CompressedSize)
	assert.InDelta(t, 60.0, result.ReductionPercent, 0.01)
	assert.Equal(t, "ebook", result.Preset)
	assert.Equal(t, out, result.OutputPath)

	// Winner landed at the requested output path, input artifact is gone.
	_, err = os.Stat(out)
	assert.NoError(t, err)
	_, err = os.Stat(in)
	assert.True(t, os.IsNotExist(err))
}

func TestCompressFallbackAfterPrimaryFailure(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){
		fail("gs: something exploded"),
		produce(t, 300),
	}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForQuality(90)
	result, err := pl.Compress(context.Background(), in, out, preset)
	require.NoError(t, err)

	assert.Equal(t, 2, runner.calls)
	assert.Equal(t, "screen", result.Preset)
	assert.Equal(t, int64(300), result.CompressedSize)
}

func TestCompressEmptyOutputTriggersFallback(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){
		produce(t, 0), // clean exit, empty file
		produce(t, 500),
	}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForQuality(90)
	result, err := pl.Compress(context.Background(), in, out, preset)
	require.NoError(t, err)
	assert.Equal(t, 2, runner.calls)
	assert.Equal(t, int64(500), result.CompressedSize)
}

func TestCompressEscalationReplacesLargerOutput(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){
		produce(t, 1200), // grew
		produce(t, 700),  // escalation shrinks
	}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForLevel(0)
	result, err := pl.Compress(context.Background(), in, out, preset)
	require.NoError(t, err)

	assert.Equal(t, 2, runner.calls)
	assert.Equal(t, "escalated", result.Preset)
	assert.Equal(t, int64(700), result.CompressedSize)
	assert.InDelta(t, 30.0, result.ReductionPercent, 0.01)
}

func TestCompressEscalationKeepsBestWhenWorse(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){
		produce(t, 1200),
		produce(t, 1500), // escalation is even worse
	}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForLevel(1)
	result, err := pl.Compress(context.Background(), in, out, preset)
	require.NoError(t, err)

	assert.Equal(t, "ebook", result.Preset)
	assert.Equal(t, int64(1200), result.CompressedSize)
	// Reduction never goes negative, even when the output grew.
	assert.Equal(t, 0.0, result.ReductionPercent)
}

func TestCompressNoEscalationForTopTiers(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){
		produce(t, 1200),
	}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForLevel(2)
	result, err := pl.Compress(context.Background(), in, out, preset)
	require.NoError(t, err)

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, int64(1200), result.CompressedSize)
}

func TestCompressAllAttemptsFail(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){
		fail("first diagnostic"),
		fail("last diagnostic"),
	}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForQuality(50)
	_, err := pl.Compress(context.Background(), in, out, preset)

	var compressionErr *CompressionError
	require.ErrorAs(t, err, &compressionErr)
	assert.Contains(t, compressionErr.Diagnostics, "last diagnostic")

	// Input artifact is released on the failure path too.
	_, statErr := os.Stat(in)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCompressDiagnosticsReflectFinalAttempt(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){
		fail("first diagnostic"),
		fail(""), // final attempt fails without emitting output
	}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForQuality(50)
	_, err := pl.Compress(context.Background(), in, out, preset)

	var compressionErr *CompressionError
	require.ErrorAs(t, err, &compressionErr)
	assert.Contains(t, compressionErr.Diagnostics, "fallback")
	assert.NotContains(t, compressionErr.Diagnostics, "first diagnostic")
}

func TestCompressLibraryFallback(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{behaviors: []func(string) ([]byte, error){
		fail("boom"),
		fail("boom again"),
	}}
	optimizer := func(inputPath, outputPath string) error {
		writeBytes(t, outputPath, 800)
		return nil
	}
	pl := NewPipeline(runner, optimizer, 0, testLogger())

	preset, _ := ForQuality(50)
	result, err := pl.Compress(context.Background(), in, out, preset)
	require.NoError(t, err)

	assert.Equal(t, "optimize", result.Preset)
	assert.Equal(t, int64(800), result.CompressedSize)
}

func TestCompressToolUnavailableRunsNothing(t *testing.T) {
	in, out := newTestInput(t, 1000)
	runner := &fakeRunner{availableErr: &ToolUnavailableError{Tool: "gs"}}
	pl := NewPipeline(runner, nil, 0, testLogger())

	preset, _ := ForQuality(50)
	_, err := pl.Compress(context.Background(), in, out, preset)

	var toolErr *ToolUnavailableError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 0, runner.calls)
}

func TestReductionPercent(t *testing.T) {
	assert.InDelta(t, 60.0, ReductionPercent(1000, 400), 0.01)
	assert.Equal(t, 0.0, ReductionPercent(1000, 1200), "clamped at zero when output grew")
	assert.Equal(t, 0.0, ReductionPercent(0, 100), "empty input reports zero")
	assert.InDelta(t, 100.0, ReductionPercent(1000, 0), 0.01)
}
