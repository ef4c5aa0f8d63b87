package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup runs commands from an empty directory so no stray config is read,
// and resets flags that leak between executions.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("PREVIEWGEN_LOGGING_LEVEL", "error")

	cfgFile, verbose = "", false
	generateFlags.text, generateFlags.width, generateFlags.single, generateFlags.provenance = "", 0, false, ""
	batchFlags.workers, batchFlags.out = 0, ""
	patternFlags.width, patternFlags.height, patternFlags.text, patternFlags.png = 600, 450, "", ""
	_ = versionCmd.Flags().Set("short", "false")
	_ = versionCmd.Flags().Set("json", "false")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(64 + x*128/w), G: uint8(64 + y*128/h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestRootHelp(t *testing.T) {
	setup(t)
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"generate", "batch", "pattern", "extract", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestUnknownCommand(t *testing.T) {
	setup(t)
	_, err := run(t, "nonexistent-command")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	setup(t)
	SetVersion("1.2.3")
	SetBuildInfo("abc1234", "2026-10-01T00:00:00Z")

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "previewgen version 1.2.3")
	assert.Contains(t, out, "commit:     abc1234")

	out, err = run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)

	_ = versionCmd.Flags().Set("short", "false")
	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "abc1234", info["commit"])
}

func TestPattern(t *testing.T) {
	dir := setup(t)
	png := filepath.Join(dir, "overlay.png")

	out, err := run(t, "pattern", "--width", "300", "--height", "200", "--text", "demo", "--png", png)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" width="300" height="200"`))
	assert.Contains(t, out, ">demo</text>")

	f, err := os.Open(png)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	_, err = run(t, "pattern", "--width", "0")
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	dir := setup(t)
	in := filepath.Join(dir, "in.jpg")
	out := filepath.Join(dir, "out.jpg")
	writeJPEG(t, in, 900, 600)

	stdout, err := run(t, "generate", in, out, "--width", "300", "--provenance", "6f1c0a52-2b7e-4d3f-9a61-0c8e5b4d7f21")
	require.NoError(t, err)
	assert.Contains(t, stdout, "300x200 jpeg")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestGenerateErrors(t *testing.T) {
	dir := setup(t)
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	_, err := run(t, "generate", bad, filepath.Join(dir, "out.jpg"))
	assert.ErrorContains(t, err, "invalid input")
	assert.NoFileExists(t, filepath.Join(dir, "out.jpg"))

	generateFlags.provenance = ""
	_, err = run(t, "generate", filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "out.jpg"))
	assert.Error(t, err)

	_, err = run(t, "generate", "only-one-arg")
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	dir := setup(t)
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.Mkdir(uploads, 0o755))
	writeJPEG(t, filepath.Join(uploads, "a.jpg"), 120, 80)
	writeJPEG(t, filepath.Join(uploads, "b.jpg"), 80, 120)
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "c.jpg"), []byte("broken"), 0o644))
	t.Setenv("PREVIEWGEN_CATALOG_PATH", filepath.Join(dir, "catalog.db"))

	outDir := filepath.Join(dir, "out")
	stdout, err := run(t, "batch", uploads, "--out", outDir, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 previews, 1 failed")
	assert.Contains(t, stdout, "FAIL "+filepath.Join(uploads, "c.jpg"))

	files, err := os.ReadDir(filepath.Join(outDir, "previews"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.FileExists(t, filepath.Join(dir, "catalog.db"))
}

func TestParseID(t *testing.T) {
	id, err := parseID("auto")
	require.NoError(t, err)
	assert.NotEqual(t, [16]byte{}, [16]byte(id))

	_, err = parseID("not-a-uuid")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)
	l.Info().Msg("hidden")
	l.Warn().Str("k", "v").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)

	_, err = newLogger(&buf, "loud", "json")
	assert.Error(t, err)
}
