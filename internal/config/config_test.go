package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromReader(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader(`# viewloop
log-level debug
device-name   Zero

[display]
# sizes
width 40
border off

[script]
module-path /a:/b
`))
	require.NoError(t, err)

	v, ok := cfg.Get("", "log-level")
	assert.True(t, ok)
	assert.Equal(t, "debug", v)
	v, _ = cfg.Get("", "device-name")
	assert.Equal(t, "Zero", v)
	v, _ = cfg.Get("display", "width")
	assert.Equal(t, "40", v)
	v, _ = cfg.Get("display", "border")
	assert.Equal(t, "off", v)
	v, _ = cfg.Get("script", "module-path")
	assert.Equal(t, "/a:/b", v)

	_, ok = cfg.Get("display", "height")
	assert.False(t, ok)
	_, ok = cfg.Get("nowhere", "width")
	assert.False(t, ok)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, cfg.Global)
	assert.Empty(t, cfg.Sections)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromReader_Warnings(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader(`colour red
log-buffer lots
[display]
width wide
depth 3
[sound]
volume 11
`))
	require.NoError(t, err)
	assert.Equal(t, []string{
		`display.width: expected int, got "wide"`,
		`log-buffer: expected int, got "lots"`,
		`unknown option colour (value "red")`,
		`unknown option display.depth (value "3")`,
		`unknown section [sound]`,
	}, cfg.Warnings)
}

func TestLoadFromPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg, err := LoadFromPath(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Global)

	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte("device-name Zero\n"), 0o644))
	cfg, err = LoadFromPath(path)
	require.NoError(t, err)
	v, _ := cfg.Get("", "device-name")
	assert.Equal(t, "Zero", v)

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(path, link))
	_, err = LoadFromPath(link)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symlink not allowed")
}

func TestSetAndSplitKey(t *testing.T) {
	t.Parallel()
	cfg := NewConfig()
	cfg.Set("", "log-level", "warn")
	cfg.Set("display", "width", "64")
	v, _ := cfg.Get("", "log-level")
	assert.Equal(t, "warn", v)
	v, _ = cfg.Get("display", "width")
	assert.Equal(t, "64", v)

	for _, tt := range []struct{ key, section, name string }{
		{"log-level", "", "log-level"},
		{"display.width", "display", "width"},
		{"script.module-path", "script", "module-path"},
		{".hidden", "", ".hidden"},
	} {
		section, name := SplitKey(tt.key)
		assert.Equal(t, tt.section, section, tt.key)
		assert.Equal(t, tt.name, name, tt.key)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom-config")
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-config", path)

	t.Setenv(EnvConfigPath, "")
	t.Setenv("HOME", "/home/tester")
	path, err = GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", ".viewloop", "config"), path)
}
