package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetKeyInFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		initial string
		section string
		key     string
		value   string
		want    string
	}{
		{
			name:  "new file",
			key:   "log-level",
			value: "debug",
			want:  "log-level debug\n",
		},
		{
			name:    "replace global keeps comments",
			initial: "# top\nlog-level info\ndevice-name Zero\n",
			key:     "log-level",
			value:   "warn",
			want:    "# top\nlog-level warn\ndevice-name Zero\n",
		},
		{
			name:    "insert global before sections",
			initial: "log-level info\n\n[display]\nwidth 40\n",
			key:     "device-name",
			value:   "Zero",
			want:    "log-level info\ndevice-name Zero\n\n[display]\nwidth 40\n",
		},
		{
			name:    "section key is not a global key",
			initial: "[display]\nwidth 40\n",
			key:     "width",
			value:   "64",
			want:    "width 64\n[display]\nwidth 40\n",
		},
		{
			name:    "replace in section",
			initial: "log-level info\n[display]\nwidth 40\nheight 10\n[input]\nlong-press off\n",
			section: "display",
			key:     "height",
			value:   "20",
			want:    "log-level info\n[display]\nwidth 40\nheight 20\n[input]\nlong-press off\n",
		},
		{
			name:    "append to existing section",
			initial: "[display]\nwidth 40\n\n[input]\nlong-press off\n",
			section: "display",
			key:     "border",
			value:   "no",
			want:    "[display]\nwidth 40\nborder no\n\n[input]\nlong-press off\n",
		},
		{
			name:    "new section",
			initial: "log-level info\n",
			section: "script",
			key:     "module-path",
			value:   "/lib",
			want:    "log-level info\n\n[script]\nmodule-path /lib\n",
		},
		{
			name:    "empty value",
			initial: "log-file /tmp/x\n",
			key:     "log-file",
			want:    "log-file\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "sub", "config")
			if tt.initial != "" {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte(tt.initial), 0o644))
			}
			require.NoError(t, SetKeyInFile(path, tt.section, tt.key, tt.value))
			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temp file left behind")
		})
	}
}

func TestSetKeyInFile_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, SetKeyInFile(path, "display", "width", "48"))
	require.NoError(t, SetKeyInFile(path, "", "device-name", "Zero"))
	require.NoError(t, SetKeyInFile(path, "display", "width", "50"))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Warnings)
	v, _ := cfg.Get("display", "width")
	assert.Equal(t, "50", v)
	v, _ = cfg.Get("", "device-name")
	assert.Equal(t, "Zero", v)
}
