package scripting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestLogFile_Rotation(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "viewloop.log")
	lf, err := OpenLogFile(path, 1024, 2)
	require.NoError(t, err)

	record := func(c byte) []byte { return []byte(strings.Repeat(string(c), 599) + "\n") }
	for _, c := range []byte("abcd") {
		n, err := lf.Write(record(c))
		require.NoError(t, err)
		assert.Equal(t, 600, n)
	}
	require.NoError(t, lf.Close())

	assert.Equal(t, string(record('d')), readFile(t, path))
	assert.Equal(t, string(record('c')), readFile(t, path+".1"))
	assert.Equal(t, string(record('b')), readFile(t, path+".2"))
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))

	_, err = lf.Write([]byte("late\n"))
	require.ErrorIs(t, err, os.ErrClosed)
	require.NoError(t, lf.Close())
}

func TestLogFile_AppendsAndKeepsNothing(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "viewloop.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 1000)), 0o644))

	lf, err := OpenLogFile(path, 0, 0)
	require.NoError(t, err)
	_, err = lf.Write([]byte("small\n"))
	require.NoError(t, err)
	_, err = lf.Write([]byte(strings.Repeat("y", 100)))
	require.NoError(t, err)
	require.NoError(t, lf.Close())

	assert.Equal(t, strings.Repeat("y", 100), readFile(t, path))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
