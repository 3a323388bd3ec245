package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	t.Parallel()
	for k := KeyUp; k <= KeyBack; k++ {
		got, err := ParseKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKey("Center")
	require.NoError(t, err)
	assert.Equal(t, KeyOk, got)

	_, err = ParseKey("select")
	require.Error(t, err)
}

func TestParseType(t *testing.T) {
	t.Parallel()
	for ty := TypePress; ty <= TypeRepeat; ty++ {
		got, err := ParseType(ty.String())
		require.NoError(t, err)
		assert.Equal(t, ty, got)
	}
	_, err := ParseType("double")
	require.Error(t, err)
}

func TestStringers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "back/short", Event{KeyBack, TypeShort}.String())
	assert.Equal(t, "Key(42)", Key(42).String())
	assert.False(t, Key(42).Valid())
	assert.False(t, Type(-1).Valid())
}

func TestClickAndHold(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []Event{{KeyOk, TypePress}, {KeyOk, TypeShort}, {KeyOk, TypeRelease}}, Click(KeyOk))
	assert.Equal(t, TypeLong, Hold(KeyUp)[1].Type)
	assert.True(t, Event{KeyUp, TypeRepeat}.IsNav())
	assert.False(t, Event{KeyUp, TypePress}.IsNav())
}
