package command

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/viewloop/internal/view"
)

func TestKindsCommand_Summary(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	require.NoError(t, NewKindsCommand().Execute(context.Background(), nil, &stdout, &stderr))
	out := stdout.String()
	assert.Contains(t, out, "Kind")
	assert.Contains(t, out, "Contracts")
	for _, kind := range view.Kinds() {
		assert.Contains(t, out, kind)
	}
	assert.Contains(t, out, "chosen")
	assert.Contains(t, out, "type: button|label")
}

func TestKindsCommand_Detail(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	require.NoError(t, NewKindsCommand().Execute(context.Background(), []string{"loading", "number_input", "button_panel"}, &stdout, &stderr))
	out := stdout.String()
	assert.Contains(t, out, "loading (captures input)")
	assert.NotContains(t, out, "number_input (captures input)")
	assert.Contains(t, out, "minValue")
	assert.Contains(t, out, "Contract")
	assert.Contains(t, out, "type=button")
	assert.Contains(t, out, "type=label")

	err := NewKindsCommand().Execute(context.Background(), []string{"hologram"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "Unknown kind: hologram")
}
