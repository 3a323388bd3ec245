package command

import (
	"bytes"
	"context"
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCommand struct {
	*BaseCommand
	verbose bool
	args    []string
	calls   int
}

func newRecordingCommand(name string) *recordingCommand {
	return &recordingCommand{BaseCommand: NewBaseCommand(name, "records calls", name+" [-v] [args]")}
}

func (c *recordingCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "verbose")
}

func (c *recordingCommand) Execute(_ context.Context, args []string, _, _ io.Writer) error {
	c.calls++
	c.args = args
	return nil
}

func TestRegistry_GetAndList(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(newRecordingCommand("zeta"))
	r.Register(newRecordingCommand("alpha"))
	assert.Equal(t, []string{"alpha", "zeta"}, r.List())

	cmd, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", cmd.Name())

	_, err = r.Get("missing")
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestRegistry_Dispatch(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	rec := newRecordingCommand("rec")
	r.Register(rec)
	r.Register(NewHelpCommand(r))

	var stdout, stderr bytes.Buffer
	require.NoError(t, r.Dispatch(context.Background(), []string{"rec", "-v", "a", "b"}, &stdout, &stderr))
	assert.Equal(t, 1, rec.calls)
	assert.True(t, rec.verbose)
	assert.Equal(t, []string{"a", "b"}, rec.args)

	stdout.Reset()
	require.NoError(t, r.Dispatch(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "rec")

	stderr.Reset()
	require.NoError(t, r.Dispatch(context.Background(), []string{"rec", "-h"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: viewloop rec [-v] [args]")
	assert.Equal(t, 1, rec.calls)

	require.Error(t, r.Dispatch(context.Background(), []string{"rec", "-nope"}, &stdout, &stderr))

	stderr.Reset()
	err := r.Dispatch(context.Background(), []string{"nope"}, &stdout, &stderr)
	require.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, stderr.String(), "Unknown command: nope")
}
