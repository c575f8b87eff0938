package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/thymoze/brainlift/errz"
	"github.com/thymoze/brainlift/ir"
	"github.com/thymoze/brainlift/parser"
)

type fakeTarget struct {
	obj []byte
	err error
}

func (f *fakeTarget) Name() string { return "fake" }

func (f *fakeTarget) Object(fn *ir.Func) ([]byte, error) {
	return f.obj, f.err
}

func TestCompileWritesObject(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "program.o")

	program, err := parser.Parse("+.")
	require.NoError(t, err)
	c, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, c.Compile(program, &fakeTarget{obj: []byte("object bytes")}, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "object bytes", string(data))

	// The temporary file must have been renamed away, never left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "program.o", entries[0].Name())
}

func TestCompileBackendFailure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "program.o")

	program, err := parser.Parse("+")
	require.NoError(t, err)
	c, err := New(nil)
	require.NoError(t, err)

	err = c.Compile(program, &fakeTarget{err: errors.New("boom")}, out)
	require.Error(t, err)
	kind, ok := errz.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errz.ErrBackend, kind)

	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestCompileUnwritablePath(t *testing.T) {
	program, err := parser.Parse("+")
	require.NoError(t, err)
	c, err := New(nil)
	require.NoError(t, err)

	err = c.Compile(program, &fakeTarget{obj: []byte("x")}, filepath.Join(t.TempDir(), "missing", "program.o"))
	require.Error(t, err)
	kind, ok := errz.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errz.ErrIO, kind)
}

func TestCompileLogsCompletion(t *testing.T) {
	var sb strings.Builder
	logger := zerolog.New(&sb)

	program, err := parser.Parse("+")
	require.NoError(t, err)
	c, err := New(&Config{Logger: &logger})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "program.o")
	require.NoError(t, c.Compile(program, &fakeTarget{obj: []byte("x")}, out))
	require.Contains(t, sb.String(), "wrote object file")
	require.Contains(t, sb.String(), `"target":"fake"`)
}
