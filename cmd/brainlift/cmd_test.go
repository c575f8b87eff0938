package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeProgram(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.bf")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	path := writeProgram(t, "++++++[>++++++<-]>.")
	out, err := execute(t, "", "run", path)
	require.NoError(t, err)
	require.Equal(t, "$", out)
}

func TestRunCommandEcho(t *testing.T) {
	path := writeProgram(t, ",.")
	out, err := execute(t, "A", "run", "--eof", "ignore", path)
	require.NoError(t, err)
	require.Equal(t, "A", out)
}

func TestRunCommandEOFZero(t *testing.T) {
	path := writeProgram(t, "+,.")
	out, err := execute(t, "", "run", "--eof", "zero", path)
	require.NoError(t, err)
	require.Equal(t, []byte{0}, []byte(out))
}

func TestRunCommandInvalidEOFPolicy(t *testing.T) {
	path := writeProgram(t, "+")
	_, err := execute(t, "", "run", "--eof", "bogus", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid eof policy")
}

func TestRunCommandSyntaxError(t *testing.T) {
	path := writeProgram(t, "[")
	_, err := execute(t, "", "run", "--eof", "ignore", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mismatched bracket")
}

func TestBuildCommand(t *testing.T) {
	path := writeProgram(t, "+[>+<-]")
	out := filepath.Join(t.TempDir(), "program.o")
	t.Cleanup(func() { buildOutput = "" })
	_, err := execute(t, "", "build", "-o", out, path)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte{0x7f, 'E', 'L', 'F'}))
}

func TestBuildCommandDefaultOutput(t *testing.T) {
	path := writeProgram(t, "+.")
	_, err := execute(t, "", "build", path)
	require.NoError(t, err)

	want := strings.TrimSuffix(path, ".bf") + ".o"
	_, statErr := os.Stat(want)
	require.NoError(t, statErr)
}

func TestAstCommandText(t *testing.T) {
	path := writeProgram(t, "+[-]")
	out, err := execute(t, "", "ast", "-o", "text", path)
	require.NoError(t, err)
	require.Equal(t, "increment\nloop\n  decrement\n", out)
}

func TestAstCommandJSON(t *testing.T) {
	path := writeProgram(t, "+")
	out, err := execute(t, "", "ast", "-o", "json", path)
	require.NoError(t, err)
	require.Contains(t, out, "increment")
	require.Contains(t, out, "instructions")
}
