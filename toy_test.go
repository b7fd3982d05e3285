package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// toyTestCase drives one source program through Pack and Execute end to
// end, the same fluent expect/with shape as gothird's own vmTestCase
// (vm_test.go), generalized from one VM's memory to a packed module on
// disk. scripts/gen_vm_expects.go generates free functions for each
// expect/with method here.
type toyTestCase struct {
	t        *testing.T
	source   string
	input    string
	memLimit uint

	wantOutput  string
	wantErrKind ErrorKind
}

func newToyTestCase(t *testing.T) toyTestCase {
	return toyTestCase{t: t}
}

func (tt toyTestCase) withSource(lines ...string) toyTestCase {
	tt.source = strings.Join(lines, "\n") + "\n"
	return tt
}

func (tt toyTestCase) withInput(s string) toyTestCase {
	tt.input = s
	return tt
}

func (tt toyTestCase) expectOutput(s string) toyTestCase {
	tt.wantOutput = s
	return tt
}

func (tt toyTestCase) expectErrorKind(k ErrorKind) toyTestCase {
	tt.wantErrKind = k
	return tt
}

func (tt toyTestCase) withMemLimit(depth uint) toyTestCase {
	tt.memLimit = depth
	return tt
}

// run packs tt.source to a temp binary and executes it, asserting the
// captured stdout and/or error kind.
func (tt toyTestCase) run() {
	t := tt.t
	t.Helper()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.txt")
	binPath := filepath.Join(dir, "main.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte(tt.source), 0o644))

	err := Pack(srcPath, binPath, "UTF-8")
	if tt.wantErrKind != ErrNone && err != nil {
		require.Equal(t, tt.wantErrKind, Kind(err))
		return
	}
	require.NoError(t, err, "pack failed")

	var out bytes.Buffer
	opts := []EngineOption{
		WithInput(strings.NewReader(tt.input)),
		WithOutput(&out),
	}
	if tt.memLimit > 0 {
		opts = append(opts, WithMemLimit(tt.memLimit))
	}
	runErr := Execute(binPath, "UTF-8", opts...)

	if tt.wantErrKind != ErrNone {
		require.Error(t, runErr)
		require.Equal(t, tt.wantErrKind, Kind(runErr))
		return
	}
	require.NoError(t, runErr, "execute failed")
	require.Equal(t, tt.wantOutput, out.String())
}

func TestToyLiteralSetAndWrite(t *testing.T) {
	newToyTestCase(t).
		withSource(
			`SET x, 5 : INT`,
			`WRITE x`,
		).
		expectOutput("5\n").
		run()
}

func TestToyExpressionPrecedence(t *testing.T) {
	newToyTestCase(t).
		withSource(
			`SET x, (1 + 2 * 3) : INT`,
			`WRITE x`,
		).
		expectOutput("7\n").
		run()
}

func TestToyDoubleNegativeCollapses(t *testing.T) {
	newToyTestCase(t).
		withSource(
			`SET x, (--5) : INT`,
			`WRITE x`,
		).
		expectOutput("5\n").
		run()
}

func TestToyFactorialViaDefineCall(t *testing.T) {
	newToyTestCase(t).
		withSource(
			`SET n, 5 : INT`,
			`SET acc, 1 : INT`,
			`DEFINE step`,
			`SET acc, (acc * n) : INT`,
			`SET n, (n - 1) : INT`,
			`END`,
			`CALL step`,
			`CALL step`,
			`CALL step`,
			`CALL step`,
			`CALL step`,
			`WRITE acc`,
		).
		expectOutput("120\n").
		run()
}

func TestToyIfElseBranching(t *testing.T) {
	newToyTestCase(t).
		withSource(
			`SET x, 10 : INT`,
			`IF (x < 5) :`,
			`WRITE "small"`,
			`END ?`,
			`WRITE "big"`,
			`END`,
		).
		expectOutput("big\n").
		run()
}

func TestToyInputReadsAndCoerces(t *testing.T) {
	newToyTestCase(t).
		withSource(
			`INPUT x INT`,
			`WRITE x`,
		).
		withInput("42\n").
		expectOutput("42\n").
		run()
}

func TestToyRuntimeDivisionByZeroHalts(t *testing.T) {
	newToyTestCase(t).
		withSource(
			`SET z, 0 : INT`,
			`SET x, (1 / z) : INT`,
			`WRITE x`,
		).
		expectErrorKind(ErrArith).
		run()
}

func TestToyInclude(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.txt")
	mainPath := filepath.Join(dir, "main.txt")
	binPath := filepath.Join(dir, "main.bin")

	require.NoError(t, os.WriteFile(libPath, []byte(
		"SET shared, 9 : INT\n",
	), 0o644))
	require.NoError(t, os.WriteFile(mainPath, []byte(
		"%include% lib.txt\n"+
			"WRITE shared\n",
	), 0o644))

	require.NoError(t, Pack(mainPath, binPath, "UTF-8"))

	var out bytes.Buffer
	require.NoError(t, Execute(binPath, "UTF-8", WithOutput(&out)))
	require.Equal(t, "9\n", out.String())
}

// TestToyIncludeProcedureCall exercises a CALL whose descriptor only
// exists in an included context: no local DEFINE, so the procedure must
// be resolved purely through loader.go's imported-procedure aliasing,
// and RET must find its return frame across the context switch.
func TestToyIncludeProcedureCall(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.txt")
	mainPath := filepath.Join(dir, "main.txt")
	binPath := filepath.Join(dir, "main.bin")

	require.NoError(t, os.WriteFile(libPath, []byte(
		"DEFINE greet\n"+
			`WRITE "hi"`+"\n"+
			"END\n",
	), 0o644))
	require.NoError(t, os.WriteFile(mainPath, []byte(
		"%include% lib.txt\n"+
			"CALL greet\n",
	), 0o644))

	require.NoError(t, Pack(mainPath, binPath, "UTF-8"))

	var out bytes.Buffer
	require.NoError(t, Execute(binPath, "UTF-8", WithOutput(&out)))
	require.Equal(t, "hi\n", out.String())
}

// TestToyMemLimitCapsCallDepth exercises WithMemLimit against a
// procedure that calls itself unconditionally: without a depth cap this
// would recurse forever, so the limit must trip before the test hangs.
func TestToyMemLimitCapsCallDepth(t *testing.T) {
	newToyTestCase(t).
		withSource(
			`DEFINE loop`,
			`CALL loop`,
			`END`,
			`CALL loop`,
		).
		withMemLimit(8).
		expectErrorKind(ErrStack).
		run()
}
