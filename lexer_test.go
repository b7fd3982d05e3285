package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexLineShapes(t *testing.T) {
	for _, tc := range []struct {
		line string
		kind cmdKind
	}{
		{"", cmdNOP},
		{"# just a comment", cmdNOP},
		{"SET x, 5 : INT", cmdSET},
		{"SET x, (1 + 2) : INT", cmdSET},
		{"PUSH x", cmdPUSH},
		{`WRITE "hello"`, cmdWRITE},
		{"WRITE x", cmdWRITE},
		{"INPUT x INT", cmdINPUT},
		{"JUMP 10", cmdJUMP},
		{"DEFINE fact", cmdDEFINE},
		{"RET", cmdRET},
		{"CALL fact", cmdCALL},
		{"END", cmdEND},
		{"END ?", cmdELSE},
		{"IF (x < 1) :", cmdIF},
		{"IF (x < 1) : WRITE x ? WRITE y", cmdIFSHORT},
		{"%include% lib.txt", cmdINCLUDE},
		{"not a real command", cmdUnknown},
	} {
		t.Run(tc.line, func(t *testing.T) {
			pl := lexLine(tc.line)
			require.Equal(t, tc.kind, pl.Kind)
		})
	}
}

func TestLexLineIfShortPriorityOverIf(t *testing.T) {
	// IF-SHORT must be tried before plain IF, since a plain IF's pattern
	// is a prefix of IF-SHORT's.
	pl := lexLine("IF (x) : WRITE x ? WRITE y")
	require.Equal(t, cmdIFSHORT, pl.Kind)
	require.Equal(t, "WRITE x", pl.Then)
	require.Equal(t, "WRITE y", pl.Else)
}

func TestLexLineStripsTrailingComment(t *testing.T) {
	pl := lexLine("SET x, 5 : INT  # note")
	require.Equal(t, cmdSET, pl.Kind)
	require.Equal(t, "x", pl.Name)
}

func TestIsReserved(t *testing.T) {
	require.True(t, isReserved("TRUE"))
	require.True(t, isReserved("pi"))
	require.True(t, isReserved("sqrt"))
	require.False(t, isReserved("counter"))
}

func TestUnquoteExpandsControlEscapes(t *testing.T) {
	require.Equal(t, "plain", unquote(`"plain"`))
	require.Equal(t, "a\nb", unquote(`"a<NL>b"`))
	require.Equal(t, "bell\ab", unquote(`"bell^Gb"`))
	require.Equal(t, "<UNKNOWN>", unquote(`"<UNKNOWN>"`))
}
