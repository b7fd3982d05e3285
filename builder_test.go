package main

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubIncludes resolves %include% paths against a fixed table, letting
// builder tests exercise include-name resolution without touching the
// loader or the binary format.
type stubIncludes map[string]*includeDescriptor

func (s stubIncludes) loadInclude(path string) (*includeDescriptor, error) {
	if d, ok := s[path]; ok {
		return d, nil
	}
	return nil, ioError{path: path, err: parseError{msg: "no such include"}}
}

func buildAndResolve(t *testing.T, includes includeLoader, lines []string) *resolvedModule {
	t.Helper()
	b := newModuleBuilder(includes, "")
	built := b.build(lines)
	return runPostPass(built)
}

func TestBuilderSetLiteralAndWrite(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"SET x, 5 : INT",
		"WRITE x",
	})
	require.Len(t, rm.Instrs, 2)
	require.Equal(t, opSET, rm.Instrs[0].Op)
	require.Equal(t, IntValue(5), rm.Instrs[0].ImmValue)
	require.Equal(t, opWRITE, rm.Instrs[1].Op)
	require.True(t, rm.Instrs[1].WriteIsVar)
	require.Equal(t, rm.Instrs[0].VarID, rm.Instrs[1].WriteVarID)
}

func TestBuilderBracketStackDefine(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"DEFINE double",
		"SET x, (x * 2) : INT",
		"END",
		"CALL double",
	})
	// DEFINE, JUMP-over-body, SET, RET, CALL
	require.Len(t, rm.Instrs, 5)
	require.Equal(t, opDEFINE, rm.Instrs[0].Op)
	require.Equal(t, opJUMP, rm.Instrs[1].Op)
	require.Equal(t, int32(4), rm.Instrs[1].Target, "JUMP must skip past RET to the instruction after the body")
	require.Equal(t, opRET, rm.Instrs[3].Op)
	require.Equal(t, opCALL, rm.Instrs[4].Op)
	require.Equal(t, rm.Instrs[0].ProcID, rm.Instrs[4].CallProcID)
}

func TestBuilderIfElseEndTargets(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"IF (x < 1) :",
		"WRITE x",
		"END ?",
		"WRITE y",
		"END",
	})
	require.Equal(t, opIF, rm.Instrs[0].Op)
	require.Equal(t, opJUMP, rm.Instrs[2].Op)
	// IF's else-target must land just past the ELSE branch's own JUMP,
	// at the first instruction of the else body.
	require.Equal(t, int32(3), rm.Instrs[0].Target)
	// the ELSE's JUMP must land past the else branch, at EOF.
	require.Equal(t, int32(4), rm.Instrs[2].Target)
}

func TestBuilderIfShortDesugars(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		`IF (x < 1) : WRITE x ? WRITE y`,
	})
	// IF, WRITE x, JUMP(else), WRITE y -- no trailing EOF is emitted
	require.Equal(t, opIF, rm.Instrs[0].Op)
	require.Equal(t, opWRITE, rm.Instrs[1].Op)
	require.Equal(t, opJUMP, rm.Instrs[2].Op)
	require.Equal(t, opWRITE, rm.Instrs[3].Op)
}

func TestBuilderForwardJump(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"JUMP 3",
		"WRITE x",
		"WRITE y",
	})
	require.Equal(t, opJUMP, rm.Instrs[0].Op)
	require.Equal(t, int32(2), rm.Instrs[0].Target, "line 3 starts at instruction index 2")
}

func TestBuilderUnresolvedNameGetsDiagnostic(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"WRITE nonexistent",
	})
	require.Equal(t, uint32(0), rm.Instrs[0].WriteVarID)
	require.NotEmpty(t, rm.Diags)
	require.Equal(t, ErrUnresolved, rm.Diags[0].kind)
}

func TestBuilderIncludeIntersection(t *testing.T) {
	includes := stubIncludes{
		"lib.txt": {VarIDs: map[string]uint32{"shared": 9}, ProcIDs: map[string]uint32{}},
	}
	rm := buildAndResolve(t, includes, []string{
		"%include% lib.txt",
		"SET shared, 1 : INT",
	})
	id := rm.Vars.lookup("shared")
	require.NotZero(t, id)
	meta := rm.VarMeta[id]
	require.NotNil(t, meta)
	require.True(t, meta.MeetsInIncludes)
	require.Len(t, meta.Intersections, 1)
	require.Equal(t, uint32(9), meta.Intersections[0].ImportedVarID)
}

func TestBuilderIncludeImportedNameResolves(t *testing.T) {
	includes := stubIncludes{
		"lib.txt": {VarIDs: map[string]uint32{"helper": 4}, ProcIDs: map[string]uint32{}},
	}
	rm := buildAndResolve(t, includes, []string{
		"%include% lib.txt",
		"WRITE helper",
	})
	id := rm.Vars.lookup("helper")
	require.NotZero(t, id)
	require.Equal(t, id, rm.Instrs[1].WriteVarID)
	meta := rm.VarMeta[id]
	require.NotNil(t, meta)
	require.True(t, meta.Imported)
	require.Equal(t, uint32(4), meta.ImportedID)
}

func TestBuilderExpressionNamesFinalizeToAtID(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"SET count, 0 : INT",
		"SET total, (count + 1) : INT",
	})
	countID := rm.Vars.lookup("count")
	require.NotZero(t, countID)
	require.Contains(t, rm.Instrs[1].ExprText, "@"+strconv.FormatUint(uint64(countID), 10))
}
