package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleRoundTripSimpleProgram(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"SET x, 5 : INT",
		"WRITE x",
		`WRITE "done"`,
	})

	data, err := packToBytes(rm)
	require.NoError(t, err)

	d, err := decodeModule(data)
	require.NoError(t, err)

	require.Len(t, d.Instrs, 4) // SET, WRITE, WRITE, EOF
	require.Equal(t, opSET, d.Instrs[0].Op)
	require.Equal(t, IntValue(5), d.Instrs[0].ImmValue)
	require.Equal(t, opWRITE, d.Instrs[1].Op)
	require.True(t, d.Instrs[1].WriteIsVar)
	require.Equal(t, opWRITE, d.Instrs[2].Op)
	require.False(t, d.Instrs[2].WriteIsVar)
	require.Equal(t, "done", d.Instrs[2].WriteLiteral)
	require.Equal(t, opEOF, d.Instrs[3].Op)

	require.Len(t, d.Data, 1)
	require.Equal(t, "x", d.Data[0].Name)
	require.False(t, d.Data[0].IsProcedure)
}

func TestModuleRoundTripExpressionAndLink(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"SET x, 5 : INT",
		"SET y, x : INT",
		"SET z, (x + y) : INT",
	})
	data, err := packToBytes(rm)
	require.NoError(t, err)
	d, err := decodeModule(data)
	require.NoError(t, err)

	require.True(t, d.Instrs[1].IsLink)
	require.Equal(t, rm.Instrs[1].LinkVarID, d.Instrs[1].LinkVarID)

	require.True(t, d.Instrs[2].IsExpr)
	require.Equal(t, rm.Instrs[2].ExprText, d.Instrs[2].ExprText)
}

func TestModuleRoundTripProcedureAndCall(t *testing.T) {
	rm := buildAndResolve(t, nil, []string{
		"DEFINE noop",
		"END",
		"CALL noop",
	})
	data, err := packToBytes(rm)
	require.NoError(t, err)
	d, err := decodeModule(data)
	require.NoError(t, err)

	require.Equal(t, opDEFINE, d.Instrs[0].Op)
	require.Equal(t, opJUMP, d.Instrs[1].Op)
	require.Equal(t, opRET, d.Instrs[2].Op)
	require.Equal(t, opCALL, d.Instrs[3].Op)
	require.Equal(t, d.Instrs[0].ProcID, d.Instrs[3].CallProcID)

	var proc *dataEntry
	for i := range d.Data {
		if d.Data[i].IsProcedure {
			proc = &d.Data[i]
		}
	}
	require.NotNil(t, proc)
	require.Equal(t, "noop", proc.Name)
}

func TestModuleRoundTripIncludeIntersection(t *testing.T) {
	includes := stubIncludes{
		"lib.txt": {VarIDs: map[string]uint32{"shared": 9}, ProcIDs: map[string]uint32{}},
	}
	rm := buildAndResolve(t, includes, []string{
		"%include% lib.txt",
		"SET shared, 1 : INT",
	})
	data, err := packToBytes(rm)
	require.NoError(t, err)
	d, err := decodeModule(data)
	require.NoError(t, err)

	var entry *dataEntry
	for i := range d.Data {
		if d.Data[i].Name == "shared" {
			entry = &d.Data[i]
		}
	}
	require.NotNil(t, entry)
	require.True(t, entry.MeetsInIncludes)
	require.Len(t, entry.Intersections, 1)
	require.Equal(t, uint32(9), entry.Intersections[0].ImportedVarID)
}

func TestModuleDecodeRejectsMissingSentinel(t *testing.T) {
	_, err := decodeModule([]byte{byte(opEOF) << 4})
	require.Error(t, err)
	require.Equal(t, ErrIO, Kind(err))
}
