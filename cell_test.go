package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEngine map[uint32]fakeVars

func (f fakeEngine) readVar(ctxID, varID uint32) (Value, error) {
	ctx, ok := f[ctxID]
	if !ok {
		return Value{}, runtimeUndefError{what: "context"}
	}
	return ctx.readVar(ctxID, varID)
}

func TestCellImmediateCoercesOnRead(t *testing.T) {
	c := NewImmediateCell(KindBool, IntValue(1))
	v, err := c.Read(fakeEngine{})
	require.NoError(t, err)
	require.Equal(t, BoolValue(true), v)
}

func TestCellLinkedReadsTargetContext(t *testing.T) {
	eng := fakeEngine{7: fakeVars{3: IntValue(42)}}
	c := NewLinkedCell(KindInt, 7, 3)
	v, err := c.Read(eng)
	require.NoError(t, err)
	require.Equal(t, IntValue(42), v)
}

func TestCellExpressionMemoizes(t *testing.T) {
	node, err := compileExpr("@1 + 1")
	require.NoError(t, err)
	eng := fakeEngine{5: fakeVars{1: IntValue(10)}}
	c := NewExpressionCell(KindInt, 5, node)

	v1, err := c.Read(eng)
	require.NoError(t, err)
	require.Equal(t, IntValue(11), v1)

	eng[5][1] = IntValue(999)
	v2, err := c.Read(eng)
	require.NoError(t, err)
	require.Equal(t, v1, v2, "expression cells memoize their first result")
}

func TestCellConditionNeverMemoizes(t *testing.T) {
	node, err := compileExpr("@1")
	require.NoError(t, err)
	eng := fakeEngine{5: fakeVars{1: BoolValue(true)}}
	c := NewConditionCell(5, node)

	v1, err := c.Read(eng)
	require.NoError(t, err)
	require.Equal(t, BoolValue(true), v1)

	eng[5][1] = BoolValue(false)
	v2, err := c.Read(eng)
	require.NoError(t, err)
	require.Equal(t, BoolValue(false), v2, "condition cells must re-evaluate every read")
}

func TestCellExpressionOwnerContextNotCaller(t *testing.T) {
	node, err := compileExpr("@1")
	require.NoError(t, err)
	eng := fakeEngine{
		1: fakeVars{1: IntValue(111)},
		2: fakeVars{1: IntValue(222)},
	}
	c := NewExpressionCell(KindInt, 2, node)
	v, err := c.Read(eng)
	require.NoError(t, err)
	require.Equal(t, IntValue(222), v, "expression must resolve @1 against its owner context, not a caller's")
}

func TestCellSetExpressionClearsMemo(t *testing.T) {
	node1, _ := compileExpr("1")
	node2, _ := compileExpr("2")
	c := NewExpressionCell(KindInt, 0, node1)
	eng := fakeEngine{0: fakeVars{}}
	v1, _ := c.Read(eng)
	require.Equal(t, IntValue(1), v1)
	c.SetExpression(KindInt, 0, node2)
	v2, _ := c.Read(eng)
	require.Equal(t, IntValue(2), v2)
}
