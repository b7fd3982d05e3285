package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueCoerceTo(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   Value
		want ValueKind
		out  Value
		err  bool
	}{
		{"bool->int true", BoolValue(true), KindInt, IntValue(1), false},
		{"bool->int false", BoolValue(false), KindInt, IntValue(0), false},
		{"int->bool nonzero", IntValue(7), KindBool, BoolValue(true), false},
		{"int->bool zero", IntValue(0), KindBool, BoolValue(false), false},
		{"int->float exact", IntValue(42), KindFloat, FloatValue(42), false},
		{"float->int truncates", FloatValue(3.9), KindInt, IntValue(3), false},
		{"float->int truncates negative", FloatValue(-3.9), KindInt, IntValue(-3), false},
		{"same kind is a no-op", IntValue(5), KindInt, IntValue(5), false},
		{"string never coerces", StringValue("x"), KindInt, Value{}, true},
		{"nothing coerces to string", IntValue(5), KindString, Value{}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.CoerceTo(tc.want)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.out, got)
		})
	}
}

func TestValueString(t *testing.T) {
	require.Equal(t, "TRUE", BoolValue(true).String())
	require.Equal(t, "FALSE", BoolValue(false).String())
	require.Equal(t, "-7", IntValue(-7).String())
	require.Equal(t, "1.5", FloatValue(1.5).String())
	require.Equal(t, "hi", StringValue("hi").String())
}

func TestValueKindWidthOrdering(t *testing.T) {
	require.Less(t, KindBool.width(), KindInt.width())
	require.Less(t, KindInt.width(), KindFloat.width())
}
