package main

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind tags the variant held by a Value. It also doubles as the
// TYPE of a declared variable (§3, §4.1).
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "BOOL"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// width orders the primitive types for casting purposes: Bool < Int <
// Float < Double. Double only exists as an internal evaluation width; on
// the surface it is indistinguishable from Float.
func (k ValueKind) width() int {
	switch k {
	case KindBool:
		return 0
	case KindInt:
		return 1
	case KindFloat:
		return 2
	default:
		return -1
	}
}

// parseTypeName maps a TYPE token to a ValueKind.
func parseTypeName(s string) (ValueKind, bool) {
	switch s {
	case "BOOL":
		return KindBool, true
	case "INT":
		return KindInt, true
	case "FLOAT":
		return KindFloat, true
	case "STRING":
		return KindString, true
	}
	return 0, false
}

// Value is a tagged union over the four surface types. It is a concrete Go
// struct rather than an interface{}, per the flattening called out in
// DESIGN NOTES §9: every read site must say explicitly which variant it
// wants.
type Value struct {
	Kind ValueKind
	b    bool
	i    int32
	f    float32
	s    string
}

func BoolValue(b bool) Value     { return Value{Kind: KindBool, b: b} }
func IntValue(i int32) Value     { return Value{Kind: KindInt, i: i} }
func FloatValue(f float32) Value { return Value{Kind: KindFloat, f: f} }
func StringValue(s string) Value { return Value{Kind: KindString, s: s} }

func (v Value) Bool() bool     { return v.b }
func (v Value) Int() int32     { return v.i }
func (v Value) Float() float32 { return v.f }
func (v Value) Str() string    { return v.s }

// AsDouble returns v's numeric value widened to float64, the internal
// evaluation width used by intrinsics and exponentiation (§4.2).
func (v Value) AsDouble() (float64, error) {
	switch v.Kind {
	case KindBool:
		return boolFloat(v.b), nil
	case KindInt:
		return float64(v.i), nil
	case KindFloat:
		return float64(v.f), nil
	}
	return 0, typeError{op: "numeric coercion", kind: v.Kind}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'f', -1, 32)
	case KindString:
		return v.s
	}
	return ""
}

// CoerceTo converts v into the declared type t, per §4.2's coercion rules
// and the round-trip invariants in §8: BOOL<->INT preserve 0/1 exactly,
// INT->FLOAT is exact for |n| < 2^24, and FLOAT->INT truncates.
func (v Value) CoerceTo(t ValueKind) (Value, error) {
	if v.Kind == t {
		return v, nil
	}
	if v.Kind == KindString || t == KindString {
		return Value{}, typeError{op: "coerce", kind: v.Kind, want: t}
	}
	switch t {
	case KindBool:
		switch v.Kind {
		case KindInt:
			return BoolValue(v.i != 0), nil
		case KindFloat:
			return BoolValue(v.f != 0), nil
		}
	case KindInt:
		switch v.Kind {
		case KindBool:
			return IntValue(boolInt32(v.b)), nil
		case KindFloat:
			return IntValue(int32(math.Trunc(float64(v.f)))), nil
		}
	case KindFloat:
		switch v.Kind {
		case KindBool:
			return FloatValue(float32(boolFloat(v.b))), nil
		case KindInt:
			return FloatValue(float32(v.i)), nil
		}
	}
	return Value{}, typeError{op: "coerce", kind: v.Kind, want: t}
}

func boolInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// valueFromDouble narrows an internal double-precision evaluation result
// back down to Float (the surface never sees Double directly).
func valueFromDouble(f float64) Value { return FloatValue(float32(f)) }
