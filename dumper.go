package main

import (
	"fmt"
	"strings"

	"github.com/jcorbin/toylang/internal/runeio"
)

// dumpInstruction renders one instruction for --trace, escaping any
// non-printable bytes in WRITE literals with runeio's caret notation so
// a traced control character (e.g. a literal "\x07") shows up as "^G"
// rather than corrupting the terminal -- adapted from gothird's
// dumper.go, which faces the same problem rendering VM memory cells.
func dumpInstruction(ctx *Context, in *instruction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v", in.Op)
	switch in.Op {
	case opSET:
		fmt.Fprintf(&b, " @%d:%v", in.VarID, in.DeclType)
		switch {
		case in.IsExpr:
			fmt.Fprintf(&b, " = (%s)", in.ExprText)
		case in.IsLink:
			fmt.Fprintf(&b, " -> @%d", in.LinkVarID)
		default:
			fmt.Fprintf(&b, " = %v", in.ImmValue)
		}
	case opWRITE:
		if in.WriteIsVar {
			fmt.Fprintf(&b, " @%d", in.WriteVarID)
		} else {
			fmt.Fprintf(&b, " %q", escapeForTrace(in.WriteLiteral))
		}
	case opIF:
		if in.CondIsExpr {
			fmt.Fprintf(&b, " (%s) else=%d", in.CondExprText, in.Target)
		} else {
			fmt.Fprintf(&b, " @%d else=%d", in.CondVarID, in.Target)
		}
	case opJUMP:
		fmt.Fprintf(&b, " %d", in.Target)
	case opCALL:
		fmt.Fprintf(&b, " proc#%d", in.CallProcID)
	case opDEFINE:
		fmt.Fprintf(&b, " proc#%d start=%d", in.ProcID, in.BodyStart)
	case opINCLUDE:
		fmt.Fprintf(&b, " %q", in.IncludePath)
	}
	return b.String()
}

func escapeForTrace(s string) string {
	var b strings.Builder
	for _, r := range s {
		if caret := runeio.CaretForm(r); caret != "" {
			b.WriteString(caret)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
