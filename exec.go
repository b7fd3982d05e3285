package main

import (
	"strconv"
	"strings"
)

// switchTo moves the engine's current context to id, performing the
// intersection writeback protocol of §4.6 first. The direction of the
// copy depends on which side is the includer: if to is an include of
// from, values flow from -> to (entering the included context, e.g. via
// CALL or the initial INCLUDE execution); if from is an include of to,
// values flow to <- from (returning to the includer, e.g. via RET).
func (e *Engine) switchTo(toID uint32) {
	from := e.context(e.current)
	to := e.context(toID)
	if from != nil && to != nil && from.id != to.id {
		if incIdx, ok := from.includeIdxOf[to.id]; ok {
			// from is the includer of to: entering the include, values
			// flow from -> to.
			writebackIntersections(from, to, incIdx, true, e)
		} else if incIdx, ok := to.includeIdxOf[from.id]; ok {
			// to is the includer of from: returning to the includer,
			// values flow to <- from.
			writebackIntersections(to, from, incIdx, false, e)
		}
	}
	e.current = toID
}

// writebackIntersections copies intersection variables between an
// includer and its includee for include index incIdx (§4.6). The
// intersection vector always lives on the includer's side regardless of
// copy direction, so includer/includee name the module roles, and
// entering selects which way the value actually moves: true copies
// includer -> includee, false copies includee -> includer.
func writebackIntersections(includer, includee *Context, incIdx uint32, entering bool, e *Engine) {
	for varID, meta := range includer.varMeta {
		if meta == nil || !meta.MeetsInIncludes {
			continue
		}
		for _, pair := range meta.Intersections {
			if pair.IncludeID != incIdx {
				continue
			}
			srcCtxID, srcVar := includer.id, varID
			dstCtx, dstVar := includee, pair.ImportedVarID
			if !entering {
				srcCtxID, srcVar = includee.id, pair.ImportedVarID
				dstCtx, dstVar = includer, varID
			}
			v, err := e.readVar(srcCtxID, srcVar)
			if err != nil {
				continue
			}
			if cell := dstCtx.vars[dstVar]; cell != nil {
				cell.SetImmediate(cell.DeclaredType, v)
			} else {
				dstCtx.vars[dstVar] = NewImmediateCell(v.Kind, v)
			}
		}
	}
}

// run drives the top-level context to its EOF, per §5: single-threaded,
// one instruction per step, halting only on EOF of the outermost
// context.
func (e *Engine) run(topID uint32) error {
	for {
		top := e.context(topID)
		if top == nil || top.eof {
			return nil
		}
		if err := e.step(); err != nil {
			return err
		}
	}
}

// step executes exactly one instruction in the current context, per the
// semantics enumerated in §4.6.
func (e *Engine) step() error {
	ctx := e.context(e.current)
	if ctx == nil {
		return runtimeUndefError{what: "current context"}
	}
	if ctx.ip < 0 || ctx.ip >= len(ctx.code) {
		ctx.eof = true
		return nil
	}
	in := &ctx.code[ctx.ip]
	e.logf(in.Op.String(), "ctx=%d ip=%d %s", ctx.id, ctx.ip, dumpInstruction(ctx, in))

	switch in.Op {
	case opNOP:
		ctx.ip++

	case opSET:
		execSet(ctx, in)
		ctx.ip++

	case opPUSH:
		execPush(ctx, in)
		ctx.ip++

	case opWRITE:
		if err := e.execWrite(ctx, in); err != nil {
			return err
		}
		ctx.ip++

	case opINPUT:
		if err := e.execInput(ctx, in); err != nil {
			return err
		}
		ctx.ip++

	case opJUMP:
		ctx.ip = int(in.Target)

	case opIF:
		v, err := readCond(e, ctx, in)
		if err != nil {
			return err
		}
		if v {
			ctx.ip++
		} else {
			ctx.ip = int(in.Target)
		}

	case opDEFINE:
		ctx.procs[in.ProcID] = &ProcDescriptor{OwningContext: ctx.id, ProcID: in.ProcID, CodeStart: int(in.BodyStart)}
		ctx.ip++

	case opCALL:
		if err := e.execCall(ctx, in); err != nil {
			return err
		}

	case opRET:
		if err := e.execRet(ctx); err != nil {
			return err
		}

	case opINCLUDE:
		// the included module was already loaded and run eagerly while
		// this context was being built (loader.go's loadIncludes); by
		// the time ip reaches here there is nothing left to do.
		ctx.ip++

	case opEOF:
		ctx.eof = true

	default:
		ctx.ip++
	}
	return nil
}

// execSet implements §4.6's SET semantics: update the cell in place if
// it already exists, else create it.
func execSet(ctx *Context, in *instruction) {
	cell := ctx.vars[in.VarID]
	switch {
	case in.IsExpr:
		node, err := compileExpr(in.ExprText)
		if err != nil {
			if cell == nil {
				ctx.vars[in.VarID] = NewExpressionCell(in.DeclType, ctx.id, &ExprNode{Kind: nodeConst, Const: BoolValue(false)})
			}
			return
		}
		if cell != nil {
			cell.SetExpression(in.DeclType, ctx.id, node)
		} else {
			ctx.vars[in.VarID] = NewExpressionCell(in.DeclType, ctx.id, node)
		}

	case in.IsLink:
		if cell != nil {
			cell.SetLinked(in.DeclType, ctx.id, in.LinkVarID)
		} else {
			ctx.vars[in.VarID] = NewLinkedCell(in.DeclType, ctx.id, in.LinkVarID)
		}

	default:
		if cell != nil {
			cell.SetImmediate(in.DeclType, in.ImmValue)
		} else {
			ctx.vars[in.VarID] = NewImmediateCell(in.DeclType, in.ImmValue)
		}
	}
}

// execPush implements §4.6's PUSH: drop the targeted cell or descriptor
// entirely, per §3's "a variable cell persists... OR until a PUSH opcode
// targeting it executes."
func execPush(ctx *Context, in *instruction) {
	if in.PushKind == pushProc {
		delete(ctx.procs, in.ObjID)
		return
	}
	delete(ctx.vars, in.ObjID)
}

func (e *Engine) execWrite(ctx *Context, in *instruction) error {
	if !in.WriteIsVar {
		e.writeString(in.WriteLiteral)
		e.writeRune('\n')
		return nil
	}
	v, err := e.readVar(ctx.id, in.WriteVarID)
	if err != nil {
		return err
	}
	e.writeString(v.String())
	e.writeRune('\n')
	return nil
}

// execInput implements §4.6's INPUT: read one line, parse per type
// (accepting either "." or "," as the floating separator), then apply
// SET semantics.
func (e *Engine) execInput(ctx *Context, in *instruction) error {
	line, err := e.readLine()
	if err != nil {
		return ioError{err: err}
	}
	v, perr := parseInputValue(strings.TrimSpace(line), in.DeclType)
	if perr != nil {
		return arithError{msg: perr.Error()}
	}
	fake := instruction{Op: opSET, VarID: in.VarID, DeclType: in.DeclType, ImmValue: v}
	execSet(ctx, &fake)
	return nil
}

func parseInputValue(s string, t ValueKind) (Value, error) {
	switch t {
	case KindBool:
		return parseLiteral(s, t)
	case KindInt:
		return parseLiteral(s, t)
	case KindFloat:
		return parseLiteral(strings.Replace(s, ",", ".", 1), t)
	case KindString:
		return StringValue(s), nil
	}
	return Value{}, parseError{msg: "unknown INPUT type"}
}

func readCond(e *Engine, ctx *Context, in *instruction) (bool, error) {
	var cell Cell
	if in.CondIsExpr {
		node, err := compileExpr(in.CondExprText)
		if err != nil {
			return false, err
		}
		cell = Cell{DeclaredType: KindBool, Kind: CellCondition, ownerContext: ctx.id, expr: node}
	} else {
		v, err := e.readVar(ctx.id, in.CondVarID)
		if err != nil {
			return false, err
		}
		b, err := v.CoerceTo(KindBool)
		if err != nil {
			return false, err
		}
		return b.Bool(), nil
	}
	v, err := cell.Read(e)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

// execCall implements §4.6's CALL: resolve the descriptor, switch
// context if it lives elsewhere, push a return frame, jump to its body.
// The frame is pushed onto the callee's own return stack (after any
// switch), since RET later pops from whatever context is current --
// pushing it onto the caller's stack would leave RET unable to find it
// once execution has moved to a different context.
func (e *Engine) execCall(ctx *Context, in *instruction) error {
	desc := ctx.procs[in.CallProcID]
	if desc == nil {
		return runtimeUndefError{what: "procedure @" + strconv.FormatUint(uint64(in.CallProcID), 10)}
	}
	frame := returnFrame{ctxID: ctx.id, ip: ctx.ip + 1}
	if desc.OwningContext != ctx.id {
		e.switchTo(desc.OwningContext)
	}
	target := e.context(desc.OwningContext)
	if err := e.callDepth.Check(uint(len(target.returnStack)+1), "CALL"); err != nil {
		return stackError{msg: err.Error()}
	}
	target.returnStack = append(target.returnStack, frame)
	target.ip = desc.CodeStart
	return nil
}

// execRet implements §4.6's RET: pop the return stack, switch back if
// needed, resume at the saved ip. An empty return stack is ERR-STACK.
func (e *Engine) execRet(ctx *Context) error {
	n := len(ctx.returnStack)
	if n == 0 {
		return stackError{msg: "RET with empty return stack"}
	}
	frame := ctx.returnStack[n-1]
	ctx.returnStack = ctx.returnStack[:n-1]
	if frame.ctxID != ctx.id {
		e.switchTo(frame.ctxID)
	}
	e.context(frame.ctxID).ip = frame.ip
	return nil
}

// runInclude switches into the included context, runs it to its own
// EOF, then switches back -- the load-time execution §4.6 calls for. It
// is invoked by loader.go while a context is being built, not by step's
// normal ip traversal (see opINCLUDE's case above).
func (e *Engine) runInclude(callerID, incCtxID uint32) error {
	e.switchTo(incCtxID)
	if err := e.run(incCtxID); err != nil {
		return err
	}
	e.switchTo(callerID)
	return nil
}
