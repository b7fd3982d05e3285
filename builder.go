package main

import (
	"regexp"
	"strconv"

	"github.com/jcorbin/toylang/internal/fileinput"
)

// includeDescriptor is what the builder needs to know about an included
// module's declared symbols in order to resolve names against it (§4.3's
// "%include% is evaluated at compile time... stores its data-segment
// descriptor"). It is deliberately narrow: just enough for name lookup,
// independent of whatever storage module.go eventually gives the full
// on-disk data segment.
type includeDescriptor struct {
	ID      uint32
	Path    string
	VarIDs  map[string]uint32
	ProcIDs map[string]uint32
}

// includeLoader resolves an %include% path to its descriptor, compiling
// or loading it as needed. The builder depends on this narrow interface
// rather than the concrete loader/packer so it can be unit tested without
// exercising the binary format.
type includeLoader interface {
	loadInclude(path string) (*includeDescriptor, error)
}

// refFieldKind names which instruction field a deferred single-name
// reference ultimately patches.
type refFieldKind uint8

const (
	refWriteVar refFieldKind = iota
	refLinkVar
	refCondVar
	refCallProc
	refPushObj
)

type fieldRef struct {
	instrIdx int
	kind     refFieldKind
	name     string
}

type diagSeverity uint8

const (
	diagWarn diagSeverity = iota
	diagFatal
)

type diagnostic struct {
	source   string
	line     int
	kind     ErrorKind
	msg      string
	severity diagSeverity
}

// loc renders the diagnostic's source location the way fileinput.Location
// does (source:line), falling back to a bare line number when the builder
// was never told a source name (e.g. in tests built from literal []string).
func (d diagnostic) loc() string {
	if d.source == "" {
		return strconv.Itoa(d.line)
	}
	return fileinput.Location{Name: d.source, Line: d.line}.String()
}

// builtModule is the builder's full output: everything the post-pass
// (postpass.go) needs to resolve names and everything module.go needs to
// serialize the data and code segments.
type builtModule struct {
	Source string

	Instrs []instruction
	Vars   symbolTable
	Procs  symbolTable

	Includes []*includeDescriptor

	// ExprRefs/CondExprRefs record, per instruction index, the distinct
	// bare variable names found in that instruction's (condition)
	// expression text -- substituted for "@id" at post-pass stage 3.
	ExprRefs     map[int][]string
	CondExprRefs map[int][]string

	FieldRefs []fieldRef

	Diags []diagnostic
}

type bracketKind uint8

const (
	bkDefine bracketKind = iota
	bkIf
	bkElse
)

type bracketFrame struct {
	kind bracketKind
	ip   int
	name string
}

// moduleBuilder implements C4: the line-by-line walk from source text to
// an unresolved instruction stream, per §4.3.
type moduleBuilder struct {
	includes includeLoader
	source   string // fileinput.Location.Name of the file this builder is walking, for diagnostic loc (§7)

	instrs []instruction
	vars   symbolTable
	procs  symbolTable

	lineIndex    map[int]int
	forwardJumps map[int][]int
	stack        []bracketFrame

	exprRefs     map[int][]string
	condExprRefs map[int][]string
	fieldRefs    []fieldRef

	includeDescs []*includeDescriptor

	diags []diagnostic
}

func newModuleBuilder(includes includeLoader, source string) *moduleBuilder {
	return &moduleBuilder{
		includes:     includes,
		source:       source,
		lineIndex:    make(map[int]int),
		forwardJumps: make(map[int][]int),
		exprRefs:     make(map[int][]string),
		condExprRefs: make(map[int][]string),
	}
}

// build consumes the program's source lines (already split, in order) and
// produces an unresolved instruction stream plus the tables the
// post-pass needs.
func (b *moduleBuilder) build(lines []string) *builtModule {
	for i, raw := range lines {
		lineNo := i + 1
		b.flushForwardJumps(lineNo)
		b.lineIndex[lineNo] = len(b.instrs)
		b.emitLine(lineNo, lexLine(raw))
	}
	b.closeDanglingBrackets()

	return &builtModule{
		Source:       b.source,
		Instrs:       b.instrs,
		Vars:         b.vars,
		Procs:        b.procs,
		Includes:     b.includeDescs,
		ExprRefs:     b.exprRefs,
		CondExprRefs: b.condExprRefs,
		FieldRefs:    b.fieldRefs,
		Diags:        b.diags,
	}
}

func (b *moduleBuilder) flushForwardJumps(lineNo int) {
	idxs, ok := b.forwardJumps[lineNo]
	if !ok {
		return
	}
	delete(b.forwardJumps, lineNo)
	for _, idx := range idxs {
		b.instrs[idx].Target = int32(len(b.instrs))
	}
}

func (b *moduleBuilder) emit(in instruction) int {
	idx := len(b.instrs)
	b.instrs = append(b.instrs, in)
	return idx
}

func (b *moduleBuilder) warn(line int, kind ErrorKind, msg string) {
	b.diags = append(b.diags, diagnostic{source: b.source, line: line, kind: kind, msg: msg, severity: diagWarn})
}

func (b *moduleBuilder) emitLine(lineNo int, pl parsedLine) {
	switch pl.Kind {
	case cmdNOP:
		b.emit(instruction{Op: opNOP, sourceLine: lineNo})

	case cmdUnknown:
		b.warn(lineNo, ErrParse, "line matches no command shape: "+pl.raw)
		b.emit(instruction{Op: opNOP, sourceLine: lineNo})

	case cmdSET:
		b.emitSet(lineNo, pl)

	case cmdPUSH:
		idx := b.emit(instruction{Op: opPUSH, sourceLine: lineNo})
		b.fieldRefs = append(b.fieldRefs, fieldRef{instrIdx: idx, kind: refPushObj, name: pl.Name})

	case cmdWRITE:
		b.emitWrite(lineNo, pl.ValueRaw)

	case cmdINPUT:
		id, _ := b.vars.idFor(pl.Name)
		b.emit(instruction{Op: opINPUT, sourceLine: lineNo, VarID: id, DeclType: pl.Type})

	case cmdJUMP:
		b.emitJump(lineNo, pl.Target)

	case cmdDEFINE:
		b.emitDefine(lineNo, pl.Name)

	case cmdRET:
		b.emit(instruction{Op: opRET, sourceLine: lineNo})

	case cmdCALL:
		idx := b.emit(instruction{Op: opCALL, sourceLine: lineNo})
		b.fieldRefs = append(b.fieldRefs, fieldRef{instrIdx: idx, kind: refCallProc, name: pl.Name})

	case cmdIF:
		b.emitIf(lineNo, pl.CondRaw)

	case cmdELSE:
		b.emitElse(lineNo)

	case cmdEND:
		b.emitEnd(lineNo)

	case cmdIFSHORT:
		b.emitIfShort(lineNo, pl)

	case cmdINCLUDE:
		b.emitInclude(lineNo, pl.Path)
	}
}

func (b *moduleBuilder) emitSet(lineNo int, pl parsedLine) {
	id, _ := b.vars.idFor(pl.Name)
	in := instruction{Op: opSET, sourceLine: lineNo, VarID: id, DeclType: pl.Type}

	switch {
	case isParenExpr(pl.ValueRaw):
		in.IsExpr = true
		in.ExprText = unwrapParens(pl.ValueRaw)
		idx := b.emit(in)
		b.registerExprNames(idx, in.ExprText, false)
		return

	case pl.ValueRaw == "TRUE" || pl.ValueRaw == "FALSE":
		in.ImmValue = BoolValue(pl.ValueRaw == "TRUE")
		b.emit(in)
		return

	case isBareIdent(pl.ValueRaw) && !isReserved(pl.ValueRaw):
		in.IsLink = true
		idx := b.emit(in)
		b.fieldRefs = append(b.fieldRefs, fieldRef{instrIdx: idx, kind: refLinkVar, name: pl.ValueRaw})
		return

	default:
		v, err := parseLiteral(pl.ValueRaw, pl.Type)
		if err != nil {
			b.warn(lineNo, ErrParse, err.Error())
		}
		in.ImmValue = v
		b.emit(in)
	}
}

func (b *moduleBuilder) emitWrite(lineNo int, raw string) {
	if isQuotedString(raw) {
		b.emit(instruction{Op: opWRITE, sourceLine: lineNo, WriteLiteral: unquote(raw)})
		return
	}
	idx := b.emit(instruction{Op: opWRITE, sourceLine: lineNo, WriteIsVar: true})
	b.fieldRefs = append(b.fieldRefs, fieldRef{instrIdx: idx, kind: refWriteVar, name: raw})
}

func (b *moduleBuilder) emitJump(lineNo, target int) {
	idx := b.emit(instruction{Op: opJUMP, sourceLine: lineNo})
	if start, ok := b.lineIndex[target]; ok {
		b.instrs[idx].Target = int32(start)
		return
	}
	b.instrs[idx].Target = -1
	b.forwardJumps[target] = append(b.forwardJumps[target], idx)
}

func (b *moduleBuilder) emitDefine(lineNo int, name string) {
	id, _ := b.procs.idFor(name)
	ip := b.emit(instruction{Op: opDEFINE, sourceLine: lineNo, ProcID: id, BodyStart: int32(len(b.instrs) + 2)})
	b.emit(instruction{Op: opJUMP, sourceLine: lineNo, Target: -1}) // patched by the matching END
	b.stack = append(b.stack, bracketFrame{kind: bkDefine, ip: ip, name: name})
}

func (b *moduleBuilder) emitIf(lineNo int, condRaw string) {
	in := instruction{Op: opIF, sourceLine: lineNo, Target: -1}
	if isParenExpr(condRaw) {
		in.CondIsExpr = true
		in.CondExprText = unwrapParens(condRaw)
		idx := b.emit(in)
		b.registerExprNames(idx, in.CondExprText, true)
		b.stack = append(b.stack, bracketFrame{kind: bkIf, ip: idx})
		return
	}
	idx := b.emit(in)
	b.fieldRefs = append(b.fieldRefs, fieldRef{instrIdx: idx, kind: refCondVar, name: condRaw})
	b.stack = append(b.stack, bracketFrame{kind: bkIf, ip: idx})
}

func (b *moduleBuilder) emitElse(lineNo int) {
	idx := b.emit(instruction{Op: opJUMP, sourceLine: lineNo, Target: -1})
	b.stack = append(b.stack, bracketFrame{kind: bkElse, ip: idx})
}

func (b *moduleBuilder) emitEnd(lineNo int) {
	if len(b.stack) == 0 {
		b.emit(instruction{Op: opEOF, sourceLine: lineNo})
		return
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]

	switch top.kind {
	case bkIf:
		b.instrs[top.ip].Target = int32(len(b.instrs))

	case bkElse:
		// top.ip is the ELSE's own JUMP; the frame below it is the IF it closes.
		if len(b.stack) == 0 {
			b.warn(lineNo, ErrParse, "END ? with no matching IF")
			break
		}
		ifFrame := b.stack[len(b.stack)-1]
		b.stack = b.stack[:len(b.stack)-1]
		// the IF's false branch must land just past the ELSE's own
		// unconditional JUMP, at the first instruction of the else body --
		// not on the JUMP itself, which would skip the else body on every
		// path through the bracket.
		b.instrs[ifFrame.ip].Target = int32(top.ip + 1)
		b.instrs[top.ip].Target = int32(len(b.instrs))

	case bkDefine:
		b.emit(instruction{Op: opRET, sourceLine: lineNo})
		b.instrs[top.ip+1].Target = int32(len(b.instrs))
	}
}

// emitIfShort desugars the inline ternary "IF cond: then ? else" into the
// four-instruction IF / then / JUMP / else sequence (§4.3); the closing
// emitEnd only patches the IF and JUMP targets and emits no instruction.
func (b *moduleBuilder) emitIfShort(lineNo int, pl parsedLine) {
	b.emitIf(lineNo, pl.CondRaw)
	b.emitLine(lineNo, lexLine(pl.Then))
	b.emitElse(lineNo)
	b.emitLine(lineNo, lexLine(pl.Else))
	b.emitEnd(lineNo)
}

func (b *moduleBuilder) emitInclude(lineNo int, path string) {
	idx := uint32(len(b.includeDescs))
	desc, err := b.includes.loadInclude(path)
	if err != nil {
		b.warn(lineNo, ErrIO, err.Error())
		b.emit(instruction{Op: opINCLUDE, sourceLine: lineNo, IncludeIndex: idx, IncludePath: path})
		b.includeDescs = append(b.includeDescs, &includeDescriptor{ID: idx, Path: path})
		return
	}
	desc.ID = idx
	b.includeDescs = append(b.includeDescs, desc)
	b.emit(instruction{Op: opINCLUDE, sourceLine: lineNo, IncludeIndex: idx, IncludePath: path})
}

func (b *moduleBuilder) closeDanglingBrackets() {
	for len(b.stack) > 0 {
		b.emitEnd(0)
	}
}

var identInExprRe = regexp.MustCompile(identRe)

// registerExprNames scans an expression's raw text for bare identifiers
// that are not reserved words or intrinsic names and records them for
// post-pass substitution (§4.4 stage 3). isCondition selects whether they
// land in condExprRefs (IF) or exprRefs (SET).
func (b *moduleBuilder) registerExprNames(instrIdx int, text string, isCondition bool) {
	seen := make(map[string]bool)
	var names []string
	for _, name := range identInExprRe.FindAllString(text, -1) {
		if isReserved(name) || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return
	}
	if isCondition {
		b.condExprRefs[instrIdx] = names
	} else {
		b.exprRefs[instrIdx] = names
	}
}

// parseLiteral parses a SET immediate operand per its declared type.
func parseLiteral(raw string, t ValueKind) (Value, error) {
	switch t {
	case KindBool:
		switch raw {
		case "TRUE":
			return BoolValue(true), nil
		case "FALSE":
			return BoolValue(false), nil
		}
		return Value{}, parseError{msg: "invalid BOOL literal " + raw}

	case KindInt:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return Value{}, parseError{msg: "invalid INT literal " + raw}
		}
		return IntValue(int32(n)), nil

	case KindFloat:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return Value{}, parseError{msg: "invalid FLOAT literal " + raw}
		}
		return FloatValue(float32(f)), nil

	case KindString:
		if isQuotedString(raw) {
			return StringValue(unquote(raw)), nil
		}
		return StringValue(raw), nil
	}
	return Value{}, parseError{msg: "unknown type for literal " + raw}
}
