package main

import (
	"strconv"
	"strings"
)

// intersectionPair is one entry of a variable's include-intersection
// vector (§4.4 stage 1): the include this module shares the variable
// with, and that include's id for it.
type intersectionPair struct {
	IncludeID     uint32
	ImportedVarID uint32
}

// varMeta carries the data-segment preamble bits a locally-declared or
// imported variable accumulates during the post-pass (§4.4's "preamble
// byte: bit0 is-procedure; bit1 meets-in-includes; bit2 imported").
type varMeta struct {
	MeetsInIncludes bool
	Intersections   []intersectionPair

	Imported      bool
	ImportInclude uint32
	ImportedID    uint32
}

type procMeta struct {
	Imported      bool
	ImportInclude uint32
	ImportedID    uint32
}

// resolvedModule is the post-pass's output: a fully patched instruction
// stream plus the per-symbol metadata module.go needs to write the data
// segment.
type resolvedModule struct {
	Source string

	Instrs []instruction
	Vars   symbolTable
	Procs  symbolTable

	VarMeta  map[uint32]*varMeta
	ProcMeta map[uint32]*procMeta

	Includes []*includeDescriptor

	Diags []diagnostic
}

// runPostPass executes the three sequential stages of §4.4 over a
// builder's raw output.
func runPostPass(m *builtModule) *resolvedModule {
	r := &resolvedModule{
		Source:   m.Source,
		Instrs:   m.Instrs,
		Vars:     m.Vars,
		Procs:    m.Procs,
		Includes: m.Includes,
		VarMeta:  make(map[uint32]*varMeta),
		ProcMeta: make(map[uint32]*procMeta),
		Diags:    append([]diagnostic{}, m.Diags...),
	}

	stageIntersection(r)
	stageResolveFieldRefs(r, m.FieldRefs)
	stageFinalizeExpressions(r, m)

	return r
}

// stageIntersection implements §4.4 step 1: every locally-declared
// variable whose name also appears in some include's symbol table is
// marked meets-in-includes and gets an intersection vector. This vector
// is what exec.go's context-switch writeback iterates (§4.6), so it must
// be computed once here rather than recomputed per switch.
func stageIntersection(r *resolvedModule) {
	for _, name := range r.Vars.names {
		id := r.Vars.lookup(name)
		var pairs []intersectionPair
		for _, inc := range r.Includes {
			if inc == nil {
				continue
			}
			if impID, ok := inc.VarIDs[name]; ok {
				pairs = append(pairs, intersectionPair{IncludeID: inc.ID, ImportedVarID: impID})
			}
		}
		if len(pairs) > 0 {
			r.VarMeta[id] = &varMeta{MeetsInIncludes: true, Intersections: pairs}
		}
	}
}

// resolveVarName implements the local-then-include lookup shared by
// stage 2 and stage 3: a name known locally (was ever a SET/INPUT
// target) resolves to its existing id; otherwise the includes are
// searched in declaration order and, on the first hit, a local id is
// synthesized for the imported symbol so that later references to the
// same name reuse it.
func resolveVarName(r *resolvedModule, name string) (id uint32, found bool) {
	if id := r.Vars.lookup(name); id != 0 {
		return id, true
	}
	for _, inc := range r.Includes {
		if inc == nil {
			continue
		}
		if impID, ok := inc.VarIDs[name]; ok {
			localID, isNew := r.Vars.idFor(name)
			if isNew {
				r.VarMeta[localID] = &varMeta{Imported: true, ImportInclude: inc.ID, ImportedID: impID}
			}
			return localID, true
		}
	}
	return 0, false
}

func resolveProcName(r *resolvedModule, name string) (id uint32, found bool) {
	if id := r.Procs.lookup(name); id != 0 {
		return id, true
	}
	for _, inc := range r.Includes {
		if inc == nil {
			continue
		}
		if impID, ok := inc.ProcIDs[name]; ok {
			localID, isNew := r.Procs.idFor(name)
			if isNew {
				r.ProcMeta[localID] = &procMeta{Imported: true, ImportInclude: inc.ID, ImportedID: impID}
			}
			return localID, true
		}
	}
	return 0, false
}

// stageResolveFieldRefs implements §4.4 step 2 for single-name operand
// slots (WRITE var, SET link target, IF variable condition, CALL,
// ambiguous PUSH). Names that resolve nowhere get id 0 and an
// ERR-UNRESOLVED diagnostic, per §7, but the instruction is still
// well-formed.
func stageResolveFieldRefs(r *resolvedModule, refs []fieldRef) {
	for _, ref := range refs {
		in := &r.Instrs[ref.instrIdx]
		switch ref.kind {
		case refWriteVar:
			id, ok := resolveVarName(r, ref.name)
			in.WriteVarID = id
			reportIfUnresolved(r, in, ok, ref.name)

		case refLinkVar:
			id, ok := resolveVarName(r, ref.name)
			in.LinkVarID = id
			reportIfUnresolved(r, in, ok, ref.name)

		case refCondVar:
			id, ok := resolveVarName(r, ref.name)
			in.CondVarID = id
			reportIfUnresolved(r, in, ok, ref.name)

		case refCallProc:
			id, ok := resolveProcName(r, ref.name)
			in.CallProcID = id
			reportIfUnresolved(r, in, ok, ref.name)

		case refPushObj:
			if id, ok := resolveVarName(r, ref.name); ok {
				in.ObjID, in.PushKind = id, pushVar
				continue
			}
			if id, ok := resolveProcName(r, ref.name); ok {
				in.ObjID, in.PushKind = id, pushProc
				continue
			}
			in.ObjID, in.PushKind = 0, pushVar
			r.Diags = append(r.Diags, diagnostic{
				source: r.Source, line: in.sourceLine, kind: ErrUnresolved,
				msg: "object " + ref.name + " not found", severity: diagWarn,
			})
		}
	}
}

func reportIfUnresolved(r *resolvedModule, in *instruction, ok bool, name string) {
	if ok {
		return
	}
	r.Diags = append(r.Diags, diagnostic{
		source: r.Source, line: in.sourceLine, kind: ErrUnresolved,
		msg: "object " + name + " not found", severity: diagWarn,
	})
}

// stageFinalizeExpressions implements §4.4 step 3: every bare variable
// name inside a SET/IF expression's raw text is substituted with "@id"
// using the same resolution rule as step 2, and the result becomes the
// instruction's final ExprText/CondExprText.
func stageFinalizeExpressions(r *resolvedModule, m *builtModule) {
	for idx, names := range m.ExprRefs {
		r.Instrs[idx].ExprText = substituteNames(r, r.Instrs[idx].ExprText, names)
	}
	for idx, names := range m.CondExprRefs {
		r.Instrs[idx].CondExprText = substituteNames(r, r.Instrs[idx].CondExprText, names)
	}
}

func substituteNames(r *resolvedModule, text string, names []string) string {
	for _, name := range names {
		id, ok := resolveVarName(r, name)
		if !ok {
			r.Diags = append(r.Diags, diagnostic{
				source: r.Source, kind: ErrUnresolved, msg: "object " + name + " not found", severity: diagWarn,
			})
		}
		text = replaceIdent(text, name, "@"+strconv.FormatUint(uint64(id), 10))
	}
	return text
}

// replaceIdent substitutes whole-identifier occurrences of name in text,
// leaving occurrences that are merely a substring of a longer identifier
// untouched (e.g. replacing "x" must not touch "x2" or "max2").
func replaceIdent(text, name, repl string) string {
	var b strings.Builder
	i := 0
	for i < len(text) {
		if isIdentBoundaryMatch(text, i, name) {
			b.WriteString(repl)
			i += len(name)
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}

func isIdentBoundaryMatch(text string, i int, name string) bool {
	if i+len(name) > len(text) || text[i:i+len(name)] != name {
		return false
	}
	if i > 0 && isIdentPart(rune(text[i-1])) {
		return false
	}
	if end := i + len(name); end < len(text) && isIdentPart(rune(text[end])) {
		return false
	}
	return true
}
