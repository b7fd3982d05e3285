package main

// returnFrame is one entry of a context's return stack (§3): the
// calling context and the instruction index to resume at once RET runs.
type returnFrame struct {
	ctxID uint32
	ip    int
}

// Context is one module's runtime state (§3): its data and code
// segments, instruction pointer, return stack, and the include tables
// needed for cross-context writeback (§4.6).
type Context struct {
	id uint32

	vars  map[uint32]*Cell
	procs map[uint32]*ProcDescriptor

	code []instruction
	ip   int
	eof  bool

	returnStack []returnFrame

	// includeCtxOf/includeIdxOf are inverse views of the same relation,
	// populated as each INCLUDE instruction is processed at load time
	// (§4.6): which context id a given include index resolves to, and
	// which include index a given context id was loaded as.
	includeCtxOf map[uint32]uint32
	includeIdxOf map[uint32]uint32

	// varMeta mirrors resolvedModule.VarMeta (module.go), retained at
	// runtime so exec.go's context-switch writeback can find the
	// intersection vector for a variable without re-decoding the module.
	varMeta map[uint32]*varMeta
}

func newContext(id uint32) *Context {
	return &Context{
		id:           id,
		vars:         make(map[uint32]*Cell),
		procs:        make(map[uint32]*ProcDescriptor),
		includeCtxOf: make(map[uint32]uint32),
		includeIdxOf: make(map[uint32]uint32),
		varMeta:      make(map[uint32]*varMeta),
	}
}
