package main

// instruction is the decoded, in-memory form of one variable-length blob
// from the code segment (§4.3). The same struct is produced by the
// builder (before names are resolved) and reproduced by the loader (after
// reading a packed module); only the fields relevant to Op are
// meaningful, mirroring the wire format's per-opcode payload shapes.
type instruction struct {
	Op opcode

	// SET / INPUT
	VarID     uint32
	DeclType  ValueKind
	IsLink    bool
	IsExpr    bool
	ImmValue  Value
	LinkVarID uint32
	ExprText  string // raw expression text; names become "@id" after the post-pass

	// PUSH
	ObjID    uint32
	PushKind pushKind

	// WRITE
	WriteIsVar   bool
	WriteVarID   uint32
	WriteLiteral string

	// JUMP target, or IF's else/end target
	Target int32

	// IF condition
	CondIsExpr   bool
	CondVarID    uint32
	CondExprText string

	// DEFINE
	ProcID    uint32
	BodyStart int32

	// CALL
	CallProcID uint32

	// INCLUDE
	IncludeIndex uint32
	IncludePath  string

	// sourceLine records the originating source line for diagnostics; it
	// is never serialized.
	sourceLine int
}
