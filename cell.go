package main

// CellKind discriminates the two-variant ADT called for by DESIGN NOTES §9:
// Cell = Immediate(Value) | Lazy{expr, last, kind}, with Lazy's kind further
// distinguishing an Expression (memoized), a Condition (never memoized,
// always coerced to Bool), or a Linked reference to another variable.
type CellKind uint8

const (
	CellImmediate CellKind = iota
	CellLinked
	CellExpression
	CellCondition
)

// Cell is a variable cell (§3): a declared-type storage location that is
// either an immediate value, a lazy link to another variable (possibly in
// another context), or a lazy expression/condition tree.
type Cell struct {
	DeclaredType ValueKind
	Kind         CellKind

	// ownerContext is the context whose variable ids a bare @id reference
	// inside expr resolves against (§4.6): expressions always evaluate in
	// the context that owns them, never the caller's context.
	ownerContext uint32

	immediate Value

	linkContext uint32
	linkVar     uint32

	expr    *ExprNode
	last    Value
	hasLast bool
}

// NewImmediateCell builds a cell holding a concrete value.
func NewImmediateCell(t ValueKind, v Value) *Cell {
	return &Cell{DeclaredType: t, Kind: CellImmediate, immediate: v}
}

// NewLinkedCell builds a cell that lazily reads another variable.
func NewLinkedCell(t ValueKind, ctxID, varID uint32) *Cell {
	return &Cell{DeclaredType: t, Kind: CellLinked, linkContext: ctxID, linkVar: varID}
}

// NewExpressionCell builds a memoizing lazy-expression cell owned by ownerCtx.
func NewExpressionCell(t ValueKind, ownerCtx uint32, expr *ExprNode) *Cell {
	return &Cell{DeclaredType: t, Kind: CellExpression, ownerContext: ownerCtx, expr: expr}
}

// NewConditionCell builds a non-memoizing, always-Bool lazy cell (used by
// IF's condition operand), owned by ownerCtx.
func NewConditionCell(ownerCtx uint32, expr *ExprNode) *Cell {
	return &Cell{DeclaredType: KindBool, Kind: CellCondition, ownerContext: ownerCtx, expr: expr}
}

// varReader resolves a variable reference in a given context to a Value;
// implemented by Engine.readVar.
type varReader interface {
	readVar(ctxID, varID uint32) (Value, error)
}

// Read returns the cell's value coerced into DeclaredType, per the
// read-side invariant in §3. Expression cells memoize; condition cells
// never do.
func (c *Cell) Read(vr varReader) (Value, error) {
	switch c.Kind {
	case CellImmediate:
		return c.immediate.CoerceTo(c.DeclaredType)

	case CellLinked:
		v, err := vr.readVar(c.linkContext, c.linkVar)
		if err != nil {
			return Value{}, err
		}
		return v.CoerceTo(c.DeclaredType)

	case CellExpression:
		if c.hasLast {
			return c.last, nil
		}
		v, err := evalExpr(c.expr, c.ownerContext, vr)
		if err != nil {
			return Value{}, err
		}
		v, err = v.CoerceTo(c.DeclaredType)
		if err != nil {
			return Value{}, err
		}
		c.last, c.hasLast = v, true
		return v, nil

	case CellCondition:
		v, err := evalExpr(c.expr, c.ownerContext, vr)
		if err != nil {
			return Value{}, err
		}
		return v.CoerceTo(KindBool)
	}
	return Value{}, typeError{op: "read cell", kind: c.DeclaredType}
}

// SetImmediate overwrites the cell in place with an immediate value,
// preserving the slot but replacing its evaluation kind -- SET's runtime
// semantics (§4.6): "update it in place... otherwise replace the cell."
func (c *Cell) SetImmediate(t ValueKind, v Value) {
	c.DeclaredType = t
	c.Kind = CellImmediate
	c.immediate = v
	c.hasLast = false
}

// SetLinked rewrites the cell into a link to another variable.
func (c *Cell) SetLinked(t ValueKind, ctxID, varID uint32) {
	c.DeclaredType = t
	c.Kind = CellLinked
	c.linkContext, c.linkVar = ctxID, varID
	c.hasLast = false
}

// SetExpression rewrites the cell into a memoizing expression, clearing any
// previously memoized value.
func (c *Cell) SetExpression(t ValueKind, ownerCtx uint32, expr *ExprNode) {
	c.DeclaredType = t
	c.Kind = CellExpression
	c.ownerContext = ownerCtx
	c.expr = expr
	c.hasLast = false
}

// ProcDescriptor is a parameterless procedure (§3): the context that owns
// its code, its local id, and the code-segment index its body starts at.
type ProcDescriptor struct {
	OwningContext uint32
	ProcID        uint32
	CodeStart     int
}
