package main

import (
	"fmt"
	"io"

	"github.com/jcorbin/toylang/internal/fileinput"
	"github.com/jcorbin/toylang/internal/flushio"
	"github.com/jcorbin/toylang/internal/mem"
	"github.com/jcorbin/toylang/internal/runeio"
)

// Engine is the encapsulated global state DESIGN NOTES §9 calls for: a
// context table, the current context id, and the compiled-module cache,
// gathered into one object the harness creates and disposes rather than
// a package-level singleton. It also carries the console I/O and
// tracing mixins, mirroring how gothird's Core bundles fileinput.Input
// and flushio.WriteFlusher alongside the VM's own state (core.go).
type Engine struct {
	logging

	contexts      map[uint32]*Context
	nextContextID uint32
	current       uint32

	moduleCache map[string]uint32 // include path -> already-loaded context id

	fileinput.Input
	out     flushio.WriteFlusher
	closers []io.Closer

	callDepth   mem.Limiter // §0 "a memory/recursion limit", enforced in exec.go's execCall
	includeRoot string      // §0 "the include search-path root", overriding the binary's own directory
}

// NewEngine constructs an Engine with the given options applied over the
// defaults (discard output, empty input), per the teacher's functional-
// options idiom (options.go).
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		contexts:    make(map[uint32]*Context),
		moduleCache: make(map[string]uint32),
	}
	e.apply(opts...)
	return e
}

// Close releases any resources opened on the engine's behalf (§5: "a
// binary reader is held open for the duration of a module load... both
// must be released deterministically regardless of error").
func (e *Engine) Close() (err error) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if cerr := e.closers[i].Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// newContext allocates and registers a fresh context with a globally
// monotonic id, per §3's "IDs are monotonically assigned globally in the
// order contexts are created."
func (e *Engine) newContext() *Context {
	id := e.nextContextID
	e.nextContextID++
	ctx := newContext(id)
	e.contexts[id] = ctx
	return ctx
}

func (e *Engine) context(id uint32) *Context {
	return e.contexts[id]
}

// readVar implements cell.go's varReader: Engine is the only type that
// can see across contexts, since a Linked cell's target may live in any
// context, not just the one that owns the cell.
func (e *Engine) readVar(ctxID, varID uint32) (Value, error) {
	ctx := e.context(ctxID)
	if ctx == nil {
		return Value{}, runtimeUndefError{what: fmt.Sprintf("context %d", ctxID)}
	}
	cell := ctx.vars[varID]
	if cell == nil || varID == 0 {
		return Value{}, runtimeUndefError{what: fmt.Sprintf("variable @%d in context %d", varID, ctxID)}
	}
	return cell.Read(e)
}

// halt aborts the run with a runtime-fatal error (§7: ERR-ARITH,
// ERR-STACK, ERR-IO are all "runtime-fatal"), mirroring gothird's
// core.halt: flush what output there is, log, then panic so a single
// recover at the API boundary (api.go) turns it back into a normal
// error return.
func (e *Engine) halt(err error) {
	func() {
		defer func() { recover() }()
		if e.out != nil {
			e.out.Flush()
		}
	}()
	func() {
		defer func() { recover() }()
		e.logf("#", "halt error: %v", err)
	}()
	panic(haltError{err})
}

type haltError struct{ error }

func (err haltError) Error() string {
	if err.error != nil {
		return fmt.Sprintf("halted: %v", err.error)
	}
	return "halted"
}
func (err haltError) Unwrap() error  { return err.error }
func (err haltError) Kind() ErrorKind { return Kind(err.error) }

func (e *Engine) writeRune(r rune) {
	if _, err := runeio.WriteANSIRune(e.out, r); err != nil {
		e.halt(ioError{err: err})
	}
}

func (e *Engine) writeString(s string) {
	if _, err := runeio.WriteANSIString(e.out, s); err != nil {
		e.halt(ioError{err: err})
	}
}

func (e *Engine) readLine() (string, error) {
	if err := e.out.Flush(); err != nil {
		return "", ioError{err: err}
	}
	var line []rune
	for {
		r, _, err := e.Input.ReadRune()
		if r == '\n' {
			break
		}
		if r != 0 {
			line = append(line, r)
			continue
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				break
			}
			return string(line), err
		}
	}
	return string(line), nil
}
