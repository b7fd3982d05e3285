package main

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/jcorbin/toylang/internal/fileinput"
	"github.com/jcorbin/toylang/internal/flushio"
)

func fileinputFrom(r io.Reader) fileinput.Input {
	return fileinput.Input{Queue: []io.Reader{r}}
}

// EngineOption configures an Engine at construction time, the same
// functional-options shape as gothird's VMOption (options.go).
type EngineOption interface{ apply(e *Engine) }

var engineDefaults = []EngineOption{
	WithInput(bytes.NewReader(nil)),
	WithOutput(ioutil.Discard),
}

func (e *Engine) apply(opts ...EngineOption) {
	for _, opt := range engineDefaults {
		opt.apply(e)
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(e)
		}
	}
}

type inputOption struct{ io.Reader }
type outputOption struct{ io.Writer }
type traceOption func(mess string, args ...interface{})
type memLimitOption uint
type includeRootOption string

// WithInput sets the reader INPUT consumes lines from.
func WithInput(r io.Reader) EngineOption { return inputOption{r} }

// WithOutput sets the writer WRITE prints to.
func WithOutput(w io.Writer) EngineOption { return outputOption{w} }

// WithTrace installs a log function invoked for every instruction
// step when --trace is requested (main.go).
func WithTrace(logfn func(mess string, args ...interface{})) EngineOption {
	return traceOption(logfn)
}

// WithMemLimit caps CALL's return-stack depth, raising a stack error
// (internal/mem.LimitError) the first time a call would exceed it. Zero
// (the default) leaves recursion depth unbounded.
func WithMemLimit(depth uint) EngineOption { return memLimitOption(depth) }

// WithIncludeRoot overrides the directory %include%-relative paths are
// resolved against, instead of the loaded module's own directory (§6
// "a single search path root may be injected by the harness").
func WithIncludeRoot(dir string) EngineOption { return includeRootOption(dir) }

func (o inputOption) apply(e *Engine) {
	e.Input = fileinputFrom(o.Reader)
}

func (o outputOption) apply(e *Engine) {
	if e.out != nil {
		e.out.Flush()
	}
	e.out = flushio.NewWriteFlusher(o.Writer)
}

func (o traceOption) apply(e *Engine) { e.logfn = o }

func (o memLimitOption) apply(e *Engine) { e.callDepth.Limit = uint(o) }

func (o includeRootOption) apply(e *Engine) { e.includeRoot = string(o) }
