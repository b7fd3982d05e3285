package main

import (
	"os"
	"path/filepath"

	"github.com/jcorbin/toylang/internal/logio"
	"github.com/jcorbin/toylang/internal/panicerr"
)

// diagLog accumulates pack-time diagnostics the way gothird's own cmd
// wiring does, so ExitCode() reflects whether anything was logged at
// ERROR level without main.go having to inspect diags itself.
var diagLog = newDiagLogger()

func newDiagLogger() *logio.Logger {
	log := &logio.Logger{}
	log.SetOutput(os.Stderr)
	return log
}

// Pack and Execute are the two entry points §6 promises the harness:
// compile a textual module to a binary, or load and run a binary. Both
// recover from any halt panic at this boundary via panicerr.Recover, the
// same isolation the teacher gives its own top-level Run (isolate.go).
func Pack(sourcePath, binaryPath, encoding string) error {
	return panicerr.Recover("pack", func() error {
		c := newCompiler(filepath.Dir(sourcePath))
		rm, err := c.compileSource(filepath.Base(sourcePath), sourcePath)
		if err != nil {
			return err
		}
		reportDiagnostics(rm.Diags)
		data, err := packToBytes(rm)
		if err != nil {
			return err
		}
		f, err := os.Create(binaryPath)
		if err != nil {
			return ioError{path: binaryPath, err: err}
		}
		defer f.Close()
		if _, err := f.Write(data); err != nil {
			return ioError{path: binaryPath, err: err}
		}
		return firstFatal(rm.Diags)
	})
}

// Execute loads and runs a packed binary module, per §6.
func Execute(binaryPath, encoding string, opts ...EngineOption) error {
	return panicerr.Recover("execute", func() error {
		e := NewEngine(opts...)
		defer e.Close()
		root := e.includeRoot
		if root == "" {
			root = filepath.Dir(binaryPath)
		}
		c := newCompiler(root)
		topID, err := loadModule(e, c, filepath.Base(binaryPath))
		if err != nil {
			return err
		}
		e.current = topID
		return recoverHalt(func() error { return e.run(topID) })
	})
}

// recoverHalt turns an Engine.halt panic back into a normal error
// return, mirroring gothird's isolate.go boundary around core.halt.
func recoverHalt(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if he, ok := r.(haltError); ok {
				err = he
				return
			}
			panic(r)
		}
	}()
	return f()
}

// reportDiagnostics logs every diagnostic through Errorf, fatal or not:
// each kind the builder and post-pass record (ERR-PARSE, ERR-UNRESOLVED,
// ERR-IO) makes the pack exit non-zero, and Errorf is what sets
// diagLog.ExitCode().
func reportDiagnostics(diags []diagnostic) {
	for _, d := range diags {
		diagLog.Errorf("%v: %v: %v", d.loc(), d.kind, d.msg)
	}
}

func firstFatal(diags []diagnostic) error {
	for _, d := range diags {
		if d.severity == diagFatal {
			return parseError{loc: d.loc(), msg: d.msg}
		}
	}
	return nil
}
