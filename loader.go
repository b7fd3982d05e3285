package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jcorbin/toylang/internal/fileinput"
)

// compiler glues C1/C2/C4/C5/C6 together: it knows how to turn a source
// or binary path into a decoded module, resolving %include% lines
// recursively and caching by path so a module included from two places
// compiles only once (§3's "compiled-modules cache keyed by module base
// name").
type compiler struct {
	root string // search path root for relative includes (§6)

	resolved map[string]*resolvedModule // .txt path -> compiled, pre-pack
	decoded  map[string]*decodedModule  // any path -> fully decoded
}

func newCompiler(root string) *compiler {
	return &compiler{
		root:     root,
		resolved: make(map[string]*resolvedModule),
		decoded:  make(map[string]*decodedModule),
	}
}

func (c *compiler) resolvePath(path string) string {
	if filepath.IsAbs(path) || c.root == "" {
		return path
	}
	return filepath.Join(c.root, path)
}

// loadInclude implements builder.go's includeLoader: compile (or load)
// the module at path far enough to know its declared/imported symbol
// names, for the referencing module's own post-pass to resolve against.
func (c *compiler) loadInclude(path string) (*includeDescriptor, error) {
	d, err := c.decodeFor(path)
	if err != nil {
		return nil, err
	}
	return descriptorFromDecoded(d, path), nil
}

// decodeFor returns the fully decoded module at path, compiling it from
// source and caching the result if it is a .txt, or reading+decoding it
// directly if it is a .bin.
func (c *compiler) decodeFor(path string) (*decodedModule, error) {
	if d, ok := c.decoded[path]; ok {
		return d, nil
	}
	full := c.resolvePath(path)

	if strings.HasSuffix(path, ".bin") {
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, ioError{path: full, err: err}
		}
		d, err := decodeModule(data)
		if err != nil {
			return nil, err
		}
		c.decoded[path] = d
		return d, nil
	}

	rm, err := c.compileSource(path, full)
	if err != nil {
		return nil, err
	}
	data, err := packToBytes(rm)
	if err != nil {
		return nil, err
	}
	d, err := decodeModule(data)
	if err != nil {
		return nil, err
	}
	c.decoded[path] = d
	return d, nil
}

// compileSource runs C1/C4/C5 over one source file, recursively
// resolving any %include% lines it contains through this same compiler.
func (c *compiler) compileSource(path, fullPath string) (*resolvedModule, error) {
	if rm, ok := c.resolved[path]; ok {
		return rm, nil
	}
	lines, source, err := readLines(fullPath)
	if err != nil {
		return nil, ioError{path: fullPath, err: err}
	}
	b := newModuleBuilder(c, source)
	built := b.build(lines)
	rm := runPostPass(built)
	c.resolved[path] = rm
	return rm, nil
}

// readLines reads a source file line by line using fileinput.Input, the
// same rune-at-a-time reader gothird's front-end uses for its own
// program text, so that the builder sees the same line-tracking
// behavior the teacher's input pipeline gives it (internal/fileinput).
// The source name it returns is the Location fileinput itself resolved
// for the file (via its Name() method), not just the caller's path
// string, so that diagnostic.loc() reports the same name gothird's own
// reader would have tracked.
func readLines(path string) ([]string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	in := fileinput.Input{Queue: []io.Reader{f}}
	var lines []string
	var cur strings.Builder
	for {
		r, _, err := in.ReadRune()
		if r == '\n' {
			lines = append(lines, cur.String())
			cur.Reset()
			continue
		}
		if r != 0 {
			cur.WriteRune(r)
			continue
		}
		if err != nil {
			if cur.Len() > 0 {
				lines = append(lines, cur.String())
			}
			source := in.Last.Name
			if source == "" {
				source = in.Scan.Name
			}
			if err == io.EOF {
				return lines, source, nil
			}
			return lines, source, err
		}
	}
}

// loadModule is the top-level entry for C6: decode the module at path
// (compiling it first if it is source) and materialize it as a fresh,
// fully wired Context in engine -- recursively loading and running any
// %include%s it names before returning, per §4.6.
func loadModule(e *Engine, c *compiler, path string) (uint32, error) {
	if cachedID, ok := e.moduleCache[path]; ok {
		return cachedID, nil
	}
	d, err := c.decodeFor(path)
	if err != nil {
		return 0, err
	}
	ctx := e.newContext()
	e.moduleCache[path] = ctx.id
	ctx.code = d.Instrs
	var importedProcs []dataEntry
	for _, entry := range d.Data {
		if entry.IsProcedure {
			if entry.Imported {
				importedProcs = append(importedProcs, entry)
			}
			continue
		}
		ctx.varMeta[entry.ID] = &varMeta{
			MeetsInIncludes: entry.MeetsInIncludes,
			Intersections:   entry.Intersections,
			Imported:        entry.Imported,
			ImportInclude:   entry.ImportInclude,
			ImportedID:      entry.ImportedID,
		}
	}

	if err := loadIncludes(e, c, ctx); err != nil {
		return ctx.id, err
	}

	// Procedures only ever declared in an include have no local DEFINE
	// to register a descriptor, so CALL would otherwise find nothing in
	// ctx.procs -- alias the include's own descriptor into this context
	// now that the include has run and registered it.
	for _, entry := range importedProcs {
		incCtxID, ok := ctx.includeCtxOf[entry.ImportInclude]
		if !ok {
			continue
		}
		incCtx := e.context(incCtxID)
		if incCtx == nil {
			continue
		}
		if desc := incCtx.procs[entry.ImportedID]; desc != nil {
			ctx.procs[entry.ID] = desc
		}
	}

	// Pure imports (Imported but never locally SET) have no local SET
	// site to materialize their cell, unlike intersection variables,
	// which get one through writebackIntersections when the context is
	// first entered. Wire a Linked cell straight to the include's own
	// storage, borrowing its DeclaredType, now that the include has
	// already run to EOF and holds a live value.
	for varID, meta := range ctx.varMeta {
		if !meta.Imported || meta.MeetsInIncludes {
			continue
		}
		incCtxID, ok := ctx.includeCtxOf[meta.ImportInclude]
		if !ok {
			continue
		}
		incCtx := e.context(incCtxID)
		if incCtx == nil {
			continue
		}
		srcCell := incCtx.vars[meta.ImportedID]
		if srcCell == nil {
			continue
		}
		ctx.vars[varID] = NewLinkedCell(srcCell.DeclaredType, incCtxID, meta.ImportedID)
	}
	return ctx.id, nil
}

// loadIncludes implements §4.6's "INCLUDE closures, encountered first,
// cause the loader to recursively load and execute the included
// module": every INCLUDE instruction in the freshly decoded code
// segment is resolved and run to completion before normal execution of
// this context ever begins.
func loadIncludes(e *Engine, c *compiler, ctx *Context) error {
	callerID := ctx.id
	for _, in := range ctx.code {
		if in.Op != opINCLUDE {
			continue
		}
		incCtxID, err := loadModule(e, c, in.IncludePath)
		if err != nil {
			return err
		}
		ctx.includeCtxOf[in.IncludeIndex] = incCtxID
		ctx.includeIdxOf[incCtxID] = in.IncludeIndex

		if err := e.runInclude(callerID, incCtxID); err != nil {
			return err
		}
	}
	return nil
}
