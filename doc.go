/* Package main: a small imperative toy-language toolchain.

This program implements a two-stage pipeline: a front-end that lowers a
line-oriented source program into a compact binary module, and a dedicated
interpreter that loads and executes that module.

The surface language has four primitive types -- boolean, 32-bit signed
integer, 32-bit float, and a length-prefixed UTF-8 string -- named variables,
parameterless procedures, structured conditionals, unconditional jumps,
console I/O, infix expressions with a fixed operator repertoire and a small
catalog of math intrinsics, and textual inclusion of other source or
precompiled modules.

Section 1: the front-end. See lexer.go for the per-command shapes, expr.go
for the expression compiler, builder.go for the line-by-line lowering pass
with its bracket stack and forward-jump queue, and postpass.go/module.go for
name resolution and the on-disk binary layout.

Section 2: the back-end. See loader.go for materializing a binary module
into a runtime Context, context.go for the per-module execution state, and
exec.go for the multi-context execution engine: instruction pointer, return
stack, context switching, and shared-variable writeback between an includer
and its includes.

Section 3: collaborators. errors.go enumerates the error kinds a caller of
Pack/Execute (see api.go) can observe; options.go configures an Engine's
input, output, trace logging, memory limit, and include search root.
*/
package main
