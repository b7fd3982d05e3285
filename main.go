package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jcorbin/toylang/internal/panicerr"
)

// main is the harness §6 describes as "deliberately out of scope" for
// the core: a thin CLI wrapping Pack and Execute, in the same flag-based
// style as gothird's own main.go.
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "pack":
		runPack(os.Args[2:])
	case "run":
		runRun(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: toylang pack <source.txt> <out.bin>")
	fmt.Fprintln(os.Stderr, "       toylang run [--trace] [--mem-limit=N] [--include-root=DIR] <module.bin|module.txt>")
}

func runPack(args []string) {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	encoding := fs.String("encoding", "UTF-8", "source text encoding")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		usage()
		os.Exit(2)
	}
	if err := Pack(rest[0], rest[1], *encoding); err != nil {
		reportAbnormal(err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(diagLog.ExitCode())
}

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	encoding := fs.String("encoding", "UTF-8", "source text encoding")
	trace := fs.Bool("trace", false, "enable trace logging")
	memLimit := fs.Uint("mem-limit", 0, "maximum CALL recursion depth (0 = unlimited)")
	includeRoot := fs.String("include-root", "", "directory %include% paths resolve against (default: the module's own directory)")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 1 {
		usage()
		os.Exit(2)
	}

	var opts = []EngineOption{
		WithInput(os.Stdin),
		WithOutput(os.Stdout),
	}
	if *trace {
		opts = append(opts, WithTrace(diagLog.Leveledf("TRACE")))
	}
	if *memLimit > 0 {
		opts = append(opts, WithMemLimit(*memLimit))
	}
	if *includeRoot != "" {
		opts = append(opts, WithIncludeRoot(*includeRoot))
	}
	if err := Execute(rest[0], *encoding, opts...); err != nil {
		reportAbnormal(err)
		os.Exit(exitCodeFor(err))
	}
}

// reportAbnormal logs err through diagLog, additionally surfacing a
// recovered goroutine panic's stack trace or exit call, the same
// boundary information gothird's own isolate.go captures around core.halt.
func reportAbnormal(err error) {
	diagLog.Errorf("%+v", err)
	if panicerr.IsPanic(err) {
		diagLog.Printf("PANIC", "stack:\n%s", panicerr.PanicStack(err))
	} else if panicerr.IsExit(err) {
		diagLog.Printf("PANIC", "aborted via runtime.Goexit")
	}
}

// exitCodeFor maps an ErrorKind to a process exit code, per §6: "Exit
// code 0 on success; non-zero on ERR-PARSE, ERR-UNRESOLVED, ERR-IO."
func exitCodeFor(err error) int {
	switch Kind(err) {
	case ErrParse:
		return 1
	case ErrUnresolved:
		return 2
	case ErrIO:
		return 3
	case ErrType, ErrArith, ErrStack:
		return 4
	default:
		return 1
	}
}
