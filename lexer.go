package main

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jcorbin/toylang/internal/runeio"
)

// cmdKind discriminates the recognized line shapes (§4.1). It is a
// superset of opcode: IF-SHORT and ELSE-marker are builder-time shapes
// that desugar into opcodes before a blob is ever emitted, and cmdNOP/
// cmdUnknown never reach the opcode table at all.
type cmdKind uint8

const (
	cmdNOP cmdKind = iota
	cmdUnknown
	cmdSET
	cmdPUSH
	cmdWRITE
	cmdINPUT
	cmdJUMP
	cmdDEFINE
	cmdRET
	cmdCALL
	cmdEND
	cmdIF
	cmdELSE
	cmdIFSHORT
	cmdINCLUDE
)

// parsedLine is the lexer's output for one source line: enough structure
// for the builder to emit a blob without re-scanning the line text.
type parsedLine struct {
	Kind cmdKind

	Name     string
	Type     ValueKind
	HasType  bool
	ValueRaw string // literal text, a bare name, or "(expr)" source

	Target int // decimal line number, for JUMP

	CondRaw string // name or "(expr)", for IF/IF-SHORT

	Then, Else string // IF-SHORT's two branch commands, recursively lexed

	Path string // %include%

	raw string
}

// reserved names may never be used as a declared variable or procedure
// name (§4.1): boolean literals, intrinsic names, math constants.
func isReserved(name string) bool {
	switch name {
	case "TRUE", "FALSE", "pi", "e":
		return true
	}
	_, ok := intrinsicTable[name]
	return ok
}

var identRe = `[A-Za-z_][A-Za-z0-9_]*`

var (
	reSET     = regexp.MustCompile(`^SET\s+(` + identRe + `)\s*,\s*(.+?)\s*:\s*(\w+)$`)
	rePUSH    = regexp.MustCompile(`^PUSH\s+(` + identRe + `)$`)
	reWRITE   = regexp.MustCompile(`^WRITE\s+(.+)$`)
	reINPUT   = regexp.MustCompile(`^INPUT\s+(` + identRe + `)\s+(\w+)$`)
	reJUMP    = regexp.MustCompile(`^JUMP\s+(\d+)$`)
	reDEFINE  = regexp.MustCompile(`^DEFINE\s+(` + identRe + `)$`)
	reRET     = regexp.MustCompile(`^RET$`)
	reCALL    = regexp.MustCompile(`^CALL\s+(` + identRe + `)$`)
	reEND     = regexp.MustCompile(`^END$`)
	reELSE    = regexp.MustCompile(`^END\s*\?$`)
	reIF      = regexp.MustCompile(`^IF\s+(.+?)\s*:$`)
	reIFSHORT = regexp.MustCompile(`^IF\s+(.+?)\s*:\s*(.+?)\s*\?\s*(.+)$`)
	reINCLUDE = regexp.MustCompile(`^%include%\s+(\S+\.(?:txt|bin))$`)
)

// stripComment removes a trailing "#..." comment, respecting neither
// quoting nor escaping -- the builder's string literals never contain a
// bare '#', matching the teacher's minimal-quoting line style.
func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// lexLine recognizes one source line against the fixed priority-ordered
// command shapes of §4.1, first match wins. Blank or fully-commented
// lines lex to cmdNOP; anything else that matches nothing lexes to
// cmdUnknown so the builder can emit a NOP and record ERR-PARSE.
func lexLine(raw string) parsedLine {
	line := stripComment(raw)
	if line == "" {
		return parsedLine{Kind: cmdNOP, raw: raw}
	}

	if m := reIFSHORT.FindStringSubmatch(line); m != nil {
		return parsedLine{Kind: cmdIFSHORT, CondRaw: m[1], Then: m[2], Else: m[3], raw: raw}
	}
	if m := reIF.FindStringSubmatch(line); m != nil {
		return parsedLine{Kind: cmdIF, CondRaw: m[1], raw: raw}
	}
	if reELSE.MatchString(line) {
		return parsedLine{Kind: cmdELSE, raw: raw}
	}
	if reEND.MatchString(line) {
		return parsedLine{Kind: cmdEND, raw: raw}
	}
	if m := reSET.FindStringSubmatch(line); m != nil {
		t, ok := parseTypeName(strings.ToUpper(m[3]))
		if !ok {
			return parsedLine{Kind: cmdUnknown, raw: raw}
		}
		return parsedLine{Kind: cmdSET, Name: m[1], ValueRaw: m[2], Type: t, HasType: true, raw: raw}
	}
	if m := rePUSH.FindStringSubmatch(line); m != nil {
		return parsedLine{Kind: cmdPUSH, Name: m[1], raw: raw}
	}
	if m := reWRITE.FindStringSubmatch(line); m != nil {
		return parsedLine{Kind: cmdWRITE, ValueRaw: strings.TrimSpace(m[1]), raw: raw}
	}
	if m := reINPUT.FindStringSubmatch(line); m != nil {
		t, ok := parseTypeName(strings.ToUpper(m[2]))
		if !ok {
			return parsedLine{Kind: cmdUnknown, raw: raw}
		}
		return parsedLine{Kind: cmdINPUT, Name: m[1], Type: t, HasType: true, raw: raw}
	}
	if m := reJUMP.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return parsedLine{Kind: cmdUnknown, raw: raw}
		}
		return parsedLine{Kind: cmdJUMP, Target: n, raw: raw}
	}
	if m := reDEFINE.FindStringSubmatch(line); m != nil {
		return parsedLine{Kind: cmdDEFINE, Name: m[1], raw: raw}
	}
	if reRET.MatchString(line) {
		return parsedLine{Kind: cmdRET, raw: raw}
	}
	if m := reCALL.FindStringSubmatch(line); m != nil {
		return parsedLine{Kind: cmdCALL, Name: m[1], raw: raw}
	}
	if m := reINCLUDE.FindStringSubmatch(line); m != nil {
		return parsedLine{Kind: cmdINCLUDE, Path: m[1], raw: raw}
	}
	return parsedLine{Kind: cmdUnknown, raw: raw}
}

// isParenExpr reports whether a SET/IF operand is a parenthesized
// expression rather than a bare literal or variable name.
func isParenExpr(s string) bool {
	return strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
}

func unwrapParens(s string) string {
	return strings.TrimSpace(s[1 : len(s)-1])
}

var identOnlyRe = regexp.MustCompile(`^` + identRe + `$`)

func isBareIdent(s string) bool { return identOnlyRe.MatchString(s) }

// isQuotedString reports whether a WRITE operand is a string literal.
func isQuotedString(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

// ctlEscapeRe matches the two control-rune forms gothird's own rune
// literals use -- "<NAME>" and "^X" -- wherever they appear inside a
// WRITE string literal's body.
var ctlEscapeRe = regexp.MustCompile(`<[A-Za-z][A-Za-z0-9]*>|\^.`)

// unquote strips the surrounding quotes from a WRITE string literal and
// expands any embedded control-rune escape using the same mnemonic table
// gothird built for its PUSH 'X' rune literals (runeio.ControlWords):
// WRITE "line1<NL>line2" writes an actual line feed, WRITE "bell^G"
// writes an actual BEL. An escape that does not resolve is left as-is.
func unquote(s string) string {
	body := s[1 : len(s)-1]
	return ctlEscapeRe.ReplaceAllStringFunc(body, func(tok string) string {
		r, err := runeio.UnquoteRune(tok)
		if err != nil {
			return tok
		}
		return string(r)
	})
}
