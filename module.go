package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// This file implements C5's packer and C6's counterpart decoder for the
// on-disk module format (§4.5). No library in the retrieval pack offers
// a serialization format for this kind of tagged variable-length
// instruction stream, so the wire codec is hand-rolled over
// encoding/binary -- the one deliberate stdlib-only corner of the
// domain stack, justified in DESIGN.md.
//
// Layout: [code-instructions...] 0xFF [data-segment-entries...] 0xFF.
// Each code instruction is self-delimiting (opcode + flags determine its
// payload shape); the stream is terminated by an EOF instruction (opcode
// 0xF) before the 0xFF code/data boundary sentinel, matching §4.5 with
// the include/runtime split folded into one contiguous stream -- see
// DESIGN.md for why the two-part split was not carried over literally.
const segmentSentinel = 0xFF

// dataEntryFlags packs the preamble bits of §4.4's data segment record.
const (
	dataFlagIsProcedure    = 0x01
	dataFlagMeetsIncludes  = 0x02
	dataFlagImported       = 0x04
)

func writeU8(w io.Writer, b byte) error { _, err := w.Write([]byte{b}); return err }

func writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
func writeI32(w io.Writer, v int32) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeF32(w io.Writer, v float32) error { return binary.Write(w, binary.LittleEndian, v) }

func writeString(w io.Writer, s string) error {
	if len(s) > 255 {
		return ioError{err: fmt.Errorf("string %q exceeds 255 bytes", s)}
	}
	if err := writeU8(w, byte(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeValue(w io.Writer, v Value) error {
	switch v.Kind {
	case KindBool:
		return writeU8(w, boolByte(v.Bool()))
	case KindInt:
		return writeI32(w, v.Int())
	case KindFloat:
		return writeF32(w, v.Float())
	case KindString:
		return writeString(w, v.Str())
	}
	return typeError{op: "encode value", kind: v.Kind}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// packModule serializes a resolved module's code and data segments to w,
// per §4.5.
func packModule(w io.Writer, m *resolvedModule) error {
	for i := range m.Instrs {
		if err := writeInstruction(w, &m.Instrs[i]); err != nil {
			return err
		}
	}
	if err := writeInstruction(w, &instruction{Op: opEOF}); err != nil {
		return err
	}
	if err := writeU8(w, segmentSentinel); err != nil {
		return err
	}

	if err := writeDataSegment(w, m); err != nil {
		return err
	}
	return writeU8(w, segmentSentinel)
}

func writeInstruction(w io.Writer, in *instruction) error {
	flags, err := instructionFlags(in)
	if err != nil {
		return err
	}
	if err := writeU8(w, byte(in.Op)<<4|flags); err != nil {
		return err
	}
	return writeInstructionPayload(w, in)
}

func instructionFlags(in *instruction) (byte, error) {
	switch in.Op {
	case opSET:
		f := typeTag(in.DeclType) & flagSetTypeMask
		if in.IsLink {
			f |= flagSetIsLink
		}
		if in.IsExpr {
			f |= flagSetIsExpr
		}
		return f, nil
	case opINPUT:
		return typeTag(in.DeclType) & flagInputTypeMask, nil
	case opWRITE:
		if in.WriteIsVar {
			return flagWriteIsVar, nil
		}
		return 0, nil
	case opIF:
		if in.CondIsExpr {
			return flagIfIsExpr, nil
		}
		return 0, nil
	case opPUSH:
		return byte(in.PushKind) & flagPushIsProc, nil
	}
	return 0, nil
}

func writeInstructionPayload(w io.Writer, in *instruction) error {
	switch in.Op {
	case opNOP, opRET, opEOF, opELSE:
		return nil

	case opSET:
		if err := writeU32(w, in.VarID); err != nil {
			return err
		}
		switch {
		case in.IsExpr:
			return writeString(w, in.ExprText)
		case in.IsLink:
			return writeU32(w, in.LinkVarID)
		default:
			return writeValue(w, in.ImmValue)
		}

	case opPUSH:
		return writeU32(w, in.ObjID)

	case opWRITE:
		if in.WriteIsVar {
			return writeU32(w, in.WriteVarID)
		}
		return writeString(w, in.WriteLiteral)

	case opINPUT:
		return writeU32(w, in.VarID)

	case opJUMP:
		return writeI32(w, in.Target)

	case opIF:
		if err := writeI32(w, in.Target); err != nil {
			return err
		}
		if in.CondIsExpr {
			return writeString(w, in.CondExprText)
		}
		return writeU32(w, in.CondVarID)

	case opDEFINE:
		if err := writeU32(w, in.ProcID); err != nil {
			return err
		}
		return writeI32(w, in.BodyStart)

	case opCALL:
		return writeU32(w, in.CallProcID)

	case opINCLUDE:
		if err := writeU32(w, in.IncludeIndex); err != nil {
			return err
		}
		return writeString(w, in.IncludePath)
	}
	return typeError{op: fmt.Sprintf("encode opcode %v", in.Op)}
}

func writeDataSegment(w io.Writer, m *resolvedModule) error {
	for _, name := range m.Vars.names {
		id := m.Vars.lookup(name)
		meta := m.VarMeta[id]
		var flags byte
		if meta != nil && meta.MeetsInIncludes {
			flags |= dataFlagMeetsIncludes
		}
		if meta != nil && meta.Imported {
			flags |= dataFlagImported
		}
		if err := writeU8(w, flags); err != nil {
			return err
		}
		if err := writeU32(w, id); err != nil {
			return err
		}
		if err := writeString(w, name); err != nil {
			return err
		}
		if meta != nil && meta.MeetsInIncludes {
			if err := writeU32(w, uint32(len(meta.Intersections))); err != nil {
				return err
			}
			for _, p := range meta.Intersections {
				if err := writeU32(w, p.IncludeID); err != nil {
					return err
				}
				if err := writeU32(w, p.ImportedVarID); err != nil {
					return err
				}
			}
		}
		if meta != nil && meta.Imported {
			if err := writeU32(w, meta.ImportInclude); err != nil {
				return err
			}
			if err := writeU32(w, meta.ImportedID); err != nil {
				return err
			}
		}
	}
	for _, name := range m.Procs.names {
		id := m.Procs.lookup(name)
		meta := m.ProcMeta[id]
		flags := byte(dataFlagIsProcedure)
		if meta != nil && meta.Imported {
			flags |= dataFlagImported
		}
		if err := writeU8(w, flags); err != nil {
			return err
		}
		if err := writeU32(w, id); err != nil {
			return err
		}
		if err := writeString(w, name); err != nil {
			return err
		}
		if meta != nil && meta.Imported {
			if err := writeU32(w, meta.ImportInclude); err != nil {
				return err
			}
			if err := writeU32(w, meta.ImportedID); err != nil {
				return err
			}
		}
	}
	return nil
}

// packToBytes is a convenience wrapper used by tests and by api.go's
// Pack, which needs the encoded length before writing the output file.
func packToBytes(m *resolvedModule) ([]byte, error) {
	var buf bytes.Buffer
	if err := packModule(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// dataEntry is one decoded data-segment record (§4.4): a declared or
// imported symbol, with enough metadata for the loader to build cells
// and for the engine to writeback across an include boundary.
type dataEntry struct {
	IsProcedure     bool
	MeetsInIncludes bool
	Imported        bool

	ID   uint32
	Name string

	Intersections []intersectionPair

	ImportInclude uint32
	ImportedID    uint32
}

// decodedModule is the loader's view of a packed module: a flat
// instruction stream ready for Engine.step (exec.go) to execute, and
// the data segment entries used to seed a fresh Context.
type decodedModule struct {
	Instrs []instruction
	Data   []dataEntry
}

type byteReader struct {
	r   *bytes.Reader
	err error
}

func (br *byteReader) u8() byte {
	if br.err != nil {
		return 0
	}
	b, err := br.r.ReadByte()
	if err != nil {
		br.err = err
	}
	return b
}

func (br *byteReader) u32() uint32 {
	var v uint32
	if br.err != nil {
		return 0
	}
	if err := binary.Read(br.r, binary.LittleEndian, &v); err != nil {
		br.err = err
	}
	return v
}

func (br *byteReader) i32() int32 {
	var v int32
	if br.err != nil {
		return 0
	}
	if err := binary.Read(br.r, binary.LittleEndian, &v); err != nil {
		br.err = err
	}
	return v
}

func (br *byteReader) f32() float32 {
	var v float32
	if br.err != nil {
		return 0
	}
	if err := binary.Read(br.r, binary.LittleEndian, &v); err != nil {
		br.err = err
	}
	return v
}

func (br *byteReader) str() string {
	if br.err != nil {
		return ""
	}
	n := br.u8()
	if br.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		br.err = err
	}
	return string(buf)
}

func (br *byteReader) value(k ValueKind) Value {
	switch k {
	case KindBool:
		return BoolValue(br.u8() != 0)
	case KindInt:
		return IntValue(br.i32())
	case KindFloat:
		return FloatValue(br.f32())
	case KindString:
		return StringValue(br.str())
	}
	br.err = typeError{op: "decode value", kind: k}
	return Value{}
}

// decodeModule parses a packed module's bytes back into instructions and
// data entries, per §4.5's layout.
func decodeModule(data []byte) (*decodedModule, error) {
	br := &byteReader{r: bytes.NewReader(data)}
	var instrs []instruction
	for {
		in, isEOF, err := decodeInstruction(br)
		if err != nil {
			return nil, ioError{err: err}
		}
		instrs = append(instrs, in)
		if isEOF {
			break
		}
	}
	if sentinel := br.u8(); br.err != nil || sentinel != segmentSentinel {
		return nil, ioError{err: fmt.Errorf("missing code/data segment sentinel")}
	}

	var entries []dataEntry
	for br.r.Len() > 0 {
		first, err := br.r.ReadByte()
		if err != nil {
			return nil, ioError{err: err}
		}
		if first == segmentSentinel {
			break
		}
		if err := br.r.UnreadByte(); err != nil {
			return nil, ioError{err: err}
		}
		entry, err := decodeDataEntry(br)
		if err != nil {
			return nil, ioError{err: err}
		}
		entries = append(entries, entry)
	}
	if br.err != nil {
		return nil, ioError{err: br.err}
	}
	return &decodedModule{Instrs: instrs, Data: entries}, nil
}

func decodeInstruction(br *byteReader) (instruction, bool, error) {
	b0 := br.u8()
	if br.err != nil {
		return instruction{}, false, br.err
	}
	op := opcode(b0 >> 4)
	flags := b0 & 0x0F
	in := instruction{Op: op}

	switch op {
	case opNOP, opRET, opELSE:
		// no payload

	case opEOF:
		return in, true, br.err

	case opSET:
		in.DeclType = fromTypeTag(flags & flagSetTypeMask)
		in.IsLink = flags&flagSetIsLink != 0
		in.IsExpr = flags&flagSetIsExpr != 0
		in.VarID = br.u32()
		switch {
		case in.IsExpr:
			in.ExprText = br.str()
		case in.IsLink:
			in.LinkVarID = br.u32()
		default:
			in.ImmValue = br.value(in.DeclType)
		}

	case opPUSH:
		in.PushKind = pushKind(flags & flagPushIsProc)
		in.ObjID = br.u32()

	case opWRITE:
		in.WriteIsVar = flags&flagWriteIsVar != 0
		if in.WriteIsVar {
			in.WriteVarID = br.u32()
		} else {
			in.WriteLiteral = br.str()
		}

	case opINPUT:
		in.DeclType = fromTypeTag(flags & flagInputTypeMask)
		in.VarID = br.u32()

	case opJUMP:
		in.Target = br.i32()

	case opIF:
		in.Target = br.i32()
		in.CondIsExpr = flags&flagIfIsExpr != 0
		if in.CondIsExpr {
			in.CondExprText = br.str()
		} else {
			in.CondVarID = br.u32()
		}

	case opDEFINE:
		in.ProcID = br.u32()
		in.BodyStart = br.i32()

	case opCALL:
		in.CallProcID = br.u32()

	case opINCLUDE:
		in.IncludeIndex = br.u32()
		in.IncludePath = br.str()

	default:
		return instruction{}, false, fmt.Errorf("unknown opcode %v", op)
	}
	return in, false, br.err
}

func decodeDataEntry(br *byteReader) (dataEntry, error) {
	flags := br.u8()
	e := dataEntry{
		IsProcedure:     flags&dataFlagIsProcedure != 0,
		MeetsInIncludes: flags&dataFlagMeetsIncludes != 0,
		Imported:        flags&dataFlagImported != 0,
	}
	e.ID = br.u32()
	e.Name = br.str()
	if e.MeetsInIncludes {
		n := br.u32()
		for i := uint32(0); i < n; i++ {
			var p intersectionPair
			p.IncludeID = br.u32()
			p.ImportedVarID = br.u32()
			e.Intersections = append(e.Intersections, p)
		}
	}
	if e.Imported {
		e.ImportInclude = br.u32()
		e.ImportedID = br.u32()
	}
	return e, br.err
}

// descriptorFromDecoded builds the narrow name->id view a referencing
// module's builder needs (builder.go's includeLoader) from a fully
// decoded module's data segment.
func descriptorFromDecoded(d *decodedModule, path string) *includeDescriptor {
	desc := &includeDescriptor{Path: path, VarIDs: map[string]uint32{}, ProcIDs: map[string]uint32{}}
	for _, e := range d.Data {
		if e.IsProcedure {
			desc.ProcIDs[e.Name] = e.ID
		} else {
			desc.VarIDs[e.Name] = e.ID
		}
	}
	return desc
}
