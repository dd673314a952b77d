package asm

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// HeaderSize is the fixed 32-byte header every bytecode image begins with.
const HeaderSize = 32

var magic = [4]byte{'D', 'O', 'V', 'M'}

// Section identifies one of the two required top-level groupings of a
// program.
type Section int

const (
	SectionUnknown Section = iota
	SectionData
	SectionCode
)

// Image is the fully assembled bytecode: header + read-only data + code, as
// well as the code-only slice for convenience (tests and the disassembler
// both want to address code offsets without recomputing ro_len) and the
// symbol table built during phase 1, for tools that want to inspect label
// and string-constant names after assembly (the REPL's symbol dump, for one).
type Image struct {
	Bytes   []byte
	ROLen   uint32
	ROData  []byte
	Code    []byte
	Symbols *SymbolTable
}

// Assembler performs a two-phase lowering from parsed source to a bytecode
// image: phase 1 builds the symbol table and read-only data segment, phase 2
// emits code bytes resolving label references. It owns its accumulated
// errors, symbol table, read-only buffer and section set for the lifetime of
// a single Assemble call; nothing survives between calls.
type Assembler struct {
	symbols *SymbolTable
	roData  []byte
	sections map[Section]bool
}

// NewAssembler constructs an Assembler ready for one Assemble call.
func NewAssembler() *Assembler {
	return &Assembler{
		symbols:  NewSymbolTable(),
		sections: make(map[Section]bool),
	}
}

// Assemble tokenizes source and lowers it to a bytecode Image, or returns an
// aggregated error describing every problem phase 1 or phase 2 found.
func Assemble(source string) (Image, error) {
	program, err := ParseProgram(source)
	if err != nil {
		return Image{}, err
	}
	a := NewAssembler()
	return a.assembleProgram(program)
}

func (a *Assembler) assembleProgram(program []Instruction) (Image, error) {
	var errs []error

	currentSection := SectionUnknown
	for _, in := range program {
		if in.IsDirective() {
			if err := a.phase1Directive(in, &currentSection); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if in.IsLabel() {
			if currentSection == SectionUnknown {
				errs = append(errs, errors.New("no section declared"))
				continue
			}
			if a.symbols.Has(in.Label) {
				errs = append(errs, errors.Errorf("symbol %q declared multiple times", in.Label))
				continue
			}
			a.symbols.Add(Symbol{Name: in.Label, Kind: SymbolLabel})
		}
		// Opcode instructions are skipped in phase 1.
	}

	if len(errs) > 0 {
		return Image{}, aggregate(errs)
	}

	if !a.sections[SectionData] || !a.sections[SectionCode] {
		return Image{}, errors.New("missing section")
	}

	code, err := a.phase2(program)
	if err != nil {
		return Image{}, err
	}

	return a.buildImage(code), nil
}

func (a *Assembler) phase1Directive(in Instruction, currentSection *Section) error {
	name := in.DirectiveName()
	if !in.HasOperands() {
		switch name {
		case "data":
			a.sections[SectionData] = true
			*currentSection = SectionData
			return nil
		case "code":
			a.sections[SectionCode] = true
			*currentSection = SectionCode
			return nil
		default:
			return errors.Errorf("unknown section: %s", name)
		}
	}

	if name != "str" {
		return errors.Errorf("unknown directive: %s", name)
	}
	if in.Label == "" {
		return errors.New("string constant declared without label")
	}
	if *currentSection == SectionUnknown {
		return errors.New("no section declared")
	}
	bytes, ok := in.StringConstant()
	if !ok || len(bytes) == 0 {
		return errors.New("empty string provided")
	}
	if a.symbols.Has(in.Label) {
		return errors.Errorf("symbol %q declared multiple times", in.Label)
	}
	offset := uint32(len(a.roData))
	a.symbols.Add(Symbol{Name: in.Label, Kind: SymbolIrString, Offset: offset})
	a.symbols.SetOffset(in.Label, offset)
	a.roData = append(a.roData, bytes...)
	a.roData = append(a.roData, 0)
	return nil
}

// phase2 emits the code segment, resolving label references via the symbol
// table populated during phase 1.
func (a *Assembler) phase2(program []Instruction) ([]byte, error) {
	var code []byte
	var errs []error

	for _, in := range program {
		if !in.IsOpcode() {
			continue
		}
		bytes, err := a.encodeInstruction(in)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "line %d", in.SourceLine))
			continue
		}
		code = append(code, bytes...)
	}

	if len(errs) > 0 {
		return nil, aggregate(errs)
	}
	return code, nil
}

func (a *Assembler) encodeInstruction(in Instruction) ([]byte, error) {
	buf := []byte{byte(in.Op)}
	for _, tok := range in.Operands {
		b, err := a.encodeToken(tok)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return padToSlotSize(buf), nil
}

// padToSlotSize rounds an encoded instruction up to 4, 8, or 12 bytes: plain
// opcodes (and those whose only immediates are register/label bytes) fit in
// 4; an integer LOAD (opcode + register + 4-byte immediate = 6 raw bytes)
// rounds up to 8; a real LOAD (opcode + register + 8-byte immediate = 10 raw
// bytes) rounds up to 12. Every instruction therefore occupies exactly one
// of these three slot sizes.
func padToSlotSize(buf []byte) []byte {
	var target int
	switch {
	case len(buf) <= 4:
		target = 4
	case len(buf) <= 8:
		target = 8
	default:
		target = 12
	}
	for len(buf) < target {
		buf = append(buf, 0)
	}
	return buf
}

func (a *Assembler) encodeToken(tok Token) ([]byte, error) {
	switch tok.Kind {
	case TokenIntRegister, TokenRealRegister, TokenVectorRegister:
		return []byte{byte(tok.RegisterByte())}, nil
	case TokenInteger:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(tok.Int))
		return b, nil
	case TokenReal:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(tok.Real))
		return b, nil
	case TokenLabelRef:
		offset, ok := a.symbols.Value(tok.Name)
		if !ok {
			return nil, errors.Errorf("unknown label: %s", tok.Name)
		}
		return []byte{byte(offset >> 8), byte(offset & 0xFF)}, nil
	default:
		return nil, errors.Errorf("operand token kind %d cannot be encoded", tok.Kind)
	}
}

func (a *Assembler) buildImage(code []byte) Image {
	roLen := uint32(len(a.roData))

	header := make([]byte, HeaderSize)
	copy(header[0:4], magic[:])
	binary.BigEndian.PutUint32(header[4:8], roLen)

	out := make([]byte, 0, HeaderSize+len(a.roData)+len(code))
	out = append(out, header...)
	out = append(out, a.roData...)
	out = append(out, code...)

	return Image{
		Bytes:   out,
		ROLen:   roLen,
		ROData:  append([]byte(nil), a.roData...),
		Code:    append([]byte(nil), code...),
		Symbols: a.symbols,
	}
}

// aggregate collapses a list of per-phase errors into one error whose
// message lists each, without introducing a bespoke multi-error type;
// github.com/pkg/errors gives us wrapping but not aggregation, so this one
// helper is a thin stdlib-only seam.
func aggregate(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return errors.Errorf("%d assembly errors: %s", len(errs), strings.Join(msgs, "; "))
}
