package asm

import (
	"encoding/binary"
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestAssembleHeaderOffset(t *testing.T) {
	img, err := Assemble("\n.data\ntest: .str 'Hello'\n.code\nload $0 #100\nhlt\n")
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, len(img.Bytes) >= HeaderSize, "image too short")
	assert(t, string(img.Bytes[0:4]) == "DOVM", "bad magic: %v", img.Bytes[0:4])
	assert(t, binary.BigEndian.Uint32(img.Bytes[4:8]) == 6, "expected ro_len 6, got %d", img.ROLen)
	for _, b := range img.Bytes[8:32] {
		assert(t, b == 0, "reserved header bytes must be zero")
	}
}

func TestAssembleIntegerAddEncoding(t *testing.T) {
	img, err := Assemble(".data\n.code\nload $i0 #3\nload $i1 #2\nadd $i0 $i0 $i1\nhlt\n")
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, len(img.Code) > 0, "expected non-empty code segment")

	lines := Disassemble(img.Code)
	assert(t, len(lines) == 4, "expected 4 disassembled lines, got %d: %v", len(lines), lines)
}

func TestAssembleMissingSection(t *testing.T) {
	_, err := Assemble(".data\nhlt\n")
	assert(t, err != nil, "expected missing section error")
}

func TestAssembleNoSectionDecl(t *testing.T) {
	_, err := Assemble("foo: .str 'fail'\n")
	assert(t, err != nil, "expected no-section-declared error")
}

func TestAssembleDuplicateSymbol(t *testing.T) {
	_, err := Assemble(".data\nfoo: .str 'a'\nfoo: .str 'b'\n.code\nhlt\n")
	assert(t, err != nil, "expected duplicate symbol error")
}

func TestAssembleUnknownLabel(t *testing.T) {
	_, err := Assemble(".data\n.code\nload $i0 @missing\nhlt\n")
	assert(t, err != nil, "expected unknown label error")
}

func TestSymbolTableInsertionOrder(t *testing.T) {
	tbl := NewSymbolTable()
	tbl.Add(Symbol{Name: "test", Kind: SymbolLabel})
	tbl.SetOffset("test", 12)

	assert(t, tbl.Has("test"), "expected table to contain test")
	v, ok := tbl.Value("test")
	assert(t, ok, "expected offset to be set")
	assert(t, v == 12, "expected offset 12, got %d", v)

	_, ok = tbl.Value("not_exist")
	assert(t, !ok, "expected no offset for absent symbol")
}

func TestRegisterByteEncoding(t *testing.T) {
	assert(t, IntRegisterByte(4).Kind() == KindInt, "expected int kind")
	assert(t, RealRegisterByte(3).Kind() == KindReal, "expected real kind")
	assert(t, byte(RealRegisterByte(3)) == 0b1000_0011, "expected real-flagged byte, got %08b", byte(RealRegisterByte(3)))
	assert(t, VectorRegisterByte(5).Kind() == KindVector, "expected vector kind")
}

func TestOpcodeFromMnemonic(t *testing.T) {
	assert(t, OpcodeFromMnemonic("load") == LOAD, "expected LOAD")
	assert(t, OpcodeFromMnemonic("lOaD") == LOAD, "expected case-insensitive match")
	assert(t, OpcodeFromMnemonic("daol") == IGL, "expected IGL for unknown mnemonic")
}

func TestAssembleExposesSymbolTable(t *testing.T) {
	img, err := Assemble("\n.data\ngreeting: .str 'hi'\n.code\nloop: load $i0 #1\nhlt\n")
	assert(t, err == nil, "assemble failed: %v", err)
	assert(t, img.Symbols != nil, "expected non-nil symbol table")

	all := img.Symbols.All()
	names := map[string]bool{}
	for _, s := range all {
		names[s.Name] = true
	}
	assert(t, names["greeting"], "expected greeting symbol, got %v", all)
	assert(t, names["loop"], "expected loop symbol, got %v", all)
}

func TestParseOperandLeadingZeroIsDecimalNotOctal(t *testing.T) {
	tok, err := parseOperand("#010")
	assert(t, err == nil, "parseOperand failed: %v", err)
	assert(t, tok.Kind == TokenInteger, "expected integer token")
	assert(t, tok.Int == 10, "expected decimal 10, got %d", tok.Int)
}

func TestParseOperandHexLiteralStillWorks(t *testing.T) {
	tok, err := parseOperand("#0x10")
	assert(t, err == nil, "parseOperand failed: %v", err)
	assert(t, tok.Kind == TokenInteger, "expected integer token")
	assert(t, tok.Int == 16, "expected hex 0x10 == 16, got %d", tok.Int)
}
