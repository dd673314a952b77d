package asm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var commentPattern = "//"

// ParseLine tokenizes a single line of assembly source into an Instruction:
// strip comments and whitespace first, recognize a bare label declaration,
// then split the remainder into a mnemonic-or-directive plus up to three
// operands.
func ParseLine(line string, lineNo int) (Instruction, error) {
	if idx := strings.Index(line, commentPattern); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return Instruction{SourceLine: lineNo}, nil
	}

	label := ""
	if colon := strings.Index(line, ":"); colon >= 0 && !strings.ContainsAny(line[:colon], " \t.") {
		label = line[:colon]
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return Instruction{Label: label, SourceLine: lineNo}, nil
		}
	}

	fields, err := splitRespectingQuotes(line)
	if err != nil {
		return Instruction{}, errors.Wrapf(err, "line %d", lineNo)
	}
	if len(fields) == 0 {
		return Instruction{Label: label, SourceLine: lineNo}, nil
	}

	head := fields[0]
	rest := fields[1:]

	if strings.HasPrefix(head, ".") {
		in := Instruction{Label: label, Directive: strings.TrimPrefix(head, "."), SourceLine: lineNo}
		for _, f := range rest {
			tok, err := parseOperand(f)
			if err != nil {
				return Instruction{}, errors.Wrapf(err, "line %d", lineNo)
			}
			in.Operands = append(in.Operands, tok)
		}
		return in, nil
	}

	op := OpcodeFromMnemonic(head)
	in := Instruction{Label: label, HasOp: true, Op: op, SourceLine: lineNo}
	for _, f := range rest {
		tok, err := parseOperand(f)
		if err != nil {
			return Instruction{}, errors.Wrapf(err, "line %d", lineNo)
		}
		in.Operands = append(in.Operands, tok)
	}
	return in, nil
}

// ParseProgram tokenizes every line of source into an ordered Program.
func ParseProgram(source string) ([]Instruction, error) {
	var program []Instruction
	for i, line := range strings.Split(source, "\n") {
		in, err := ParseLine(line, i+1)
		if err != nil {
			return nil, err
		}
		program = append(program, in)
	}
	return program, nil
}

// splitRespectingQuotes splits on runs of whitespace, except that a
// single-quoted string literal (which may itself contain whitespace) is kept
// together as one field.
func splitRespectingQuotes(line string) ([]string, error) {
	var fields []string
	i := 0
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			break
		}
		if line[i] == '\'' {
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, errors.Errorf("unterminated string literal: %s", line[i:])
			}
			fields = append(fields, line[i:i+1+end+1])
			i = i + 1 + end + 1
			continue
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		fields = append(fields, line[start:i])
	}
	return fields, nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r'
}

// parseOperand tokenizes one operand field: $i/$r/$v register references,
// #-prefixed numeric literals, @-prefixed label references, and
// '...'-delimited strings.
func parseOperand(field string) (Token, error) {
	switch {
	case strings.HasPrefix(field, "$i"):
		idx, err := strconv.ParseUint(field[2:], 10, 8)
		if err != nil {
			return Token{}, errors.Wrapf(err, "invalid integer register %q", field)
		}
		return Token{Kind: TokenIntRegister, RegisterIndex: byte(idx)}, nil

	case strings.HasPrefix(field, "$r"):
		idx, err := strconv.ParseUint(field[2:], 10, 8)
		if err != nil {
			return Token{}, errors.Wrapf(err, "invalid real register %q", field)
		}
		return Token{Kind: TokenRealRegister, RegisterIndex: byte(idx)}, nil

	case strings.HasPrefix(field, "$v"):
		idx, err := strconv.ParseUint(field[2:], 10, 8)
		if err != nil {
			return Token{}, errors.Wrapf(err, "invalid vector register %q", field)
		}
		return Token{Kind: TokenVectorRegister, RegisterIndex: byte(idx)}, nil

	case strings.HasPrefix(field, "$"):
		// Bare `$N` defaults to an integer register (e.g. `load $0 #100`).
		idx, err := strconv.ParseUint(field[1:], 10, 8)
		if err != nil {
			return Token{}, errors.Wrapf(err, "invalid register %q", field)
		}
		return Token{Kind: TokenIntRegister, RegisterIndex: byte(idx)}, nil

	case strings.HasPrefix(field, "#"):
		numeric := field[1:]
		if !strings.ContainsAny(numeric, ".eE") || isHexLiteral(numeric) {
			base := 10
			if isHexLiteral(numeric) {
				base = 0
			}
			n, err := strconv.ParseInt(numeric, base, 32)
			if err == nil {
				return Token{Kind: TokenInteger, Int: int32(n)}, nil
			}
		}
		f, err := strconv.ParseFloat(numeric, 64)
		if err != nil {
			return Token{}, errors.Wrapf(err, "invalid numeric literal %q", field)
		}
		if f == float64(int32(f)) {
			return Token{Kind: TokenInteger, Int: int32(f)}, nil
		}
		return Token{Kind: TokenReal, Real: f}, nil

	case strings.HasPrefix(field, "@"):
		return Token{Kind: TokenLabelRef, Name: field[1:]}, nil

	case strings.HasPrefix(field, "'") && strings.HasSuffix(field, "'") && len(field) >= 2:
		return Token{Kind: TokenString, Bytes: []byte(field[1 : len(field)-1])}, nil

	default:
		return Token{}, errors.Errorf("unrecognized operand %q", field)
	}
}

func isHexLiteral(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "-0x")
}
