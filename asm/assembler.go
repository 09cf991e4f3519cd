// Package asm is the Bee assembler text frontend: it turns mnemonic
// source into isa.Instruction values (via isa.Encode) and raw data
// directives into bytes, producing a flat, loadable code image. It is
// grounded on the teacher's parser/+encoder/ pair (lexer, two-pass
// symbol table with forward label references, then per-line encode),
// generalized from ARM's variable condition/addressing-mode syntax
// down to Bee's much simpler "mnemonic [operand]" instruction shape,
// since every Bee instruction is exactly one word (§4.3).
package asm

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/beevm/bee/isa"
)

// Program is the output of a successful assembly: a flat code image
// plus the resolved symbol table, ready for the loader to place in VM
// memory (§6).
type Program struct {
	Width   isa.Width
	Code    []byte
	Entry   uint64
	Symbols map[string]uint64
}

// Assembler runs the two assembly passes described in the package doc.
type Assembler struct {
	width   isa.Width
	order   binary.ByteOrder
	symbols *SymbolTable
	errs    ErrorList
	entry   string
}

// NewAssembler creates an assembler targeting the given word width.
// bigEndian controls the byte order used to materialize directive data
// and instruction words into Program.Code.
func NewAssembler(width isa.Width, bigEndian bool) *Assembler {
	return &Assembler{width: width, order: isa.ByteOrder(bigEndian), symbols: NewSymbolTable()}
}

type line struct {
	no     int
	tokens []Token
}

// Assemble runs both passes over source and returns the finished
// Program, or the accumulated ErrorList if anything failed.
func (a *Assembler) Assemble(source, filename string) (*Program, error) {
	rawLines := splitLines(source)
	lines := make([]line, 0, len(rawLines))
	for i, text := range rawLines {
		toks := TokenizeLine(text, filename, i+1)
		if len(toks) == 0 {
			continue
		}
		lines = append(lines, line{no: i + 1, tokens: toks})
	}

	if err := a.firstPass(lines); err != nil {
		return nil, err
	}
	prog, err := a.secondPass(lines)
	if err != nil {
		return nil, err
	}
	if a.errs.HasErrors() {
		return nil, &a.errs
	}
	return prog, nil
}

func (a *Assembler) wordBytes() uint64 { return uint64(a.width.Bytes()) }

// firstPass assigns every label its address, without emitting any code.
func (a *Assembler) firstPass(lines []line) error {
	var addr uint64
	for _, ln := range lines {
		toks := ln.tokens
		pos := toks[0].Pos

		for len(toks) >= 2 && toks[0].Type == TokenIdentifier && toks[1].Type == TokenColon {
			if err := a.symbols.Define(toks[0].Literal, addr, pos); err != nil {
				a.errs.Add(err)
			}
			toks = toks[2:]
		}
		if len(toks) == 0 {
			continue
		}

		switch toks[0].Type {
		case TokenDirective:
			size, constName, constVal, derr := a.directiveSize(toks, pos, addr)
			if derr != nil {
				a.errs.Add(derr)
				continue
			}
			if constName != "" {
				if err := a.symbols.Define(constName, constVal, pos); err != nil {
					a.errs.Add(err)
				}
				continue
			}
			addr += size
		case TokenIdentifier:
			addr += a.wordBytes()
		default:
			a.errs.Add(newError(pos, ErrorSyntax, "expected a mnemonic, label, or directive"))
		}
	}
	return nil
}

// directiveSize computes how many bytes a directive occupies (or, for
// .equ/.entry which define no storage, returns a constant name/value to
// register instead).
func (a *Assembler) directiveSize(toks []Token, pos Position, addr uint64) (size uint64, constName string, constVal uint64, err *Error) {
	name := strings.ToLower(toks[0].Literal)
	operands := splitOperands(toks[1:])
	switch name {
	case ".word":
		return uint64(len(operands)) * a.wordBytes(), "", 0, nil
	case ".byte":
		return uint64(len(operands)), "", 0, nil
	case ".ascii":
		if len(operands) != 1 || len(operands[0]) != 1 || operands[0][0].Type != TokenString {
			return 0, "", 0, newError(pos, ErrorOperand, ".ascii requires exactly one string operand")
		}
		return uint64(len(operands[0][0].Literal)), "", 0, nil
	case ".asciz", ".asciiz":
		if len(operands) != 1 || len(operands[0]) != 1 || operands[0][0].Type != TokenString {
			return 0, "", 0, newError(pos, ErrorOperand, "%s requires exactly one string operand", name)
		}
		return uint64(len(operands[0][0].Literal)) + 1, "", 0, nil
	case ".align":
		pad := (a.wordBytes() - (addr % a.wordBytes())) % a.wordBytes()
		return pad, "", 0, nil
	case ".equ":
		if len(operands) != 2 || len(operands[0]) != 1 || operands[0][0].Type != TokenIdentifier {
			return 0, "", 0, newError(pos, ErrorOperand, ".equ requires name, value")
		}
		v, _, _, perr := a.parseImmediate(operands[1], pos)
		if perr != nil {
			return 0, "", 0, perr
		}
		return 0, operands[0][0].Literal, uint64(v), nil
	case ".entry":
		if len(operands) != 1 || len(operands[0]) != 1 {
			return 0, "", 0, newError(pos, ErrorOperand, ".entry requires one label")
		}
		a.entry = operands[0][0].Literal
		return 0, "", 0, nil
	default:
		return 0, "", 0, newError(pos, ErrorInvalidDirective, "unknown directive %q", toks[0].Literal)
	}
}

func (a *Assembler) secondPass(lines []line) (*Program, error) {
	var code []byte
	var addr uint64

	emitWord := func(v uint64) {
		buf := make([]byte, a.wordBytes())
		isa.PutWord(a.order, a.width, buf, v)
		code = append(code, buf...)
		addr += a.wordBytes()
	}

	for _, ln := range lines {
		toks := ln.tokens
		for len(toks) >= 2 && toks[0].Type == TokenIdentifier && toks[1].Type == TokenColon {
			toks = toks[2:]
		}
		if len(toks) == 0 {
			continue
		}
		pos := toks[0].Pos

		switch toks[0].Type {
		case TokenDirective:
			a.emitDirective(toks, pos, &code, &addr)
		case TokenIdentifier:
			inst, err := a.encodeInstruction(toks, addr, pos)
			if err != nil {
				a.errs.Add(err)
				emitWord(0)
				continue
			}
			word, eerr := isa.Encode(a.width, inst)
			if eerr != nil {
				a.errs.Add(newError(pos, ErrorOperand, "%s", eerr))
				emitWord(0)
				continue
			}
			emitWord(word)
		}
	}

	entryAddr := uint64(0)
	if a.entry != "" {
		v, ok := a.symbols.Lookup(a.entry)
		if !ok {
			a.errs.Add(newError(Position{}, ErrorUndefinedLabel, "undefined entry label %q", a.entry))
		}
		entryAddr = v
	}

	out := map[string]uint64{}
	for name, s := range a.symbols.symbols {
		if s.Defined {
			out[name] = s.Value
		}
	}
	return &Program{Width: a.width, Code: code, Entry: entryAddr, Symbols: out}, nil
}

func (a *Assembler) emitDirective(toks []Token, pos Position, code *[]byte, addr *uint64) {
	name := strings.ToLower(toks[0].Literal)
	operands := splitOperands(toks[1:])
	switch name {
	case ".word":
		for _, op := range operands {
			v, _, _, err := a.parseImmediate(op, pos)
			if err != nil {
				a.errs.Add(err)
				v = 0
			}
			buf := make([]byte, a.wordBytes())
			isa.PutWord(a.order, a.width, buf, uint64(v))
			*code = append(*code, buf...)
			*addr += a.wordBytes()
		}
	case ".byte":
		for _, op := range operands {
			v, _, _, err := a.parseImmediate(op, pos)
			if err != nil {
				a.errs.Add(err)
				v = 0
			}
			*code = append(*code, byte(v))
			*addr++
		}
	case ".ascii":
		s := operands[0][0].Literal
		*code = append(*code, []byte(s)...)
		*addr += uint64(len(s))
	case ".asciz", ".asciiz":
		s := operands[0][0].Literal
		*code = append(*code, []byte(s)...)
		*code = append(*code, 0)
		*addr += uint64(len(s)) + 1
	case ".align":
		pad := (a.wordBytes() - (*addr % a.wordBytes())) % a.wordBytes()
		*code = append(*code, make([]byte, pad)...)
		*addr += pad
	case ".equ", ".entry":
		// No storage; handled in the first pass / at emit time above.
	}
}

// encodeInstruction builds the isa.Instruction for one mnemonic line.
// addr is the address of this instruction itself, used as old_pc for
// the PC-relative forms (§4.3).
func (a *Assembler) encodeInstruction(toks []Token, addr uint64, pos Position) (isa.Instruction, *Error) {
	mnemonic := strings.ToLower(toks[0].Literal)
	operands := splitOperands(toks[1:])

	switch mnemonic {
	case "calli", "jumpi", "jumpzi", "pushreli":
		if len(operands) != 1 {
			return isa.Instruction{}, newError(pos, ErrorOperand, "%s takes exactly one operand", mnemonic)
		}
		target, isLabel, label, err := a.parseImmediate(operands[0], pos)
		if err != nil {
			return isa.Instruction{}, err
		}
		var targetAddr uint64
		if isLabel {
			v, ok := a.symbols.Lookup(label)
			if !ok {
				return isa.Instruction{}, newError(pos, ErrorUndefinedLabel, "undefined label %q", label)
			}
			targetAddr = v
		} else {
			targetAddr = uint64(target)
		}
		diff := int64(targetAddr) - int64(addr)
		if diff%int64(a.wordBytes()) != 0 {
			return isa.Instruction{}, newError(pos, ErrorOperand, "target 0x%x is not word-aligned relative to 0x%x", targetAddr, addr)
		}
		imm := diff / int64(a.wordBytes())
		kind := map[string]isa.Kind{
			"calli": isa.KindCalli, "jumpi": isa.KindJumpi,
			"jumpzi": isa.KindJumpzi, "pushreli": isa.KindPushreli,
		}[mnemonic]
		return isa.Instruction{Kind: kind, Imm: imm}, nil

	case "pushi":
		if len(operands) != 1 {
			return isa.Instruction{}, newError(pos, ErrorOperand, "pushi takes exactly one operand")
		}
		v, isLabel, label, err := a.parseImmediate(operands[0], pos)
		if err != nil {
			return isa.Instruction{}, err
		}
		if isLabel {
			resolved, ok := a.symbols.Lookup(label)
			if !ok {
				return isa.Instruction{}, newError(pos, ErrorUndefinedLabel, "undefined symbol %q", label)
			}
			v = int64(resolved)
		}
		return isa.Instruction{Kind: isa.KindPushi, Imm: v}, nil

	case "trap":
		if len(operands) != 1 {
			return isa.Instruction{}, newError(pos, ErrorOperand, "trap takes exactly one operand")
		}
		v, _, _, err := a.parseImmediate(operands[0], pos)
		if err != nil {
			return isa.Instruction{}, err
		}
		return isa.Instruction{Kind: isa.KindTrap, TrapLibrary: uint64(v)}, nil

	default:
		op, ok := isa.LookupMnemonic(mnemonic)
		if !ok {
			return isa.Instruction{}, newError(pos, ErrorInvalidMnemonic, "unknown mnemonic %q", mnemonic)
		}
		if len(operands) != 0 {
			return isa.Instruction{}, newError(pos, ErrorOperand, "%s takes no operands", mnemonic)
		}
		return isa.Instruction{Kind: isa.KindInsn, Op: op}, nil
	}
}

func (a *Assembler) parseImmediate(toks []Token, pos Position) (value int64, isLabel bool, label string, err *Error) {
	neg := false
	i := 0
	if i < len(toks) && toks[i].Type == TokenMinus {
		neg = true
		i++
	}
	if i >= len(toks) {
		return 0, false, "", newError(pos, ErrorOperand, "expected an operand")
	}
	tok := toks[i]
	switch tok.Type {
	case TokenIdentifier:
		if neg {
			return 0, false, "", newError(pos, ErrorOperand, "cannot negate a label")
		}
		return 0, true, tok.Literal, nil
	case TokenNumber:
		v, perr := parseNumber(tok.Literal)
		if perr != nil {
			return 0, false, "", newError(pos, ErrorOperand, "invalid number %q: %s", tok.Literal, perr)
		}
		if neg {
			v = -v
		}
		return v, false, "", nil
	default:
		return 0, false, "", newError(pos, ErrorOperand, "expected a number or label, got %s", tok.Type)
	}
}

func parseNumber(lit string) (int64, error) {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		v, err := strconv.ParseUint(lit[2:], 16, 64)
		return int64(v), err
	}
	if strings.HasPrefix(lit, "0b") || strings.HasPrefix(lit, "0B") {
		v, err := strconv.ParseUint(lit[2:], 2, 64)
		return int64(v), err
	}
	v, err := strconv.ParseInt(lit, 10, 64)
	return v, err
}

// splitOperands groups a flat token slice into comma-separated operand
// groups.
func splitOperands(toks []Token) [][]Token {
	if len(toks) == 0 {
		return nil
	}
	var groups [][]Token
	var cur []Token
	for _, t := range toks {
		if t.Type == TokenComma {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	return groups
}
