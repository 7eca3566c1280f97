package ir

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// This file implements a parser for a small textual form of the IR:
//
//	func clamp(n i32) {
//	entry:
//	  jump loop
//	loop:
//	  i = phi i32 [entry: 0, body: i.next]
//	  c = slt i, n
//	  br c, body, done
//	body:
//	  i.next = add i, 1
//	  jump loop
//	done:
//	  ret i
//	}
//
// Non-φ operands must be defined before use; forward references are only
// permitted in φ-edges and branch targets. Constants are written as
// integer literals and take their type from the sibling operand (or from
// the φ's type).

// A ParseError describes a syntax error and its position.
type ParseError struct {
	Line, Col int
	Msg       string
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", err.Line, err.Col, err.Msg)
}

type token struct {
	kind      tokenKind
	s         string
	line, col int
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokPunct // one of = , : [ ] { } ( ), or any other unrecognized byte
	tokNewline
)

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "end of line"
	default:
		return strconv.Quote(t.s)
	}
}

type lexer struct {
	src       string
	pos       int
	line, col int
}

func isIdentRune(r byte, first bool) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		return true
	case r >= '0' && r <= '9', r == '.':
		return !first
	}
	return false
}

func (l *lexer) next() token {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
			l.col++
		case c == ';': // comment until end of line
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			goto start
		}
	}
start:
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line, col: l.col}
	}
	line, col := l.line, l.col
	c := l.src[l.pos]
	switch {
	case c == '\n':
		l.pos++
		l.line++
		l.col = 1
		return token{kind: tokNewline, s: "\n", line: line, col: col}
	case strings.IndexByte("=,:[]{}()", c) >= 0:
		l.pos++
		l.col++
		return token{kind: tokPunct, s: string(c), line: line, col: col}
	case c == '-' || c >= '0' && c <= '9':
		start := l.pos
		l.pos++
		l.col++
		for l.pos < len(l.src) {
			c := l.src[l.pos]
			if c >= '0' && c <= '9' || c == 'x' || c == 'X' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' {
				l.pos++
				l.col++
			} else {
				break
			}
		}
		return token{kind: tokNumber, s: l.src[start:l.pos], line: line, col: col}
	case isIdentRune(c, true):
		start := l.pos
		for l.pos < len(l.src) && isIdentRune(l.src[l.pos], false) {
			l.pos++
			l.col++
		}
		return token{kind: tokIdent, s: l.src[start:l.pos], line: line, col: col}
	default:
		l.pos++
		l.col++
		return token{kind: tokPunct, s: string(c), line: line, col: col}
	}
}

// A Parser parses textual IR into Functions.
type Parser struct {
	lex lexer
	tok token // current token

	fn     *Function
	blocks map[string]*BasicBlock
	values map[string]Value

	// φ-edges and branch targets are resolved at the end of the function.
	phiFixups    []phiFixup
	branchFixups []branchFixup
}

type phiFixup struct {
	phi    *Phi
	labels []string
	names  []string // operand names; "" for constants already materialized
	consts []*big.Int
	tok    token
}

type branchFixup struct {
	from   *BasicBlock
	labels []string
	tok    token
}

// Parse parses all functions in src.
func Parse(src string) ([]*Function, error) {
	p := &Parser{lex: lexer{src: src, line: 1, col: 1}}
	p.advance()
	var fns []*Function
	for {
		p.skipNewlines()
		if p.tok.kind == tokEOF {
			return fns, nil
		}
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
}

// ParseFunction parses exactly one function.
func ParseFunction(src string) (*Function, error) {
	fns, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(fns) != 1 {
		return nil, fmt.Errorf("expected exactly one function, got %d", len(fns))
	}
	return fns[0], nil
}

func (p *Parser) advance() {
	p.tok = p.lex.next()
}

func (p *Parser) skipNewlines() {
	for p.tok.kind == tokNewline {
		p.advance()
	}
}

func (p *Parser) errorf(tok token, format string, args ...interface{}) error {
	return &ParseError{Line: tok.line, Col: tok.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(kind tokenKind, s string) (token, error) {
	tok := p.tok
	if tok.kind != kind || s != "" && tok.s != s {
		want := s
		if want == "" {
			want = map[tokenKind]string{tokIdent: "identifier", tokNumber: "number", tokNewline: "end of line"}[kind]
		}
		return tok, p.errorf(tok, "expected %s, got %s", want, tok)
	}
	p.advance()
	return tok, nil
}

func parseType(s string) (Type, bool) {
	if s == "bool" {
		return Bool{}, true
	}
	if len(s) < 2 {
		return nil, false
	}
	var unsigned bool
	switch s[0] {
	case 'i':
	case 'u':
		unsigned = true
	default:
		return nil, false
	}
	bits, err := strconv.Atoi(s[1:])
	if err != nil || bits < 1 || bits > 64 {
		return nil, false
	}
	return Int{Bits: bits, Unsigned: unsigned}, true
}

func (p *Parser) parseTypeTok() (Type, error) {
	tok, err := p.expect(tokIdent, "")
	if err != nil {
		return nil, err
	}
	typ, ok := parseType(tok.s)
	if !ok {
		return nil, p.errorf(tok, "invalid type %q", tok.s)
	}
	return typ, nil
}

func (p *Parser) define(tok token, v Value) error {
	if _, ok := p.values[tok.s]; ok {
		return p.errorf(tok, "redefinition of %s", tok.s)
	}
	p.values[tok.s] = v
	return nil
}

// operand parses an operand that must resolve immediately: a defined name
// or a constant typed like typ. typ may be nil if the operand must be a
// name.
func (p *Parser) operand(typ Type) (Value, error) {
	tok := p.tok
	switch tok.kind {
	case tokIdent:
		p.advance()
		v, ok := p.values[tok.s]
		if !ok {
			return nil, p.errorf(tok, "undefined value %s", tok.s)
		}
		return v, nil
	case tokNumber:
		p.advance()
		if typ == nil {
			return nil, p.errorf(tok, "cannot infer type of constant %s", tok.s)
		}
		val, ok := new(big.Int).SetString(tok.s, 0)
		if !ok {
			return nil, p.errorf(tok, "invalid integer %q", tok.s)
		}
		return p.fn.Const(val, typ), nil
	default:
		return nil, p.errorf(tok, "expected operand, got %s", tok)
	}
}

func (p *Parser) parseFunction() (*Function, error) {
	if _, err := p.expect(tokIdent, "func"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent, "")
	if err != nil {
		return nil, err
	}
	p.fn = NewFunction(name.s)
	p.blocks = map[string]*BasicBlock{}
	p.values = map[string]Value{}
	p.phiFixups = nil
	p.branchFixups = nil

	if _, err := p.expect(tokPunct, "("); err != nil {
		return nil, err
	}
	for p.tok.kind != tokPunct || p.tok.s != ")" {
		ptok, err := p.expect(tokIdent, "")
		if err != nil {
			return nil, err
		}
		typ, err := p.parseTypeTok()
		if err != nil {
			return nil, err
		}
		param := p.fn.NewParam(ptok.s, typ)
		if err := p.define(ptok, param); err != nil {
			return nil, err
		}
		if p.tok.kind == tokPunct && p.tok.s == "," {
			p.advance()
		}
	}
	p.advance() // ')'
	if _, err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}

	var block *BasicBlock
	for {
		p.skipNewlines()
		if p.tok.kind == tokPunct && p.tok.s == "}" {
			p.advance()
			break
		}
		tok := p.tok
		if tok.kind != tokIdent && tok.kind != tokNumber {
			return nil, p.errorf(tok, "expected label or instruction, got %s", tok)
		}
		if tok.kind == tokIdent {
			// Peek for a label: "name:".
			p.advance()
			if p.tok.kind == tokPunct && p.tok.s == ":" {
				p.advance()
				if _, ok := p.blocks[tok.s]; ok {
					return nil, p.errorf(tok, "redefinition of block %s", tok.s)
				}
				block = p.fn.NewBlock(tok.s)
				p.blocks[tok.s] = block
				continue
			}
			if block == nil {
				return nil, p.errorf(tok, "instruction outside block")
			}
			if err := p.parseInstruction(block, tok); err != nil {
				return nil, err
			}
			continue
		}
		return nil, p.errorf(tok, "expected label or instruction, got %s", tok)
	}

	if err := p.finishFunction(); err != nil {
		return nil, err
	}
	return p.fn, nil
}

func (p *Parser) parseInstruction(b *BasicBlock, tok token) error {
	switch tok.s {
	case "br":
		cond, err := p.operand(nil)
		if err != nil {
			return err
		}
		if _, err := p.expect(tokPunct, ","); err != nil {
			return err
		}
		t, err := p.expect(tokIdent, "")
		if err != nil {
			return err
		}
		if _, err := p.expect(tokPunct, ","); err != nil {
			return err
		}
		f, err := p.expect(tokIdent, "")
		if err != nil {
			return err
		}
		b.NewIf(cond)
		p.branchFixups = append(p.branchFixups, branchFixup{b, []string{t.s, f.s}, tok})
		return p.endOfLine()
	case "jump":
		t, err := p.expect(tokIdent, "")
		if err != nil {
			return err
		}
		b.NewJump()
		p.branchFixups = append(p.branchFixups, branchFixup{b, []string{t.s}, tok})
		return p.endOfLine()
	case "ret":
		if p.tok.kind == tokNewline || p.tok.kind == tokEOF {
			b.NewRet(nil)
			return p.endOfLine()
		}
		x, err := p.operand(nil)
		if err != nil {
			return err
		}
		b.NewRet(x)
		return p.endOfLine()
	}

	// Value-defining instruction: "name = ...".
	if _, err := p.expect(tokPunct, "="); err != nil {
		return err
	}
	opTok, err := p.expect(tokIdent, "")
	if err != nil {
		return err
	}
	switch opTok.s {
	case "phi":
		return p.parsePhi(b, tok)
	case "trunc", "sext", "zext":
		ops := map[string]Op{"trunc": Trunc, "sext": SExt, "zext": ZExt}
		x, err := p.operand(nil)
		if err != nil {
			return err
		}
		if _, err := p.expect(tokIdent, "to"); err != nil {
			return err
		}
		typ, err := p.parseTypeTok()
		if err != nil {
			return err
		}
		it, ok := typ.(Int)
		if !ok {
			return p.errorf(opTok, "%s requires an integer destination type", opTok.s)
		}
		v := b.NewConvert(tok.s, ops[opTok.s], x, it)
		if err := p.define(tok, v); err != nil {
			return err
		}
		return p.endOfLine()
	}

	var op Op = -1
	for i, name := range opNames {
		if name == opTok.s {
			op = Op(i)
			break
		}
	}
	if op < 0 || op.IsConversion() {
		return p.errorf(opTok, "unknown opcode %q", opTok.s)
	}

	// A constant takes its type from the other operand, which must then be
	// a name; parse the first operand leniently so the name may come second.
	first := p.tok
	x, xconst, err := p.operandOrConst()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokPunct, ","); err != nil {
		return err
	}
	var xt Type
	if x != nil {
		xt = x.Type()
	}
	y, err := p.operand(xt)
	if err != nil {
		return err
	}
	if x == nil {
		x = p.fn.Const(xconst, y.Type())
	}
	if x.Type() != y.Type() {
		return p.errorf(first, "mismatched operand types %s and %s", x.Type(), y.Type())
	}
	v := b.NewBinOp(tok.s, op, x, y)
	if err := p.define(tok, v); err != nil {
		return err
	}
	return p.endOfLine()
}

// operandOrConst parses an operand, deferring constant typing to the
// caller: for a literal it returns (nil, value, nil).
func (p *Parser) operandOrConst() (Value, *big.Int, error) {
	if p.tok.kind == tokNumber {
		tok := p.tok
		p.advance()
		val, ok := new(big.Int).SetString(tok.s, 0)
		if !ok {
			return nil, nil, p.errorf(tok, "invalid integer %q", tok.s)
		}
		return nil, val, nil
	}
	v, err := p.operand(nil)
	return v, nil, err
}

func (p *Parser) parsePhi(b *BasicBlock, nameTok token) error {
	typ, err := p.parseTypeTok()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokPunct, "["); err != nil {
		return err
	}
	fix := phiFixup{tok: nameTok}
	for {
		label, err := p.expect(tokIdent, "")
		if err != nil {
			return err
		}
		if _, err := p.expect(tokPunct, ":"); err != nil {
			return err
		}
		fix.labels = append(fix.labels, label.s)
		switch p.tok.kind {
		case tokIdent:
			fix.names = append(fix.names, p.tok.s)
			fix.consts = append(fix.consts, nil)
			p.advance()
		case tokNumber:
			val, ok := new(big.Int).SetString(p.tok.s, 0)
			if !ok {
				return p.errorf(p.tok, "invalid integer %q", p.tok.s)
			}
			fix.names = append(fix.names, "")
			fix.consts = append(fix.consts, val)
			p.advance()
		default:
			return p.errorf(p.tok, "expected φ-edge operand, got %s", p.tok)
		}
		if p.tok.kind == tokPunct && p.tok.s == "," {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokPunct, "]"); err != nil {
		return err
	}
	phi := b.NewPhi(nameTok.s, typ, make([]Value, len(fix.labels))...)
	fix.phi = phi
	p.phiFixups = append(p.phiFixups, fix)
	if err := p.define(nameTok, phi); err != nil {
		return err
	}
	return p.endOfLine()
}

func (p *Parser) endOfLine() error {
	if p.tok.kind == tokEOF {
		return nil
	}
	_, err := p.expect(tokNewline, "")
	return err
}

func (p *Parser) finishFunction() error {
	if len(p.fn.Blocks) == 0 {
		return fmt.Errorf("function %s has no blocks", p.fn.Name)
	}
	// Resolve branch targets; edge insertion order defines Succs order,
	// which the If instruction relies on.
	for _, fix := range p.branchFixups {
		for _, label := range fix.labels {
			target, ok := p.blocks[label]
			if !ok {
				return p.errorf(fix.tok, "undefined block %s", label)
			}
			fix.from.AddSuccessor(target)
		}
	}
	// Resolve φ-edges against the now-known predecessor order.
	for _, fix := range p.phiFixups {
		b := fix.phi.Block()
		if len(fix.labels) != len(b.Preds) {
			return p.errorf(fix.tok, "φ-node has %d edges, block %s has %d predecessors", len(fix.labels), b, len(b.Preds))
		}
		for i, label := range fix.labels {
			pred, ok := p.blocks[label]
			if !ok {
				return p.errorf(fix.tok, "undefined block %s", label)
			}
			var v Value
			if fix.names[i] != "" {
				v, ok = p.values[fix.names[i]]
				if !ok {
					return p.errorf(fix.tok, "undefined value %s", fix.names[i])
				}
			} else {
				v = p.fn.Const(fix.consts[i], fix.phi.Type())
			}
			idx, ok := b.predIndex(pred)
			if !ok {
				return p.errorf(fix.tok, "φ-edge from %s, which is not a predecessor of %s", pred, b)
			}
			fix.phi.Edges[idx] = v
		}
	}
	p.fn.BuildDomTree()
	return nil
}
