package ir

import (
	"fmt"
	"math/big"
)

// This file provides helpers for constructing functions programmatically.
// The textual parser and the tests are the main clients.

// NewParam appends a parameter to the function.
func (f *Function) NewParam(name string, typ Type) *Param {
	p := &Param{name: name, typ: typ}
	f.Params = append(f.Params, p)
	return p
}

// NewBlock appends an empty basic block to the function. The first block
// created is the entry block.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := &BasicBlock{Index: len(f.Blocks), name: name, parent: f}
	f.Blocks = append(f.Blocks, b)
	f.domValid = false
	return b
}

// Const returns the function's interned constant with the given value and
// type.
func (f *Function) Const(val *big.Int, typ Type) *Const {
	if f.consts == nil {
		f.consts = map[string]*Const{}
	}
	key := val.String() + ":" + typ.String()
	if c, ok := f.consts[key]; ok {
		return c
	}
	c := &Const{Value: new(big.Int).Set(val), typ: typ}
	f.consts[key] = c
	return c
}

// ConstInt is a convenience wrapper around Const for values that fit in
// an int64.
func (f *Function) ConstInt(val int64, typ Type) *Const {
	return f.Const(big.NewInt(val), typ)
}

// emit appends an instruction to the block.
func (b *BasicBlock) emit(instr Instruction) {
	instr.setBlock(b)
	b.Instrs = append(b.Instrs, instr)
}

// insertAfterPhis inserts an instruction directly after the block's
// φ-nodes.
func (b *BasicBlock) insertAfterPhis(instr Instruction) {
	instr.setBlock(b)
	n := b.numPhis()
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[n+1:], b.Instrs[n:])
	b.Instrs[n] = instr
}

// NewBinOp emits X op Y. Comparisons are typed Bool, all other opcodes
// take the type of x.
func (b *BasicBlock) NewBinOp(name string, op Op, x, y Value) *BinOp {
	var typ Type
	if op.IsComparison() {
		typ = Bool{}
	} else {
		typ = x.Type()
	}
	v := &BinOp{register: register{name: name, typ: typ}, Op: op, X: x, Y: y}
	b.emit(v)
	return v
}

// NewConvert emits a width conversion of x to typ.
func (b *BasicBlock) NewConvert(name string, op Op, x Value, typ Int) *Convert {
	if !op.IsConversion() {
		panic(fmt.Sprintf("%s is not a conversion", op))
	}
	v := &Convert{register: register{name: name, typ: typ}, Op: op, X: x}
	b.emit(v)
	return v
}

// NewPhi emits a φ-node. Edges must follow the order of b.Preds once the
// CFG is complete.
func (b *BasicBlock) NewPhi(name string, typ Type, edges ...Value) *Phi {
	v := &Phi{register: register{name: name, typ: typ}, Edges: edges}
	b.emit(v)
	return v
}

// NewSigma inserts a σ-node for x after the block's φ-nodes. from is the
// branching predecessor the σ belongs to.
func (b *BasicBlock) NewSigma(name string, x Value, from *BasicBlock) *Sigma {
	v := &Sigma{register: register{name: name, typ: x.Type()}, X: x, From: from}
	b.insertAfterPhis(v)
	return v
}

// NewIf terminates the block with a two-way branch. Edges to the true and
// false successors must be added separately, in that order.
func (b *BasicBlock) NewIf(cond Value) *If {
	instr := &If{Cond: cond}
	b.emit(instr)
	return instr
}

// NewJump terminates the block with an unconditional branch.
func (b *BasicBlock) NewJump() *Jump {
	instr := &Jump{}
	b.emit(instr)
	return instr
}

// NewRet terminates the block with a return. x may be nil.
func (b *BasicBlock) NewRet(x Value) *Ret {
	instr := &Ret{X: x}
	b.emit(instr)
	return instr
}
