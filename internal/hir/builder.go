/*
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hir

// Builder assembles a Function block by block. Forward branch targets are
// referenced by label and patched when the label is bound.
type Builder struct {
    i     int
    fn    *Function
    cur   *BasicBlock
    refs  map[string]*BasicBlock
    pends map[string][]*pendJump
}

type pendJump struct {
    p    *Instr
    slot int
}

func CreateBuilder(name string) *Builder {
    fn := &Function { Name: name }
    return &Builder {
        fn    : fn,
        refs  : make(map[string]*BasicBlock),
        pends : make(map[string][]*pendJump),
    }
}

func (self *Builder) Function() *Function {
    return self.fn
}

func (self *Builder) Param(name string, ty Type) *Param {
    p := &Param { Ty: ty, Name: name }
    self.fn.Params = append(self.fn.Params, p)
    return p
}

func (self *Builder) newBlock() *BasicBlock {
    bb := &BasicBlock { Id: len(self.fn.Blocks) }
    self.fn.Blocks = append(self.fn.Blocks, bb)
    return bb
}

// Label binds a name to a fresh block and makes it current, patching every
// pending forward jump that referenced it.
func (self *Builder) Label(name string) *BasicBlock {
    if _, ok := self.refs[name]; ok {
        panic("hir: label " + name + " has already been linked")
    }

    /* bind the label */
    bb := self.newBlock()
    self.refs[name] = bb

    /* patch all the pending jumps */
    for _, q := range self.pends[name] {
        q.p.Succ[q.slot] = bb
        bb.Pred = append(bb.Pred, q.p.Block)
    }

    /* mark as resolved */
    delete(self.pends, name)
    self.cur = bb
    return bb
}

func (self *Builder) block() *BasicBlock {
    if self.cur == nil {
        self.cur = self.newBlock()
    }
    return self.cur
}

func (self *Builder) add(p *Instr) *Instr {
    bb := self.block()
    p.Block = bb

    if p.Op.IsTerminator() {
        if bb.Term != nil {
            panic("hir: block already terminated: " + bb.Name())
        }
        bb.Term = p
        self.cur = nil
    } else {
        bb.Ins = append(bb.Ins, p)
    }

    self.i++
    p.Id = self.i
    return p
}

func (self *Builder) link(p *Instr, slot int, to string) {
    if bb, ok := self.refs[to]; ok {
        p.Succ[slot] = bb
        bb.Pred = append(bb.Pred, p.Block)
    } else {
        self.pends[to] = append(self.pends[to], &pendJump { p: p, slot: slot })
    }
}

/* straight-line instructions */

func (self *Builder) Add(ty Type, x Value, y Value) *Instr { return self.add(&Instr { Op: OP_add, Ty: ty, Args: []Value { x, y } }) }
func (self *Builder) Sub(ty Type, x Value, y Value) *Instr { return self.add(&Instr { Op: OP_sub, Ty: ty, Args: []Value { x, y } }) }
func (self *Builder) Mul(ty Type, x Value, y Value) *Instr { return self.add(&Instr { Op: OP_mul, Ty: ty, Args: []Value { x, y } }) }

func (self *Builder) Bin(op Op, ty Type, x Value, y Value) *Instr {
    return self.add(&Instr { Op: op, Ty: ty, Args: []Value { x, y } })
}

func (self *Builder) ICmp(pred CmpPred, x Value, y Value) *Instr {
    return self.add(&Instr { Op: OP_icmp, Ty: I1, Pred: pred, Args: []Value { x, y } })
}

func (self *Builder) Cast(op Op, ty Type, v Value) *Instr {
    return self.add(&Instr { Op: op, Ty: ty, Args: []Value { v } })
}

func (self *Builder) GEP(base Value, index Value) *Instr {
    return self.add(&Instr { Op: OP_gep, Ty: Ptr, Args: []Value { base, index } })
}

func (self *Builder) Load(ty Type, addr Value) *Instr {
    return self.add(&Instr { Op: OP_load, Ty: ty, Args: []Value { addr } })
}

func (self *Builder) Store(v Value, addr Value) *Instr {
    return self.add(&Instr { Op: OP_store, Ty: Void, Args: []Value { v, addr } })
}

func (self *Builder) Call(ty Type, fn string, args ...Value) *Instr {
    return self.add(&Instr { Op: OP_call, Ty: ty, Callee: fn, Args: args })
}

func (self *Builder) Raw(op Op, ty Type, args ...Value) *Instr {
    return self.add(&Instr { Op: op, Ty: ty, Args: args })
}

func (self *Builder) Directive(d Directive) *Instr {
    return self.add(&Instr { Op: OP_directive, Ty: Void, Dir: d })
}

func (self *Builder) SimdDirective(vf uint32) *Instr {
    return self.add(&Instr { Op: OP_directive, Ty: Void, Dir: DirBeginSIMD, SimdVF: vf })
}

// Phi builds an empty phi node, incoming edges are attached later with
// AddIncoming once the predecessor values exist.
func (self *Builder) Phi(ty Type) *Instr {
    return self.add(&Instr { Op: OP_phi, Ty: ty })
}

func (self *Builder) AddIncoming(phi *Instr, bb *BasicBlock, v Value) {
    phi.Incoming = append(phi.Incoming, PhiEdge { B: bb, V: v })
}

/* terminators */

func (self *Builder) Jmp(to string) *Instr {
    p := self.add(&Instr { Op: OP_jmp, Ty: Void, Succ: make([]*BasicBlock, 1) })
    self.link(p, 0, to)
    return p
}

func (self *Builder) Br(cond Value, ifTrue string, ifFalse string) *Instr {
    p := self.add(&Instr { Op: OP_br, Ty: Void, Args: []Value { cond }, Succ: make([]*BasicBlock, 2) })
    self.link(p, 0, ifTrue)
    self.link(p, 1, ifFalse)
    return p
}

func (self *Builder) Ret(v Value) *Instr {
    if v == nil {
        return self.add(&Instr { Op: OP_ret, Ty: Void })
    } else {
        return self.add(&Instr { Op: OP_ret, Ty: Void, Args: []Value { v } })
    }
}

// Build checks that every referenced label was bound and returns the
// assembled function.
func (self *Builder) Build() *Function {
    for key := range self.pends {
        panic("hir: labels are not fully resolved: " + key)
    }
    return self.fn
}
