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

package hlir

import (
    `github.com/cloudwego/vecplan/internal/canon`
    `github.com/cloudwego/vecplan/internal/hir`
)

// Translator lowers the instructions of one identified region into
// HLDDNodes carrying canonical expressions. Anything that does not trace
// to an affine form over the loop induction variables becomes a blob.
type Translator struct {
    U     *canon.Utils
    LI    *hir.LoopInfo
    SE    *hir.ScalarEvolution
    syms  map[hir.Value]int
    blobs map[hir.Value]uint32
    exprs map[*hir.Instr]*canon.CanonExpr
}

func NewTranslator(u *canon.Utils, li *hir.LoopInfo, se *hir.ScalarEvolution) *Translator {
    return &Translator {
        U     : u,
        LI    : li,
        SE    : se,
        syms  : make(map[hir.Value]int),
        blobs : make(map[hir.Value]uint32),
        exprs : make(map[*hir.Instr]*canon.CanonExpr),
    }
}

// Symbase assigns a stable storage identifier to a base value. Equal
// symbases mean potential aliasing.
func (self *Translator) Symbase(v hir.Value) int {
    if id, ok := self.syms[v]; ok {
        return id
    }
    id := len(self.syms) + 1
    self.syms[v] = id
    return id
}

// Translate builds the node list of every block, in block order. Each
// operand slot gets a RegDDRef with the canonical form of its value;
// memory accesses additionally get their GEP decomposition.
func (self *Translator) Translate(bbs []*hir.BasicBlock) map[*hir.BasicBlock][]*HLInst {
    ret := make(map[*hir.BasicBlock][]*HLInst, len(bbs))
    for _, bb := range bbs {
        var ns []*HLInst
        bb.ForEachInstr(func(p *hir.Instr) {
            ns = append(ns, self.translateInstr(p))
        })
        ret[bb] = ns
    }
    return ret
}

func (self *Translator) translateInstr(p *hir.Instr) *HLInst {
    n := NewHLInst(p)
    off := 0

    if n.hasLval {
        var lv *RegDDRef
        if p.Op == hir.OP_store {
            lv = NewRegDDRef(self.Expr(p.Args[1]), 0)
            self.populateMemRef(lv, p.Args[1], p.Args[0].Type())
        } else {
            lv = NewRegDDRef(self.Expr(p), 0)
        }
        lv.PopulateBlobDDRefs(self.U)
        n.SetOperand(0, lv)
        off = 1
    }

    for i, a := range p.Args {
        if off + i >= n.NumOperands() {
            break
        }
        r := NewRegDDRef(self.Expr(a), 0)
        if p.Op == hir.OP_load && i == len(p.Args) - 1 {
            self.populateMemRef(r, a, p.Ty)
        }
        r.PopulateBlobDDRefs(self.U)
        n.SetOperand(off + i, r)
    }
    return n
}

// populateMemRef decomposes a GEP address into base, symbase and a byte
// offset expression scaled by the element size.
func (self *Translator) populateMemRef(r *RegDDRef, addr hir.Value, elem hir.Type) {
    gep, ok := addr.(*hir.Instr)
    if !ok || gep.Op != hir.OP_gep {
        r.Symbase = self.Symbase(addr)
        return
    }

    base := gep.Args[0]
    idx := self.Expr(gep.Args[1])

    r.GEPBase = base
    r.Symbase = self.Symbase(base)
    r.GEPOff = self.U.MultiplyByConstant(self.U.Clone(idx), int64(elem.Bits / 8))
}

// Expr returns the canonical form of v. Results for instructions are
// cached, the same value always canonicalizes to the same expression.
func (self *Translator) Expr(v hir.Value) *canon.CanonExpr {
    switch p := v.(type) {
        case *hir.Const : return self.constExpr(p)
        case *hir.Instr : return self.instrExpr(p)
        default         : return self.blobExpr(v)
    }
}

func (self *Translator) constExpr(p *hir.Const) *canon.CanonExpr {
    if p.Ty.IsInteger() {
        return self.U.NewConst(p.Ty, p.Iv)
    }
    return self.blobExpr(p)
}

func (self *Translator) instrExpr(p *hir.Instr) *canon.CanonExpr {
    if e, ok := self.exprs[p]; ok {
        return e
    }

    e := self.lower(p)
    self.exprs[p] = e
    return e
}

func (self *Translator) lower(p *hir.Instr) *canon.CanonExpr {
    switch p.Op {
        case hir.OP_phi  : return self.phiExpr(p)
        case hir.OP_add  : return self.addExpr(p, false)
        case hir.OP_sub  : return self.addExpr(p, true)
        case hir.OP_mul  : return self.mulExpr(p)
        case hir.OP_shl  : return self.shlExpr(p)
        case hir.OP_zext : return self.castExpr(p, false)
        case hir.OP_sext : return self.castExpr(p, true)
        default          : return self.blobExpr(p)
    }
}

// phiExpr maps the induction phi of its loop to an IV term; every other
// phi is opaque.
func (self *Translator) phiExpr(p *hir.Instr) *canon.CanonExpr {
    lp := self.LI.LoopFor(p.Block)
    if lp != nil && self.SE != nil && self.SE.IndVarPhi(lp) == p {
        return self.U.NewIV(p.Ty, lp.Depth())
    }
    return self.blobExpr(p)
}

func (self *Translator) addExpr(p *hir.Instr, sub bool) *canon.CanonExpr {
    a := self.U.Clone(self.Expr(p.Args[0]))
    b := self.Expr(p.Args[1])

    var e *canon.CanonExpr
    if sub {
        e = self.U.Subtract(a, b)
    } else {
        e = self.U.Add(a, b)
    }

    if e == nil {
        return self.blobExpr(p)
    }
    return e
}

func (self *Translator) mulExpr(p *hir.Instr) *canon.CanonExpr {
    if c, ok := p.Args[1].(*hir.Const); ok && c.Ty.IsInteger() {
        return self.U.MultiplyByConstant(self.U.Clone(self.Expr(p.Args[0])), c.Iv)
    }
    if c, ok := p.Args[0].(*hir.Const); ok && c.Ty.IsInteger() {
        return self.U.MultiplyByConstant(self.U.Clone(self.Expr(p.Args[1])), c.Iv)
    }

    /* variable factor: fold it in as a blob product */
    b := self.blobIndex(p.Args[1])
    return self.U.MultiplyByBlob(self.U.Clone(self.Expr(p.Args[0])), b)
}

func (self *Translator) shlExpr(p *hir.Instr) *canon.CanonExpr {
    if c, ok := p.Args[1].(*hir.Const); ok && c.Iv >= 0 && c.Iv < 63 {
        return self.U.MultiplyByConstant(self.U.Clone(self.Expr(p.Args[0])), int64(1) << uint64(c.Iv))
    }
    return self.blobExpr(p)
}

func (self *Translator) castExpr(p *hir.Instr, sext bool) *canon.CanonExpr {
    e := self.U.Clone(self.Expr(p.Args[0]))
    e.DstType = p.Ty
    e.SExt = sext
    return e
}

func (self *Translator) blobExpr(v hir.Value) *canon.CanonExpr {
    return self.U.NewBlob(v.Type(), self.blobIndex(v))
}

// blobIndex interns v in the blob table, recording the loop depth it is
// defined at.
func (self *Translator) blobIndex(v hir.Value) uint32 {
    if idx, ok := self.blobs[v]; ok {
        return idx
    }

    level := 0
    if p, ok := v.(*hir.Instr); ok && p.Block != nil {
        if lp := self.LI.LoopFor(p.Block); lp != nil {
            level = lp.Depth()
        }
    }

    idx := self.U.Blobs.Insert(canon.BlobExpr {
        Under   : v,
        Symbase : self.Symbase(v),
        Level   : level,
    })
    self.blobs[v] = idx
    return idx
}
