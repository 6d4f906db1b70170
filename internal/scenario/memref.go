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

package scenario

import (
    `github.com/cloudwego/vecplan/internal/canon`
    `github.com/cloudwego/vecplan/internal/cost`
    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/hlir`
    `github.com/cloudwego/vecplan/internal/region`
    `github.com/cloudwego/vecplan/internal/vls`
)

// _Access pairs one translated memory access with its derived memref and
// the aliasing facts the deny matrix needs.
type _Access struct {
    node    *hlir.HLInst
    mrf     *vls.ClientMemref
    symbase int
    store   bool
}

// groupAccesses derives a memref for every load / store of the region,
// feeds them to the grouping engine and packs the result for the cost
// gatherer.
func (self *Evaluator) groupAccesses(r *region.IRRegion, nodes map[*hir.BasicBlock][]*hlir.HLInst, vf uint32) *cost.VLSInfo {
    info := &cost.VLSInfo {
        Groups : make(map[*hlir.HLInst]*vls.Group),
        First  : make(map[*hlir.HLInst]bool),
        Mrfs   : make(map[*hlir.HLInst]vls.Memref),
    }

    var acc []_Access
    for _, bb := range r.BBs {
        for _, n := range nodes[bb] {
            if !n.IsMemAccess() {
                continue
            }
            if a := self.deriveMemref(n, uint32(len(acc)), len(acc), vf); a != nil {
                acc = append(acc, *a)
            }
        }
    }

    self.buildDenyMatrix(acc)

    mrfs := make([]vls.Memref, len(acc))
    for i, a := range acc {
        mrfs[i] = a.mrf
        info.Mrfs[a.node] = a.mrf
    }

    vlen := self.Query.RegisterBitWidth() / 8
    if vlen > vls.MaxVectorLength {
        vlen = vls.MaxVectorLength
    }

    _, gmap := vls.GetGroups(mrfs, vlen)
    for _, a := range acc {
        g := gmap[a.mrf]
        if g == nil || g.Size() < 2 {
            continue
        }
        info.Groups[a.node] = g
        if g.Members[0].Mrf == vls.Memref(a.mrf) {
            info.First[a.node] = true
        }
    }
    return info
}

// deriveMemref reads the access shape off the translated GEP offset: the
// IV coefficient at the access's loop level is the byte stride, the
// constant term the byte offset. Anything non-affine over that single IV
// becomes an indexed access on a base of its own, so it never groups but
// still prices as a gather.
func (self *Evaluator) deriveMemref(n *hlir.HLInst, id uint32, loc int, vf uint32) *_Access {
    p := n.Inst
    store := p.Op == hir.OP_store

    slot := n.NumOperands() - 1
    if store {
        slot = 0
    }

    ref := n.DDRef(slot)
    if ref == nil || ref.GEPOff == nil {
        return nil
    }

    lp := self.LI.LoopFor(p.Block)
    if lp == nil {
        return nil
    }

    ety := p.Ty
    if store {
        ety = p.Args[0].Type()
    }

    a := &_Access {
        node    : n,
        symbase : ref.Symbase,
        store   : store,
    }

    kind := vls.SLoad
    if store {
        kind = vls.SStore
    }

    ce := ref.GEPOff
    depth := lp.Depth()

    if stride, off, ok := affineOverIV(ce, depth); ok {
        a.mrf = &vls.ClientMemref {
            Id     : id,
            AccTy  : kind,
            Ty     : vls.VecType { ElemBits: ety.Bits, NumElems: vf },
            Base   : ref.Symbase,
            Offset : off,
            Stride : stride,
            Loc    : loc,
            Deny   : make(map[uint32]bool),
        }
        return a
    }

    if kind == vls.SLoad {
        kind = vls.ILoad
    } else {
        kind = vls.IStore
    }

    /* unique negative base: indexed accesses never claim a constant
     * distance to anything */
    a.mrf = &vls.ClientMemref {
        Id    : id,
        AccTy : kind,
        Ty    : vls.VecType { ElemBits: ety.Bits, NumElems: vf },
        Base  : -(loc + 1),
        Loc   : loc,
        Deny  : make(map[uint32]bool),
    }
    return a
}

// affineOverIV accepts stride * iv + K with the IV of the given loop
// level only: no blobs, no division, no other induction variables.
func affineOverIV(ce *canon.CanonExpr, depth int) (int64, int64, bool) {
    if ce.IsNonLinear() || ce.Denom != 1 || len(ce.Blobs) != 0 {
        return 0, 0, false
    }
    for lvl := 1; lvl <= ce.NumIVs(); lvl++ {
        if lvl != depth && !isZeroCoeff(ce, lvl) {
            return 0, 0, false
        }
    }

    cf := ce.IVCoeffAt(depth)
    if cf.Blob != 0 {
        return 0, 0, false
    }
    return cf.C, ce.K, true
}

// buildDenyMatrix forbids sinking an access across a potentially aliasing
// one. Same-symbase pairs with a known non-zero constant distance touch
// disjoint bytes within one iteration and stay movable.
func (self *Evaluator) buildDenyMatrix(acc []_Access) {
    for i := range acc {
        for j := range acc {
            if i == j {
                continue
            }

            lo, hi := i, j
            if lo > hi {
                lo, hi = hi, lo
            }

            for k := lo; k <= hi; k++ {
                if k == i {
                    continue
                }
                if conflicts(&acc[i], &acc[k]) {
                    acc[i].mrf.Deny[acc[j].mrf.Id] = true
                    break
                }
            }
        }
    }
}

func conflicts(a *_Access, b *_Access) bool {
    if !a.store && !b.store {
        return false
    }
    if a.symbase != b.symbase {
        return false
    }
    if d, ok := a.mrf.IsAConstDistanceFrom(b.mrf); ok && d != 0 {
        return false
    }
    return true
}

func isZeroCoeff(ce *canon.CanonExpr, lvl int) bool {
    cf := ce.IVCoeffAt(lvl)
    return cf.C == 0 && cf.Blob == 0
}
