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
    `testing`

    `github.com/cloudwego/vecplan/internal/canon`
    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/stretchr/testify/require`
)

func makeLoad(t *testing.T) *hir.Instr {
    t.Helper()
    p := hir.CreateBuilder("f")
    a := p.Param("a", hir.Ptr)
    ld := p.Load(hir.I32, a)
    p.Ret(nil)
    return ld
}

func TestAttachDetach(t *testing.T) {
    u := canon.NewUtils(canon.NewBlobTable())
    n := NewHLInst(makeLoad(t))

    /* load: lval + address operand */
    require.Equal(t, 2, n.NumOperands())

    r := NewRegDDRef(u.NewIV(hir.I64, 1), 1)
    n.SetOperand(1, r)
    require.Same(t, &n.HLDDNode, r.Node())
    require.True(t, n.IsRval(r))
    require.False(t, n.IsLval(r))
    require.False(t, n.IsFake(r))

    /* a DDRef attaches to one node at a time */
    m := NewHLInst(makeLoad(t))
    require.Panics(t, func() { m.SetOperand(1, r) })

    /* replacing the slot clears the old node pointer first */
    r2 := NewRegDDRef(u.NewIV(hir.I64, 1), 1)
    n.SetOperand(1, r2)
    require.Nil(t, r.Node())
    m.SetOperand(1, r)
    require.Same(t, &m.HLDDNode, r.Node())
}

func TestLvalAndFakes(t *testing.T) {
    u := canon.NewUtils(canon.NewBlobTable())
    n := NewHLInst(makeLoad(t))

    lv := NewRegDDRef(u.NewConst(hir.I64, 0), 2)
    n.SetOperand(0, lv)
    require.True(t, n.IsLval(lv))
    require.False(t, n.IsRval(lv))

    /* fakes live past NumOperands and never count as operands */
    fk := NewRegDDRef(u.NewConst(hir.I64, 0), 3)
    n.AddFake(fk)
    require.Equal(t, 2, n.NumOperands())
    require.Equal(t, 3, n.NumDDRefs())
    require.True(t, n.IsFake(fk))
    require.False(t, n.IsRval(fk))

    n.RemoveFake(fk)
    require.Nil(t, fk.Node())
    require.Equal(t, 2, n.NumDDRefs())
    require.Panics(t, func() { n.RemoveFake(fk) })
}

func TestBlobDDRefs(t *testing.T) {
    bt := canon.NewBlobTable()
    u := canon.NewUtils(bt)
    b1 := bt.Insert(canon.BlobExpr { Symbase: 5, Level: 1 })
    b2 := bt.Insert(canon.BlobExpr { Symbase: 6, Level: 2 })

    /* ce = b1*i1 + b2 */
    ce := u.NewIV(hir.I64, 1)
    u.MultiplyByBlob(ce, b1)
    u.Add(ce, u.NewBlob(hir.I64, b2))

    r := NewRegDDRef(ce, 1)
    r.PopulateBlobDDRefs(u)
    blobs := r.BlobDDRefs()
    require.Len(t, blobs, 2)
    require.Equal(t, b1, blobs[0].Blob)
    require.Equal(t, b2, blobs[1].Blob)
    require.Equal(t, r, blobs[0].Owner())

    /* blob edges are visited along with their owner */
    n := NewHLInst(makeLoad(t))
    n.SetOperand(1, r)
    refs, edges := 0, 0
    n.ForEachDDRef(func(*RegDDRef) { refs++ }, func(*BlobDDRef) { edges++ })
    require.Equal(t, 1, refs)
    require.Equal(t, 2, edges)

    /* detach releases every reference for reuse */
    n.Detach()
    require.Nil(t, r.Node())
    require.Equal(t, 2, n.NumDDRefs())
}

func loopFn() *hir.Function {
    p := hir.CreateBuilder("copy")
    a := p.Param("a", hir.Ptr)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(hir.I32)
    v := p.Load(hir.I32, p.GEP(a, iv))
    p.Store(v, p.GEP(a, p.Add(hir.I32, iv, hir.Int32(2))))
    next := p.Add(hir.I32, iv, hir.Int32(1))
    c := p.ICmp(hir.CmpLT, next, hir.Int32(100))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, hir.Int32(0))
    p.AddIncoming(iv, loop, next)

    p.Label("exit")
    p.Ret(nil)
    return p.Build()
}

func translate(fn *hir.Function) map[*hir.BasicBlock][]*HLInst {
    dt := hir.BuildDominatorTree(fn)
    li := hir.BuildLoopInfo(fn, &dt)
    se := &hir.ScalarEvolution { LI: li }
    return NewTranslator(canon.NewUtils(canon.NewBlobTable()), li, se).Translate(fn.Blocks)
}

func pick(nodes map[*hir.BasicBlock][]*HLInst, op hir.Op) *HLInst {
    for _, ns := range nodes {
        for _, n := range ns {
            if n.Inst.Op == op {
                return n
            }
        }
    }
    return nil
}

func TestTranslate_GEPDecomposition(t *testing.T) {
    nodes := translate(loopFn())

    /* a[i]: byte stride 4, no constant offset */
    ld := pick(nodes, hir.OP_load)
    require.NotNil(t, ld)
    require.True(t, ld.IsMemAccess())

    ref := ld.DDRef(ld.NumOperands() - 1)
    require.NotNil(t, ref.GEPOff)
    require.Equal(t, int64(4), ref.GEPOff.IVCoeffAt(1).C)
    require.Equal(t, int64(0), ref.GEPOff.K)

    /* a[i+2]: same stride, same symbase, 8 bytes in */
    st := pick(nodes, hir.OP_store)
    require.NotNil(t, st)

    sref := st.DDRef(0)
    require.NotNil(t, sref.GEPOff)
    require.Equal(t, int64(4), sref.GEPOff.IVCoeffAt(1).C)
    require.Equal(t, int64(8), sref.GEPOff.K)
    require.Equal(t, ref.Symbase, sref.Symbase)
}

func TestTranslate_NonAffineIndexBecomesBlob(t *testing.T) {
    p := hir.CreateBuilder("square")
    a := p.Param("a", hir.Ptr)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(hir.I32)
    sq := p.Mul(hir.I32, iv, iv)
    v := p.Load(hir.I32, p.GEP(a, sq))
    p.Store(v, p.GEP(a, iv))
    next := p.Add(hir.I32, iv, hir.Int32(1))
    c := p.ICmp(hir.CmpLT, next, hir.Int32(100))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, hir.Int32(0))
    p.AddIncoming(iv, loop, next)

    p.Label("exit")
    p.Ret(nil)

    nodes := translate(p.Build())
    ld := pick(nodes, hir.OP_load)
    require.NotNil(t, ld)

    /* i*i folds the variable factor in as a blob on the IV coefficient */
    ref := ld.DDRef(ld.NumOperands() - 1)
    require.NotNil(t, ref.GEPOff)
    require.NotZero(t, ref.GEPOff.IVCoeffAt(1).Blob)
}
