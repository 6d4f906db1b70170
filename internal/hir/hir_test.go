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

import (
    `testing`

    `github.com/stretchr/testify/require`
)

func buildDiamond() *Function {
    p := CreateBuilder("diamond")
    x := p.Param("x", I32)
    c := p.ICmp(CmpLT, x, Int32(10))
    p.Br(c, "left", "right")
    p.Label("left")
    p.Jmp("merge")
    p.Label("right")
    p.Jmp("merge")
    p.Label("merge")
    p.Ret(nil)
    return p.Build()
}

func buildCountedLoop() (*Function, *BasicBlock, *BasicBlock) {
    p := CreateBuilder("counted")
    base := p.Param("a", Ptr)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(I32)
    addr := p.GEP(base, iv)
    v := p.Load(I32, addr)
    p.Store(v, addr)
    next := p.Add(I32, iv, Int32(1))
    c := p.ICmp(CmpLT, next, Int32(10))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, Int32(0))
    p.AddIncoming(iv, loop, next)

    p.Label("exit")
    p.Ret(nil)
    return p.Build(), entry, loop
}

func TestBuilder_Diamond(t *testing.T) {
    fn := buildDiamond()
    require.Equal(t, 4, fn.NumBlocks())
    require.Equal(t, 2, len(fn.Entry().Successors()))
    require.Equal(t, 2, len(fn.Blocks[3].Pred))
    require.Nil(t, fn.Blocks[3].Successors())
}

func TestDominator_Diamond(t *testing.T) {
    fn := buildDiamond()
    dt := BuildDominatorTree(fn)

    /* entry immediately dominates everything */
    for _, bb := range fn.Blocks[1:] {
        require.Equal(t, fn.Entry(), dt.IDom(bb))
    }
    require.True(t, dt.Dominates(fn.Entry(), fn.Blocks[3]))
    require.False(t, dt.Dominates(fn.Blocks[1], fn.Blocks[3]))
    require.True(t, dt.Dominates(fn.Blocks[3], fn.Blocks[3]))

    /* the merge block post-dominates both arms and the entry */
    pdt := BuildPostDominatorTree(fn)
    require.Equal(t, fn.Blocks[3], pdt.Root)
    for _, bb := range fn.Blocks[:3] {
        require.True(t, pdt.Dominates(fn.Blocks[3], bb))
    }
}

func TestLoopInfo_Counted(t *testing.T) {
    fn, entry, loop := buildCountedLoop()
    dt := BuildDominatorTree(fn)
    li := BuildLoopInfo(fn, &dt)

    require.Len(t, li.Roots, 1)
    lp := li.Roots[0]
    require.Equal(t, loop, lp.Header)
    require.Equal(t, loop, lp.Latch())
    require.Equal(t, entry, lp.Preheader())
    require.Equal(t, fn.Blocks[2], lp.ExitBlock())
    require.Equal(t, 1, lp.Depth())
    require.True(t, lp.IsInnermost())
    require.True(t, lp.IsLoopSimplifyForm())
    require.Equal(t, lp, li.LoopFor(loop))
    require.Nil(t, li.LoopFor(entry))
}

func TestLoopInfo_Nested(t *testing.T) {
    p := CreateBuilder("nested")
    jmp := p.Jmp("outer")
    entry := jmp.Block

    outer := p.Label("outer")
    i := p.Phi(I32)
    p.Jmp("inner")

    inner := p.Label("inner")
    j := p.Phi(I32)
    nj := p.Add(I32, j, Int32(1))
    c1 := p.ICmp(CmpLT, nj, Int32(8))
    p.Br(c1, "inner", "olatch")
    p.AddIncoming(j, outer, Int32(0))
    p.AddIncoming(j, inner, nj)

    olatch := p.Label("olatch")
    ni := p.Add(I32, i, Int32(1))
    c2 := p.ICmp(CmpLT, ni, Int32(4))
    p.Br(c2, "outer", "exit")
    p.AddIncoming(i, entry, Int32(0))
    p.AddIncoming(i, olatch, ni)

    p.Label("exit")
    p.Ret(nil)
    fn := p.Build()

    dt := BuildDominatorTree(fn)
    li := BuildLoopInfo(fn, &dt)
    require.Len(t, li.Roots, 1)

    olp := li.Roots[0]
    require.Equal(t, outer, olp.Header)
    require.Len(t, olp.Children, 1)
    require.Equal(t, 3, len(olp.Blocks))

    ilp := olp.Children[0]
    require.Equal(t, inner, ilp.Header)
    require.Equal(t, olp, ilp.Parent)
    require.Equal(t, 2, ilp.Depth())
    require.Equal(t, outer, ilp.Preheader())
    require.Equal(t, ilp, li.LoopFor(inner))
    require.Equal(t, olp, li.LoopFor(olatch))

    se := ScalarEvolution { LI: li }
    n, ok := se.TripCount(ilp)
    require.True(t, ok)
    require.Equal(t, int64(8), n)
    n, ok = se.TripCount(olp)
    require.True(t, ok)
    require.Equal(t, int64(4), n)
}

func TestScalarEvolution_Counted(t *testing.T) {
    fn, _, loop := buildCountedLoop()
    dt := BuildDominatorTree(fn)
    li := BuildLoopInfo(fn, &dt)
    se := ScalarEvolution { LI: li }
    lp := li.LoopFor(loop)

    n, ok := se.BackedgeTakenCount(lp)
    require.True(t, ok)
    require.Equal(t, int64(9), n)

    n, ok = se.TripCount(lp)
    require.True(t, ok)
    require.Equal(t, int64(10), n)
    require.True(t, se.IsSmallTripCount(lp))
    require.NotNil(t, se.IndVarPhi(lp))
}

func TestScalarEvolution_Unanalyzable(t *testing.T) {
    p := CreateBuilder("opaque")
    n := p.Param("n", I32)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(I32)
    next := p.Add(I32, iv, Int32(1))
    c := p.ICmp(CmpLT, next, n)
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, Int32(0))
    p.AddIncoming(iv, loop, next)
    p.Label("exit")
    p.Ret(nil)
    fn := p.Build()

    dt := BuildDominatorTree(fn)
    li := BuildLoopInfo(fn, &dt)
    se := ScalarEvolution { LI: li }

    _, ok := se.BackedgeTakenCount(li.LoopFor(loop))
    require.False(t, ok)
}

func TestReducible(t *testing.T) {
    fn := buildDiamond()
    dt := BuildDominatorTree(fn)
    require.True(t, IsReducible(fn, &dt))

    /* two blocks jumping at each other, entered from both sides */
    p := CreateBuilder("irreducible")
    x := p.Param("x", I32)
    c := p.ICmp(CmpEQ, x, Int32(0))
    p.Br(c, "a", "b")
    p.Label("a")
    p.Jmp("b")
    p.Label("b")
    p.Jmp("a")
    bad := p.Build()

    bdt := BuildDominatorTree(bad)
    require.False(t, IsReducible(bad, &bdt))
}

func TestSIMDDirective(t *testing.T) {
    p := CreateBuilder("simd")
    p.SimdDirective(8)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(I32)
    next := p.Add(I32, iv, Int32(1))
    c := p.ICmp(CmpLT, next, Int32(100))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, Int32(0))
    p.AddIncoming(iv, loop, next)
    p.Label("exit")
    p.Directive(DirEndSIMD)
    p.Ret(nil)
    fn := p.Build()

    dt := BuildDominatorTree(fn)
    li := BuildLoopInfo(fn, &dt)
    lp := li.LoopFor(loop)
    require.True(t, lp.IsSIMD)
    require.Equal(t, uint32(8), lp.ForcedVF)
}

func TestTypeVec(t *testing.T) {
    v := I32.Vec(8)
    require.True(t, v.IsVector())
    require.Equal(t, I32, v.Elem())
    require.Equal(t, I32, I32.Vec(1))
    require.Equal(t, uint32(256), (&DataLayout{}).TypeSizeInBits(v))
    require.Equal(t, "<8 x i32>", v.String())
}

func TestTLI(t *testing.T) {
    tli := DefaultTLI()
    require.True(t, tli.IsFunctionVectorizable("sinf", 8))
    require.False(t, tli.IsFunctionVectorizable("sin", 16))
    require.False(t, tli.IsFunctionVectorizable("printf", 4))
    require.True(t, IsIntrinsic("llvm.fma.v4f32"))
}
