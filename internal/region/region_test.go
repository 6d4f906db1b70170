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

package region

import (
    `testing`

    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/opts`
    `github.com/stretchr/testify/require`
)

func ident() *Identifier {
    return NewIdentifier(opts.DefaultOptions(), nil)
}

// countedLoop builds "for (i = 0; i < n; i++) a[i] = a[i] + k" with the
// requested number of extra statements padded into the body.
func countedLoop(n int64, pad int, simdVF uint32) *hir.Function {
    p := hir.CreateBuilder("counted")
    base := p.Param("a", hir.Ptr)
    if simdVF != 0 {
        p.SimdDirective(simdVF)
    }
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(hir.I32)
    addr := p.GEP(base, iv)
    v := p.Load(hir.I32, addr)
    sum := p.Add(hir.I32, v, hir.Int32(1))
    for i := 0; i < pad; i++ {
        sum = p.Add(hir.I32, sum, hir.Int32(1))
    }
    p.Store(sum, addr)
    next := p.Add(hir.I32, iv, hir.Int32(1))
    c := p.ICmp(hir.CmpLT, next, hir.Int32(n))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, hir.Int32(0))
    p.AddIncoming(iv, loop, next)

    p.Label("exit")
    if simdVF != 0 {
        p.Directive(hir.DirEndSIMD)
    }
    p.Ret(nil)
    return p.Build()
}

func TestFormRegions_SimpleLoop(t *testing.T) {
    fn := countedLoop(100, 0, 0)
    rs := ident().FormRegions(fn)

    require.Len(t, rs, 1)
    r := rs[0]
    require.False(t, r.FunctionLevel)
    require.NotNil(t, r.Loop)
    require.Equal(t, r.Loop.Header, r.Entry)
    require.Equal(t, 1, r.NumBlocks())
    require.True(t, r.Contains(r.Loop.Header))

    /* every emitted region has a reducible body */
    dt := hir.BuildDominatorTree(fn)
    require.True(t, hir.IsReducible(fn, &dt))
}

func TestFormRegions_OptNone(t *testing.T) {
    fn := countedLoop(100, 0, 0)
    fn.OptNone = true
    require.Empty(t, ident().FormRegions(fn))
}

func TestFormRegions_StatementThreshold(t *testing.T) {
    /* a body just under the budget passes, one over does not */
    rs := ident().FormRegions(countedLoop(100, 100, 0))
    require.Len(t, rs, 1)
    require.Empty(t, ident().FormRegions(countedLoop(100, 300, 0)))
}

func TestFormRegions_SIMDEnvelope(t *testing.T) {
    /* the directive bypasses throttling and widens the region to the
     * marker blocks */
    fn := countedLoop(100, 300, 8)
    rs := ident().FormRegions(fn)
    require.Len(t, rs, 1)

    r := rs[0]
    require.Equal(t, r.Loop.Preheader(), r.Entry)
    require.NotNil(t, r.Exit.Directive())
    require.Equal(t, hir.DirEndSIMD, r.Exit.Directive().Dir)
}

func TestFormRegions_CallPolicy(t *testing.T) {
    build := func(callee string, n int64) *hir.Function {
        p := hir.CreateBuilder("call")
        jmp := p.Jmp("loop")
        entry := jmp.Block
        loop := p.Label("loop")
        iv := p.Phi(hir.I32)
        p.Call(hir.F32, callee, iv)
        next := p.Add(hir.I32, iv, hir.Int32(1))
        c := p.ICmp(hir.CmpLT, next, hir.Int32(n))
        p.Br(c, "loop", "exit")
        p.AddIncoming(iv, entry, hir.Int32(0))
        p.AddIncoming(iv, loop, next)
        p.Label("exit")
        p.Ret(nil)
        return p.Build()
    }

    /* vectorizable library calls pass, arbitrary ones reject */
    require.Len(t, ident().FormRegions(build("sinf", 100)), 1)
    require.Empty(t, ident().FormRegions(build("frobnicate", 100)))

    /* small-trip innermost loops keep their calls */
    require.Len(t, ident().FormRegions(build("frobnicate", 8)), 1)
}

func TestFormRegions_GenerableChildInUngenerableParent(t *testing.T) {
    p := hir.CreateBuilder("nest")
    jmp := p.Jmp("outer")
    entry := jmp.Block

    outer := p.Label("outer")
    i := p.Phi(hir.I32)
    p.Jmp("inner")

    inner := p.Label("inner")
    j := p.Phi(hir.I32)
    nj := p.Add(hir.I32, j, hir.Int32(1))
    c1 := p.ICmp(hir.CmpLT, nj, hir.Int32(64))
    p.Br(c1, "inner", "olatch")
    p.AddIncoming(j, outer, hir.Int32(0))
    p.AddIncoming(j, inner, nj)

    /* the opaque call makes the outer loop ungenerable */
    olatch := p.Label("olatch")
    p.Call(hir.Void, "opaque")
    ni := p.Add(hir.I32, i, hir.Int32(1))
    c2 := p.ICmp(hir.CmpLT, ni, hir.Int32(100))
    p.Br(c2, "outer", "exit")
    p.AddIncoming(i, entry, hir.Int32(0))
    p.AddIncoming(i, olatch, ni)

    p.Label("exit")
    p.Ret(nil)
    fn := p.Build()

    rs := ident().FormRegions(fn)
    require.Len(t, rs, 1)
    require.Equal(t, inner, rs[0].Entry)
    require.NotNil(t, rs[0].Loop)
    require.Equal(t, 2, rs[0].Loop.Depth())
}

func TestFormRegions_IrreducibleNoRegions(t *testing.T) {
    p := hir.CreateBuilder("irreducible")
    x := p.Param("x", hir.I32)
    c := p.ICmp(hir.CmpEQ, x, hir.Int32(0))
    p.Br(c, "a", "b")
    p.Label("a")
    p.Jmp("b")
    p.Label("b")
    p.Jmp("a")
    fn := p.Build()

    require.Empty(t, ident().FormRegions(fn))
}

func TestFormRegions_FunctionLevel(t *testing.T) {
    o := opts.DefaultOptions()
    o.FunctionLevelRegions = true

    fn := countedLoop(100, 0, 0)
    rs := NewIdentifier(o, nil).FormRegions(fn)
    require.Len(t, rs, 1)
    require.True(t, rs[0].FunctionLevel)
    require.Equal(t, fn.Entry(), rs[0].Entry)
    require.Equal(t, fn.NumBlocks(), rs[0].NumBlocks())

    /* an unvectorizable loop anywhere demotes back to per-loop regions */
    bad := countedLoop(100, 300, 0)
    require.Empty(t, NewIdentifier(o, nil).FormRegions(bad))
}

func TestFormRegions_UnsupportedInstr(t *testing.T) {
    p := hir.CreateBuilder("atomic")
    base := p.Param("a", hir.Ptr)
    jmp := p.Jmp("loop")
    entry := jmp.Block
    loop := p.Label("loop")
    iv := p.Phi(hir.I32)
    p.Raw(hir.OP_atomicrmw, hir.I32, base, iv)
    next := p.Add(hir.I32, iv, hir.Int32(1))
    c := p.ICmp(hir.CmpLT, next, hir.Int32(100))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, hir.Int32(0))
    p.AddIncoming(iv, loop, next)
    p.Label("exit")
    p.Ret(nil)

    require.Empty(t, ident().FormRegions(p.Build()))
}
