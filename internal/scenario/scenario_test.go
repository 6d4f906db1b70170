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
    `testing`

    `github.com/cloudwego/vecplan/internal/canon`
    `github.com/cloudwego/vecplan/internal/cost`
    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/hlir`
    `github.com/cloudwego/vecplan/internal/opts`
    `github.com/cloudwego/vecplan/internal/region`
    `github.com/cloudwego/vecplan/internal/vls`
    `github.com/cloudwego/vecplan/internal/vplan`
    `github.com/stretchr/testify/require`
)

// simpleLoop is "for (i = 0; i < 100; i++) a[i] += 1".
func simpleLoop() *hir.Function {
    p := hir.CreateBuilder("simple")
    base := p.Param("a", hir.Ptr)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(hir.I32)
    addr := p.GEP(base, iv)
    v := p.Load(hir.I32, addr)
    sum := p.Add(hir.I32, v, hir.Int32(1))
    p.Store(sum, addr)
    next := p.Add(hir.I32, iv, hir.Int32(1))
    c := p.ICmp(hir.CmpLT, next, hir.Int32(100))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, hir.Int32(0))
    p.AddIncoming(iv, loop, next)

    p.Label("exit")
    p.Ret(nil)
    return p.Build()
}

// widenLoop is "for (i) b32[i] = (int32) a8[i]", two element widths.
func widenLoop() *hir.Function {
    p := hir.CreateBuilder("widen")
    a := p.Param("a", hir.Ptr)
    b := p.Param("b", hir.Ptr)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(hir.I32)
    v8 := p.Load(hir.I8, p.GEP(a, iv))
    v32 := p.Cast(hir.OP_zext, hir.I32, v8)
    p.Store(v32, p.GEP(b, iv))
    next := p.Add(hir.I32, iv, hir.Int32(1))
    c := p.ICmp(hir.CmpLT, next, hir.Int32(100))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, hir.Int32(0))
    p.AddIncoming(iv, loop, next)

    p.Label("exit")
    p.Ret(nil)
    return p.Build()
}

// interleaveLoop sums the three fields of an array of 3-int structs.
func interleaveLoop() *hir.Function {
    p := hir.CreateBuilder("interleave")
    a := p.Param("a", hir.Ptr)
    b := p.Param("b", hir.Ptr)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(hir.I32)
    i3 := p.Mul(hir.I32, iv, hir.Int32(3))
    v0 := p.Load(hir.I32, p.GEP(a, i3))
    v1 := p.Load(hir.I32, p.GEP(a, p.Add(hir.I32, i3, hir.Int32(1))))
    v2 := p.Load(hir.I32, p.GEP(a, p.Add(hir.I32, i3, hir.Int32(2))))
    s := p.Add(hir.I32, p.Add(hir.I32, v0, v1), v2)
    p.Store(s, p.GEP(b, iv))
    next := p.Add(hir.I32, iv, hir.Int32(1))
    c := p.ICmp(hir.CmpLT, next, hir.Int32(100))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, hir.Int32(0))
    p.AddIncoming(iv, loop, next)

    p.Label("exit")
    p.Ret(nil)
    return p.Build()
}

func evaluatorFor(t *testing.T, fn *hir.Function, o opts.Options, q cost.TargetCostQuery) (*Evaluator, *region.IRRegion) {
    rs := region.NewIdentifier(o, nil).FormRegions(fn)
    require.Len(t, rs, 1)

    dt := hir.BuildDominatorTree(fn)
    li := hir.BuildLoopInfo(fn, &dt)
    se := &hir.ScalarEvolution { LI: li }
    return &Evaluator { Query: q, Opts: o, LI: li, SE: se }, rs[0]
}

func TestGetBestPlan_SimpleLoop(t *testing.T) {
    ev, r := evaluatorFor(t, simpleLoop(), opts.DefaultOptions(), &cost.AMD64Query { Width: 512 })
    res := ev.GetBestPlan("simple", r)

    require.True(t, res.Kept())
    require.False(t, res.Forced)
    require.Equal(t, uint32(16), res.VF)

    /* widen-iv 1, load 1, add 1, store 1, iv-add 1, icmp 1 */
    require.Equal(t, int64(6), res.Cost.LoopBody)

    /* remainder: scalar iteration is 8, expected (VF-1)/2 leftovers */
    require.Equal(t, int64(60), res.Cost.OutOfLoop)
    require.Zero(t, res.Cost.Reduction)
}

func TestGetBestPlan_ForcedVF(t *testing.T) {
    o := opts.DefaultOptions()
    o.ForceVF = 4

    ev, r := evaluatorFor(t, simpleLoop(), o, &cost.AMD64Query { Width: 512 })
    res := ev.GetBestPlan("simple", r)

    require.True(t, res.Kept())
    require.True(t, res.Forced)
    require.Equal(t, uint32(4), res.VF)
    require.Equal(t, int64(6), res.Cost.LoopBody)
    require.Equal(t, int64(12), res.Cost.OutOfLoop)
}

func TestGetBestPlan_DirectiveBeatsOption(t *testing.T) {
    p := hir.CreateBuilder("simd")
    base := p.Param("a", hir.Ptr)
    p.SimdDirective(8)
    jmp := p.Jmp("loop")
    entry := jmp.Block

    loop := p.Label("loop")
    iv := p.Phi(hir.I32)
    addr := p.GEP(base, iv)
    v := p.Load(hir.I32, addr)
    p.Store(p.Add(hir.I32, v, hir.Int32(1)), addr)
    next := p.Add(hir.I32, iv, hir.Int32(1))
    c := p.ICmp(hir.CmpLT, next, hir.Int32(100))
    p.Br(c, "loop", "exit")
    p.AddIncoming(iv, entry, hir.Int32(0))
    p.AddIncoming(iv, loop, next)

    p.Label("exit")
    p.Ret(nil)

    o := opts.DefaultOptions()
    o.ForceVF = 4

    ev, r := evaluatorFor(t, p.Build(), o, &cost.AMD64Query { Width: 512 })
    require.True(t, r.Loop.IsSIMD)

    res := ev.GetBestPlan("simd", r)
    require.True(t, res.Kept())
    require.True(t, res.Forced)
    require.Equal(t, uint32(8), res.VF)
}

// pessimalQuery makes every vector arithmetic op prohibitively expensive.
type pessimalQuery struct {
    cost.AMD64Query
}

func (self *pessimalQuery) Arith(op hir.Op, ty hir.Type) int64 {
    if ty.IsVector() {
        return 1000
    }
    return 1
}

func TestGetBestPlan_KeepScalar(t *testing.T) {
    q := &pessimalQuery { cost.AMD64Query { Width: 512 } }
    ev, r := evaluatorFor(t, simpleLoop(), opts.DefaultOptions(), q)

    res := ev.GetBestPlan("simple", r)
    require.False(t, res.Kept())
    require.Equal(t, uint32(1), res.VF)
    require.Nil(t, res.Plan)
}

// remainderQuery zeroes every vector cost so only the scalar remainder
// tells the candidate VFs apart.
type remainderQuery struct {
    cost.AMD64Query
}

func (self *remainderQuery) Arith(op hir.Op, ty hir.Type) int64 { return 0 }
func (self *remainderQuery) Cmp(op hir.Op, ty hir.Type) int64   { return 0 }
func (self *remainderQuery) Address(ty hir.Type) int64          { return 0 }

func (self *remainderQuery) Cast(op hir.Op, src hir.Type, dst hir.Type) int64 {
    return 0
}

func (self *remainderQuery) MemOp(op hir.Op, ty hir.Type, align uint32, addrspace int) int64 {
    if ty.IsVector() {
        return 0
    }
    return 1
}

func TestGetBestPlan_RemainderPrefersNarrowVF(t *testing.T) {
    q := &remainderQuery { cost.AMD64Query { Width: 512 } }
    ev, r := evaluatorFor(t, widenLoop(), opts.DefaultOptions(), q)

    /* i8 and i32 span the ladder 16, 32, 64; the bodies all cost zero so
     * the growing scalar remainder decides */
    res := ev.GetBestPlan("widen", r)
    require.True(t, res.Kept())
    require.Equal(t, uint32(16), res.VF)
    require.Zero(t, res.Cost.LoopBody)
    require.Equal(t, int64(15), res.Cost.OutOfLoop)
}

func TestGroupAccesses_Interleave(t *testing.T) {
    ev, r := evaluatorFor(t, interleaveLoop(), opts.DefaultOptions(), &cost.AMD64Query { Width: 512 })

    tr := hlir.NewTranslator(canon.NewUtils(canon.NewBlobTable()), ev.LI, ev.SE)
    nodes := tr.Translate(r.BBs)
    info := ev.groupAccesses(r, nodes, 4)

    /* the three struct-field loads form one group, the store stays out */
    require.Len(t, info.Groups, 3)

    var first int
    var grp *vls.Group
    for n, g := range info.Groups {
        require.Equal(t, hir.OP_load, n.Inst.Op)
        if grp == nil {
            grp = g
        }
        require.Same(t, grp, g)
        if info.First[n] {
            first++
        }
    }
    require.Equal(t, 1, first)
    require.Equal(t, 3, grp.Size())

    stride, ok := grp.Stride()
    require.True(t, ok)
    require.Equal(t, int64(12), stride)

    /* every access got a memref, loads at 12-byte stride, store at 4 */
    require.Len(t, info.Mrfs, 4)
    for n, m := range info.Mrfs {
        s, ok := m.HasAConstStride()
        require.True(t, ok)
        if n.Inst.Op == hir.OP_store {
            require.Equal(t, int64(4), s)
        } else {
            require.Equal(t, int64(12), s)
        }
    }
}

func TestGetBestPlan_InterleaveVectorizes(t *testing.T) {
    ev, r := evaluatorFor(t, interleaveLoop(), opts.DefaultOptions(), &cost.AMD64Query { Width: 512 })
    res := ev.GetBestPlan("interleave", r)

    require.True(t, res.Kept())
    require.Equal(t, uint32(16), res.VF)
    require.Positive(t, res.Cost.LoopBody)
}

func TestGetBestPlan_LowersInterleaveGroups(t *testing.T) {
    ev, r := evaluatorFor(t, interleaveLoop(), opts.DefaultOptions(), &cost.AMD64Query { Width: 512 })
    res := ev.GetBestPlan("interleave", r)
    require.True(t, res.Kept())

    /* the grouped loads left the plan as a single interleave recipe */
    var ils int
    for _, bb := range res.Plan.BasicBlocks() {
        for _, rc := range bb.Recipes {
            switch v := rc.(type) {
                case *vplan.Interleave: {
                    ils++
                    require.Len(t, v.Members, 3)
                }
                case *vplan.VectorizeOneByOne: {
                    require.NotEqual(t, hir.OP_load, v.Ingredients[0].Inst.Op)
                }
            }
        }
    }
    require.Equal(t, 1, ils)
}

func TestGetBestPlan_ForcedMatchesCompetitive(t *testing.T) {
    ev, r := evaluatorFor(t, simpleLoop(), opts.DefaultOptions(), &cost.AMD64Query { Width: 512 })
    free := ev.GetBestPlan("simple", r)

    o := opts.DefaultOptions()
    o.ForceVF = free.VF
    ev.Opts = o

    /* forcing the winning VF must price identically to the open race */
    forced := ev.GetBestPlan("simple", r)
    require.True(t, forced.Forced)
    require.Equal(t, free.VF, forced.VF)
    require.Equal(t, free.Cost, forced.Cost)
}
