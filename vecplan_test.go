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

package vecplan

import (
    `testing`

    `github.com/cloudwego/vecplan/internal/cost`
    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/opts`
    `github.com/stretchr/testify/require`
)

// incrementLoop is "for (i = 0; i < 100; i++) a[i] += 1".
func incrementLoop() *Function {
    p := NewFunctionBuilder("increment")
    base := p.Param("a", hir.Ptr)
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
    return p.Build()
}

func TestBuildPlans_SimpleLoop(t *testing.T) {
    rs := BuildPlansForTarget(incrementLoop(), &cost.AMD64Query { Width: 512 })
    require.Len(t, rs, 1)

    r := rs[0]
    require.True(t, r.Kept())
    require.False(t, r.Forced)
    require.Equal(t, uint32(16), r.VF)
    require.Equal(t, int64(6), r.Cost.LoopBody)
}

func TestBuildPlans_ForcedVF(t *testing.T) {
    rs := BuildPlansForTarget(incrementLoop(), &cost.AMD64Query { Width: 512 }, WithForcedVF(4))
    require.Len(t, rs, 1)

    r := rs[0]
    require.True(t, r.Kept())
    require.True(t, r.Forced)
    require.Equal(t, uint32(4), r.VF)
}

func TestBuildPlans_OptNone(t *testing.T) {
    fn := incrementLoop()
    fn.OptNone = true
    require.Empty(t, BuildPlansForTarget(fn, &cost.AMD64Query { Width: 512 }))
}

func TestBuildPlans_HostQuery(t *testing.T) {
    q := NewHostQuery()
    require.NotZero(t, q.RegisterBitWidth())

    rs := BuildPlans(incrementLoop())
    require.Len(t, rs, 1)
}

func TestOptions_Setters(t *testing.T) {
    o := opts.DefaultOptions()
    for _, set := range []Option {
        WithOptLevel(3),
        WithVLS(false),
        WithCastCost(false),
        WithFunctionLevelRegions(true),
        WithMaxStmtCount(50),
        WithMaxIfCount(3),
    } {
        set(&o)
    }

    require.Equal(t, opts.O3, o.OptLevel)
    require.False(t, o.EnableVLS)
    require.True(t, o.DisableCastCost)
    require.True(t, o.FunctionLevelRegions)
    require.Equal(t, 50, o.MaxStmtCount)
    require.Equal(t, 3, o.MaxIfCount)
}

func TestOptions_Validation(t *testing.T) {
    require.Panics(t, func() { WithForcedVF(3) })
    require.Panics(t, func() { WithOptLevel(0) })
    require.Panics(t, func() { WithOptLevel(9) })
    require.Panics(t, func() { WithMaxStmtCount(0) })
    require.Panics(t, func() { WithMaxIfCount(-1) })
}
