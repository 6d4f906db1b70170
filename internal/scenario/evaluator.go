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
    `github.com/cloudwego/vecplan/internal/opts`
    `github.com/cloudwego/vecplan/internal/region`
    `github.com/cloudwego/vecplan/internal/vplan`
)

// PlanResult is the verdict for one region: either a kept plan with its
// vectorization factor, or keep-scalar.
type PlanResult struct {
    Region *region.IRRegion
    Plan   *vplan.VPlan
    VF     uint32
    Cost   cost.Costs
    Forced bool
}

// Kept reports whether the region vectorizes.
func (self PlanResult) Kept() bool {
    return self.Plan != nil
}

// Evaluator builds one candidate plan per viable vectorization factor,
// prices each against the scalar loop and keeps the cheapest.
type Evaluator struct {
    Query cost.TargetCostQuery
    Opts  opts.Options
    LI    *hir.LoopInfo
    SE    *hir.ScalarEvolution
}

// GetBestPlan evaluates every candidate VF for the region. A VF forced
// through a SIMD directive or the options wins unconditionally; otherwise
// the cheapest per-lane candidate must also beat the scalar loop.
func (self *Evaluator) GetBestPlan(name string, r *region.IRRegion) PlanResult {
    scalar := self.scenario(name, r, 1, false, false)
    forced := self.forcedVF(r)

    if forced > 1 {
        /* the forced plan wins without a cost race; grouping still runs
         * for parity with the competitive path unless turned off */
        s := self.scenario(name, r, forced, true, self.Opts.EnableVLS && opts.ForcedVFKeepsVLS)
        s.Forced = true
        return s
    }

    best := PlanResult { Region: r, VF: 1, Cost: scalar.Cost }
    for _, vf := range self.candidateVFs(r) {
        s := self.scenario(name, r, vf, true, self.Opts.EnableVLS)

        /* per scalar iteration: a VF-wide body covers VF of them */
        if s.Cost.Total() * int64(best.VF) < best.Cost.Total() * int64(s.VF) {
            best = s
        }
    }

    if best.VF <= 1 {
        return PlanResult { Region: r, VF: 1, Cost: scalar.Cost }
    }
    return best
}

// scenario builds, predicates and prices one candidate.
func (self *Evaluator) scenario(name string, r *region.IRRegion, vf uint32, predicate bool, grouping bool) PlanResult {
    tr := hlir.NewTranslator(canon.NewUtils(canon.NewBlobTable()), self.LI, self.SE)
    nodes := tr.Translate(r.BBs)

    plan := vplan.BuildHCFG(name, r, nodes, self.LI, self.SE, vf)
    if predicate {
        (&vplan.Predicator { Plan: plan }).Predicate()
    }

    var info *cost.VLSInfo
    if vf > 1 && grouping {
        info = self.groupAccesses(r, nodes, vf)
        vplan.LowerInterleaveGroups(plan, info.Groups, info.First)
    }

    g := &cost.Gatherer {
        Query : self.Query,
        Opts  : self.Opts,
        VLS   : info,
    }

    g.Gather(plan)
    self.addReductions(g, r)

    if vf > 1 {
        /* expected leftover iterations run the scalar body */
        scalarIter := self.scalarIterCost(name, r)
        g.AddRemainder(scalarIter * int64(vf-1) / 2)
    }

    c := g.Result()
    if vf <= 1 {
        return PlanResult { Region: r, VF: 1, Cost: c }
    }
    return PlanResult { Region: r, Plan: plan, VF: vf, Cost: c }
}

func (self *Evaluator) scalarIterCost(name string, r *region.IRRegion) int64 {
    tr := hlir.NewTranslator(canon.NewUtils(canon.NewBlobTable()), self.LI, self.SE)
    plan := vplan.BuildHCFG(name, r, tr.Translate(r.BBs), self.LI, self.SE, 1)
    g := &cost.Gatherer { Query: self.Query, Opts: self.Opts }
    return g.Gather(plan).LoopBody
}

// forcedVF resolves the forced factor: a SIMD directive beats the option.
func (self *Evaluator) forcedVF(r *region.IRRegion) uint32 {
    if r.Loop != nil && r.Loop.IsSIMD && r.Loop.ForcedVF > 0 {
        return r.Loop.ForcedVF
    }
    for _, bb := range r.BBs {
        if p := bb.Directive(); p != nil && p.Dir == hir.DirBeginSIMD && p.SimdVF > 0 {
            return p.SimdVF
        }
    }
    return self.Opts.ForceVF
}

// candidateVFs derives the power-of-two ladder from the value types seen
// in the region: the register must hold at least two of the widest and
// the ladder stops where the narrowest type fills it.
func (self *Evaluator) candidateVFs(r *region.IRRegion) []uint32 {
    minb, maxb := self.typeRange(r)
    if minb == 0 {
        return nil
    }

    reg := self.Query.RegisterBitWidth()
    var ret []uint32
    for vf := reg / maxb; vf <= reg / minb; vf *= 2 {
        if vf >= 2 {
            ret = append(ret, vf)
        }
    }
    return ret
}

func (self *Evaluator) typeRange(r *region.IRRegion) (uint32, uint32) {
    var minb, maxb uint32
    note := func(t hir.Type) {
        if t.IsVoid() || t.IsPointer() || t.Bits < 8 {
            return
        }
        if minb == 0 || t.Bits < minb {
            minb = t.Bits
        }
        if t.Bits > maxb {
            maxb = t.Bits
        }
    }

    for _, bb := range r.BBs {
        bb.ForEachInstr(func(p *hir.Instr) {
            switch p.Op {
                case hir.OP_load  : note(p.Ty)
                case hir.OP_store : note(p.Args[0].Type())
                case hir.OP_gep   : /* address math is free */
                default           : note(p.Ty)
            }
        })
    }
    return minb, maxb
}

// addReductions bills one after-loop folding tree per non-induction
// header phi whose loop-carried value is a binary op.
func (self *Evaluator) addReductions(g *cost.Gatherer, r *region.IRRegion) {
    lp := r.Loop
    if lp == nil {
        return
    }

    latch := lp.Latch()
    iv := self.SE.IndVarPhi(lp)

    for _, p := range lp.Header.Ins {
        if p.Op != hir.OP_phi || p == iv {
            continue
        }
        for _, e := range p.Incoming {
            upd, ok := e.V.(*hir.Instr)
            if e.B != latch || !ok {
                continue
            }
            switch upd.Op {
                case hir.OP_add, hir.OP_mul, hir.OP_and, hir.OP_or, hir.OP_xor:
                    g.AddReduction(upd.Op, p.Ty)
            }
        }
    }
}
