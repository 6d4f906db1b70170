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

package cost

import (
    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/hlir`
    `github.com/cloudwego/vecplan/internal/opts`
    `github.com/cloudwego/vecplan/internal/vls`
    `github.com/cloudwego/vecplan/internal/vplan`
    `github.com/davecgh/go-spew/spew`
)

// VLSInfo carries the grouping results computed for one candidate plan.
// Groups maps every grouped access to its group, First marks the member
// whose recipe becomes the group's interleave recipe, Mrfs keeps the
// memref built for each access.
type VLSInfo struct {
    Groups map[*hlir.HLInst]*vls.Group
    First  map[*hlir.HLInst]bool
    Mrfs   map[*hlir.HLInst]vls.Memref
}

// Costs is the gathered price of one candidate plan, split by where the
// instructions execute.
type Costs struct {
    LoopBody  int64
    OutOfLoop int64
    Reduction int64
}

func (self Costs) Total() int64 {
    return self.LoopBody + self.OutOfLoop + self.Reduction
}

// _TraceEntry records one priced recipe for debugging.
type _TraceEntry struct {
    Block  string
    Recipe string
    Cost   int64
}

// Gatherer folds a target cost query over the recipes of a plan. One
// gatherer prices one plan.
type Gatherer struct {
    Query TargetCostQuery
    Opts  opts.Options
    VLS   *VLSInfo
    vf    uint32
    acc   Costs
    trace []_TraceEntry
}

// library calls with a vector form on every target we care about
var _VectorizableCalls = map[string]bool {
    "sqrt"  : true,
    "sqrtf" : true,
    "fabs"  : true,
    "fabsf" : true,
    "fma"   : true,
    "fmaf"  : true,
    "sin"   : true,
    "sinf"  : true,
    "cos"   : true,
    "cosf"  : true,
    "exp"   : true,
    "expf"  : true,
    "log"   : true,
    "logf"  : true,
    "pow"   : true,
    "powf"  : true,
}

// Gather walks the plan pre-order, recipes in list order, and prices
// every recipe. Blocks nested in a loop region bill the loop body,
// everything else bills the out-of-loop bucket.
func (self *Gatherer) Gather(p *vplan.VPlan) Costs {
    self.vf = p.VF
    self.acc = Costs{}
    self.trace = self.trace[:0]

    for _, bb := range p.BasicBlocks() {
        inloop := inLoop(bb)
        for _, r := range bb.Recipes {
            c := self.recipeCost(r)
            if inloop {
                self.acc.LoopBody += c
            } else {
                self.acc.OutOfLoop += c
            }
            self.trace = append(self.trace, _TraceEntry {
                Block  : bb.Name(),
                Recipe : r.String(),
                Cost   : c,
            })
        }
    }
    return self.acc
}

// AddReduction bills the after-loop tree that folds a VF-wide live-out
// into a scalar: log2(VF) shrinking stages, each paying two lane extracts
// and one binary op at the narrower width.
func (self *Gatherer) AddReduction(op hir.Op, ty hir.Type) {
    for k := self.vf / 2; k >= 1; k /= 2 {
        self.acc.Reduction += 2 + self.Query.Arith(op, ty.Vec(k))
    }
}

// AddRemainder bills the expected scalar leftover iterations.
func (self *Gatherer) AddRemainder(c int64) {
    self.acc.OutOfLoop += c
}

// Result is the accumulated billing, including reductions added after
// the walk.
func (self *Gatherer) Result() Costs {
    return self.acc
}

// Trace renders the per-recipe billing for eyeballing.
func (self *Gatherer) Trace() string {
    return spew.Sdump(self.trace)
}

func inLoop(bb *vplan.VPBasicBlock) bool {
    for r := bb.Parent(); r != nil; r = r.Parent() {
        if _, ok := r.Owner().(*vplan.VPLoopRegion); ok {
            return true
        }
    }
    return false
}

func (self *Gatherer) recipeCost(r vplan.Recipe) int64 {
    switch v := r.(type) {
        case *vplan.VectorizeOneByOne    : return self.vectorized(v.Ingredients)
        case *vplan.ScalarizeOneByOne    : return self.scalarized(v.Ingredients, v.Predicated)
        case *vplan.WidenIntInduction    : return self.Query.Arith(hir.OP_add, v.Phi.Inst.Ty.Vec(self.vf))
        case *vplan.BuildScalarSteps     : return int64(self.vf) * self.Query.Arith(hir.OP_add, v.Induction.Phi.Inst.Ty)
        case *vplan.Interleave           : return vls.GetGroupCost(v.Group, VLSCostModel { Q: self.Query })
        case *vplan.ExtractMaskBit       : return 1
        case *vplan.MergeScalarizeBranch : return 0
        case *vplan.BlockPredicate       : return blockPredCost(v)
        case *vplan.IfTrue               : return 1
        case *vplan.IfFalse              : return 1
        case *vplan.MaskGeneration       : return 1
        case *vplan.BranchIfNotAllZero   : return self.Query.CF(hir.OP_br)
        case *vplan.NonUniformBranch     : return self.Query.CF(hir.OP_br)
        default                          : return 0
    }
}

// blockPredCost prices the OR tree joining the incoming edge predicates.
// Header phis are free, they lower to a plain phi.
func blockPredCost(p *vplan.BlockPredicate) int64 {
    if p.IsPhi || len(p.Incoming) <= 1 {
        return 0
    }
    return int64(len(p.Incoming) - 1)
}

func (self *Gatherer) vectorized(ns []*hlir.HLInst) int64 {
    var c int64
    for _, n := range ns {
        c += self.instCost(n)
    }
    return c
}

// scalarized replicates every ingredient VF times behind lane extracts;
// predicated replicas additionally pay one mask-bit extract per lane.
func (self *Gatherer) scalarized(ns []*hlir.HLInst, predicated bool) int64 {
    var c int64
    for _, n := range ns {
        c += int64(self.vf) * (1 + self.scalarCost(n))
        if predicated {
            c += int64(self.vf)
        }
    }
    return c
}

func (self *Gatherer) instCost(n *hlir.HLInst) int64 {
    p := n.Inst
    switch p.Op {
        case hir.OP_add, hir.OP_sub, hir.OP_mul,
             hir.OP_sdiv, hir.OP_udiv,
             hir.OP_and, hir.OP_or, hir.OP_xor,
             hir.OP_shl, hir.OP_lshr, hir.OP_ashr:
            return self.Query.Arith(p.Op, p.Ty.Vec(self.vf))
        case hir.OP_icmp, hir.OP_fcmp, hir.OP_select:
            return self.Query.Cmp(p.Op, p.Args[0].Type().Vec(self.vf))
        case hir.OP_zext, hir.OP_sext, hir.OP_trunc, hir.OP_bitcast:
            return self.castCost(p)
        case hir.OP_gep:
            return 0
        case hir.OP_phi:
            return 0
        case hir.OP_call:
            return self.callCost(p)
        case hir.OP_load, hir.OP_store:
            return self.memCost(n)
        case hir.OP_jmp, hir.OP_br, hir.OP_switch, hir.OP_ret:
            return self.Query.CF(p.Op)
        default:
            return 0
    }
}

// scalarCost prices one scalar replica of an ingredient.
func (self *Gatherer) scalarCost(n *hlir.HLInst) int64 {
    p := n.Inst
    switch p.Op {
        case hir.OP_load, hir.OP_store:
            return self.Query.Address(hir.Ptr) + self.Query.MemOp(p.Op, memElemType(p), memElemType(p).Bits / 8, 0)
        case hir.OP_call:
            return self.plainCallCost(p)
        default:
            return self.instCost(n)
    }
}

func (self *Gatherer) castCost(p *hir.Instr) int64 {
    if self.Opts.DisableCastCost {
        return 1
    }
    return self.Query.Cast(p.Op, p.Args[0].Type().Vec(self.vf), p.Ty.Vec(self.vf))
}

func (self *Gatherer) callCost(p *hir.Instr) int64 {
    switch {
        case p.Indirect                   : return 20
        case _VectorizableCalls[p.Callee] : return 2
        default                           : return self.plainCallCost(p)
    }
}

func (self *Gatherer) plainCallCost(p *hir.Instr) int64 {
    tys := make([]hir.Type, len(p.Args))
    for i, a := range p.Args {
        tys[i] = a.Type()
    }
    return self.Query.Call(p.Callee, p.Ty, tys)
}

// memElemType is the scalar element moved by a load or store.
func memElemType(p *hir.Instr) hir.Type {
    if p.Op == hir.OP_store {
        return p.Args[0].Type()
    }
    return p.Ty
}

// memCost prices one widened memory access, picking the cheapest legal
// lowering for its stride. Grouped accesses never price here: lowering
// folded them into an interleave recipe.
func (self *Gatherer) memCost(n *hlir.HLInst) int64 {
    p := n.Inst
    ety := memElemType(p)

    if self.vf <= 1 {
        return self.Query.Address(hir.Ptr) + self.Query.MemOp(p.Op, ety, ety.Bits / 8, 0)
    }

    vty := ety.Vec(self.vf)
    if mrf := self.memrefOf(n); mrf != nil {
        if s, ok := mrf.HasAConstStride(); ok {
            eb := int64(ety.Bits / 8)
            if s == eb {
                return self.Query.MemOp(p.Op, vty, ety.Bits / 8, 0)
            }
            if s == -eb {
                return self.Query.MemOp(p.Op, vty, ety.Bits / 8, 0) + self.Query.ShuffleCost(reverseMask(self.vf), vty)
            }
        }
        if self.gatherLegal(p.Op, vty) {
            return self.Query.GatherScatter(p.Op, vty)
        }
    }

    /* unknown or awkward stride without gather support: scalarize */
    return int64(self.vf) * (1 + self.Query.Address(hir.Ptr) + self.Query.MemOp(p.Op, ety, ety.Bits / 8, 0))
}

func (self *Gatherer) memrefOf(n *hlir.HLInst) vls.Memref {
    if self.VLS == nil {
        return nil
    }
    return self.VLS.Mrfs[n]
}

func (self *Gatherer) gatherLegal(op hir.Op, ty hir.Type) bool {
    if op == hir.OP_store {
        return self.Query.IsLegalMaskedScatter(ty)
    }
    return self.Query.IsLegalMaskedGather(ty)
}

func reverseMask(vf uint32) []int {
    m := make([]int, vf)
    for i := range m {
        m[i] = int(vf) - 1 - i
    }
    return m
}
