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

package vplan

import (
    `fmt`

    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/hlir`
    `github.com/cloudwego/vecplan/internal/region`
)

// BuildHCFG lowers one identified region into a fresh plan: a basic
// block per source block, one-by-one recipes per instruction, loops as
// nested VPLoopRegions. nodes is the region's HLIR, keyed by block.
func BuildHCFG(name string, r *region.IRRegion, nodes map[*hir.BasicBlock][]*hlir.HLInst, li *hir.LoopInfo, se *hir.ScalarEvolution, vf uint32) *VPlan {
    b := &_HCFGBuilder {
        plan  : NewVPlan(name, vf),
        r     : r,
        li    : li,
        se    : se,
        nodes : nodes,
        byHir : make(map[*hir.Instr]*hlir.HLInst),
        vpbb  : make(map[*hir.BasicBlock]*VPBasicBlock),
        lregs : make(map[*hir.Loop]*VPLoopRegion),
        wiivs : make(map[*hir.Loop]*WidenIntInduction),
    }
    b.u = Utils { Plan: b.plan }
    return b.build()
}

type _HCFGBuilder struct {
    plan  *VPlan
    u     Utils
    r     *region.IRRegion
    li    *hir.LoopInfo
    se    *hir.ScalarEvolution
    nodes map[*hir.BasicBlock][]*hlir.HLInst
    byHir map[*hir.Instr]*hlir.HLInst
    vpbb  map[*hir.BasicBlock]*VPBasicBlock
    lregs map[*hir.Loop]*VPLoopRegion
    wiivs map[*hir.Loop]*WidenIntInduction
}

func (self *_HCFGBuilder) build() *VPlan {
    /* blocks and recipes first */
    for _, bb := range self.r.BBs {
        self.buildBlock(bb)
    }

    /* loops innermost-first so each level wires over finished regions */
    loops := self.regionLoops()
    for i := len(loops) - 1; i >= 0; i-- {
        self.buildLoop(loops[i])
    }

    self.plan.Root = self.buildRoot(loops)
    return self.plan
}

// regionLoops lists the loops whose headers lie in the region, outer
// loops before their children.
func (self *_HCFGBuilder) regionLoops() []*hir.Loop {
    var ret []*hir.Loop
    for _, lp := range self.li.PreOrder() {
        if self.r.Contains(lp.Header) {
            ret = append(ret, lp)
        }
    }
    return ret
}

func (self *_HCFGBuilder) buildBlock(bb *hir.BasicBlock) {
    vp := self.u.CreateBasicBlock(bb.Name(), nil)
    self.vpbb[bb] = vp
    lp := self.li.LoopFor(bb)

    steps := false
    for _, n := range self.nodes[bb] {
        self.byHir[n.Inst] = n
        rc := self.buildRecipe(n, lp)
        if rc == nil {
            continue
        }

        /* scalar replicas of an IV consumer need the per-lane IV values */
        if !steps && rc.Kind() == RkScalarizeOneByOne && self.readsIV(n) {
            if w := self.widened(lp); w != nil {
                vp.AppendRecipe(&BuildScalarSteps { Induction: w })
                steps = true
            }
        }

        vp.AppendRecipe(rc)
        self.plan.MapRecipe(rc, n)
    }
}

// readsIV reports whether any read operand of n varies with an induction
// variable.
func (self *_HCFGBuilder) readsIV(n *hlir.HLInst) bool {
    iv := false
    n.ForEachDDRef(func(r *hlir.RegDDRef) {
        if n.IsRval(r) && r.CE != nil && r.CE.NumIVs() > 0 {
            iv = true
        }
    }, nil)
    return iv
}

// widened resolves the widened induction covering lp, walking outward
// through the loop nest.
func (self *_HCFGBuilder) widened(lp *hir.Loop) *WidenIntInduction {
    for ; lp != nil; lp = lp.Parent {
        if w := self.wiivs[lp]; w != nil {
            return w
        }
    }
    return nil
}

func (self *_HCFGBuilder) buildRecipe(n *hlir.HLInst, lp *hir.Loop) Recipe {
    p := n.Inst
    switch {
        case p.Op == hir.OP_directive : return nil
        case p.Op.IsTerminator()      : return nil
        case p.Op == hir.OP_phi       : return self.buildPhi(n, lp)
        case p.Op == hir.OP_call      : return &ScalarizeOneByOne { Ingredients: []*hlir.HLInst { n } }
        default                       : return &VectorizeOneByOne { Ingredients: []*hlir.HLInst { n } }
    }
}

// buildPhi turns the loop's IV phi into a widened induction, every other
// phi stays a plain one-by-one recipe.
func (self *_HCFGBuilder) buildPhi(n *hlir.HLInst, lp *hir.Loop) Recipe {
    p := n.Inst
    if lp == nil || self.se.IndVarPhi(lp) != p {
        return &VectorizeOneByOne { Ingredients: []*hlir.HLInst { n } }
    }

    w := &WidenIntInduction { Phi: n }
    self.wiivs[lp] = w
    for _, e := range p.Incoming {
        if !lp.Contains(e.B) {
            w.Start = e.V
        } else if nx, ok := e.V.(*hir.Instr); ok && nx.Op == hir.OP_add && len(nx.Args) == 2 {
            w.Step = nx.Args[1]
        }
    }

    /* the canonical induction update also exists at the value level */
    iv := self.plan.GetOrCreateLiveIn(p)
    if w.Step != nil {
        self.plan.NewInstruction(hir.OP_add, p, iv, self.plan.GetOrCreateLiveIn(w.Step))
    }
    return w
}

// buildLoop creates the VPLoopRegion of lp and wires the edges between
// its direct children.
func (self *_HCFGBuilder) buildLoop(lp *hir.Loop) {
    latch := lp.Latch()
    self.wireLevel(lp.SortedBlocks(), func(bb *hir.BasicBlock) bool {
        return lp.Contains(bb)
    }, lp)

    name := fmt.Sprintf("%s.loop.d%d", self.vpbb[lp.Header].Name(), lp.Depth())
    lr := self.u.CreateLoopRegion(name, self.target(lp.Header), self.target(latch), self.target(latch))
    self.lregs[lp] = lr
}

// buildRoot wraps everything into the plan root: the loop region itself
// when the region is exactly one loop nest, a plain region otherwise.
func (self *_HCFGBuilder) buildRoot(loops []*hir.Loop) *VPRegionBlock {
    /* region == loop body: the loop region itself is the root. SIMD
     * envelopes widen Entry to the marker block, the body is still just
     * the loop */
    if lp := self.r.Loop; lp != nil && len(self.r.BBs) == len(lp.Blocks) && self.r.Contains(lp.Header) {
        if lr := self.lregs[lp]; lr != nil {
            return &lr.VPRegionBlock
        }
    }

    /* otherwise wire the top level: blocks outside any loop plus the
     * outermost loop regions */
    self.wireLevel(self.r.BBs, func(bb *hir.BasicBlock) bool {
        return self.r.Contains(bb)
    }, nil)

    entry := self.target(self.r.Entry)
    exit := entry
    if self.r.Exit != nil && self.r.Contains(self.r.Exit) {
        exit = self.target(self.r.Exit)
    } else if self.r.Loop != nil {
        exit = self.lregs[self.r.Loop]
    } else {
        for _, bb := range self.r.BBs {
            if t := bb.Term; t != nil && t.Op == hir.OP_ret {
                exit = self.target(bb)
            }
        }
    }

    root := self.u.CreateRegion(self.plan.Name + ".body", entry, exit, false)
    return root
}

// wireLevel connects the blocks of one nesting level. Edges into a
// nested loop attach to its region node, edges out of it leave from the
// region node. scope limits the edges to the level's blocks; lp is the
// loop owning this level, nil at the top.
func (self *_HCFGBuilder) wireLevel(bbs []*hir.BasicBlock, scope func(*hir.BasicBlock) bool, lp *hir.Loop) {
    inner := func(bb *hir.BasicBlock) *hir.Loop {
        l := self.li.LoopFor(bb)
        for l != nil && l.Parent != lp {
            l = l.Parent
        }
        if l == lp {
            return nil
        }
        return l
    }

    for _, bb := range bbs {
        if !scope(bb) {
            continue
        }

        sil := inner(bb)
        src := VPBlock(self.vpbb[bb])
        if sil != nil {
            /* only the inner region's exiting edges surface here */
            src = self.lregs[sil]
        }

        var outs []VPBlock
        var cond *hir.Instr
        if t := bb.Term; t != nil {
            if t.Op == hir.OP_br {
                cond = t
            }
            for _, s := range t.Succ {
                if !scope(s) {
                    continue
                }
                dil := inner(s)
                if dil != nil && dil == sil {
                    continue
                }
                if dil != nil {
                    outs = append(outs, self.lregs[dil])
                } else {
                    outs = append(outs, VPBlock(self.vpbb[s]))
                }
            }
        }

        self.connect(src, outs, cond, lp)
    }
}

func (self *_HCFGBuilder) connect(src VPBlock, outs []VPBlock, cond *hir.Instr, lp *hir.Loop) {
    if len(outs) == 0 || len(src.Successors()) > 0 {
        /* region or function boundary, or an inner region whose exiting
         * edge is already wired */
        return
    }

    if len(outs) == 1 {
        self.u.SetSuccessor(src, outs[0])
        return
    }

    bb, ok := src.(*VPBasicBlock)
    if !ok || cond == nil {
        self.u.SetSuccessor(src, outs[0])
        return
    }

    cb := self.condBit(cond.Args[0], lp)
    bb.AppendRecipe(cb)
    self.u.SetTwoSuccessors(bb, cb, outs[0], outs[1])
}

// condBit classifies a branch condition: live-ins and loop-invariant
// expressions stay uniform, in-loop compares diverge.
func (self *_HCFGBuilder) condBit(v hir.Value, lp *hir.Loop) ConditionBit {
    p, ok := v.(*hir.Instr)
    if !ok {
        return &LiveInConditionBit { Val: v }
    }

    n := self.byHir[p]
    if n == nil {
        return &LiveInConditionBit { Val: v }
    }

    if lp != nil && self.isUniform(n, lp) {
        return &UniformConditionBit { Cond: n }
    }
    if p.Op == hir.OP_icmp || p.Op == hir.OP_fcmp {
        return &CmpConditionBit { Cmp: n }
    }
    return &NonUniformConditionBit { Cond: n }
}

// isUniform checks that no read operand of n varies inside lp.
func (self *_HCFGBuilder) isUniform(n *hlir.HLInst, lp *hir.Loop) bool {
    uniform := true
    n.ForEachDDRef(func(r *hlir.RegDDRef) {
        if !n.IsRval(r) || r.CE == nil {
            return
        }
        if r.CE.IsNonLinear() || r.CE.NumIVs() > 0 || r.CE.DefinedAt >= lp.Depth() {
            uniform = false
        }
    }, nil)
    return uniform
}

// target resolves a source block to its HCFG vertex: headers map to
// their loop region.
func (self *_HCFGBuilder) target(bb *hir.BasicBlock) VPBlock {
    if bb == nil {
        return nil
    }
    if lp := self.li.LoopFor(bb); lp != nil && lp.Header == bb {
        if lr := self.lregs[lp]; lr != nil {
            return lr
        }
    }
    return self.vpbb[bb]
}
