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
    `github.com/cloudwego/vecplan/internal/hir`
    `github.com/cloudwego/vecplan/internal/hlir`
)

// Predicator assigns a block predicate to every basic block of the plan
// and edge predicates to the edges of divergent branches. Uniform
// branches keep their control flow and produce no masks.
type Predicator struct {
    Plan *VPlan
}

// Predicate runs the pass from the plan root, then wraps every block
// that scalarizes under a divergent predicate into a replicator region.
func (self *Predicator) Predicate() {
    self.predicateRegion(self.Plan.Root, self.Plan.AllOnes())
    self.replicateScalarized()
}

func (self *Predicator) predicateRegion(r *VPRegionBlock, incoming Predicate) {
    lr, isLoop := r.Owner().(*VPLoopRegion)

    /* edge predicates accumulated per destination */
    edges := make(map[VPBlock][]Predicate)
    edges[r.Entry] = []Predicate { incoming }

    var headerPhi *BlockPredicate

    for _, b := range self.forwardOrder(r) {
        var pred Predicate

        /* loop headers get a phi-style predicate joining the preheader
         * and back-edge predicates */
        if isLoop && b == r.Entry {
            headerPhi = &BlockPredicate { IsPhi: true, Incoming: edges[b] }
            pred = headerPhi
        } else {
            pred = &BlockPredicate { Incoming: edges[b] }
        }

        switch v := b.(type) {
            case *VPBasicBlock: {
                v.Predicate = pred
                v.Recipes = append([]Recipe { pred }, v.Recipes...)
            }
            default: {
                cr, _ := regionOf(b)
                self.predicateRegion(cr, pred)
            }
        }

        self.spreadEdges(r, b, pred, edges, lr, &headerPhi)
    }
}

// spreadEdges pushes the predicate of b along its outgoing edges.
func (self *Predicator) spreadEdges(r *VPRegionBlock, b VPBlock, pred Predicate, edges map[VPBlock][]Predicate, lr *VPLoopRegion, headerPhi **BlockPredicate) {
    bb, isBB := b.(*VPBasicBlock)

    /* divergent two-way branches become edge recipes plus a mask */
    if isBB && len(bb.succs) == 2 && bb.CondBit != nil {
        if !uniformBit(bb.CondBit) {
            t := &IfTrue { Cond: bb.CondBit, Pred: pred }
            f := &IfFalse { Cond: bb.CondBit, Pred: pred }
            bb.AppendRecipe(&MaskGeneration { Pred: pred })
            bb.AppendRecipe(&NonUniformBranch { Cond: bb.CondBit })
            self.feed(r, bb.succs[0], t, edges, lr, headerPhi)
            self.feed(r, bb.succs[1], f, edges, lr, headerPhi)
            return
        }
    }

    for _, s := range b.Successors() {
        self.feed(r, s, pred, edges, lr, headerPhi)
    }
}

func (self *Predicator) feed(r *VPRegionBlock, dst VPBlock, p Predicate, edges map[VPBlock][]Predicate, lr *VPLoopRegion, headerPhi **BlockPredicate) {
    /* the back-edge predicate joins the header phi in place */
    if lr != nil && dst == r.Entry {
        if *headerPhi != nil {
            (*headerPhi).Incoming = append((*headerPhi).Incoming, p)
        }
        return
    }
    edges[dst] = append(edges[dst], p)
}

// replicateScalarized rewrites every block holding scalarized recipes
// under a divergent predicate: the block moves into a replicator region
// entered through a mask test that skips it when no lane is live, and
// left through a merge block folding the per-lane results back into
// vectors.
func (self *Predicator) replicateScalarized() {
    u := Utils { Plan: self.Plan }
    for _, bb := range self.Plan.BasicBlocks() {
        if self.needsReplication(bb) {
            self.replicate(&u, bb)
        }
    }
}

func (self *Predicator) needsReplication(bb *VPBasicBlock) bool {
    if !divergent(bb.Predicate) || len(bb.Successors()) != 1 {
        return false
    }
    if r := bb.Parent(); r == nil || r.Entry == bb {
        return false
    }
    for _, rc := range bb.Recipes {
        if rc.Kind() == RkScalarizeOneByOne {
            return true
        }
    }
    return false
}

// divergent reports a block predicate fed by the edge of a non-uniform
// branch: some lanes may be off.
func divergent(p Predicate) bool {
    bp, ok := p.(*BlockPredicate)
    if !ok {
        return false
    }
    for _, in := range bp.Incoming {
        switch in.(type) {
            case *IfTrue, *IfFalse: return true
        }
    }
    return false
}

// replicate splices bb out of the surrounding graph and rebuilds it as
// mask -> bb -> merge inside a replicator region standing where bb stood.
func (self *Predicator) replicate(u *Utils, bb *VPBasicBlock) {
    pred := bb.Predicate
    outer := bb.Parent()
    next := bb.Successors()[0]
    preds := append([]VPBlock(nil), bb.Predecessors()...)

    u.DisconnectBlocks(bb, next)

    mask := u.CreateBasicBlock(bb.Name() + ".mask", nil)
    mg := &MaskGeneration { Pred: pred }
    mask.AppendRecipe(mg)
    mask.AppendRecipe(&BranchIfNotAllZero { Mask: mg })

    merge := u.CreateBasicBlock(bb.Name() + ".merge", nil)
    for _, rc := range bb.Recipes {
        sc, ok := rc.(*ScalarizeOneByOne)
        if !ok {
            continue
        }
        sc.Predicated = true
        for _, n := range sc.Ingredients {
            if producesValue(n) {
                merge.AppendRecipe(&MergeScalarizeBranch { Phi: n })
            }
        }
    }
    insertMaskExtract(bb, pred)

    bb.base().preds = nil
    u.SetSuccessor(mask, bb)
    u.SetSuccessor(bb, merge)

    /* the region node takes over bb's place in the surrounding graph */
    rep := u.CreateRegion(bb.Name() + ".rep", mask, merge, true)
    rep.base().parent = outer
    u.grow(outer, rep.Size() - 1)

    for _, p := range preds {
        ps := p.base()
        for i, s := range ps.succs {
            if s == bb {
                ps.succs[i] = rep
            }
        }
    }
    rep.base().preds = preds
    u.SetSuccessor(rep, next)

    if outer.Exit == bb {
        outer.Exit = rep
    }
    if lr, ok := outer.Owner().(*VPLoopRegion); ok && lr.Latch == bb {
        lr.Latch = rep
    }
}

// insertMaskExtract places the per-lane mask extract right in front of
// the first scalarized recipe.
func insertMaskExtract(bb *VPBasicBlock, pred Predicate) {
    for i, rc := range bb.Recipes {
        if rc.Kind() != RkScalarizeOneByOne {
            continue
        }
        rcs := append([]Recipe(nil), bb.Recipes[:i]...)
        rcs = append(rcs, &ExtractMaskBit { Mask: pred })
        bb.Recipes = append(rcs, bb.Recipes[i:]...)
        return
    }
}

func producesValue(n *hlir.HLInst) bool {
    p := n.Inst
    return p.Op != hir.OP_store && !p.Ty.IsVoid()
}

// uniformBit reports conditions that are identical across lanes:
// explicitly uniform ones and values flowing in from outside the region.
func uniformBit(cb ConditionBit) bool {
    switch cb.(type) {
        case *UniformConditionBit : return true
        case *LiveInConditionBit  : return true
        default                   : return false
    }
}

// forwardOrder yields the direct children of r so that every block
// follows all of its forward predecessors.
func (self *Predicator) forwardOrder(r *VPRegionBlock) []VPBlock {
    blocks := r.Blocks()
    indeg := make(map[VPBlock]int, len(blocks))

    for _, b := range blocks {
        for _, s := range b.Successors() {
            if s != r.Entry && s.Parent() == r {
                indeg[s]++
            }
        }
    }

    var ret []VPBlock
    var queue []VPBlock
    queue = append(queue, r.Entry)

    for len(queue) > 0 {
        b := queue[0]
        queue = queue[1:]
        ret = append(ret, b)
        for _, s := range b.Successors() {
            if s == r.Entry || s.Parent() != r {
                continue
            }
            if indeg[s]--; indeg[s] == 0 {
                queue = append(queue, s)
            }
        }
    }
    return ret
}
