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
)

// VPlan is a closed model of one candidate vectorization of one region.
// All structural mutation goes through Utils.
type VPlan struct {
    Name string
    Root *VPRegionBlock
    VF   uint32

    /* per-plan unconditional predicate, never shared across plans */
    allOnes *AllOnes

    recipes   map[*hlir.HLInst]Recipe
    condUsers map[ConditionBit][]*VPBasicBlock
    liveIns   map[hir.Value]*VPValue
    nextId    int
}

func NewVPlan(name string, vf uint32) *VPlan {
    return &VPlan {
        Name      : name,
        VF        : vf,
        allOnes   : &AllOnes{},
        recipes   : make(map[*hlir.HLInst]Recipe),
        condUsers : make(map[ConditionBit][]*VPBasicBlock),
        liveIns   : make(map[hir.Value]*VPValue),
    }
}

// AllOnes is this plan's unconditional predicate.
func (self *VPlan) AllOnes() *AllOnes {
    return self.allOnes
}

// RecipeFor returns the recipe an ingredient was packed into, nil when
// the ingredient is not part of this plan.
func (self *VPlan) RecipeFor(n *hlir.HLInst) Recipe {
    return self.recipes[n]
}

// MapRecipe records that every listed ingredient is produced by r.
func (self *VPlan) MapRecipe(r Recipe, ns ...*hlir.HLInst) {
    for _, n := range ns {
        self.recipes[n] = r
    }
}

// CondBitUsers lists the blocks branching on cb.
func (self *VPlan) CondBitUsers(cb ConditionBit) []*VPBasicBlock {
    return self.condUsers[cb]
}

func (self *VPlan) addCondUser(cb ConditionBit, bb *VPBasicBlock) {
    self.condUsers[cb] = append(self.condUsers[cb], bb)
}

func (self *VPlan) dropCondUser(cb ConditionBit, bb *VPBasicBlock) {
    us := self.condUsers[cb]
    for i, v := range us {
        if v == bb {
            self.condUsers[cb] = append(us[:i], us[i+1:]...)
            return
        }
    }
}

// GetOrCreateLiveIn interns a value flowing into the plan from outside
// the region.
func (self *VPlan) GetOrCreateLiveIn(v hir.Value) *VPValue {
    if lv, ok := self.liveIns[v]; ok {
        return lv
    }
    lv := &VPValue { Id: self.nextVal() }
    self.liveIns[v] = lv
    return lv
}

// NewInstruction mints a plan-level instruction.
func (self *VPlan) NewInstruction(op hir.Op, under hir.Value, operands ...*VPValue) *VPInstruction {
    p := &VPInstruction {
        VPValue  : VPValue { Id: self.nextVal() },
        Op       : op,
        Operands : operands,
        Under    : under,
    }
    for _, v := range operands {
        v.addUser(p)
    }
    return p
}

func (self *VPlan) nextVal() int {
    self.nextId++
    return self.nextId
}

// BasicBlocks walks the HCFG pre-order, regions before their contents,
// and yields every plain basic block.
func (self *VPlan) BasicBlocks() []*VPBasicBlock {
    var ret []*VPBasicBlock
    var walk func(b VPBlock)

    walk = func(b VPBlock) {
        switch v := b.(type) {
            case *VPBasicBlock: {
                ret = append(ret, v)
            }
            case *VPLoopRegion: {
                for _, c := range v.Blocks() {
                    walk(c)
                }
            }
            case *VPRegionBlock: {
                for _, c := range v.Blocks() {
                    walk(c)
                }
            }
        }
    }

    if self.Root != nil {
        walk(self.Root)
    }
    return ret
}

// Regions lists every region of the plan, outermost first.
func (self *VPlan) Regions() []*VPRegionBlock {
    var ret []*VPRegionBlock
    var walk func(b VPBlock)

    walk = func(b VPBlock) {
        var r *VPRegionBlock
        switch v := b.(type) {
            case *VPLoopRegion   : r = &v.VPRegionBlock
            case *VPRegionBlock  : r = v
            default              : return
        }
        ret = append(ret, r)
        for _, c := range r.Blocks() {
            walk(c)
        }
    }

    if self.Root != nil {
        walk(self.Root)
    }
    return ret
}

// Verify checks the structural invariants of the HCFG: SESE shape and
// size counters of every region, and back-edges confined to loop-region
// latches.
func (self *VPlan) Verify() error {
    for _, b := range self.blocksOf(self.Root) {
        r, isRegion := regionOf(b)
        if !isRegion {
            continue
        }
        if err := self.verifyRegion(r); err != nil {
            return err
        }
    }
    return self.verifyBackEdges()
}

func (self *VPlan) blocksOf(root VPBlock) []VPBlock {
    ret := []VPBlock { root }
    for i := 0; i < len(ret); i++ {
        if r, ok := regionOf(ret[i]); ok {
            ret = append(ret, r.Blocks()...)
        }
    }
    return ret
}

func regionOf(b VPBlock) (*VPRegionBlock, bool) {
    switch v := b.(type) {
        case *VPLoopRegion  : return &v.VPRegionBlock, true
        case *VPRegionBlock : return v, true
        default             : return nil, false
    }
}

func (self *VPlan) verifyRegion(r *VPRegionBlock) error {
    lr, isLoop := r.Owner().(*VPLoopRegion)

    /* entry takes no edges from inside the region, except the loop
     * back-edge from the latch */
    for _, p := range r.Entry.Predecessors() {
        if p.Parent() != r {
            return fmt.Errorf("vplan: region %q entry has a predecessor outside the region", r.Name())
        }
        if !isLoop || p != lr.Latch {
            return fmt.Errorf("vplan: region %q entry is reached from inside the region", r.Name())
        }
    }

    /* exit leads nowhere inside the region */
    for _, s := range r.Exit.Successors() {
        if s.Parent() == r && (!isLoop || s != r.Entry) {
            return fmt.Errorf("vplan: region %q exit re-enters the region", r.Name())
        }
    }

    /* size counter: direct children count regions as their sizes */
    want := 0
    for _, c := range r.Blocks() {
        if cr, ok := regionOf(c); ok {
            want += cr.Size()
        } else {
            want++
        }
    }
    if r.size != want {
        return fmt.Errorf("vplan: region %q size is %d, expected %d", r.Name(), r.size, want)
    }
    return nil
}

func (self *VPlan) verifyBackEdges() error {
    for _, b := range self.blocksOf(self.Root) {
        for _, s := range b.Successors() {
            if !isBackEdge(b, s) {
                continue
            }
            lr, ok := b.Parent().Owner().(*VPLoopRegion)
            if !ok || s != lr.Entry || b != lr.Latch {
                return fmt.Errorf("vplan: back-edge %q -> %q outside a loop region latch", b.Name(), s.Name())
            }
        }
    }
    return nil
}

// isBackEdge treats an edge to the parent region's entry as a back-edge.
func isBackEdge(from VPBlock, to VPBlock) bool {
    r := from.Parent()
    return r != nil && to == r.Entry
}

// Owner resolves a region base back to the loop region wrapping it,
// when there is one.
func (self *VPRegionBlock) Owner() VPBlock {
    if self.self != nil {
        return self.self
    }
    return self
}
