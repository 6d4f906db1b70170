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
)

// VPBlock is a vertex of the hierarchical CFG: either a basic block or
// a nested SESE region.
type VPBlock interface {
    Name() string
    Parent() *VPRegionBlock
    Predecessors() []VPBlock
    Successors() []VPBlock

    // EntryBasicBlock resolves through nested regions to the first plain
    // basic block executed when control enters this vertex.
    EntryBasicBlock() *VPBasicBlock

    // ExitBasicBlock resolves to the last plain basic block.
    ExitBasicBlock() *VPBasicBlock

    base() *_BlockBase
}

// _BlockBase carries the CFG bookkeeping shared by blocks and regions.
type _BlockBase struct {
    name   string
    parent *VPRegionBlock
    preds  []VPBlock
    succs  []VPBlock
}

func (self *_BlockBase) Name() string             { return self.name }
func (self *_BlockBase) Parent() *VPRegionBlock   { return self.parent }
func (self *_BlockBase) Predecessors() []VPBlock  { return self.preds }
func (self *_BlockBase) Successors() []VPBlock    { return self.succs }
func (self *_BlockBase) base() *_BlockBase        { return self }

func removeBlock(bs []VPBlock, b VPBlock) []VPBlock {
    for i, v := range bs {
        if v == b {
            return append(bs[:i], bs[i+1:]...)
        }
    }
    return bs
}

// VPBasicBlock is a straight-line list of recipes with up to two
// successors. A two-way block carries the condition bit choosing between
// them; after predication every block carries exactly one block
// predicate.
type VPBasicBlock struct {
    _BlockBase
    Recipes   []Recipe
    CondBit   ConditionBit
    Predicate Predicate
}

// AppendRecipe adds r at the end of the recipe list.
func (self *VPBasicBlock) AppendRecipe(r Recipe) {
    self.Recipes = append(self.Recipes, r)
}

func (self *VPBasicBlock) EntryBasicBlock() *VPBasicBlock { return self }
func (self *VPBasicBlock) ExitBasicBlock() *VPBasicBlock  { return self }

// VPRegionBlock is an SESE subgraph: control enters only through Entry
// and leaves only through Exit. A replicator region re-executes its body
// once per lane for predicated scalarization.
type VPRegionBlock struct {
    _BlockBase
    Entry        VPBlock
    Exit         VPBlock
    IsReplicator bool
    size         int

    /* set when this base is embedded in a wrapping block type */
    self VPBlock
}

// Size is the number of direct child blocks plus the sizes of nested
// regions.
func (self *VPRegionBlock) Size() int {
    return self.size
}

func (self *VPRegionBlock) EntryBasicBlock() *VPBasicBlock {
    if self.Entry == nil {
        return nil
    }
    return self.Entry.EntryBasicBlock()
}

func (self *VPRegionBlock) ExitBasicBlock() *VPBasicBlock {
    if self.Exit == nil {
        return nil
    }
    return self.Exit.ExitBasicBlock()
}

// Blocks lists the direct children of the region in entry-first DFS
// order, following forward edges only.
func (self *VPRegionBlock) Blocks() []VPBlock {
    var ret []VPBlock
    seen := make(map[VPBlock]bool)

    var walk func(b VPBlock)
    walk = func(b VPBlock) {
        if b == nil || seen[b] || b.Parent() != self {
            return
        }
        seen[b] = true
        ret = append(ret, b)
        for _, s := range b.Successors() {
            if s != self.Entry {
                walk(s)
            }
        }
    }

    walk(self.Entry)
    return ret
}

// VPLoopRegion is a region modeling one source loop. The back-edge from
// Latch to the entry block is the only cycle the HCFG permits.
type VPLoopRegion struct {
    VPRegionBlock
    Loop  *hir.Loop
    Latch VPBlock
}
