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

// Utils is the only sanctioned way to mutate a plan's HCFG. Every
// operation preserves pred/succ symmetry, parent pointers, region SESE
// shape and size counters, and condition-bit user lists.
type Utils struct {
    Plan *VPlan
}

// CreateBasicBlock mints a detached basic block owned by region.
func (self *Utils) CreateBasicBlock(name string, region *VPRegionBlock) *VPBasicBlock {
    bb := &VPBasicBlock { _BlockBase: _BlockBase { name: name, parent: region } }
    if region != nil {
        self.grow(region, 1)
    }
    return bb
}

// CreateRegion mints a region spanning entry..exit. The blocks must
// already form an SESE subgraph under the same parent.
func (self *Utils) CreateRegion(name string, entry VPBlock, exit VPBlock, replicator bool) *VPRegionBlock {
    r := &VPRegionBlock {
        _BlockBase   : _BlockBase { name: name },
        Entry        : entry,
        Exit         : exit,
        IsReplicator : replicator,
    }
    r.self = r
    self.adopt(r, entry)
    return r
}

// CreateLoopRegion mints a loop region with the given header and latch.
func (self *Utils) CreateLoopRegion(name string, entry VPBlock, exit VPBlock, latch VPBlock) *VPLoopRegion {
    r := &VPLoopRegion {
        VPRegionBlock : VPRegionBlock {
            _BlockBase : _BlockBase { name: name },
            Entry      : entry,
            Exit       : exit,
        },
        Latch : latch,
    }
    r.VPRegionBlock.self = r
    self.adopt(&r.VPRegionBlock, entry)
    return r
}

// adopt walks the subgraph from entry claiming every reachable block for
// r and recounting its size.
func (self *Utils) adopt(r *VPRegionBlock, entry VPBlock) {
    if entry == nil {
        return
    }

    seen := make(map[VPBlock]bool)
    stack := []VPBlock { entry }
    size := 0

    for len(stack) > 0 {
        b := stack[len(stack)-1]
        stack = stack[:len(stack)-1]
        if seen[b] {
            continue
        }
        seen[b] = true
        b.base().parent = r

        if cr, ok := regionOf(b); ok {
            size += cr.Size()
        } else {
            size++
        }
        for _, s := range b.Successors() {
            if s != entry {
                stack = append(stack, s)
            }
        }
    }
    r.size = size
}

func (self *Utils) grow(r *VPRegionBlock, by int) {
    for ; r != nil; r = parentRegion(r) {
        r.size += by
    }
}

func parentRegion(r *VPRegionBlock) *VPRegionBlock {
    return r.parent
}

// SetSuccessor makes b the single successor of a.
func (self *Utils) SetSuccessor(a VPBlock, b VPBlock) {
    a.base().succs = []VPBlock { b }
    b.base().preds = append(b.base().preds, a)
}

// SetTwoSuccessors installs a conditional branch out of bb, registering
// it as a user of the condition bit.
func (self *Utils) SetTwoSuccessors(bb *VPBasicBlock, cb ConditionBit, ifTrue VPBlock, ifFalse VPBlock) {
    if old := bb.CondBit; old != nil {
        self.Plan.dropCondUser(old, bb)
    }

    bb.CondBit = cb
    bb.succs = []VPBlock { ifTrue, ifFalse }
    ifTrue.base().preds = append(ifTrue.base().preds, bb)
    ifFalse.base().preds = append(ifFalse.base().preds, bb)

    if cb != nil {
        self.Plan.addCondUser(cb, bb)
    }
}

// DisconnectBlocks removes the a -> b edge.
func (self *Utils) DisconnectBlocks(a VPBlock, b VPBlock) {
    a.base().succs = removeBlock(a.base().succs, b)
    b.base().preds = removeBlock(b.base().preds, a)

    /* a one-way block no longer branches on its condition bit */
    if bb, ok := a.(*VPBasicBlock); ok && bb.CondBit != nil && len(bb.succs) < 2 {
        self.Plan.dropCondUser(bb.CondBit, bb)
        bb.CondBit = nil
    }
}

// InsertBlockBefore splices newBB in front of bb, taking over every
// incoming edge. When bb was its region's entry, newBB becomes the
// entry.
func (self *Utils) InsertBlockBefore(newBB *VPBasicBlock, bb VPBlock) {
    r := bb.Parent()
    newBB.parent = r
    if r != nil {
        self.grow(r, 1)
    }

    for _, p := range bb.Predecessors() {
        ps := p.base()
        for i, s := range ps.succs {
            if s == bb {
                ps.succs[i] = newBB
            }
        }
        newBB.preds = append(newBB.preds, p)
    }
    bb.base().preds = nil

    self.SetSuccessor(newBB, bb)
    if r != nil && r.Entry == bb {
        r.Entry = newBB
    }
}

// InsertBlockAfter splices newBB behind bb, taking over every outgoing
// edge including the condition bit. When bb was its region's exit,
// newBB becomes the exit.
func (self *Utils) InsertBlockAfter(newBB *VPBasicBlock, bb *VPBasicBlock) {
    r := bb.Parent()
    newBB.parent = r
    if r != nil {
        self.grow(r, 1)
    }

    for _, s := range bb.Successors() {
        ss := s.base()
        for i, p := range ss.preds {
            if p == bb {
                ss.preds[i] = newBB
            }
        }
        newBB.succs = append(newBB.succs, s)
    }
    bb.succs = nil

    if cb := bb.CondBit; cb != nil {
        self.Plan.dropCondUser(cb, bb)
        bb.CondBit = nil
        newBB.CondBit = cb
        self.Plan.addCondUser(cb, newBB)
    }

    self.SetSuccessor(bb, newBB)
    if r != nil && r.Exit == bb {
        r.Exit = newBB
    }
}

// InsertRegion splices region between bb and its single successor.
func (self *Utils) InsertRegion(region *VPRegionBlock, bb VPBlock) {
    succs := bb.Successors()
    if len(succs) != 1 {
        panic("vplan: InsertRegion requires a single-successor block")
    }

    next := succs[0]
    self.DisconnectBlocks(bb, next)

    owner := region.Owner()
    owner.base().parent = bb.Parent()
    if p := bb.Parent(); p != nil {
        self.grow(p, region.Size())
    }

    self.SetSuccessor(bb, owner)
    self.SetSuccessor(owner, next)
}
