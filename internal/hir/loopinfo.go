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

package hir

import (
    `sort`

    `github.com/oleiade/lane`
)

// Loop is one natural loop of the loop forest. Blocks includes the header
// and every block of all nested loops.
type Loop struct {
    Header   *BasicBlock
    Latches  []*BasicBlock
    Blocks   map[int]*BasicBlock
    Parent   *Loop
    Children []*Loop
    ForcedVF uint32
    IsSIMD   bool
}

// Depth is the nesting depth of the loop, 1 for outermost loops.
func (self *Loop) Depth() int {
    d := 0
    for p := self; p != nil; p = p.Parent {
        d++
    }
    return d
}

func (self *Loop) Contains(bb *BasicBlock) bool {
    _, ok := self.Blocks[bb.Id]
    return ok
}

// Latch returns the unique latch block, nil if the loop has several.
func (self *Loop) Latch() *BasicBlock {
    if len(self.Latches) == 1 {
        return self.Latches[0]
    } else {
        return nil
    }
}

// Preheader returns the unique out-of-loop predecessor of the header whose
// sole successor is the header, nil if no such block exists.
func (self *Loop) Preheader() *BasicBlock {
    p := (*BasicBlock)(nil)
    for _, v := range self.Header.Pred {
        if !self.Contains(v) {
            if p != nil {
                return nil
            }
            p = v
        }
    }
    if p == nil || len(p.Successors()) != 1 {
        return nil
    }
    return p
}

// ExitBlocks returns the out-of-loop successor blocks, deduplicated and in
// block order.
func (self *Loop) ExitBlocks() []*BasicBlock {
    var ret []*BasicBlock
    seen := make(map[int]bool)

    /* scan every in-loop edge leaving the loop */
    for _, bb := range self.sortedBlocks() {
        for _, s := range bb.Successors() {
            if !self.Contains(s) && !seen[s.Id] {
                seen[s.Id] = true
                ret = append(ret, s)
            }
        }
    }
    return ret
}

// ExitBlock returns the unique exit block, nil if the loop has several.
func (self *Loop) ExitBlock() *BasicBlock {
    if ex := self.ExitBlocks(); len(ex) == 1 {
        return ex[0]
    } else {
        return nil
    }
}

// HasDedicatedExits checks that every exit block is reached only from
// inside the loop.
func (self *Loop) HasDedicatedExits() bool {
    for _, ex := range self.ExitBlocks() {
        for _, p := range ex.Pred {
            if !self.Contains(p) {
                return false
            }
        }
    }
    return true
}

// IsLoopSimplifyForm checks for a preheader, a single latch and dedicated
// exit blocks.
func (self *Loop) IsLoopSimplifyForm() bool {
    return self.Preheader() != nil && self.Latch() != nil && self.HasDedicatedExits()
}

// IsInnermost checks whether the loop contains no nested loop.
func (self *Loop) IsInnermost() bool {
    return len(self.Children) == 0
}

func (self *Loop) sortedBlocks() []*BasicBlock {
    ret := make([]*BasicBlock, 0, len(self.Blocks))
    for _, bb := range self.Blocks {
        ret = append(ret, bb)
    }
    sort.Slice(ret, func(i int, j int) bool { return ret[i].Id < ret[j].Id })
    return ret
}

// SortedBlocks returns the loop body in ascending block order.
func (self *Loop) SortedBlocks() []*BasicBlock {
    return self.sortedBlocks()
}

// LoopInfo is the loop forest of a function.
type LoopInfo struct {
    Roots []*Loop
    byBB  map[int]*Loop
}

// LoopFor returns the innermost loop containing bb, nil if bb is not in
// any loop.
func (self *LoopInfo) LoopFor(bb *BasicBlock) *Loop {
    return self.byBB[bb.Id]
}

// PreOrder returns every loop of the forest, parents before children, in
// header block order among siblings.
func (self *LoopInfo) PreOrder() []*Loop {
    var ret []*Loop
    var walk func(*Loop)

    walk = func(lp *Loop) {
        ret = append(ret, lp)
        for _, v := range lp.Children {
            walk(v)
        }
    }

    for _, lp := range self.Roots {
        walk(lp)
    }
    return ret
}

// BuildLoopInfo discovers the natural loop forest of fn from the back
// edges of its dominator tree.
func BuildLoopInfo(fn *Function, dom *DominatorTree) *LoopInfo {
    loops := make(map[int]*Loop)

    /* find all back edges, one loop per header */
    for _, bb := range fn.Blocks {
        for _, s := range bb.Successors() {
            if !dom.Dominates(s, bb) {
                continue
            }

            /* take or create the loop of this header */
            lp, ok := loops[s.Id]
            if !ok {
                lp = &Loop { Header: s, Blocks: map[int]*BasicBlock { s.Id: s } }
                loops[s.Id] = lp
            }

            /* flood the natural loop body backwards from the latch */
            lp.Latches = append(lp.Latches, bb)
            stack := lane.NewStack()
            stack.Push(bb)

            for !stack.Empty() {
                v := stack.Pop().(*BasicBlock)
                if _, ok := lp.Blocks[v.Id]; ok {
                    continue
                }
                lp.Blocks[v.Id] = v
                for _, p := range v.Pred {
                    stack.Push(p)
                }
            }
        }
    }

    /* order the headers so smaller loops come after their enclosers */
    hdrs := make([]*Loop, 0, len(loops))
    for _, lp := range loops {
        hdrs = append(hdrs, lp)
    }
    sort.Slice(hdrs, func(i int, j int) bool { return len(hdrs[i].Blocks) > len(hdrs[j].Blocks) })

    /* nest each loop under the smallest strictly containing one */
    for i, lp := range hdrs {
        for j := i - 1; j >= 0; j-- {
            if v := hdrs[j]; v.Contains(lp.Header) && len(v.Blocks) > len(lp.Blocks) {
                lp.Parent = v
                break
            }
        }
    }

    /* attach children, keep sibling order by header id */
    for _, lp := range hdrs {
        if lp.Parent != nil {
            lp.Parent.Children = append(lp.Parent.Children, lp)
        }
    }
    for _, lp := range hdrs {
        sort.Slice(lp.Children, func(i int, j int) bool {
            return lp.Children[i].Header.Id < lp.Children[j].Header.Id
        })
    }

    /* map blocks to their innermost loop, inner loops come later in hdrs
     * and overwrite their enclosers */
    li := &LoopInfo { byBB: make(map[int]*Loop) }
    for _, lp := range hdrs {
        if lp.Parent == nil {
            li.Roots = append(li.Roots, lp)
        }
        for id := range lp.Blocks {
            li.byBB[id] = lp
        }
    }
    sort.Slice(li.Roots, func(i int, j int) bool { return li.Roots[i].Header.Id < li.Roots[j].Header.Id })

    /* pick up SIMD envelope markers from the preheaders */
    for _, lp := range hdrs {
        if p := lp.Preheader(); p != nil {
            if d := p.Directive(); d != nil && d.Dir == DirBeginSIMD {
                lp.IsSIMD = true
                lp.ForcedVF = d.SimdVF
            }
        }
    }
    return li
}
