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

package vls

import (
    `sort`

    `gonum.org/v1/gonum/graph/simple`
    `gonum.org/v1/gonum/graph/topo`
)

// _Slot is one result lane of a node: the source node and the bit offset
// of the lane data within it. A nil src lane is don't-care.
type _Slot struct {
    src *_Node
    bit uint32
}

// _Node is a vertex of the shuffle DAG. Load nodes have no slots, gather
// nodes deliver one group member, every other node is an intermediate
// shuffle introduced by source reduction or merging.
type _Node struct {
    id   int64
    ty   VecType
    load *Load
    mrf  Memref
    in   []_Slot
}

func (self *_Node) ID() int64 { return self.id }

// sources lists the distinct source nodes of the slots, in first-use
// order. Sequence emission requires at most two.
func (self *_Node) sources() []*_Node {
    var ret []*_Node
    loop: for _, s := range self.in {
        if s.src == nil {
            continue
        }
        for _, v := range ret {
            if v == s.src {
                continue loop
            }
        }
        ret = append(ret, s.src)
    }
    return ret
}

// _DAG is the whole shuffle graph of one group.
type _DAG struct {
    vlen  uint32
    next  int64
    nodes []*_Node
}

func (self *_DAG) newNode(ty VecType) *_Node {
    n := &_Node { id: self.next, ty: ty }
    self.next++
    self.nodes = append(self.nodes, n)
    return n
}

// buildDefaultLoads streams the group elements in memory order and packs
// them into as few wide loads as fit, wiring each element into its gather
// node. Returns the gather node of every member, in member order.
func buildDefaultLoads(g *Group, dag *_DAG) []*_Node {
    stride, _ := g.Stride()
    if stride < 0 {
        stride = -stride
    }

    gathers := make([]*_Node, g.Size())
    for i, m := range g.Members {
        n := dag.newNode(m.Mrf.Type())
        n.mrf = m.Mrf
        n.in = make([]_Slot, m.Mrf.Type().NumElems)
        gathers[i] = n
    }

    var cur *_Node
    var curOff int64
    var curLen int64
    var gap int64

    flush := func() {
        if cur != nil {
            eb := int64(cur.ty.ElemBits / 8)
            cur.ty.NumElems = uint32(curLen / eb)
            cur.load.Ty = cur.ty
        }
        cur = nil
        curLen = 0
        gap = 0
    }

    elemBits := g.ElemBits()
    for _, m := range g.Members {
        if m.Mrf.Type().ElemBits < elemBits {
            elemBits = m.Mrf.Type().ElemBits
        }
    }

    /* memory order: one round of member elements per iteration, rounds
     * stride bytes apart */
    for ith := int64(0); ith < int64(g.NumElems()); ith++ {
        for gi, m := range g.Members {
            eb := int64(m.Mrf.Type().ElemBytes())
            at := ith * stride + m.Dist

            /* close the current load when the next element (plus the gap
             * of dead bytes before it) no longer fits, or the gap would
             * misalign the elements within the load */
            if cur != nil && (curLen + gap + eb > int64(g.VLen) || gap % eb != 0) {
                flush()
            }
            if cur == nil {
                cur = dag.newNode(VecType { ElemBits: elemBits })
                cur.load = &Load { From: g.First(), Off: at }
                curOff = at
            }

            bit := uint32((at - curOff) * 8)
            gathers[gi].in[ith] = _Slot { src: cur, bit: bit }
            curLen = at - curOff + eb
            gap = 0

            /* dead bytes up to the next element in the stream */
            if gi + 1 < g.Size() {
                gap = g.Members[gi + 1].Dist - (m.Dist + eb)
            } else {
                gap = stride - (m.Dist + eb) + g.Members[0].Dist
            }
        }
    }

    flush()
    return gathers
}

// reduceSources rewrites every node with more than two distinct sources
// into a tree of two-source shuffles.
func (self *_DAG) reduceSources() {
    for i := 0; i < len(self.nodes); i++ {
        n := self.nodes[i]
        for len(n.sources()) > 2 {
            self.splitNode(n)
        }
    }
}

// splitNode peels the first two sources of n into an intermediate node.
func (self *_DAG) splitNode(n *_Node) {
    srcs := n.sources()
    a, b := srcs[0], srcs[1]

    /* collect the lanes coming from a or b, in slot order */
    var lanes []int
    for i, s := range n.in {
        if s.src == a || s.src == b {
            lanes = append(lanes, i)
        }
    }

    mid := self.newNode(VecType { ElemBits: n.ty.ElemBits, NumElems: uint32(len(lanes)) })
    mid.in = make([]_Slot, len(lanes))
    for j, i := range lanes {
        mid.in[j] = n.in[i]
        n.in[i] = _Slot { src: mid, bit: uint32(j) * n.ty.ElemBits }
    }
}

// canBeMerged checks whether nodes a and b could become one shuffle.
func (self *_DAG) canBeMerged(a *_Node, b *_Node) bool {
    if a == b || a.ty.ElemBits != b.ty.ElemBits {
        return false
    }
    if a.ty.Bits() + b.ty.Bits() > self.vlen * 8 {
        return false
    }
    if a.load != nil || b.load != nil || a.mrf != nil || b.mrf != nil {
        return false
    }
    if self.reaches(a, b) || self.reaches(b, a) {
        return false
    }

    /* the union of sources must still fit two operands */
    srcs := a.sources()
    for _, s := range b.sources() {
        dup := false
        for _, v := range srcs {
            dup = dup || v == s
        }
        if !dup {
            srcs = append(srcs, s)
        }
    }
    return len(srcs) <= 2
}

func (self *_DAG) reaches(from *_Node, to *_Node) bool {
    if from == to {
        return true
    }
    for _, s := range to.in {
        if s.src != nil && self.reaches(from, s.src) {
            return true
        }
    }
    return false
}

// mergeNodes repeatedly folds mergeable intermediate node pairs, taking
// the cheapest merge available each round.
func (self *_DAG) mergeNodes(cm CostModel) {
    for {
        var ba, bb *_Node
        best := int64(-1)

        for i, a := range self.nodes {
            for _, b := range self.nodes[i+1:] {
                if !self.canBeMerged(a, b) {
                    continue
                }
                if c := self.mergeCost(a, b, cm); best < 0 || c < best {
                    ba, bb, best = a, b, c
                }
            }
        }

        if ba == nil {
            return
        }
        self.merge(ba, bb)
    }
}

func (self *_DAG) mergeCost(a *_Node, b *_Node, cm CostModel) int64 {
    m := VecType { ElemBits: a.ty.ElemBits, NumElems: a.ty.NumElems + b.ty.NumElems }
    mask := make([]int, m.NumElems)
    for i := range mask {
        mask[i] = i
    }
    return cm.ShuffleCost(mask, m)
}

// merge concatenates b after a and repoints every consumer.
func (self *_DAG) merge(a *_Node, b *_Node) {
    off := uint32(len(a.in)) * a.ty.ElemBits
    a.in = append(a.in, b.in...)
    a.ty.NumElems += b.ty.NumElems

    for _, n := range self.nodes {
        for i, s := range n.in {
            if s.src == b {
                n.in[i] = _Slot { src: a, bit: s.bit + off }
            }
        }
    }

    for i, n := range self.nodes {
        if n == b {
            self.nodes = append(self.nodes[:i], self.nodes[i+1:]...)
            break
        }
    }
}

// topoOrder sorts the DAG so every node follows its sources.
func (self *_DAG) topoOrder() []*_Node {
    dg := simple.NewDirectedGraph()
    byid := make(map[int64]*_Node, len(self.nodes))

    for _, n := range self.nodes {
        byid[n.id] = n
        dg.AddNode(simple.Node(n.id))
    }
    for _, n := range self.nodes {
        for _, s := range n.in {
            if s.src != nil && s.src != n {
                dg.SetEdge(simple.Edge { F: simple.Node(s.src.id), T: simple.Node(n.id) })
            }
        }
    }

    order, err := topo.Sort(dg)
    if err != nil {
        panic("vls: shuffle graph has a cycle")
    }

    ret := make([]*_Node, 0, len(order))
    for _, v := range order {
        ret = append(ret, byid[v.ID()])
    }
    return ret
}

// verify checks the graph still delivers every gather lane exactly once.
func (self *_DAG) verify(g *Group, gathers []*_Node) bool {
    if len(gathers) != g.Size() {
        return false
    }
    for i, n := range gathers {
        if n.mrf != g.Members[i].Mrf || len(n.in) != int(n.ty.NumElems) {
            return false
        }
        for _, s := range n.in {
            if s.src == nil {
                return false
            }
        }
    }
    return true
}

// emit lowers the DAG into instructions in topological order. The map
// carries the instruction computing each member vector.
func (self *_DAG) emit(g *Group, gathers []*_Node, idbase uint32) ([]Instruction, map[Memref]Instruction) {
    var seq []Instruction
    vals := make(map[*_Node]Instruction, len(self.nodes))

    for _, n := range self.topoOrder() {
        var ins Instruction
        if n.load != nil {
            n.load.Id = idbase
            ins = n.load
        } else {
            ins = self.genShuffle(n, vals, idbase)
        }
        idbase++
        vals[n] = ins
        seq = append(seq, ins)
    }

    mvals := make(map[Memref]Instruction, len(gathers))
    for _, n := range gathers {
        mvals[n.mrf] = vals[n]
    }
    return seq, mvals
}

// genShuffle builds the mask of one non-load node from its slots.
func (self *_DAG) genShuffle(n *_Node, vals map[*_Node]Instruction, id uint32) *Shuffle {
    srcs := n.sources()
    if len(srcs) == 0 || len(srcs) > 2 {
        panic("vls: shuffle node must have one or two sources")
    }

    sort.Slice(srcs, func(i int, j int) bool {
        return srcs[i].id < srcs[j].id
    })

    op1 := vals[srcs[0]]
    mask := make([]int, len(n.in))
    base := int(op1.Type().NumElems)

    var op2 Instruction
    if len(srcs) == 2 {
        op2 = vals[srcs[1]]
    }

    for i, s := range n.in {
        switch {
            case s.src == nil     : mask[i] = -1
            case s.src == srcs[0] : mask[i] = int(s.bit / n.ty.ElemBits)
            default               : mask[i] = base + int(s.bit / n.ty.ElemBits)
        }
    }

    return &Shuffle {
        Id   : id,
        Ty   : VecType { ElemBits: n.ty.ElemBits, NumElems: uint32(len(n.in)) },
        Op1  : op1,
        Op2  : op2,
        Mask : mask,
    }
}
