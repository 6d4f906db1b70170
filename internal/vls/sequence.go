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

// CostModel prices the instructions the engine may emit. The planner
// backs it with target tables, tests with flat weights.
type CostModel interface {
    InstructionCost(i Instruction) int64
    GatherScatterCost(m Memref) int64
    ShuffleCost(mask []int, ty VecType) int64
}

// FlatCostModel charges one per load, one per recognized cheap shuffle
// and two per lane otherwise, and GatherWeight per gather.
type FlatCostModel struct {
    GatherWeight int64
}

func (self FlatCostModel) InstructionCost(i Instruction) int64 {
    switch v := i.(type) {
        case *Load    : return 1
        case *Shuffle : return self.ShuffleCost(v.Mask, v.Ty)
        default       : return 1
    }
}

func (self FlatCostModel) GatherScatterCost(m Memref) int64 {
    return self.GatherWeight * int64(m.Type().NumElems)
}

func (self FlatCostModel) ShuffleCost(mask []int, ty VecType) int64 {
    if IsReverseMask(mask) || IsAlternateMask(mask) {
        return 1
    }
    return 2 * int64(len(mask))
}

// IsSupported reports whether a wide-load shuffle sequence can serve the
// group: loads only, one uniform element size and constant stride, no
// holes inside an element round and no round overlapping the next.
func IsSupported(g *Group) bool {
    if !g.HasGathers() {
        return false
    }

    stride, ok := g.Stride()
    if !ok {
        return false
    }
    if !g.IsContiguous() {
        return false
    }

    eb := g.Members[0].Mrf.Type().ElemBits
    for _, m := range g.Members[1:] {
        if m.Mrf.Type().ElemBits != eb {
            return false
        }
    }

    /* rounds must not overlap: the stride covers the used span */
    if stride < 0 {
        stride = -stride
    }
    return stride + 1 >= g.UsedBytes()
}

// GetSequence emits the load/shuffle program delivering every member of
// the group, with instruction ids starting at idbase. The map yields the
// instruction computing each member vector. Returns false when the group
// is not supported.
func GetSequence(g *Group, cm CostModel, idbase uint32) ([]Instruction, map[Memref]Instruction, bool) {
    if !IsSupported(g) {
        return nil, nil, false
    }

    dag := &_DAG { vlen: g.VLen }
    gathers := buildDefaultLoads(g, dag)
    if !dag.verify(g, gathers) {
        return nil, nil, false
    }

    dag.reduceSources()
    if cm != nil {
        dag.mergeNodes(cm)
    }

    seq, mvals := dag.emit(g, gathers, idbase)
    return seq, mvals, true
}

// GetGroupCost prices the group: the cheaper of the shuffle sequence and
// per-member gathers, or a members-times-lanes fallback when neither
// applies.
func GetGroupCost(g *Group, cm CostModel) int64 {
    var seqCost int64
    var gatherCost int64

    if seq, _, ok := GetSequence(g, cm, 0); ok {
        for _, i := range seq {
            seqCost += cm.InstructionCost(i)
        }
    }

    if g.HasGathers() {
        for _, m := range g.Members {
            gatherCost += cm.GatherScatterCost(m.Mrf)
        }
    }

    switch {
        case seqCost > 0 && gatherCost > 0 :
            if gatherCost < seqCost {
                return gatherCost
            }
            return seqCost
        case seqCost > 0    : return seqCost
        case gatherCost > 0 : return gatherCost
        default             : return int64(g.Size()) * int64(g.NumElems())
    }
}
