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
    `github.com/cloudwego/vecplan/internal/vls`
    `github.com/klauspost/cpuid/v2`
)

// TargetCostQuery is the planner's window into the target machine. The
// oracle must stay immutable while a plan is being evaluated.
type TargetCostQuery interface {
    RegisterBitWidth() uint32
    Arith(op hir.Op, ty hir.Type) int64
    Cmp(op hir.Op, ty hir.Type) int64
    Cast(op hir.Op, src hir.Type, dst hir.Type) int64
    CF(op hir.Op) int64
    Call(name string, ret hir.Type, args []hir.Type) int64
    MemOp(op hir.Op, ty hir.Type, align uint32, addrspace int) int64
    MaskedMemOp(op hir.Op, ty hir.Type) int64
    Address(ty hir.Type) int64
    GatherScatter(op hir.Op, ty hir.Type) int64
    IsLegalMaskedGather(ty hir.Type) bool
    IsLegalMaskedScatter(ty hir.Type) bool
    IsTargetShuffleMask(mask []int) bool
    ShuffleCost(mask []int, ty hir.Type) int64
}

// AMD64Query is the default cost table: flat per-class weights with the
// register width probed from the host CPU.
type AMD64Query struct {
    Width uint32
}

// NewAMD64Query probes the widest vector unit of the running machine.
func NewAMD64Query() *AMD64Query {
    switch {
        case cpuid.CPU.Supports(cpuid.AVX512F) : return &AMD64Query { Width: 512 }
        case cpuid.CPU.Supports(cpuid.AVX2)    : return &AMD64Query { Width: 256 }
        default                                : return &AMD64Query { Width: 128 }
    }
}

func (self *AMD64Query) RegisterBitWidth() uint32 {
    return self.Width
}

func (self *AMD64Query) Arith(op hir.Op, ty hir.Type) int64 {
    switch op {
        case hir.OP_sdiv : return 20
        case hir.OP_udiv : return 20
        case hir.OP_mul  : return 3
        default          : return 1
    }
}

func (self *AMD64Query) Cmp(op hir.Op, ty hir.Type) int64 {
    return 1
}

func (self *AMD64Query) Cast(op hir.Op, src hir.Type, dst hir.Type) int64 {
    if src.Bits == dst.Bits {
        return 0
    }
    return 1
}

func (self *AMD64Query) CF(op hir.Op) int64 {
    return 1
}

func (self *AMD64Query) Call(name string, ret hir.Type, args []hir.Type) int64 {
    return int64(10 + 2 * len(args))
}

func (self *AMD64Query) MemOp(op hir.Op, ty hir.Type, align uint32, addrspace int) int64 {
    return 1
}

func (self *AMD64Query) MaskedMemOp(op hir.Op, ty hir.Type) int64 {
    return 2
}

func (self *AMD64Query) Address(ty hir.Type) int64 {
    return 1
}

// GatherScatter prices one lane-wise access per element plus the index
// arithmetic.
func (self *AMD64Query) GatherScatter(op hir.Op, ty hir.Type) int64 {
    n := int64(ty.Lanes)
    if n == 0 {
        n = 1
    }
    if self.Width >= 512 {
        return n
    }
    return 2 * n
}

func (self *AMD64Query) IsLegalMaskedGather(ty hir.Type) bool {
    return self.Width >= 256
}

func (self *AMD64Query) IsLegalMaskedScatter(ty hir.Type) bool {
    return self.Width >= 512
}

// IsTargetShuffleMask recognizes broadcasts, which lower to one
// instruction on every SIMD level.
func (self *AMD64Query) IsTargetShuffleMask(mask []int) bool {
    if len(mask) == 0 {
        return false
    }
    first := -1
    for _, v := range mask {
        if v < 0 {
            continue
        }
        if first < 0 {
            first = v
        } else if v != first {
            return false
        }
    }
    return true
}

func (self *AMD64Query) ShuffleCost(mask []int, ty hir.Type) int64 {
    switch {
        case self.IsTargetShuffleMask(mask)  : return 1
        case vls.IsReverseMask(mask)         : return 1
        case vls.IsAlternateMask(mask)       : return 1
        default                              : return 2 * int64(len(mask))
    }
}

// VLSCostModel adapts a target query to the grouping engine's cost
// interface.
type VLSCostModel struct {
    Q TargetCostQuery
}

func vecTypeOf(ty vls.VecType) hir.Type {
    return hir.Int(ty.ElemBits).Vec(ty.NumElems)
}

func (self VLSCostModel) InstructionCost(i vls.Instruction) int64 {
    switch v := i.(type) {
        case *vls.Load    : return self.Q.MemOp(hir.OP_load, vecTypeOf(v.Ty), v.Ty.ElemBytes(), 0)
        case *vls.Shuffle : return self.Q.ShuffleCost(v.Mask, vecTypeOf(v.Ty))
        default           : return 1
    }
}

func (self VLSCostModel) GatherScatterCost(m vls.Memref) int64 {
    op := hir.OP_load
    if !m.Kind().IsGather() {
        op = hir.OP_store
    }
    return self.Q.GatherScatter(op, vecTypeOf(m.Type()))
}

func (self VLSCostModel) ShuffleCost(mask []int, ty vls.VecType) int64 {
    return self.Q.ShuffleCost(mask, vecTypeOf(ty))
}
