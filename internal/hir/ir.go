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
    `fmt`
)

type Op uint8

const (
    OP_nop Op = iota

    /* arithmetic & logic */
    OP_add
    OP_sub
    OP_mul
    OP_sdiv
    OP_udiv
    OP_and
    OP_or
    OP_xor
    OP_shl
    OP_lshr
    OP_ashr

    /* compares & selection */
    OP_icmp
    OP_fcmp
    OP_select

    /* conversions */
    OP_zext
    OP_sext
    OP_trunc
    OP_bitcast

    /* memory */
    OP_gep
    OP_load
    OP_store
    OP_alloca

    /* miscellaneous */
    OP_phi
    OP_call
    OP_directive

    /* terminators */
    OP_jmp
    OP_br
    OP_switch
    OP_ret

    /* unsupported by the high-level optimizer, suppress the region */
    OP_atomicrmw
    OP_cmpxchg
    OP_landingpad
    OP_indirectbr
    OP_resume
    OP_asm
    OP_insertvalue
    OP_extractvalue
    OP_vecop
)

var _OpNames = map[Op]string {
    OP_nop          : "nop",
    OP_add          : "add",
    OP_sub          : "sub",
    OP_mul          : "mul",
    OP_sdiv         : "sdiv",
    OP_udiv         : "udiv",
    OP_and          : "and",
    OP_or           : "or",
    OP_xor          : "xor",
    OP_shl          : "shl",
    OP_lshr         : "lshr",
    OP_ashr         : "ashr",
    OP_icmp         : "icmp",
    OP_fcmp         : "fcmp",
    OP_select       : "select",
    OP_zext         : "zext",
    OP_sext         : "sext",
    OP_trunc        : "trunc",
    OP_bitcast      : "bitcast",
    OP_gep          : "gep",
    OP_load         : "load",
    OP_store        : "store",
    OP_alloca       : "alloca",
    OP_phi          : "phi",
    OP_call         : "call",
    OP_directive    : "directive",
    OP_jmp          : "jmp",
    OP_br           : "br",
    OP_switch       : "switch",
    OP_ret          : "ret",
    OP_atomicrmw    : "atomicrmw",
    OP_cmpxchg      : "cmpxchg",
    OP_landingpad   : "landingpad",
    OP_indirectbr   : "indirectbr",
    OP_resume       : "resume",
    OP_asm          : "asm",
    OP_insertvalue  : "insertvalue",
    OP_extractvalue : "extractvalue",
    OP_vecop        : "vecop",
}

func (self Op) String() string {
    if v, ok := _OpNames[self]; ok {
        return v
    } else {
        return fmt.Sprintf("op_%d", self)
    }
}

func (self Op) IsTerminator() bool {
    return self == OP_jmp || self == OP_br || self == OP_switch || self == OP_ret || self == OP_indirectbr || self == OP_resume
}

// CmpPred is the predicate of an OP_icmp / OP_fcmp instruction.
type CmpPred uint8

const (
    CmpEQ CmpPred = iota
    CmpNE
    CmpLT
    CmpLE
    CmpGT
    CmpGE
)

// Directive marks structured regions of the underlying IR, such as the
// SIMD envelope emitted for "#pragma omp simd".
type Directive uint8

const (
    DirNone Directive = iota
    DirBeginSIMD
    DirEndSIMD
)

// Value is an underlying IR value handle. The planner treats these as
// opaque except for the narrow queries exposed here.
type Value interface {
    Type() Type
    String() string
}

// Const is a constant integer or floating point value.
type Const struct {
    Ty Type
    Iv int64
    Fv float64
}

func Int64(v int64) *Const {
    return &Const { Ty: I64, Iv: v }
}

func Int32(v int64) *Const {
    return &Const { Ty: I32, Iv: v }
}

func (self *Const) Type() Type {
    return self.Ty
}

func (self *Const) String() string {
    if self.Ty.Kind == K_float {
        return fmt.Sprintf("%g", self.Fv)
    } else {
        return fmt.Sprintf("$%d", self.Iv)
    }
}

// Param is a function parameter.
type Param struct {
    Ty   Type
    Name string
}

func (self *Param) Type() Type {
    return self.Ty
}

func (self *Param) String() string {
    return "%" + self.Name
}

// PhiEdge is one incoming (block, value) pair of an OP_phi instruction.
type PhiEdge struct {
    B *BasicBlock
    V Value
}

// Instr is a single underlying IR instruction. Terminators keep their
// successors in Succ; OP_phi keeps its incoming edges in Incoming.
type Instr struct {
    Id       int
    Op       Op
    Ty       Type
    Args     []Value
    Succ     []*BasicBlock
    Incoming []PhiEdge
    Pred     CmpPred
    Callee   string
    Indirect bool
    Volatile bool
    Dir      Directive
    SimdVF   uint32
    Block    *BasicBlock
}

func (self *Instr) Type() Type {
    return self.Ty
}

func (self *Instr) String() string {
    if self.Ty.IsVoid() {
        return fmt.Sprintf("%s", self.Op)
    } else {
        return fmt.Sprintf("%%t%d = %s %s", self.Id, self.Op, self.Ty)
    }
}

// IsMemAccess checks for load / store instructions.
func (self *Instr) IsMemAccess() bool {
    return self.Op == OP_load || self.Op == OP_store
}

// IsUnsupported checks for instruction forms the high-level optimizer
// refuses to represent.
func (self *Instr) IsUnsupported() bool {
    switch self.Op {
        case OP_atomicrmw    : fallthrough
        case OP_cmpxchg      : fallthrough
        case OP_landingpad   : fallthrough
        case OP_indirectbr   : fallthrough
        case OP_resume       : fallthrough
        case OP_asm          : fallthrough
        case OP_insertvalue  : fallthrough
        case OP_extractvalue : fallthrough
        case OP_vecop        : return true
        default              : return self.Ty.IsVector() && self.Op != OP_directive
    }
}
