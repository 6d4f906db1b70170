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
    `fmt`
)

// MaxVectorLength is the widest vector the engine models, in bytes.
const MaxVectorLength = 64

// AccessKind is {Strided|Indexed}{Load|Store}.
type AccessKind uint8

const (
    SLoad AccessKind = iota + 1
    SStore
    ILoad
    IStore
)

func (self AccessKind) String() string {
    switch self {
        case SLoad  : return "SLoad"
        case SStore : return "SStore"
        case ILoad  : return "ILoad"
        case IStore : return "IStore"
        default     : return "Unknown"
    }
}

func (self AccessKind) IsStrided() bool {
    return self == SLoad || self == SStore
}

// IsGather collectively refers to strided and indexed loads.
func (self AccessKind) IsGather() bool {
    return self == SLoad || self == ILoad
}

// VecType is a vector shape: an element size in bits and a lane count.
// The engine never needs to know whether elements are integer or float.
type VecType struct {
    ElemBits uint32
    NumElems uint32
}

// Bits is the total size of the vector in bits.
func (self VecType) Bits() uint32 {
    return self.ElemBits * self.NumElems
}

func (self VecType) ElemBytes() uint32 {
    return self.ElemBits / 8
}

func (self VecType) String() string {
    return fmt.Sprintf("<%d x %d>", self.NumElems, self.ElemBits)
}

// Memref is the engine's view of one vector memory reference. The oracle
// methods are answered by the client, the engine never inspects addresses
// itself.
type Memref interface {
    ID() uint32
    Kind() AccessKind
    Type() VecType

    // IsAConstDistanceFrom reports the constant byte distance between the
    // i-th elements of the two references, when every pair is the same
    // distance apart.
    IsAConstDistanceFrom(other Memref) (int64, bool)

    // HaveSameNumElems checks for matching lane counts.
    HaveSameNumElems(other Memref) bool

    // CanMoveTo answers whether sinking this reference to the location of
    // other breaks a dependence or control flow.
    CanMoveTo(other Memref) bool

    // HasAConstStride reports the uniform byte distance between the
    // elements of this reference.
    HasAConstStride() (int64, bool)

    // Location orders the reference relative to the other memrefs handed
    // to the engine.
    Location() int
}

// ClientMemref is the concrete Memref used by the planner (and tests):
// a strided or indexed access described by a symbolic base, a byte offset
// of its first element and a constant byte stride.
type ClientMemref struct {
    Id     uint32
    AccTy  AccessKind
    Ty     VecType
    Base   int
    Offset int64
    Stride int64
    Loc    int

    // Deny lists memref ids this reference must not move across.
    Deny map[uint32]bool
}

func (self *ClientMemref) ID() uint32       { return self.Id }
func (self *ClientMemref) Kind() AccessKind { return self.AccTy }
func (self *ClientMemref) Type() VecType    { return self.Ty }
func (self *ClientMemref) Location() int    { return self.Loc }

func (self *ClientMemref) IsAConstDistanceFrom(other Memref) (int64, bool) {
    m, ok := other.(*ClientMemref)
    if !ok || m.Base != self.Base || m.Stride != self.Stride {
        return 0, false
    }
    return self.Offset - m.Offset, true
}

func (self *ClientMemref) HaveSameNumElems(other Memref) bool {
    return self.Ty.NumElems == other.Type().NumElems
}

func (self *ClientMemref) CanMoveTo(other Memref) bool {
    return !self.Deny[other.ID()]
}

func (self *ClientMemref) HasAConstStride() (int64, bool) {
    if !self.AccTy.IsStrided() {
        return 0, false
    }
    return self.Stride, true
}
