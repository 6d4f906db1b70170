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

type TypeKind uint8

const (
    K_void TypeKind = iota
    K_int
    K_float
    K_ptr
)

// Type is a value type of the underlying IR. Vector shapes are expressed
// with a non-zero lane count over a scalar element.
type Type struct {
    Kind  TypeKind
    Bits  uint32
    Lanes uint32
}

var (
    Void = Type { Kind: K_void }
    I1   = Int(1)
    I8   = Int(8)
    I16  = Int(16)
    I32  = Int(32)
    I64  = Int(64)
    F32  = Float(32)
    F64  = Float(64)
    Ptr  = Type { Kind: K_ptr, Bits: 64 }
)

func Int(bits uint32) Type {
    return Type { Kind: K_int, Bits: bits }
}

func Float(bits uint32) Type {
    return Type { Kind: K_float, Bits: bits }
}

// Vec derives a vector type with the scalar element of self and vf lanes.
// Deriving a vector with vf == 1 yields the scalar itself.
func (self Type) Vec(vf uint32) Type {
    if self.Kind == K_void || vf <= 1 {
        return self
    } else {
        return Type { Kind: self.Kind, Bits: self.Bits, Lanes: vf }
    }
}

func (self Type) Elem() Type {
    return Type { Kind: self.Kind, Bits: self.Bits }
}

func (self Type) IsVector() bool {
    return self.Lanes > 1
}

func (self Type) IsVoid() bool {
    return self.Kind == K_void
}

func (self Type) IsInteger() bool {
    return self.Kind == K_int
}

func (self Type) IsPointer() bool {
    return self.Kind == K_ptr
}

func (self Type) String() string {
    switch self.Kind {
        case K_void  : return "void"
        case K_ptr   : if self.Lanes > 1 { return fmt.Sprintf("<%d x ptr>", self.Lanes) } else { return "ptr" }
        case K_float : if self.Lanes > 1 { return fmt.Sprintf("<%d x f%d>", self.Lanes, self.Bits) } else { return fmt.Sprintf("f%d", self.Bits) }
        default      : if self.Lanes > 1 { return fmt.Sprintf("<%d x i%d>", self.Lanes, self.Bits) } else { return fmt.Sprintf("i%d", self.Bits) }
    }
}

// DataLayout answers size queries about types.
type DataLayout struct{}

func (DataLayout) TypeSizeInBits(t Type) uint32 {
    n := t.Bits
    if t.Lanes > 1 {
        n *= t.Lanes
    }
    return n
}
