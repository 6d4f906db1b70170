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
    `strings`
)

// Instruction is one step of a wide-load shuffle sequence.
type Instruction interface {
    ID() uint32
    Type() VecType
    String() string
}

// Load reads Ty.Bits()/8 consecutive bytes starting Off bytes past the
// first element of From.
type Load struct {
    Id   uint32
    Ty   VecType
    From Memref
    Off  int64
}

func (self *Load) ID() uint32    { return self.Id }
func (self *Load) Type() VecType { return self.Ty }

func (self *Load) String() string {
    return fmt.Sprintf("%%%d = load %s, #%d%+d", self.Id, self.Ty, self.From.ID(), self.Off)
}

// Shuffle selects lanes out of Op1 and Op2. Mask entry i picks lane
// Mask[i] of Op1, or lane Mask[i]-N of Op2 where N is the lane count of
// Op1. A -1 entry leaves the lane undefined. Op2 may be nil.
type Shuffle struct {
    Id   uint32
    Ty   VecType
    Op1  Instruction
    Op2  Instruction
    Mask []int
}

func (self *Shuffle) ID() uint32    { return self.Id }
func (self *Shuffle) Type() VecType { return self.Ty }

func (self *Shuffle) String() string {
    var sb strings.Builder
    fmt.Fprintf(&sb, "%%%d = shuffle %%%d", self.Id, self.Op1.ID())
    if self.Op2 != nil {
        fmt.Fprintf(&sb, ", %%%d", self.Op2.ID())
    }
    sb.WriteString(", <")
    for i, v := range self.Mask {
        if i != 0 {
            sb.WriteString(", ")
        }
        if v < 0 {
            sb.WriteString("u")
        } else {
            fmt.Fprintf(&sb, "%d", v)
        }
    }
    sb.WriteString(">")
    return sb.String()
}

// IsReverseMask checks for a full lane reversal.
func IsReverseMask(mask []int) bool {
    n := len(mask)
    for i, v := range mask {
        if v >= 0 && v != n - 1 - i {
            return false
        }
    }
    return n != 0
}

// IsAlternateMask checks for an even-lanes or odd-lanes interleave pick.
func IsAlternateMask(mask []int) bool {
    if len(mask) == 0 {
        return false
    }
    even, odd := true, true
    for i, v := range mask {
        if v < 0 {
            continue
        }
        even = even && v == 2 * i
        odd = odd && v == 2 * i + 1
    }
    return even || odd
}
