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

// Member is one memref of a group together with its byte offset from the
// group leader.
type Member struct {
    Mrf  Memref
    Dist int64
}

// Group is a set of adjacent same-kind memrefs that one wide operation
// could serve. AccessMask has one bit per byte of the VLen-byte window
// anchored at the leader, ElemMask one bit per element slot.
type Group struct {
    Kind       AccessKind
    VLen       uint32
    Members    []Member
    AccessMask uint64
    ElemMask   uint64
}

func newGroup(kind AccessKind, vlen uint32) *Group {
    if vlen == 0 || vlen > MaxVectorLength {
        panic("vls: invalid vector length")
    }
    return &Group { Kind: kind, VLen: vlen }
}

// genMask sets nbytes consecutive bits of mask starting at bit off.
func genMask(mask uint64, nbytes uint32, off int64) uint64 {
    return mask | (uint64(1) << nbytes - 1) << uint64(off)
}

func (self *Group) insert(mrf Memref, dist int64) {
    eb := mrf.Type().ElemBytes()
    self.Members = append(self.Members, Member { Mrf: mrf, Dist: dist })
    self.AccessMask = genMask(self.AccessMask, eb, dist)
    self.ElemMask |= uint64(1) << uint64(dist / int64(eb))
}

// First is the group leader, the member every distance is measured from.
func (self *Group) First() Memref {
    return self.Members[0].Mrf
}

func (self *Group) Size() int {
    return len(self.Members)
}

// ElemBits is the element width shared by every member.
func (self *Group) ElemBits() uint32 {
    return self.First().Type().ElemBits
}

// NumElems is the lane count shared by every member.
func (self *Group) NumElems() uint32 {
    return self.First().Type().NumElems
}

// Stride is the constant byte stride of the members, when uniform.
func (self *Group) Stride() (int64, bool) {
    return self.First().HasAConstStride()
}

// HasGathers reports whether the group members are loads.
func (self *Group) HasGathers() bool {
    return self.Kind.IsGather()
}

// UsedBytes is the byte span of one element round, from the leader to
// the end of the farthest member element.
func (self *Group) UsedBytes() int64 {
    last := self.Members[len(self.Members) - 1]
    return last.Dist + int64(last.Mrf.Type().ElemBytes())
}

// IsContiguous checks that the access mask has no holes.
func (self *Group) IsContiguous() bool {
    m := self.AccessMask
    if m == 0 {
        return false
    }
    for m & 1 == 0 {
        m >>= 1
    }
    return m & (m + 1) == 0
}

func (self *Group) String() string {
    var sb strings.Builder
    fmt.Fprintf(&sb, "%s group, mask %#x:", self.Kind, self.AccessMask)
    for _, m := range self.Members {
        fmt.Fprintf(&sb, " (#%d %s %+d)", m.Mrf.ID(), m.Mrf.Type(), m.Dist)
    }
    return sb.String()
}
