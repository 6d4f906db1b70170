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

package hlir

import (
    `github.com/cloudwego/vecplan/internal/hir`
)

// HLDDNode holds an ordered list of RegDDRefs: real operands first, then
// fake references that only exist to expose extra dependence edges. When
// the node writes a location, slot 0 is the LVal.
type HLDDNode struct {
    refs    []*RegDDRef
    nops    int
    hasLval bool
}

// NumOperands is the number of real operands; entries past it are fakes.
func (self *HLDDNode) NumOperands() int {
    return self.nops
}

// NumDDRefs counts every slot including fakes.
func (self *HLDDNode) NumDDRefs() int {
    return len(self.refs)
}

// DDRef returns the reference at slot i, nil for an unset slot.
func (self *HLDDNode) DDRef(i int) *RegDDRef {
    return self.refs[i]
}

// SetOperand installs r at operand slot i. The slot's previous reference
// is detached first; r must not be attached elsewhere.
func (self *HLDDNode) SetOperand(i int, r *RegDDRef) {
    if i < 0 || i >= self.nops {
        panic("hlir: operand slot out of range")
    }
    self.setSlot(i, r)
}

// AddFake appends a fake reference past the operand list.
func (self *HLDDNode) AddFake(r *RegDDRef) {
    self.attach(r)
    self.refs = append(self.refs, r)
}

// RemoveFake detaches and removes one fake reference.
func (self *HLDDNode) RemoveFake(r *RegDDRef) {
    for i := self.nops; i < len(self.refs); i++ {
        if self.refs[i] == r {
            r.node = nil
            self.refs = append(self.refs[:i], self.refs[i+1:]...)
            return
        }
    }
    panic("hlir: reference is not a fake of this node")
}

// IsLval checks whether r is the written slot of this node.
func (self *HLDDNode) IsLval(r *RegDDRef) bool {
    return self.hasLval && len(self.refs) > 0 && self.refs[0] == r
}

// IsFake checks whether r sits past the operand list.
func (self *HLDDNode) IsFake(r *RegDDRef) bool {
    for i := self.nops; i < len(self.refs); i++ {
        if self.refs[i] == r {
            return true
        }
    }
    return false
}

// IsRval checks for a read operand: attached, not the LVal, not a fake.
func (self *HLDDNode) IsRval(r *RegDDRef) bool {
    if r.node != self || self.IsLval(r) {
        return false
    }
    return !self.IsFake(r)
}

// ForEachDDRef visits every attached reference, fakes included, together
// with its blob edges.
func (self *HLDDNode) ForEachDDRef(action func(r *RegDDRef), blob func(b *BlobDDRef)) {
    for _, r := range self.refs {
        if r == nil {
            continue
        }
        action(r)
        if blob != nil {
            for _, b := range r.blobs {
                blob(b)
            }
        }
    }
}

// Detach removes every reference from the node, clearing their node
// pointers so they can be reused.
func (self *HLDDNode) Detach() {
    for i, r := range self.refs {
        if r != nil {
            r.node = nil
            self.refs[i] = nil
        }
    }
    self.refs = self.refs[:self.nops]
}

func (self *HLDDNode) setSlot(i int, r *RegDDRef) {
    if old := self.refs[i]; old != nil {
        old.node = nil
    }
    if r != nil {
        self.attach(r)
    }
    self.refs[i] = r
}

func (self *HLDDNode) attach(r *RegDDRef) {
    if r.node != nil {
        panic("hlir: DDRef is already attached to a node")
    }
    r.node = self
}

// HLInst is an HLDDNode wrapping one underlying instruction.
type HLInst struct {
    HLDDNode
    Inst *hir.Instr
}

// NewHLInst shapes the operand list after the underlying instruction:
// stores get an LVal in slot 0 followed by the value, everything else
// carries its args plus a leading LVal slot when it produces a value.
func NewHLInst(p *hir.Instr) *HLInst {
    n := len(p.Args)
    lv := false

    switch {
        case p.Op == hir.OP_store : lv = true; n = 2
        case !p.Ty.IsVoid()       : lv = true; n = len(p.Args) + 1
    }

    return &HLInst {
        Inst     : p,
        HLDDNode : HLDDNode {
            refs    : make([]*RegDDRef, n),
            nops    : n,
            hasLval : lv,
        },
    }
}

// IsMemAccess checks for an underlying load or store.
func (self *HLInst) IsMemAccess() bool {
    return self.Inst.IsMemAccess()
}
