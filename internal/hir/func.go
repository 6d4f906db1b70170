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

// BasicBlock is one block of the underlying CFG. Term is always the last
// instruction and the only terminator of the block.
type BasicBlock struct {
    Id   int
    Ins  []*Instr
    Pred []*BasicBlock
    Term *Instr
}

func (self *BasicBlock) Name() string {
    return fmt.Sprintf("bb_%d", self.Id)
}

// Successors returns the ordered successor list of this block.
func (self *BasicBlock) Successors() []*BasicBlock {
    if self.Term == nil {
        return nil
    } else {
        return self.Term.Succ
    }
}

// ForEachInstr visits every instruction including the terminator.
func (self *BasicBlock) ForEachInstr(action func(p *Instr)) {
    for _, p := range self.Ins {
        action(p)
    }
    if self.Term != nil {
        action(self.Term)
    }
}

// Directive scans the block for a directive marker, DirNone if absent.
func (self *BasicBlock) Directive() *Instr {
    for _, p := range self.Ins {
        if p.Op == OP_directive {
            return p
        }
    }
    return nil
}

// Function is one function of the underlying IR, with its blocks kept in
// program order. Entry is always Blocks[0].
type Function struct {
    Name    string
    Params  []*Param
    Blocks  []*BasicBlock
    OptNone bool
}

func (self *Function) Entry() *BasicBlock {
    if len(self.Blocks) == 0 {
        panic("hir: function with no blocks: " + self.Name)
    }
    return self.Blocks[0]
}

// NumBlocks returns the block count of the function.
func (self *Function) NumBlocks() int {
    return len(self.Blocks)
}
